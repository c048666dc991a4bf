package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskdeck/taskdeck/internal/hierarchy"
)

var (
	// ErrUserNotFound is returned when a referenced user does not exist
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidReference is returned when a reporting edge would point at a
	// user outside the organization or at a missing user
	ErrInvalidReference = errors.New("reports_to must reference an active user in the same organization")

	// ErrSelfReference is returned when a user would report to themselves
	ErrSelfReference = errors.New("user cannot report to themselves")

	// ErrCyclicHierarchy is returned when a reporting change would close a
	// reporting loop
	ErrCyclicHierarchy = errors.New("change would create a reporting cycle")

	// ErrCannotDemoteLastOwner guards the only owner of an organization
	ErrCannotDemoteLastOwner = errors.New("cannot demote last owner")
)

const userColumns = `id, org_id, email, display_name, role, reports_to, deactivated_at, created_at, updated_at`

// Service is the source of truth for user roles and reporting edges within
// an organization. Mutations invalidate the cached hierarchy snapshot so the
// resolver always computes from fresh edges.
type Service struct {
	pool  *pgxpool.Pool
	cache *hierarchy.Cache
}

// NewService creates a new directory service
func NewService(pool *pgxpool.Pool, cache *hierarchy.Cache) *Service {
	return &Service{pool: pool, cache: cache}
}

// EdgeLoader returns a hierarchy loader that reads reporting edges for one
// organization. Deactivated users keep their edges; the resolver treats a
// missing manager as a chain end either way.
func EdgeLoader(pool *pgxpool.Pool) hierarchy.Loader {
	return func(ctx context.Context, orgID uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
		rows, err := pool.Query(ctx, `
			SELECT id, reports_to
			FROM users
			WHERE org_id = $1 AND reports_to IS NOT NULL
		`, orgID)
		if err != nil {
			return nil, fmt.Errorf("failed to load reporting edges: %w", err)
		}
		defer rows.Close()

		edges := make(map[uuid.UUID]uuid.UUID)
		for rows.Next() {
			var userID, managerID uuid.UUID
			if err := rows.Scan(&userID, &managerID); err != nil {
				return nil, fmt.Errorf("failed to scan edge: %w", err)
			}
			edges[userID] = managerID
		}
		return edges, rows.Err()
	}
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.OrgID,
		&u.Email,
		&u.DisplayName,
		&u.Role,
		&u.ReportsTo,
		&u.DeactivatedAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

// GetUser retrieves a user by ID
func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (*User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
}

// GetUserByEmail retrieves a user by email
func (s *Service) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

// GetReports returns the direct reports of a manager. No traversal.
func (s *Service) GetReports(ctx context.Context, managerID uuid.UUID) ([]User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE reports_to = $1 AND deactivated_at IS NULL
		ORDER BY created_at ASC
	`, managerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// ListMembers returns all members of an organization, including deactivated
// ones so reporting lines stay renderable.
func (s *Service) ListMembers(ctx context.Context, orgID uuid.UUID) ([]MemberInfo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, email, display_name, role, reports_to, deactivated_at, created_at
		FROM users
		WHERE org_id = $1
		ORDER BY created_at ASC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []MemberInfo
	for rows.Next() {
		var m MemberInfo
		var reportsTo uuid.NullUUID
		var deactivatedAt *time.Time
		if err := rows.Scan(&m.ID, &m.Email, &m.DisplayName, &m.Role, &reportsTo, &deactivatedAt, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		if reportsTo.Valid {
			id := reportsTo.UUID
			m.ReportsTo = &id
		}
		m.Deactivated = deactivatedAt != nil
		members = append(members, m)
	}
	return members, rows.Err()
}
