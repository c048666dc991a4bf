package orgs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var (
	// ErrOrgNotFound is returned when an organization is not found
	ErrOrgNotFound = errors.New("organization not found")

	// ErrSlugConflict is returned when an organization slug already exists
	ErrSlugConflict = errors.New("organization slug already exists")

	// ErrNotMember is returned when a user does not belong to an organization
	ErrNotMember = errors.New("user is not a member of this organization")

	// ErrAlreadyMember is returned when a user already belongs to an organization
	ErrAlreadyMember = errors.New("user already belongs to an organization")

	// ErrInsufficientPermissions is returned when a user lacks required permissions
	ErrInsufficientPermissions = errors.New("insufficient permissions")

	// ErrInvalidRole is returned for unknown role values
	ErrInvalidRole = errors.New("invalid organization role")
)

// Service provides organization-related operations
type Service struct {
	pool *pgxpool.Pool
}

// NewService creates a new organization service
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// GetByID retrieves an organization by ID
func (s *Service) GetByID(ctx context.Context, orgID uuid.UUID) (*Org, error) {
	var org Org

	query := `
		SELECT id, name, slug, created_by_user_id, created_at, updated_at
		FROM orgs
		WHERE id = $1
	`

	err := s.pool.QueryRow(ctx, query, orgID).Scan(
		&org.ID,
		&org.Name,
		&org.Slug,
		&org.CreatedByUserID,
		&org.CreatedAt,
		&org.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrgNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return &org, nil
}

// GetBySlug retrieves an organization by slug
func (s *Service) GetBySlug(ctx context.Context, slug string) (*Org, error) {
	var org Org

	query := `
		SELECT id, name, slug, created_by_user_id, created_at, updated_at
		FROM orgs
		WHERE slug = $1
	`

	err := s.pool.QueryRow(ctx, query, slug).Scan(
		&org.ID,
		&org.Name,
		&org.Slug,
		&org.CreatedByUserID,
		&org.CreatedAt,
		&org.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrgNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return &org, nil
}

// CreateWithOwner creates a new organization and makes the creating user its
// owner. The user must not already belong to an organization.
func (s *Service) CreateWithOwner(ctx context.Context, name, slug string, userID uuid.UUID) (*Org, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var existingOrg uuid.NullUUID
	if err := tx.QueryRow(ctx, `
		SELECT org_id FROM users WHERE id = $1 FOR UPDATE
	`, userID).Scan(&existingOrg); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if existingOrg.Valid {
		return nil, ErrAlreadyMember
	}

	var org Org
	query := `
		INSERT INTO orgs (name, slug, created_by_user_id)
		VALUES ($1, $2, $3)
		RETURNING id, name, slug, created_by_user_id, created_at, updated_at
	`

	err = tx.QueryRow(ctx, query, name, slug, userID).Scan(
		&org.ID,
		&org.Name,
		&org.Slug,
		&org.CreatedByUserID,
		&org.CreatedAt,
		&org.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return nil, ErrSlugConflict
		}
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE users
		SET org_id = $2, role = $3, updated_at = NOW()
		WHERE id = $1
	`, userID, org.ID, RoleOwner); err != nil {
		return nil, fmt.Errorf("failed to attach owner: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &org, nil
}

// GetUserOrgRole retrieves a user's role in an organization.
// Returns ErrNotMember if the user does not belong to the organization.
func (s *Service) GetUserOrgRole(ctx context.Context, userID, orgID uuid.UUID) (Role, error) {
	var role Role

	query := `
		SELECT role FROM users
		WHERE id = $1 AND org_id = $2 AND deactivated_at IS NULL
	`

	err := s.pool.QueryRow(ctx, query, userID, orgID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotMember
		}
		return "", fmt.Errorf("failed to get org role: %w", err)
	}

	return role, nil
}

// RequireOrgMember checks that a user belongs to an organization and returns
// their role.
func (s *Service) RequireOrgMember(ctx context.Context, userID, orgID uuid.UUID) (Role, error) {
	return s.GetUserOrgRole(ctx, userID, orgID)
}

// RequireOrgMutatePermission checks that a user can mutate organization
// resources (owner or admin).
func (s *Service) RequireOrgMutatePermission(ctx context.Context, userID, orgID uuid.UUID) (Role, error) {
	role, err := s.GetUserOrgRole(ctx, userID, orgID)
	if err != nil {
		return "", err
	}
	if !role.CanMutateOrg() {
		log.Warn().
			Str("user_id", userID.String()).
			Str("org_id", orgID.String()).
			Str("role", string(role)).
			Msg("RBAC: Insufficient permissions")
		return role, ErrInsufficientPermissions
	}
	return role, nil
}
