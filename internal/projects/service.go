package projects

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrProjectNotFound is returned when a project is not found
	ErrProjectNotFound = errors.New("project not found")

	// ErrSlugConflict is returned when a project slug already exists in the organization
	ErrSlugConflict = errors.New("project slug already exists in organization")
)

const projectColumns = `id, org_id, name, slug, created_by_user_id, created_at, updated_at`

// Service provides project-related operations
type Service struct {
	pool *pgxpool.Pool
}

// NewService creates a new project service
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

func scanProject(row pgx.Row) (*Project, error) {
	var p Project
	err := row.Scan(
		&p.ID,
		&p.OrgID,
		&p.Name,
		&p.Slug,
		&p.CreatedByUserID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}
	return &p, nil
}

// GetByID retrieves a project by ID
func (s *Service) GetByID(ctx context.Context, projectID uuid.UUID) (*Project, error) {
	return scanProject(s.pool.QueryRow(ctx, `
		SELECT `+projectColumns+` FROM projects WHERE id = $1
	`, projectID))
}

// GetByOrgAndSlug retrieves a project by organization ID and slug
func (s *Service) GetByOrgAndSlug(ctx context.Context, orgID uuid.UUID, slug string) (*Project, error) {
	return scanProject(s.pool.QueryRow(ctx, `
		SELECT `+projectColumns+` FROM projects WHERE org_id = $1 AND slug = $2
	`, orgID, slug))
}

// ListByOrg retrieves all projects for an organization
func (s *Service) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]Project, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+projectColumns+` FROM projects
		WHERE org_id = $1
		ORDER BY created_at DESC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project rows: %w", err)
	}

	return projects, nil
}

// Create creates a new project
func (s *Service) Create(ctx context.Context, orgID uuid.UUID, name, slug string, userID uuid.UUID) (*Project, error) {
	p, err := scanProject(s.pool.QueryRow(ctx, `
		INSERT INTO projects (org_id, name, slug, created_by_user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING `+projectColumns+`
	`, orgID, name, slug, userID))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return nil, ErrSlugConflict
		}
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return p, nil
}

// Delete removes a project. Tasks keep existing with project_id cleared.
func (s *Service) Delete(ctx context.Context, orgID, projectID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `
		UPDATE tasks SET project_id = NULL, updated_at = NOW()
		WHERE project_id = $1 AND org_id = $2
	`, projectID, orgID); err != nil {
		return fmt.Errorf("failed to detach tasks: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM projects WHERE id = $1 AND org_id = $2`, projectID, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProjectNotFound
	}

	return tx.Commit(ctx)
}
