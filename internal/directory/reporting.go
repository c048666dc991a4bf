package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/taskdeck/taskdeck/internal/orgs"
)

// SetReportsTo changes who a user reports to. Passing a nil managerID clears
// the reporting line. The edge must stay inside the organization, must not
// point at the user themselves, and must not close a reporting loop.
func (s *Service) SetReportsTo(ctx context.Context, orgID, actorUserID, userID uuid.UUID, managerID *uuid.UUID) error {
	if managerID != nil && *managerID == userID {
		return ErrSelfReference
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	actor, err := loadOrgUser(ctx, tx, orgID, actorUserID)
	if err != nil {
		return err
	}
	target, err := loadOrgUser(ctx, tx, orgID, userID)
	if err != nil {
		return err
	}

	if !actor.Role.CanManage(target.Role) {
		log.Warn().
			Str("actor_id", actorUserID.String()).
			Str("target_id", userID.String()).
			Str("actor_role", string(actor.Role)).
			Str("target_role", string(target.Role)).
			Msg("RBAC: actor cannot manage target's reporting line")
		return orgs.ErrInsufficientPermissions
	}

	if managerID != nil {
		manager, err := loadOrgUser(ctx, tx, orgID, *managerID)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				return ErrInvalidReference
			}
			return err
		}
		if !manager.Active() {
			return ErrInvalidReference
		}

		// An actor may only hang reports under themselves or under someone
		// they do not out-rank upward: the new manager must not out-rank
		// the actor.
		if actor.Role != orgs.RoleOwner && manager.Role.Rank() > actor.Role.Rank() {
			return orgs.ErrInsufficientPermissions
		}

		if err := checkNoCycle(ctx, tx, orgID, userID, *managerID); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE users
		SET reports_to = $3, updated_at = NOW()
		WHERE id = $1 AND org_id = $2
	`, userID, orgID, managerID); err != nil {
		return fmt.Errorf("failed to update reports_to: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	// Resolved closures are computed fresh from here on.
	s.cache.Invalidate(orgID)

	return nil
}

// SetRole changes a member's role. Rank rules: the actor must be able to
// manage both the member's current role and the new one; the last owner
// cannot be demoted.
func (s *Service) SetRole(ctx context.Context, orgID, actorUserID, targetUserID uuid.UUID, newRole orgs.Role) (previousRole orgs.Role, err error) {
	if !newRole.IsValid() {
		return "", orgs.ErrInvalidRole
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	actor, err := loadOrgUser(ctx, tx, orgID, actorUserID)
	if err != nil {
		return "", err
	}
	target, err := loadOrgUserForUpdate(ctx, tx, orgID, targetUserID)
	if err != nil {
		return "", err
	}

	if !actor.Role.CanManage(target.Role) || !actor.Role.CanManage(newRole) {
		return "", orgs.ErrInsufficientPermissions
	}
	if newRole == orgs.RoleOwner && actor.Role != orgs.RoleOwner {
		return "", orgs.ErrInsufficientPermissions
	}

	if target.Role == orgs.RoleOwner && newRole != orgs.RoleOwner {
		var owners int
		if err := tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM users
			WHERE org_id = $1 AND role = $2 AND deactivated_at IS NULL
		`, orgID, orgs.RoleOwner).Scan(&owners); err != nil {
			return "", fmt.Errorf("failed to count owners: %w", err)
		}
		if owners <= 1 {
			return "", ErrCannotDemoteLastOwner
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE users
		SET role = $3, updated_at = NOW()
		WHERE id = $1 AND org_id = $2
	`, targetUserID, orgID, newRole); err != nil {
		return "", fmt.Errorf("failed to update role: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.cache.Invalidate(orgID)

	return target.Role, nil
}

// Deactivate soft-disables a member. Tasks they own stay in place; the
// visibility evaluator treats their manager chain as ended.
func (s *Service) Deactivate(ctx context.Context, orgID, actorUserID, targetUserID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	actor, err := loadOrgUser(ctx, tx, orgID, actorUserID)
	if err != nil {
		return err
	}
	target, err := loadOrgUserForUpdate(ctx, tx, orgID, targetUserID)
	if err != nil {
		return err
	}
	if !actor.Role.CanManage(target.Role) {
		return orgs.ErrInsufficientPermissions
	}
	if target.Role == orgs.RoleOwner {
		return ErrCannotDemoteLastOwner
	}

	if _, err := tx.Exec(ctx, `
		UPDATE users
		SET deactivated_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND org_id = $2 AND deactivated_at IS NULL
	`, targetUserID, orgID); err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.cache.Invalidate(orgID)

	return nil
}

// checkNoCycle walks up from the proposed manager. Reaching the user being
// re-assigned means the move would close a loop. The visited set bounds the
// walk even if the stored edges are already cyclic.
func checkNoCycle(ctx context.Context, tx pgx.Tx, orgID, userID, managerID uuid.UUID) error {
	visited := map[uuid.UUID]struct{}{}
	current := managerID

	for {
		if current == userID {
			return ErrCyclicHierarchy
		}
		if _, seen := visited[current]; seen {
			// Pre-existing loop upstream. The move itself does not involve
			// the user, so allow it; the resolver fails closed on the loop.
			log.Warn().
				Str("org_id", orgID.String()).
				Str("user_id", current.String()).
				Msg("Cyclic reporting chain detected during reassignment")
			return nil
		}
		visited[current] = struct{}{}

		var next uuid.NullUUID
		err := tx.QueryRow(ctx, `
			SELECT reports_to FROM users WHERE id = $1 AND org_id = $2
		`, current, orgID).Scan(&next)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil // chain left the org or hit a missing user; ends here
			}
			return fmt.Errorf("failed to walk reporting chain: %w", err)
		}
		if !next.Valid {
			return nil
		}
		current = next.UUID
	}
}

func loadOrgUser(ctx context.Context, tx pgx.Tx, orgID, userID uuid.UUID) (*User, error) {
	return scanUser(tx.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1 AND org_id = $2
	`, userID, orgID))
}

func loadOrgUserForUpdate(ctx context.Context, tx pgx.Tx, orgID, userID uuid.UUID) (*User, error) {
	return scanUser(tx.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1 AND org_id = $2 FOR UPDATE
	`, userID, orgID))
}
