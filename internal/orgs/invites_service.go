package orgs

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const inviteTTL = 7 * 24 * time.Hour

func normalizeInviteEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", errors.New("email is required")
	}
	if len(email) > 320 {
		return "", errors.New("email is too long")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", errors.New("invalid email address")
	}
	return email, nil
}

// CreateInvite creates a pending invitation. A second pending invite for the
// same email in the same org is rejected with ErrDuplicateInvitation; the
// existing invite must be revoked first.
func (s *Service) CreateInvite(ctx context.Context, orgID, actorUserID uuid.UUID, email string, role Role, reportsTo *uuid.UUID) (*Invite, string, error) {
	email, err := normalizeInviteEmail(email)
	if err != nil {
		return nil, "", err
	}

	if !role.IsValid() {
		return nil, "", ErrInvalidRole
	}
	if role == RoleOwner {
		return nil, "", ErrCannotInviteOwner
	}

	actorRole, err := s.RequireOrgMutatePermission(ctx, actorUserID, orgID)
	if err != nil {
		return nil, "", err
	}
	if !actorRole.CanManage(role) {
		return nil, "", ErrInsufficientPermissions
	}

	if reportsTo != nil {
		var managerOrg uuid.NullUUID
		if err := s.pool.QueryRow(ctx, `
			SELECT org_id FROM users WHERE id = $1 AND deactivated_at IS NULL
		`, *reportsTo).Scan(&managerOrg); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, "", errors.New("reports_to user not found")
			}
			return nil, "", fmt.Errorf("failed to load manager: %w", err)
		}
		if !managerOrg.Valid || managerOrg.UUID != orgID {
			return nil, "", errors.New("reports_to user is not in this organization")
		}
	}

	var invite Invite
	for attempt := 0; attempt < 3; attempt++ {
		token, tokenHash, err := GenerateInviteToken()
		if err != nil {
			return nil, "", err
		}

		expiresAt := time.Now().UTC().Add(inviteTTL)

		err = s.pool.QueryRow(ctx, `
			INSERT INTO org_invites (
			  org_id, email, role, reports_to, token_hash, created_by_user_id, expires_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, org_id, email, role, reports_to, created_at, expires_at
		`, orgID, email, role, reportsTo, tokenHash, actorUserID, expiresAt).Scan(
			&invite.ID,
			&invite.OrgID,
			&invite.Email,
			&invite.Role,
			&invite.ReportsTo,
			&invite.CreatedAt,
			&invite.ExpiresAt,
		)
		if err == nil {
			return &invite, token, nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == "idx_org_invites_pending" {
				return nil, "", ErrDuplicateInvitation
			}
			// Token hash collision (extremely unlikely); retry.
			continue
		}
		return nil, "", fmt.Errorf("failed to create invite: %w", err)
	}

	return nil, "", fmt.Errorf("failed to create invite: token collision retry exhausted")
}

func (s *Service) ListInvites(ctx context.Context, orgID, actorUserID uuid.UUID) ([]InviteListItem, error) {
	if _, err := s.RequireOrgMutatePermission(ctx, actorUserID, orgID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT
		  i.id,
		  i.email,
		  i.role,
		  i.reports_to,
		  i.created_at,
		  i.expires_at,
		  u.email AS created_by_email
		FROM org_invites i
		INNER JOIN users u ON u.id = i.created_by_user_id
		WHERE i.org_id = $1
		  AND i.accepted_at IS NULL
		  AND i.revoked_at IS NULL
		  AND i.expires_at > NOW()
		ORDER BY i.created_at DESC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	defer rows.Close()

	var invites []InviteListItem
	for rows.Next() {
		var inv InviteListItem
		if err := rows.Scan(&inv.ID, &inv.Email, &inv.Role, &inv.ReportsTo, &inv.CreatedAt, &inv.ExpiresAt, &inv.CreatedByEmail); err != nil {
			return nil, fmt.Errorf("failed to scan invite: %w", err)
		}
		invites = append(invites, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invites: %w", err)
	}

	return invites, nil
}

func (s *Service) RevokeInvite(ctx context.Context, orgID, inviteID, actorUserID uuid.UUID) error {
	if _, err := s.RequireOrgMutatePermission(ctx, actorUserID, orgID); err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE org_invites
		SET revoked_at = NOW(), revoked_by_user_id = $3
		WHERE id = $1
		  AND org_id = $2
		  AND accepted_at IS NULL
		  AND revoked_at IS NULL
	`, inviteID, orgID, actorUserID)
	if err != nil {
		return fmt.Errorf("failed to revoke invite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInviteNotFound
	}

	return nil
}

// AcceptInvite joins the accepting user to the invite's organization with the
// invited role and reporting line.
func (s *Service) AcceptInvite(ctx context.Context, token string, userID uuid.UUID) (inviteID, orgID uuid.UUID, role Role, err error) {
	if !ValidateInviteTokenFormat(token) {
		return uuid.Nil, uuid.Nil, "", ErrInviteNotFound
	}
	tokenHash := HashInviteToken(token)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, uuid.Nil, "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var invite Invite
	var acceptedAt *time.Time
	var revokedAt *time.Time
	err = tx.QueryRow(ctx, `
		SELECT id, org_id, email, role, reports_to, created_at, expires_at, accepted_at, revoked_at
		FROM org_invites
		WHERE token_hash = $1
		FOR UPDATE
	`, tokenHash).Scan(
		&invite.ID,
		&invite.OrgID,
		&invite.Email,
		&invite.Role,
		&invite.ReportsTo,
		&invite.CreatedAt,
		&invite.ExpiresAt,
		&acceptedAt,
		&revokedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, uuid.Nil, "", ErrInviteNotFound
		}
		return uuid.Nil, uuid.Nil, "", fmt.Errorf("failed to load invite: %w", err)
	}

	if acceptedAt != nil || revokedAt != nil {
		return uuid.Nil, uuid.Nil, "", ErrInviteNotActive
	}
	if !invite.ExpiresAt.After(time.Now().UTC()) {
		return uuid.Nil, uuid.Nil, "", ErrInviteExpired
	}

	var userEmail string
	var userOrg uuid.NullUUID
	err = tx.QueryRow(ctx, `SELECT email, org_id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&userEmail, &userOrg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, uuid.Nil, "", fmt.Errorf("user not found")
		}
		return uuid.Nil, uuid.Nil, "", fmt.Errorf("failed to load user: %w", err)
	}
	if !strings.EqualFold(userEmail, invite.Email) {
		return uuid.Nil, uuid.Nil, "", ErrInviteEmailMismatch
	}
	if userOrg.Valid && userOrg.UUID != invite.OrgID {
		return uuid.Nil, uuid.Nil, "", ErrAlreadyMember
	}

	if _, err := tx.Exec(ctx, `
		UPDATE users
		SET org_id = $2, role = $3, reports_to = $4, updated_at = NOW()
		WHERE id = $1
	`, userID, invite.OrgID, invite.Role, invite.ReportsTo); err != nil {
		return uuid.Nil, uuid.Nil, "", fmt.Errorf("failed to join organization: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE org_invites
		SET accepted_at = NOW(), accepted_by_user_id = $2
		WHERE id = $1
		  AND accepted_at IS NULL
		  AND revoked_at IS NULL
	`, invite.ID, userID)
	if err != nil {
		return uuid.Nil, uuid.Nil, "", fmt.Errorf("failed to mark invite accepted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return uuid.Nil, uuid.Nil, "", ErrInviteNotActive
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, uuid.Nil, "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return invite.ID, invite.OrgID, invite.Role, nil
}
