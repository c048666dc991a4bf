package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const (
	EventUserSignup           = "user.signup"
	EventLoginFailed          = "auth.login_failed"
	EventOrgCreated           = "org.created"
	EventOrgInviteCreated     = "org.invite_created"
	EventOrgInviteRevoked     = "org.invite_revoked"
	EventOrgInviteAccepted    = "org.invite_accepted"
	EventMemberRoleUpdated    = "org.member_role_updated"
	EventMemberReportsUpdated = "org.member_reports_updated"
	EventMemberDeactivated    = "org.member_deactivated"
	EventProjectCreated       = "project.created"
	EventTaskDeleted          = "task.deleted"
	EventAPIKeyCreated        = "apikey.created"
	EventAPIKeyRevoked        = "apikey.revoked"
)

// Event represents an audit log entry.
type Event struct {
	ID          uuid.UUID              `db:"id"`
	OrgID       uuid.NullUUID          `db:"org_id"`
	ActorUserID uuid.NullUUID          `db:"actor_user_id"`
	Action      string                 `db:"action"`
	Meta        map[string]interface{} `db:"meta"`
	CreatedAt   time.Time              `db:"created_at"`
}

// Writer provides methods to write audit log entries.
type Writer struct {
	pool *pgxpool.Pool
}

func NewWriter(pool *pgxpool.Pool) *Writer {
	return &Writer{pool: pool}
}

// LogParams contains parameters for logging an audit event.
type LogParams struct {
	OrgID       *uuid.UUID
	ActorUserID *uuid.UUID
	Action      string
	Meta        map[string]interface{}
}

func (w *Writer) Log(ctx context.Context, params LogParams) error {
	metaJSON := []byte("{}")
	if params.Meta != nil {
		b, err := json.Marshal(params.Meta)
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal audit meta")
			return err
		}
		metaJSON = b
	}

	query := `
		INSERT INTO audit_log (org_id, actor_user_id, action, meta)
		VALUES ($1, $2, $3, $4)
	`

	orgID := toNullUUID(params.OrgID)
	actorUserID := toNullUUID(params.ActorUserID)

	_, err := w.pool.Exec(ctx, query, orgID, actorUserID, params.Action, metaJSON)
	if err != nil {
		log.Error().Err(err).Str("action", params.Action).Msg("Failed to write audit log")
		return err
	}

	log.Info().
		Str("action", params.Action).
		Interface("org_id", params.OrgID).
		Interface("actor_user_id", params.ActorUserID).
		Msg("Audit event logged")

	return nil
}

func toNullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func (w *Writer) LogUserSignup(ctx context.Context, userID uuid.UUID, email string) error {
	return w.Log(ctx, LogParams{
		ActorUserID: &userID,
		Action:      EventUserSignup,
		Meta: map[string]interface{}{
			"email": email,
		},
	})
}

func (w *Writer) LogLoginFailed(ctx context.Context, email, ip string) error {
	return w.Log(ctx, LogParams{
		Action: EventLoginFailed,
		Meta: map[string]interface{}{
			"email": email,
			"ip":    ip,
		},
	})
}

func (w *Writer) LogOrgCreated(ctx context.Context, orgID, actorUserID uuid.UUID, slug string) error {
	return w.Log(ctx, LogParams{
		OrgID:       &orgID,
		ActorUserID: &actorUserID,
		Action:      EventOrgCreated,
		Meta: map[string]interface{}{
			"slug": slug,
		},
	})
}

func (w *Writer) LogInviteCreated(ctx context.Context, orgID, actorUserID uuid.UUID, email, role string) error {
	return w.Log(ctx, LogParams{
		OrgID:       &orgID,
		ActorUserID: &actorUserID,
		Action:      EventOrgInviteCreated,
		Meta: map[string]interface{}{
			"email": email,
			"role":  role,
		},
	})
}

func (w *Writer) LogInviteAccepted(ctx context.Context, orgID, userID, inviteID uuid.UUID) error {
	return w.Log(ctx, LogParams{
		OrgID:       &orgID,
		ActorUserID: &userID,
		Action:      EventOrgInviteAccepted,
		Meta: map[string]interface{}{
			"invite_id": inviteID.String(),
		},
	})
}

func (w *Writer) LogRoleUpdated(ctx context.Context, orgID, actorUserID, targetUserID uuid.UUID, oldRole, newRole string) error {
	return w.Log(ctx, LogParams{
		OrgID:       &orgID,
		ActorUserID: &actorUserID,
		Action:      EventMemberRoleUpdated,
		Meta: map[string]interface{}{
			"target_user_id": targetUserID.String(),
			"old_role":       oldRole,
			"new_role":       newRole,
		},
	})
}

func (w *Writer) LogReportsUpdated(ctx context.Context, orgID, actorUserID, targetUserID uuid.UUID, managerID *uuid.UUID) error {
	meta := map[string]interface{}{
		"target_user_id": targetUserID.String(),
	}
	if managerID != nil {
		meta["reports_to"] = managerID.String()
	}
	return w.Log(ctx, LogParams{
		OrgID:       &orgID,
		ActorUserID: &actorUserID,
		Action:      EventMemberReportsUpdated,
		Meta:        meta,
	})
}
