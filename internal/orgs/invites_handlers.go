package orgs

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/taskdeck/taskdeck/internal/apperrors"
	"github.com/taskdeck/taskdeck/internal/audit"
	"github.com/taskdeck/taskdeck/internal/auth"
)

// CreateInviteRequest represents the request to invite a member
type CreateInviteRequest struct {
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	ReportsTo *uuid.UUID `json:"reports_to"`
}

// CreateInviteResponse includes the invite token, shown exactly once.
type CreateInviteResponse struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	ReportsTo *uuid.UUID `json:"reports_to,omitempty"`
	Token     string     `json:"token"`
	ExpiresAt string     `json:"expires_at"`
}

// AcceptInviteRequest represents the request to accept an invitation
type AcceptInviteRequest struct {
	Token string `json:"token"`
}

// HandleCreateInvite handles POST /api/v1/orgs/{org_id}/invites
func HandleCreateInvite(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		orgID, err := uuid.Parse(chi.URLParam(r, "org_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}

		var req CreateInviteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid JSON body")
			return
		}

		service := NewService(pool)
		invite, token, err := service.CreateInvite(ctx, orgID, userID, req.Email, Role(req.Role), req.ReportsTo)
		if err != nil {
			switch {
			case errors.Is(err, ErrDuplicateInvitation):
				apperrors.WriteConflict(w, r, "A pending invitation for this email already exists")
			case errors.Is(err, ErrNotMember):
				apperrors.WriteNotFound(w, r, "Organization not found")
			case errors.Is(err, ErrInsufficientPermissions):
				apperrors.WriteForbidden(w, r, "Insufficient permissions")
			case errors.Is(err, ErrInvalidRole), errors.Is(err, ErrCannotInviteOwner):
				apperrors.WriteBadRequest(w, r, err.Error())
			default:
				// Email and reports_to validation failures carry their message.
				if isInfraError(err) {
					log.Error().Err(err).Str("org_id", orgID.String()).Msg("Failed to create invite")
					apperrors.WriteInternalError(w, r, "Failed to create invitation")
					return
				}
				apperrors.WriteBadRequest(w, r, err.Error())
			}
			return
		}

		_ = auditor.LogInviteCreated(ctx, orgID, userID, invite.Email, string(invite.Role))

		resp := CreateInviteResponse{
			ID:        invite.ID,
			Email:     invite.Email,
			Role:      invite.Role,
			Token:     token,
			ExpiresAt: invite.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if invite.ReportsTo.Valid {
			id := invite.ReportsTo.UUID
			resp.ReportsTo = &id
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, resp)
	}
}

// HandleListInvites handles GET /api/v1/orgs/{org_id}/invites
func HandleListInvites(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		orgID, err := uuid.Parse(chi.URLParam(r, "org_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}

		service := NewService(pool)
		invites, err := service.ListInvites(ctx, orgID, userID)
		if err != nil {
			if errors.Is(err, ErrNotMember) {
				apperrors.WriteNotFound(w, r, "Organization not found")
				return
			}
			if errors.Is(err, ErrInsufficientPermissions) {
				apperrors.WriteForbidden(w, r, "Insufficient permissions")
				return
			}
			log.Error().Err(err).Str("org_id", orgID.String()).Msg("Failed to list invites")
			apperrors.WriteInternalError(w, r, "Failed to list invitations")
			return
		}
		if invites == nil {
			invites = []InviteListItem{}
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{"invites": invites})
	}
}

// HandleRevokeInvite handles DELETE /api/v1/orgs/{org_id}/invites/{invite_id}
func HandleRevokeInvite(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		orgID, err := uuid.Parse(chi.URLParam(r, "org_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}
		inviteID, err := uuid.Parse(chi.URLParam(r, "invite_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid invite ID")
			return
		}

		service := NewService(pool)
		if err := service.RevokeInvite(ctx, orgID, inviteID, userID); err != nil {
			switch {
			case errors.Is(err, ErrInviteNotFound):
				apperrors.WriteNotFound(w, r, "Invitation not found")
			case errors.Is(err, ErrNotMember):
				apperrors.WriteNotFound(w, r, "Organization not found")
			case errors.Is(err, ErrInsufficientPermissions):
				apperrors.WriteForbidden(w, r, "Insufficient permissions")
			default:
				log.Error().Err(err).Str("invite_id", inviteID.String()).Msg("Failed to revoke invite")
				apperrors.WriteInternalError(w, r, "Failed to revoke invitation")
			}
			return
		}

		_ = auditor.Log(ctx, audit.LogParams{
			OrgID:       &orgID,
			ActorUserID: &userID,
			Action:      audit.EventOrgInviteRevoked,
			Meta:        map[string]interface{}{"invite_id": inviteID.String()},
		})

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{"revoked": true})
	}
}

// HandleAcceptInvite handles POST /api/v1/invites/accept
func HandleAcceptInvite(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		var req AcceptInviteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid JSON body")
			return
		}
		if req.Token == "" {
			apperrors.WriteBadRequest(w, r, "Token is required")
			return
		}

		service := NewService(pool)
		inviteID, orgID, role, err := service.AcceptInvite(ctx, req.Token, userID)
		if err != nil {
			switch {
			case errors.Is(err, ErrInviteNotFound):
				apperrors.WriteNotFound(w, r, "Invitation not found")
			case errors.Is(err, ErrInviteExpired):
				apperrors.WriteError(w, r, http.StatusGone, "gone", "Invitation has expired")
			case errors.Is(err, ErrInviteNotActive):
				apperrors.WriteConflict(w, r, "Invitation is no longer active")
			case errors.Is(err, ErrInviteEmailMismatch):
				apperrors.WriteForbidden(w, r, "Invitation was issued for a different email address")
			case errors.Is(err, ErrAlreadyMember):
				apperrors.WriteConflict(w, r, "You already belong to another organization")
			default:
				log.Error().Err(err).Msg("Failed to accept invite")
				apperrors.WriteInternalError(w, r, "Failed to accept invitation")
			}
			return
		}

		_ = auditor.LogInviteAccepted(ctx, orgID, userID, inviteID)

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"org_id": orgID,
			"role":   role,
		})
	}
}

// isInfraError separates wrapped storage failures from validation errors
// raised with plain messages.
func isInfraError(err error) bool {
	var pgErr interface{ SQLState() string }
	return errors.As(err, &pgErr)
}
