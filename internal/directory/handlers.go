package directory

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
	"github.com/taskdeck/taskdeck/internal/hierarchy"
	"github.com/taskdeck/taskdeck/internal/orgs"
)

// UpdateRoleRequest represents the request to change a member's role
type UpdateRoleRequest struct {
	Role string `json:"role"`
}

// UpdateReportsToRequest represents the request to change who a member
// reports to. A null reports_to clears the reporting line.
type UpdateReportsToRequest struct {
	ReportsTo *uuid.UUID `json:"reports_to"`
}

func parseOrgAndMember(r *http.Request) (orgID, memberID uuid.UUID, err error) {
	orgID, err = uuid.Parse(chi.URLParam(r, "org_id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, errors.New("invalid organization ID")
	}
	memberID, err = uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, errors.New("invalid user ID")
	}
	return orgID, memberID, nil
}

func writeDirectoryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrUserNotFound):
		apperrors.WriteNotFound(w, r, "Member not found")
	case errors.Is(err, orgs.ErrInsufficientPermissions):
		apperrors.WriteForbidden(w, r, "Insufficient permissions")
	case errors.Is(err, orgs.ErrInvalidRole):
		apperrors.WriteBadRequest(w, r, "Invalid role")
	case errors.Is(err, ErrSelfReference),
		errors.Is(err, ErrInvalidReference),
		errors.Is(err, ErrCyclicHierarchy):
		apperrors.WriteBadRequest(w, r, err.Error())
	case errors.Is(err, ErrCannotDemoteLastOwner):
		apperrors.WriteConflict(w, r, err.Error())
	default:
		log.Error().Err(err).Msg("Directory operation failed")
		apperrors.WriteInternalError(w, r, "Something went wrong")
	}
}

// HandleListMembers handles GET /api/v1/orgs/{org_id}/members
func HandleListMembers(pool *pgxpool.Pool, cache *hierarchy.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		orgID, err := uuid.Parse(chi.URLParam(r, "org_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}

		if _, err := orgs.NewService(pool).RequireOrgMember(ctx, userID, orgID); err != nil {
			apperrors.WriteNotFound(w, r, "Organization not found")
			return
		}

		members, err := NewService(pool, cache).ListMembers(ctx, orgID)
		if err != nil {
			log.Error().Err(err).Str("org_id", orgID.String()).Msg("Failed to list members")
			apperrors.WriteInternalError(w, r, "Failed to list members")
			return
		}
		if members == nil {
			members = []MemberInfo{}
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{"members": members})
	}
}

// HandleUpdateRole handles PUT /api/v1/orgs/{org_id}/members/{user_id}/role
func HandleUpdateRole(pool *pgxpool.Pool, cache *hierarchy.Cache, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actorID := auth.GetUserID(ctx)

		orgID, memberID, err := parseOrgAndMember(r)
		if err != nil {
			apperrors.WriteBadRequest(w, r, err.Error())
			return
		}

		var req UpdateRoleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid JSON body")
			return
		}

		newRole := orgs.Role(req.Role)
		prevRole, err := NewService(pool, cache).SetRole(ctx, orgID, actorID, memberID, newRole)
		if err != nil {
			writeDirectoryError(w, r, err)
			return
		}

		_ = auditor.LogRoleUpdated(ctx, orgID, actorID, memberID, string(prevRole), string(newRole))

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"user_id":       memberID,
			"role":          newRole,
			"previous_role": prevRole,
		})
	}
}

// HandleUpdateReportsTo handles PUT /api/v1/orgs/{org_id}/members/{user_id}/reports-to
func HandleUpdateReportsTo(pool *pgxpool.Pool, cache *hierarchy.Cache, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actorID := auth.GetUserID(ctx)

		orgID, memberID, err := parseOrgAndMember(r)
		if err != nil {
			apperrors.WriteBadRequest(w, r, err.Error())
			return
		}

		var req UpdateReportsToRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid JSON body")
			return
		}

		if err := NewService(pool, cache).SetReportsTo(ctx, orgID, actorID, memberID, req.ReportsTo); err != nil {
			writeDirectoryError(w, r, err)
			return
		}

		_ = auditor.LogReportsUpdated(ctx, orgID, actorID, memberID, req.ReportsTo)

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"user_id":    memberID,
			"reports_to": req.ReportsTo,
		})
	}
}

// HandleDeactivateMember handles DELETE /api/v1/orgs/{org_id}/members/{user_id}
func HandleDeactivateMember(pool *pgxpool.Pool, cache *hierarchy.Cache, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actorID := auth.GetUserID(ctx)

		orgID, memberID, err := parseOrgAndMember(r)
		if err != nil {
			apperrors.WriteBadRequest(w, r, err.Error())
			return
		}

		if err := NewService(pool, cache).Deactivate(ctx, orgID, actorID, memberID); err != nil {
			writeDirectoryError(w, r, err)
			return
		}

		_ = auditor.Log(ctx, audit.LogParams{
			OrgID:       &orgID,
			ActorUserID: &actorID,
			Action:      audit.EventMemberDeactivated,
			Meta:        map[string]interface{}{"target_user_id": memberID.String()},
		})

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{"deactivated": true})
	}
}

// HandleListReports handles GET /api/v1/orgs/{org_id}/members/{user_id}/reports
func HandleListReports(pool *pgxpool.Pool, cache *hierarchy.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		orgID, memberID, err := parseOrgAndMember(r)
		if err != nil {
			apperrors.WriteBadRequest(w, r, err.Error())
			return
		}

		if _, err := orgs.NewService(pool).RequireOrgMember(ctx, userID, orgID); err != nil {
			apperrors.WriteNotFound(w, r, "Organization not found")
			return
		}

		service := NewService(pool, cache)
		manager, err := service.GetUser(ctx, memberID)
		if err != nil {
			writeDirectoryError(w, r, err)
			return
		}
		if !manager.OrgID.Valid || manager.OrgID.UUID != orgID {
			apperrors.WriteNotFound(w, r, "Member not found")
			return
		}

		users, err := service.GetReports(ctx, memberID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list reports")
			apperrors.WriteInternalError(w, r, "Failed to list reports")
			return
		}

		reports := make([]MemberInfo, 0, len(users))
		for _, u := range users {
			info := MemberInfo{
				ID:          u.ID,
				Email:       u.Email,
				DisplayName: u.DisplayName,
				Role:        u.Role,
				Deactivated: !u.Active(),
				CreatedAt:   u.CreatedAt,
			}
			if u.ReportsTo.Valid {
				id := u.ReportsTo.UUID
				info.ReportsTo = &id
			}
			reports = append(reports, info)
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{"reports": reports})
	}
}
