package orgs

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/taskdeck/taskdeck/internal/apperrors"
	"github.com/taskdeck/taskdeck/internal/audit"
	"github.com/taskdeck/taskdeck/internal/auth"
)

// HandleListAudit handles GET /api/v1/orgs/{org_id}/audit
// Only roles that may mutate the organization can read the audit trail.
func HandleListAudit(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		orgID, err := uuid.Parse(chi.URLParam(r, "org_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}

		if _, err := NewService(pool).RequireOrgMutatePermission(ctx, userID, orgID); err != nil {
			if errors.Is(err, ErrInsufficientPermissions) {
				apperrors.WriteForbidden(w, r, "Insufficient permissions")
				return
			}
			apperrors.WriteNotFound(w, r, "Organization not found")
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, _ = strconv.Atoi(raw)
		}

		items, err := audit.NewReader(pool).ListByOrg(ctx, orgID, limit)
		if err != nil {
			log.Error().Err(err).Str("org_id", orgID.String()).Msg("Failed to read audit log")
			apperrors.WriteInternalError(w, r, "Failed to read audit log")
			return
		}
		if items == nil {
			items = []audit.ListItem{}
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{"events": items})
	}
}
