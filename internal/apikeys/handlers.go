package apikeys

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/taskdeck/taskdeck/internal/apperrors"
	"github.com/taskdeck/taskdeck/internal/audit"
	"github.com/taskdeck/taskdeck/internal/auth"
	"github.com/taskdeck/taskdeck/internal/orgs"
)

// CreateRequest represents the request to create an API key
type CreateRequest struct {
	Name      string     `json:"name"`
	Scopes    []string   `json:"scopes"`
	ExpiresAt *time.Time `json:"expires_at"`
}

func parseOrgAndPermission(w http.ResponseWriter, r *http.Request, pool *pgxpool.Pool) (uuid.UUID, uuid.UUID, bool) {
	userID := auth.GetUserID(r.Context())

	orgID, err := uuid.Parse(chi.URLParam(r, "org_id"))
	if err != nil {
		apperrors.WriteBadRequest(w, r, "Invalid organization ID")
		return uuid.Nil, uuid.Nil, false
	}

	orgService := orgs.NewService(pool)
	if _, err := orgService.RequireOrgMutatePermission(r.Context(), userID, orgID); err != nil {
		if errors.Is(err, orgs.ErrInsufficientPermissions) {
			apperrors.WriteForbidden(w, r, "Insufficient permissions")
			return uuid.Nil, uuid.Nil, false
		}
		apperrors.WriteNotFound(w, r, "Organization not found")
		return uuid.Nil, uuid.Nil, false
	}

	return orgID, userID, true
}

// HandleCreate handles POST /api/v1/orgs/{org_id}/api-keys
func HandleCreate(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, userID, ok := parseOrgAndPermission(w, r, pool)
		if !ok {
			return
		}

		var req CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid JSON body")
			return
		}
		if req.Name == "" {
			apperrors.WriteBadRequest(w, r, "Name is required")
			return
		}

		scopes := []ApiKeyScope{ScopeIntakeWrite}
		if len(req.Scopes) > 0 {
			scopes = scopes[:0]
			for _, s := range req.Scopes {
				scope := ApiKeyScope(s)
				if scope != ScopeIntakeWrite && scope != ScopeReadOrg {
					apperrors.WriteBadRequest(w, r, "Unknown scope: "+s)
					return
				}
				scopes = append(scopes, scope)
			}
		}

		service := NewService(pool)
		key, token, err := service.Create(r.Context(), orgID, req.Name, scopes, userID, req.ExpiresAt)
		if err != nil {
			log.Error().Err(err).Str("org_id", orgID.String()).Msg("Failed to create api key")
			apperrors.WriteInternalError(w, r, "Failed to create API key")
			return
		}

		_ = auditor.Log(r.Context(), audit.LogParams{
			OrgID:       &orgID,
			ActorUserID: &userID,
			Action:      audit.EventAPIKeyCreated,
			Meta:        map[string]interface{}{"name": key.Name, "api_key_id": key.ID.String()},
		})

		apperrors.WriteSuccess(w, r, http.StatusCreated, key.ToCreatedResponse(token))
	}
}

// HandleList handles GET /api/v1/orgs/{org_id}/api-keys
func HandleList(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, _, ok := parseOrgAndPermission(w, r, pool)
		if !ok {
			return
		}

		service := NewService(pool)
		keys, err := service.ListByOrg(r.Context(), orgID)
		if err != nil {
			log.Error().Err(err).Str("org_id", orgID.String()).Msg("Failed to list api keys")
			apperrors.WriteInternalError(w, r, "Failed to list API keys")
			return
		}

		items := make([]ApiKeyListItemResponse, 0, len(keys))
		for i := range keys {
			items = append(items, keys[i].ToListItemResponse())
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{"api_keys": items})
	}
}

// HandleRevoke handles DELETE /api/v1/orgs/{org_id}/api-keys/{key_id}
func HandleRevoke(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, userID, ok := parseOrgAndPermission(w, r, pool)
		if !ok {
			return
		}

		keyID, err := uuid.Parse(chi.URLParam(r, "key_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid API key ID")
			return
		}

		service := NewService(pool)
		if err := service.Revoke(r.Context(), orgID, keyID); err != nil {
			if errors.Is(err, ErrAPIKeyNotFound) {
				apperrors.WriteNotFound(w, r, "API key not found")
				return
			}
			log.Error().Err(err).Str("api_key_id", keyID.String()).Msg("Failed to revoke api key")
			apperrors.WriteInternalError(w, r, "Failed to revoke API key")
			return
		}

		_ = auditor.Log(r.Context(), audit.LogParams{
			OrgID:       &orgID,
			ActorUserID: &userID,
			Action:      audit.EventAPIKeyRevoked,
			Meta:        map[string]interface{}{"api_key_id": keyID.String()},
		})

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{"revoked": true})
	}
}
