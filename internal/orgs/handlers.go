package orgs

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
	"github.com/taskdeck/taskdeck/internal/validation"
)

// CreateRequest represents the request to create an organization
type CreateRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type OrgResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt string    `json:"created_at"`
}

// HandleCreate handles POST /api/v1/orgs
func HandleCreate(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		var req CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		if req.Name == "" {
			apperrors.WriteBadRequest(w, r, "Organization name is required")
			return
		}
		if req.Slug == "" {
			req.Slug = validation.NormalizeSlug(req.Name)
		}
		if err := validation.ValidateSlug(req.Slug); err != nil {
			apperrors.WriteBadRequest(w, r, err.Error())
			return
		}

		service := NewService(pool)
		org, err := service.CreateWithOwner(ctx, req.Name, req.Slug, userID)
		if err != nil {
			if errors.Is(err, ErrSlugConflict) {
				apperrors.WriteConflict(w, r, "An organization with this slug already exists")
				return
			}
			if errors.Is(err, ErrAlreadyMember) {
				apperrors.WriteConflict(w, r, "You already belong to an organization")
				return
			}
			log.Error().Err(err).Msg("Failed to create organization")
			apperrors.WriteInternalError(w, r, "Failed to create organization")
			return
		}

		_ = auditor.LogOrgCreated(ctx, org.ID, userID, org.Slug)

		apperrors.WriteSuccess(w, r, http.StatusCreated, OrgResponse{
			ID:        org.ID,
			Name:      org.Name,
			Slug:      org.Slug,
			CreatedAt: org.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
}

// HandleList handles GET /api/v1/orgs
// Membership is single-org, so the list holds at most one entry.
func HandleList(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		rows, err := pool.Query(ctx, `
			SELECT o.id, o.name, o.slug, u.role, o.created_at
			FROM users u
			INNER JOIN orgs o ON o.id = u.org_id
			WHERE u.id = $1
		`, userID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list organizations")
			apperrors.WriteInternalError(w, r, "Failed to list organizations")
			return
		}
		defer rows.Close()

		memberships := []map[string]any{}
		for rows.Next() {
			var (
				id        uuid.UUID
				name      string
				slug      string
				role      Role
				createdAt time.Time
			)
			if err := rows.Scan(&id, &name, &slug, &role, &createdAt); err != nil {
				log.Error().Err(err).Msg("Failed to scan organization")
				apperrors.WriteInternalError(w, r, "Failed to list organizations")
				return
			}
			memberships = append(memberships, map[string]any{
				"id":         id,
				"name":       name,
				"slug":       slug,
				"role":       role,
				"created_at": createdAt,
			})
		}
		if err := rows.Err(); err != nil {
			log.Error().Err(err).Msg("Failed to list organizations")
			apperrors.WriteInternalError(w, r, "Failed to list organizations")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{"orgs": memberships})
	}
}

// HandleGet handles GET /api/v1/orgs/{org_id}
func HandleGet(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		orgID, err := uuid.Parse(chi.URLParam(r, "org_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}

		service := NewService(pool)
		role, err := service.RequireOrgMember(ctx, userID, orgID)
		if err != nil {
			apperrors.WriteNotFound(w, r, "Organization not found")
			return
		}

		org, err := service.GetByID(ctx, orgID)
		if err != nil {
			if errors.Is(err, ErrOrgNotFound) {
				apperrors.WriteNotFound(w, r, "Organization not found")
				return
			}
			log.Error().Err(err).Msg("Failed to load organization")
			apperrors.WriteInternalError(w, r, "Something went wrong")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"id":               org.ID,
			"name":             org.Name,
			"slug":             org.Slug,
			"role":             role,
			"assignable_roles": AssignableRoles(role),
			"created_at":       org.CreatedAt,
		})
	}
}
