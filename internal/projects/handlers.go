package projects

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
	"github.com/taskdeck/taskdeck/internal/orgs"
	"github.com/taskdeck/taskdeck/internal/validation"
)

// CreateRequest represents the request to create a project
type CreateRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// ProjectResponse represents a project in API responses
type ProjectResponse struct {
	ID        uuid.UUID `json:"id"`
	OrgID     uuid.UUID `json:"org_id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt string    `json:"created_at"`
}

func toResponse(p *Project) ProjectResponse {
	return ProjectResponse{
		ID:        p.ID,
		OrgID:     p.OrgID,
		Name:      p.Name,
		Slug:      p.Slug,
		CreatedAt: p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// HandleCreate handles POST /api/v1/orgs/{org_id}/projects
func HandleCreate(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		orgID, err := uuid.Parse(chi.URLParam(r, "org_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}

		orgService := orgs.NewService(pool)
		if _, err := orgService.RequireOrgMutatePermission(ctx, userID, orgID); err != nil {
			if errors.Is(err, orgs.ErrNotMember) {
				apperrors.WriteNotFound(w, r, "Organization not found")
				return
			}
			if errors.Is(err, orgs.ErrInsufficientPermissions) {
				apperrors.WriteForbidden(w, r, "Insufficient permissions")
				return
			}
			log.Error().Err(err).Msg("Failed to check org permission")
			apperrors.WriteInternalError(w, r, "Something went wrong")
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
		if req.Slug == "" {
			req.Slug = validation.NormalizeSlug(req.Name)
		}
		if err := validation.ValidateSlug(req.Slug); err != nil {
			apperrors.WriteBadRequest(w, r, err.Error())
			return
		}

		service := NewService(pool)
		project, err := service.Create(ctx, orgID, req.Name, req.Slug, userID)
		if err != nil {
			if errors.Is(err, ErrSlugConflict) {
				apperrors.WriteConflict(w, r, "A project with this slug already exists")
				return
			}
			log.Error().Err(err).Str("org_id", orgID.String()).Msg("Failed to create project")
			apperrors.WriteInternalError(w, r, "Failed to create project")
			return
		}

		_ = auditor.Log(ctx, audit.LogParams{
			OrgID:       &orgID,
			ActorUserID: &userID,
			Action:      audit.EventProjectCreated,
			Meta:        map[string]interface{}{"slug": project.Slug},
		})

		apperrors.WriteSuccess(w, r, http.StatusCreated, toResponse(project))
	}
}

// HandleList handles GET /api/v1/orgs/{org_id}/projects
func HandleList(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		orgID, err := uuid.Parse(chi.URLParam(r, "org_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}

		orgService := orgs.NewService(pool)
		if _, err := orgService.RequireOrgMember(ctx, userID, orgID); err != nil {
			apperrors.WriteNotFound(w, r, "Organization not found")
			return
		}

		service := NewService(pool)
		projects, err := service.ListByOrg(ctx, orgID)
		if err != nil {
			log.Error().Err(err).Str("org_id", orgID.String()).Msg("Failed to list projects")
			apperrors.WriteInternalError(w, r, "Failed to list projects")
			return
		}

		responses := make([]ProjectResponse, 0, len(projects))
		for i := range projects {
			responses = append(responses, toResponse(&projects[i]))
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{"projects": responses})
	}
}

// HandleDelete handles DELETE /api/v1/orgs/{org_id}/projects/{project_id}
func HandleDelete(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		orgID, err := uuid.Parse(chi.URLParam(r, "org_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}
		projectID, err := uuid.Parse(chi.URLParam(r, "project_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid project ID")
			return
		}

		orgService := orgs.NewService(pool)
		if _, err := orgService.RequireOrgMutatePermission(ctx, userID, orgID); err != nil {
			if errors.Is(err, orgs.ErrInsufficientPermissions) {
				apperrors.WriteForbidden(w, r, "Insufficient permissions")
				return
			}
			apperrors.WriteNotFound(w, r, "Organization not found")
			return
		}

		service := NewService(pool)
		if err := service.Delete(ctx, orgID, projectID); err != nil {
			if errors.Is(err, ErrProjectNotFound) {
				apperrors.WriteNotFound(w, r, "Project not found")
				return
			}
			log.Error().Err(err).Str("project_id", projectID.String()).Msg("Failed to delete project")
			apperrors.WriteInternalError(w, r, "Failed to delete project")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{"deleted": true})
	}
}
