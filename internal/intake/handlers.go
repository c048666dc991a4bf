package intake

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/taskdeck/taskdeck/internal/apikey"
	"github.com/taskdeck/taskdeck/internal/apperrors"
	"github.com/taskdeck/taskdeck/internal/directory"
	"github.com/taskdeck/taskdeck/internal/tasks"
	"github.com/taskdeck/taskdeck/internal/visibility"
)

// Item is one extracted task in an intake batch. The extraction itself (from
// email, chat or voice) happens outside this service; intake only persists
// the results under the owner's identity.
type Item struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	Visibility  string     `json:"visibility"`
	DueDate     *time.Time `json:"due_date"`
}

// BatchRequest is the body for POST /api/v1/intake/tasks
type BatchRequest struct {
	OwnerEmail string `json:"owner_email"`
	Items      []Item `json:"items"`
}

// ItemResult reports the outcome of one item.
type ItemResult struct {
	Index  int        `json:"index"`
	TaskID *uuid.UUID `json:"task_id,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// BatchResponse summarizes an intake batch.
type BatchResponse struct {
	Created int          `json:"created"`
	Failed  int          `json:"failed"`
	Results []ItemResult `json:"results"`
}

// HandleIntakeTasks handles POST /api/v1/intake/tasks.
// Authentication is the org-scoped API key; the owner is resolved by email
// within that organization, so a key can never create tasks across org
// boundaries.
func HandleIntakeTasks(dir *directory.Service, taskService *tasks.Service, limits BatchLimits) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orgID := apikey.GetOrgID(ctx)
		if orgID == uuid.Nil {
			apperrors.WriteUnauthorized(w, r, "API key is not bound to an organization")
			return
		}

		var req BatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid JSON body")
			return
		}

		if err := limits.ValidateItemCount(len(req.Items)); err != nil {
			apperrors.WriteBadRequest(w, r, err.Error())
			return
		}

		owner, err := dir.GetUserByEmail(ctx, req.OwnerEmail)
		if err != nil {
			if errors.Is(err, directory.ErrUserNotFound) {
				apperrors.WriteBadRequest(w, r, "Owner not found in this organization")
				return
			}
			log.Error().Err(err).Msg("Failed to resolve intake owner")
			apperrors.WriteInternalError(w, r, "Something went wrong")
			return
		}
		if !owner.OrgID.Valid || owner.OrgID.UUID != orgID || !owner.Active() {
			apperrors.WriteBadRequest(w, r, "Owner not found in this organization")
			return
		}

		actor := visibility.Actor{
			UserID: owner.ID,
			OrgID:  orgID,
			Role:   owner.Role,
		}

		resp := BatchResponse{Results: make([]ItemResult, 0, len(req.Items))}
		for i, item := range req.Items {
			vis := visibility.Visibility(item.Visibility)
			if item.Visibility == "" {
				vis = visibility.VisibilityPrivate
			}

			task, err := taskService.Create(ctx, actor, tasks.CreateParams{
				Title:       item.Title,
				Description: item.Description,
				Priority:    item.Priority,
				Visibility:  vis,
				DueDate:     item.DueDate,
			})
			if err != nil {
				resp.Failed++
				resp.Results = append(resp.Results, ItemResult{Index: i, Error: err.Error()})
				continue
			}
			resp.Created++
			id := task.ID
			resp.Results = append(resp.Results, ItemResult{Index: i, TaskID: &id})
		}

		log.Info().
			Str("org_id", orgID.String()).
			Str("owner_id", owner.ID.String()).
			Int("created", resp.Created).
			Int("failed", resp.Failed).
			Msg("Intake batch processed")

		status := http.StatusCreated
		if resp.Created == 0 {
			status = http.StatusBadRequest
		}
		apperrors.WriteSuccess(w, r, status, resp)
	}
}
