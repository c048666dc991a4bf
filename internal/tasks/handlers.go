package tasks

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/taskdeck/taskdeck/internal/activity"
	"github.com/taskdeck/taskdeck/internal/apperrors"
	"github.com/taskdeck/taskdeck/internal/recurrence"
	"github.com/taskdeck/taskdeck/internal/visibility"
	"github.com/taskdeck/taskdeck/internal/workflow"
)

// CreateTaskRequest is the body for POST /api/v1/tasks
type CreateTaskRequest struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Priority    string             `json:"priority"`
	Visibility  string             `json:"visibility"`
	ProjectID   *uuid.UUID         `json:"project_id"`
	AssigneeIDs []uuid.UUID        `json:"assignee_ids"`
	DueDate     *time.Time         `json:"due_date"`
	Recurrence  *recurrence.Config `json:"recurrence"`
}

// UpdateTaskRequest is the body for PATCH /api/v1/tasks/{task_id}.
// ProjectID and DueDate stay raw so an absent field (unchanged) can be told
// apart from an explicit null (cleared).
type UpdateTaskRequest struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Priority    *string         `json:"priority"`
	Visibility  *string         `json:"visibility"`
	ProjectID   json.RawMessage `json:"project_id"`
	DueDate     json.RawMessage `json:"due_date"`
}

// UpdateStatusRequest is the body for PUT /api/v1/tasks/{task_id}/status.
// ExpectedStatus is what the client last saw; the write is rejected with a
// conflict when the task moved meanwhile.
type UpdateStatusRequest struct {
	Status         string `json:"status"`
	ExpectedStatus string `json:"expected_status"`
}

// SetAssigneesRequest is the body for PUT /api/v1/tasks/{task_id}/assignees
type SetAssigneesRequest struct {
	AssigneeIDs []uuid.UUID `json:"assignee_ids"`
}

// AddCommentRequest is the body for POST /api/v1/tasks/{task_id}/comments
type AddCommentRequest struct {
	Content string `json:"content"`
}

// TaskResponse is a task plus the caller's capabilities on it.
type TaskResponse struct {
	Task   *Task  `json:"task"`
	Access string `json:"access"`
}

// isJSONNull reports whether a raw field was sent as a literal null.
func isJSONNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// toParams converts the raw body into service params. An absent project_id or
// due_date leaves the field unchanged; an explicit null clears it.
func (req *UpdateTaskRequest) toParams() (UpdateParams, error) {
	params := UpdateParams{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	}
	if req.Visibility != nil {
		v := visibility.Visibility(*req.Visibility)
		params.Visibility = &v
	}
	if len(req.ProjectID) > 0 {
		if isJSONNull(req.ProjectID) {
			params.ClearProject = true
		} else {
			var id uuid.UUID
			if err := json.Unmarshal(req.ProjectID, &id); err != nil {
				return UpdateParams{}, errors.New("invalid project_id")
			}
			params.ProjectID = &id
		}
	}
	if len(req.DueDate) > 0 {
		if isJSONNull(req.DueDate) {
			params.ClearDueDate = true
		} else {
			var due time.Time
			if err := json.Unmarshal(req.DueDate, &due); err != nil {
				return UpdateParams{}, errors.New("invalid due_date")
			}
			params.DueDate = &due
		}
	}
	return params, nil
}

func requireActor(w http.ResponseWriter, r *http.Request) (visibility.Actor, bool) {
	actor, ok := visibility.ActorFromContext(r.Context())
	if !ok {
		apperrors.WriteForbidden(w, r, "You are not a member of an organization")
		return visibility.Actor{}, false
	}
	return actor, true
}

func parseTaskID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	taskID, err := uuid.Parse(chi.URLParam(r, "task_id"))
	if err != nil {
		apperrors.WriteBadRequest(w, r, "Invalid task_id")
		return uuid.Nil, false
	}
	return taskID, true
}

// writeTaskError maps service errors onto the HTTP error envelope.
func writeTaskError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		apperrors.WriteBadRequest(w, r, verr.Error())
		return
	}
	switch {
	case errors.Is(err, ErrTaskNotFound):
		apperrors.WriteNotFound(w, r, "Task not found")
	case errors.Is(err, workflow.ErrForbidden):
		apperrors.WriteForbidden(w, r, "You do not have permission to do that")
	case errors.Is(err, ErrConflict):
		apperrors.WriteConflict(w, r, "The task was modified by someone else, reload and retry")
	case errors.Is(err, workflow.ErrInvalidStatus):
		apperrors.WriteBadRequest(w, r, "Invalid status")
	case errors.Is(err, ErrInvalidAssignee), errors.Is(err, ErrInvalidProject):
		apperrors.WriteBadRequest(w, r, err.Error())
	default:
		log.Error().Err(err).Msg("Task operation failed")
		apperrors.WriteInternalError(w, r, "Something went wrong")
	}
}

// HandleCreateTask handles POST /api/v1/tasks
func HandleCreateTask(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		var req CreateTaskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid JSON body")
			return
		}

		task, err := service.Create(r.Context(), actor, CreateParams{
			Title:       req.Title,
			Description: req.Description,
			Priority:    req.Priority,
			Visibility:  visibility.Visibility(req.Visibility),
			ProjectID:   req.ProjectID,
			AssigneeIDs: req.AssigneeIDs,
			DueDate:     req.DueDate,
			Recurrence:  req.Recurrence,
		})
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				apperrors.WriteBadRequest(w, r, verr.Error())
				return
			}
			if errors.Is(err, ErrInvalidAssignee) || errors.Is(err, ErrInvalidProject) {
				apperrors.WriteBadRequest(w, r, err.Error())
				return
			}
			log.Error().Err(err).Msg("Failed to create task")
			apperrors.WriteInternalError(w, r, "Failed to create task")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, TaskResponse{Task: task, Access: visibility.AccessOwner.String()})
	}
}

// HandleListTasks handles GET /api/v1/tasks
func HandleListTasks(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		params := ListParams{}
		q := r.URL.Query()
		if status := q.Get("status"); status != "" {
			st := workflow.Status(status)
			if !st.IsValid() {
				apperrors.WriteBadRequest(w, r, "Invalid status filter")
				return
			}
			params.Status = st
		}
		if projectStr := q.Get("project_id"); projectStr != "" {
			projectID, err := uuid.Parse(projectStr)
			if err != nil {
				apperrors.WriteBadRequest(w, r, "Invalid project_id filter")
				return
			}
			params.ProjectID = &projectID
		}
		if ownerStr := q.Get("owner_id"); ownerStr != "" {
			ownerID, err := uuid.Parse(ownerStr)
			if err != nil {
				apperrors.WriteBadRequest(w, r, "Invalid owner_id filter")
				return
			}
			params.OwnerID = &ownerID
		}
		if limitStr := q.Get("limit"); limitStr != "" {
			if parsed, err := strconv.Atoi(limitStr); err == nil {
				params.Limit = parsed
			}
		}
		if offsetStr := q.Get("offset"); offsetStr != "" {
			if parsed, err := strconv.Atoi(offsetStr); err == nil {
				params.Offset = parsed
			}
		}

		items, err := service.List(r.Context(), actor, params)
		if err != nil {
			log.Error().Err(err).Str("org_id", actor.OrgID.String()).Msg("Failed to list tasks")
			apperrors.WriteInternalError(w, r, "Failed to list tasks")
			return
		}
		if items == nil {
			items = []ListItem{}
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{"tasks": items})
	}
}

// HandleGetTask handles GET /api/v1/tasks/{task_id}
func HandleGetTask(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		taskID, ok := parseTaskID(w, r)
		if !ok {
			return
		}

		task, access, err := service.Get(r.Context(), actor, taskID)
		if err != nil {
			writeTaskError(w, r, err)
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, TaskResponse{Task: task, Access: access.String()})
	}
}

// HandleGetAccess handles GET /api/v1/tasks/{task_id}/access.
// Clients use this to decide which controls to render.
func HandleGetAccess(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		taskID, ok := parseTaskID(w, r)
		if !ok {
			return
		}

		access, err := service.Access(r.Context(), actor, taskID)
		if err != nil {
			writeTaskError(w, r, err)
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"task_id":   taskID,
			"access":    access.String(),
			"can_read":  access.CanRead(),
			"can_write": access.CanWrite(),
		})
	}
}

// HandleUpdateTask handles PATCH /api/v1/tasks/{task_id}
func HandleUpdateTask(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		taskID, ok := parseTaskID(w, r)
		if !ok {
			return
		}

		var req UpdateTaskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid JSON body")
			return
		}

		params, err := req.toParams()
		if err != nil {
			apperrors.WriteBadRequest(w, r, err.Error())
			return
		}

		task, access, err := service.Update(r.Context(), actor, taskID, params)
		if err != nil {
			writeTaskError(w, r, err)
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, TaskResponse{Task: task, Access: access.String()})
	}
}

// HandleUpdateStatus handles PUT /api/v1/tasks/{task_id}/status
func HandleUpdateStatus(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		taskID, ok := parseTaskID(w, r)
		if !ok {
			return
		}

		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid JSON body")
			return
		}

		task, err := service.UpdateStatus(r.Context(), actor, taskID,
			workflow.Status(req.ExpectedStatus), workflow.Status(req.Status))
		if err != nil {
			writeTaskError(w, r, err)
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"task_id": task.ID,
			"status":  task.Status,
		})
	}
}

// HandleSetAssignees handles PUT /api/v1/tasks/{task_id}/assignees
func HandleSetAssignees(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		taskID, ok := parseTaskID(w, r)
		if !ok {
			return
		}

		var req SetAssigneesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid JSON body")
			return
		}

		task, err := service.SetAssignees(r.Context(), actor, taskID, req.AssigneeIDs)
		if err != nil {
			writeTaskError(w, r, err)
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"task_id":      task.ID,
			"assignee_ids": task.AssigneeIDs,
		})
	}
}

// HandleDeleteTask handles DELETE /api/v1/tasks/{task_id}
func HandleDeleteTask(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		taskID, ok := parseTaskID(w, r)
		if !ok {
			return
		}

		if err := service.Delete(r.Context(), actor, taskID); err != nil {
			writeTaskError(w, r, err)
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{"deleted": true})
	}
}

// HandleListActivity handles GET /api/v1/tasks/{task_id}/activity
func HandleListActivity(service *Service, activitySvc *activity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		taskID, ok := parseTaskID(w, r)
		if !ok {
			return
		}

		// Any read access suffices to see the feed.
		if _, _, err := service.Get(r.Context(), actor, taskID); err != nil {
			writeTaskError(w, r, err)
			return
		}

		limit := 0
		if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
			if parsed, err := strconv.Atoi(limitStr); err == nil {
				limit = parsed
			}
		}

		entries, err := activitySvc.List(r.Context(), taskID, limit)
		if err != nil {
			log.Error().Err(err).Str("task_id", taskID.String()).Msg("Failed to list activity")
			apperrors.WriteInternalError(w, r, "Failed to list activity")
			return
		}
		if entries == nil {
			entries = []activity.Entry{}
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{"activity": entries})
	}
}

// HandleAddComment handles POST /api/v1/tasks/{task_id}/comments
func HandleAddComment(service *Service, activitySvc *activity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		taskID, ok := parseTaskID(w, r)
		if !ok {
			return
		}

		var req AddCommentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid JSON body")
			return
		}

		// Commenting requires write access.
		_, access, err := service.Get(r.Context(), actor, taskID)
		if err != nil {
			writeTaskError(w, r, err)
			return
		}
		if !access.CanWrite() {
			apperrors.WriteForbidden(w, r, "You do not have permission to comment on this task")
			return
		}

		entry, err := activitySvc.AddComment(r.Context(), taskID, actor.UserID, req.Content)
		if err != nil {
			if errors.Is(err, activity.ErrEmptyComment) {
				apperrors.WriteBadRequest(w, r, "Comment cannot be empty")
				return
			}
			log.Error().Err(err).Str("task_id", taskID.String()).Msg("Failed to add comment")
			apperrors.WriteInternalError(w, r, "Failed to add comment")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, entry)
	}
}
