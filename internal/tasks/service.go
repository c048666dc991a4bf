package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/taskdeck/taskdeck/internal/activity"
	"github.com/taskdeck/taskdeck/internal/events"
	"github.com/taskdeck/taskdeck/internal/hierarchy"
	"github.com/taskdeck/taskdeck/internal/recurrence"
	"github.com/taskdeck/taskdeck/internal/validation"
	"github.com/taskdeck/taskdeck/internal/visibility"
	"github.com/taskdeck/taskdeck/internal/workflow"
)

var (
	// ErrTaskNotFound is returned for missing tasks and for tasks the actor
	// may not see. The two cases are indistinguishable on purpose.
	ErrTaskNotFound = errors.New("task not found")

	// ErrConflict is returned when a status change lost a race against a
	// concurrent mutation
	ErrConflict = errors.New("task was modified concurrently")

	// ErrInvalidAssignee is returned when an assignee is not an active member
	// of the task's organization
	ErrInvalidAssignee = errors.New("assignee must be an active member of the organization")

	// ErrInvalidProject is returned when the project does not belong to the
	// task's organization
	ErrInvalidProject = errors.New("project not found in this organization")
)

// ValidationError marks caller input problems so handlers can surface the
// message as a 400 instead of masking it as an internal error.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationErr(msg string) error {
	return &ValidationError{msg: msg}
}

const taskColumns = `id, org_id, owner_id, project_id, title, description, priority, status,
	visibility, due_date, recurrence, chain_id, generation, completed_at, created_at, updated_at`

// Service owns task lifecycle: creation, listing under visibility rules,
// content edits, the review flow and recurring successors.
type Service struct {
	pool     *pgxpool.Pool
	cache    *hierarchy.Cache
	activity *activity.Service
	bus      *events.Bus
}

// NewService creates a new task service.
func NewService(pool *pgxpool.Pool, cache *hierarchy.Cache, act *activity.Service, bus *events.Bus) *Service {
	return &Service{pool: pool, cache: cache, activity: act, bus: bus}
}

// CreateParams are the caller-supplied fields for a new task.
type CreateParams struct {
	Title       string
	Description string
	Priority    string
	Visibility  visibility.Visibility
	ProjectID   *uuid.UUID
	AssigneeIDs []uuid.UUID
	DueDate     *time.Time
	Recurrence  *recurrence.Config
}

// Create inserts a task owned by the actor. Assignees must be active members
// of the actor's organization.
func (s *Service) Create(ctx context.Context, actor visibility.Actor, params CreateParams) (*Task, error) {
	if err := validation.ValidateTitle(params.Title); err != nil {
		return nil, validationErr(err.Error())
	}
	if params.Priority == "" {
		params.Priority = PriorityMedium
	}
	if !validPriority(params.Priority) {
		return nil, validationErr(fmt.Sprintf("priority must be %s, %s or %s", PriorityLow, PriorityMedium, PriorityHigh))
	}
	if params.Visibility == "" {
		params.Visibility = visibility.VisibilityPrivate
	}
	if !params.Visibility.IsValid() {
		return nil, validationErr("visibility must be private or team")
	}
	if params.Recurrence != nil {
		if err := params.Recurrence.Validate(); err != nil {
			return nil, validationErr(err.Error())
		}
		if params.DueDate == nil {
			return nil, validationErr("recurring tasks require a due date")
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if params.ProjectID != nil {
		var exists bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1 AND org_id = $2)
		`, *params.ProjectID, actor.OrgID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check project: %w", err)
		}
		if !exists {
			return nil, ErrInvalidProject
		}
	}

	if err := checkAssignees(ctx, tx, actor.OrgID, params.AssigneeIDs); err != nil {
		return nil, err
	}

	var recurrenceJSON []byte
	if params.Recurrence != nil {
		recurrenceJSON, err = json.Marshal(params.Recurrence)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal recurrence: %w", err)
		}
	}

	task := &Task{}
	err = tx.QueryRow(ctx, `
		INSERT INTO tasks (org_id, owner_id, project_id, title, description, priority, visibility, due_date, recurrence, chain_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+taskColumns+`
	`, actor.OrgID, actor.UserID, params.ProjectID, params.Title, params.Description,
		params.Priority, params.Visibility, params.DueDate, recurrenceJSON, uuid.New(),
	).Scan(taskDest(task)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	for _, assigneeID := range params.AssigneeIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO task_assignees (task_id, user_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, task.ID, assigneeID); err != nil {
			return nil, fmt.Errorf("failed to add assignee: %w", err)
		}
	}
	task.AssigneeIDs = params.AssigneeIDs

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	_ = s.activity.AddSystem(ctx, task.ID, actor.UserID, "created the task", nil)

	if len(task.AssigneeIDs) > 0 {
		s.bus.Publish(events.Event{
			Type:      events.TaskAssigned,
			OrgID:     task.OrgID,
			TaskID:    task.ID,
			TaskTitle: task.Title,
			ActorID:   actor.UserID,
			TargetIDs: task.AssigneeIDs,
		})
	}

	return task, nil
}

// Get loads a task the actor may see. Invisible tasks read as not found.
func (s *Service) Get(ctx context.Context, actor visibility.Actor, taskID uuid.UUID) (*Task, visibility.Access, error) {
	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, visibility.AccessNone, err
	}

	access, err := s.resolveAccess(ctx, actor, task)
	if err != nil {
		return nil, visibility.AccessNone, err
	}
	if !access.CanRead() {
		return nil, visibility.AccessNone, ErrTaskNotFound
	}
	return task, access, nil
}

// ListParams filter a task listing.
type ListParams struct {
	Status    workflow.Status
	ProjectID *uuid.UUID
	OwnerID   *uuid.UUID
	Limit     int
	Offset    int
}

// List returns the tasks visible to the actor. The visibility rules run as a
// SQL predicate so invisible rows are never fetched.
func (s *Service) List(ctx context.Context, actor visibility.Actor, params ListParams) ([]ListItem, error) {
	if params.Limit <= 0 || params.Limit > 200 {
		params.Limit = 50
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	snap, err := s.cache.Snapshot(ctx, actor.OrgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load hierarchy: %w", err)
	}

	query := `
		SELECT t.id, t.owner_id, t.project_id, t.title, t.priority, t.status,
		       t.visibility, t.due_date, t.recurrence IS NOT NULL, t.created_at
		FROM tasks t
		WHERE t.org_id = $1
	`
	args := []any{actor.OrgID}

	clause, clauseArgs := visibility.Predicate(actor, snap, len(args)+1)
	query += " AND " + clause
	args = append(args, clauseArgs...)

	if params.Status != "" {
		args = append(args, params.Status)
		query += fmt.Sprintf(" AND t.status = $%d", len(args))
	}
	if params.ProjectID != nil {
		args = append(args, *params.ProjectID)
		query += fmt.Sprintf(" AND t.project_id = $%d", len(args))
	}
	if params.OwnerID != nil {
		args = append(args, *params.OwnerID)
		query += fmt.Sprintf(" AND t.owner_id = $%d", len(args))
	}

	args = append(args, params.Limit)
	query += fmt.Sprintf(" ORDER BY t.created_at DESC LIMIT $%d", len(args))
	args = append(args, params.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var items []ListItem
	for rows.Next() {
		var it ListItem
		var projectID uuid.NullUUID
		if err := rows.Scan(&it.ID, &it.OwnerID, &projectID, &it.Title, &it.Priority,
			&it.Status, &it.Visibility, &it.DueDate, &it.Recurring, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		if projectID.Valid {
			id := projectID.UUID
			it.ProjectID = &id
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateParams are the editable content fields. Nil means unchanged.
type UpdateParams struct {
	Title        *string
	Description  *string
	Priority     *string
	Visibility   *visibility.Visibility
	ProjectID    *uuid.UUID
	ClearProject bool
	DueDate      *time.Time
	ClearDueDate bool
}

// Update edits task content. Write access is required; changing visibility is
// an owner decision. The resolved access is returned so handlers can echo the
// caller's real capabilities.
func (s *Service) Update(ctx context.Context, actor visibility.Actor, taskID uuid.UUID, params UpdateParams) (*Task, visibility.Access, error) {
	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, visibility.AccessNone, err
	}
	access, err := s.resolveAccess(ctx, actor, task)
	if err != nil {
		return nil, visibility.AccessNone, err
	}
	if !access.CanRead() {
		return nil, visibility.AccessNone, ErrTaskNotFound
	}
	if !access.CanWrite() {
		return nil, visibility.AccessNone, workflow.ErrForbidden
	}

	if params.Title != nil {
		if err := validation.ValidateTitle(*params.Title); err != nil {
			return nil, visibility.AccessNone, validationErr(err.Error())
		}
		task.Title = *params.Title
	}
	if params.Description != nil {
		task.Description = *params.Description
	}
	if params.Priority != nil {
		if !validPriority(*params.Priority) {
			return nil, visibility.AccessNone, validationErr(fmt.Sprintf("priority must be %s, %s or %s", PriorityLow, PriorityMedium, PriorityHigh))
		}
		task.Priority = *params.Priority
	}
	if params.Visibility != nil {
		if access < visibility.AccessOwner {
			return nil, visibility.AccessNone, workflow.ErrForbidden
		}
		if !params.Visibility.IsValid() {
			return nil, visibility.AccessNone, validationErr("visibility must be private or team")
		}
		task.Visibility = *params.Visibility
	}
	if params.ClearProject {
		task.ProjectID = nil
	} else if params.ProjectID != nil {
		var exists bool
		if err := s.pool.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1 AND org_id = $2)
		`, *params.ProjectID, task.OrgID).Scan(&exists); err != nil {
			return nil, visibility.AccessNone, fmt.Errorf("failed to check project: %w", err)
		}
		if !exists {
			return nil, visibility.AccessNone, ErrInvalidProject
		}
		task.ProjectID = params.ProjectID
	}
	if params.ClearDueDate {
		task.DueDate = nil
	} else if params.DueDate != nil {
		task.DueDate = params.DueDate
	}

	if _, err := s.pool.Exec(ctx, `
		UPDATE tasks
		SET title = $2, description = $3, priority = $4, visibility = $5,
		    project_id = $6, due_date = $7, updated_at = NOW()
		WHERE id = $1
	`, task.ID, task.Title, task.Description, task.Priority, task.Visibility,
		task.ProjectID, task.DueDate); err != nil {
		return nil, visibility.AccessNone, fmt.Errorf("failed to update task: %w", err)
	}

	return task, access, nil
}

// UpdateStatus runs one workflow transition. expected is the status the
// client authorized the change against; a mismatch at write time means a
// concurrent mutation won and the caller gets ErrConflict.
func (s *Service) UpdateStatus(ctx context.Context, actor visibility.Actor, taskID uuid.UUID, expected, target workflow.Status) (*Task, error) {
	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	access, err := s.resolveAccess(ctx, actor, task)
	if err != nil {
		return nil, err
	}
	if !access.CanRead() {
		return nil, ErrTaskNotFound
	}

	asOwner := actor.UserID == task.OwnerID || actor.Role.Absolute()
	transition, err := workflow.Plan(access, asOwner, expected, target)
	if err != nil {
		return nil, err
	}
	if transition.Status == task.Status && transition.Event == workflow.EventNone && task.Status == expected {
		return task, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	completing := transition.Status == workflow.StatusDone
	var completedAt *time.Time
	if completing {
		now := time.Now().UTC()
		completedAt = &now
	}

	tag, err := tx.Exec(ctx, `
		UPDATE tasks
		SET status = $3, completed_at = $4, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, task.ID, expected, transition.Status, completedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrConflict
	}

	if completing && task.Recurrence != nil {
		if err := s.spawnSuccessor(ctx, tx, task, *completedAt); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	_ = s.activity.AddSystem(ctx, task.ID, actor.UserID, "changed status", map[string]any{
		"from": string(expected),
		"to":   string(transition.Status),
	})

	if transition.Event != workflow.EventNone {
		s.bus.Publish(events.Event{
			Type:      eventType(transition.Event),
			OrgID:     task.OrgID,
			TaskID:    task.ID,
			TaskTitle: task.Title,
			ActorID:   actor.UserID,
			TargetIDs: append([]uuid.UUID{task.OwnerID}, task.AssigneeIDs...),
		})
	}

	task.Status = transition.Status
	task.CompletedAt = completedAt
	return task, nil
}

// SetAssignees replaces the assignee set. Owner access required.
func (s *Service) SetAssignees(ctx context.Context, actor visibility.Actor, taskID uuid.UUID, assigneeIDs []uuid.UUID) (*Task, error) {
	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	access, err := s.resolveAccess(ctx, actor, task)
	if err != nil {
		return nil, err
	}
	if !access.CanRead() {
		return nil, ErrTaskNotFound
	}
	if access < visibility.AccessOwner {
		return nil, workflow.ErrForbidden
	}

	previous := make(map[uuid.UUID]struct{}, len(task.AssigneeIDs))
	for _, id := range task.AssigneeIDs {
		previous[id] = struct{}{}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := checkAssignees(ctx, tx, task.OrgID, assigneeIDs); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM task_assignees WHERE task_id = $1`, task.ID); err != nil {
		return nil, fmt.Errorf("failed to clear assignees: %w", err)
	}
	for _, id := range assigneeIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO task_assignees (task_id, user_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, task.ID, id); err != nil {
			return nil, fmt.Errorf("failed to add assignee: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	task.AssigneeIDs = assigneeIDs

	var added []uuid.UUID
	for _, id := range assigneeIDs {
		if _, ok := previous[id]; !ok {
			added = append(added, id)
		}
	}
	if len(added) > 0 {
		_ = s.activity.AddSystem(ctx, task.ID, actor.UserID, "updated assignees", nil)
		s.bus.Publish(events.Event{
			Type:      events.TaskAssigned,
			OrgID:     task.OrgID,
			TaskID:    task.ID,
			TaskTitle: task.Title,
			ActorID:   actor.UserID,
			TargetIDs: added,
		})
	}

	return task, nil
}

// Delete removes a task. Owner access required; assignees cannot delete.
func (s *Service) Delete(ctx context.Context, actor visibility.Actor, taskID uuid.UUID) error {
	task, err := s.load(ctx, taskID)
	if err != nil {
		return err
	}
	access, err := s.resolveAccess(ctx, actor, task)
	if err != nil {
		return err
	}
	if !access.CanRead() {
		return ErrTaskNotFound
	}
	if access < visibility.AccessOwner {
		return workflow.ErrForbidden
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, task.ID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// spawnSuccessor creates the next occurrence of a recurring task. The unique
// key on (chain_id, generation) makes concurrent completions insert at most
// one row; the loser's insert is a silent no-op.
func (s *Service) spawnSuccessor(ctx context.Context, tx pgx.Tx, task *Task, completedAt time.Time) error {
	lastDue := completedAt
	if task.DueDate != nil {
		lastDue = *task.DueDate
	}
	nextDue := task.Recurrence.NextDueDate(lastDue, completedAt)
	if !task.Recurrence.ShouldRecur(nextDue) {
		log.Info().
			Str("task_id", task.ID.String()).
			Str("chain_id", task.ChainID.String()).
			Msg("Recurrence end reached, no successor created")
		return nil
	}

	recurrenceJSON, err := json.Marshal(task.Recurrence)
	if err != nil {
		return fmt.Errorf("failed to marshal recurrence: %w", err)
	}

	var successorID uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO tasks (org_id, owner_id, project_id, title, description, priority,
		                   status, visibility, due_date, recurrence, chain_id, generation)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (chain_id, generation) DO NOTHING
		RETURNING id
	`, task.OrgID, task.OwnerID, task.ProjectID, task.Title, task.Description, task.Priority,
		workflow.StatusTodo, task.Visibility, nextDue, recurrenceJSON, task.ChainID, task.Generation+1,
	).Scan(&successorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// A concurrent completion already created this generation.
			return nil
		}
		return fmt.Errorf("failed to create successor task: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO task_assignees (task_id, user_id)
		SELECT $1, user_id FROM task_assignees WHERE task_id = $2
	`, successorID, task.ID); err != nil {
		return fmt.Errorf("failed to copy assignees to successor: %w", err)
	}

	log.Info().
		Str("task_id", task.ID.String()).
		Str("successor_id", successorID.String()).
		Str("chain_id", task.ChainID.String()).
		Int("generation", task.Generation+1).
		Msg("Recurring successor created")

	return nil
}

// Access resolves the actor's access level for a task, for capability hints
// in API responses. Invisible tasks read as not found.
func (s *Service) Access(ctx context.Context, actor visibility.Actor, taskID uuid.UUID) (visibility.Access, error) {
	_, access, err := s.Get(ctx, actor, taskID)
	return access, err
}

func (s *Service) resolveAccess(ctx context.Context, actor visibility.Actor, task *Task) (visibility.Access, error) {
	snap, err := s.cache.Snapshot(ctx, actor.OrgID)
	if err != nil {
		return visibility.AccessNone, fmt.Errorf("failed to load hierarchy: %w", err)
	}
	return visibility.Evaluate(actor, task.View(), snap), nil
}

func (s *Service) load(ctx context.Context, taskID uuid.UUID) (*Task, error) {
	task := &Task{}
	err := s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, taskID).
		Scan(taskDest(task)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to load task: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT user_id FROM task_assignees WHERE task_id = $1`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignees: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan assignee: %w", err)
		}
		task.AssigneeIDs = append(task.AssigneeIDs, id)
	}
	return task, rows.Err()
}

// taskDest builds the scan destinations matching taskColumns. Recurrence and
// project_id need translation between SQL null and Go pointers.
func taskDest(t *Task) []any {
	return []any{
		&t.ID,
		&t.OrgID,
		&t.OwnerID,
		&projectIDScanner{t},
		&t.Title,
		&t.Description,
		&t.Priority,
		&t.Status,
		&t.Visibility,
		&t.DueDate,
		&recurrenceScanner{t},
		&t.ChainID,
		&t.Generation,
		&t.CompletedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	}
}

type projectIDScanner struct{ t *Task }

func (s *projectIDScanner) Scan(src any) error {
	var n uuid.NullUUID
	if err := n.Scan(src); err != nil {
		return err
	}
	if n.Valid {
		id := n.UUID
		s.t.ProjectID = &id
	} else {
		s.t.ProjectID = nil
	}
	return nil
}

type recurrenceScanner struct{ t *Task }

func (s *recurrenceScanner) Scan(src any) error {
	if src == nil {
		s.t.Recurrence = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported recurrence type %T", src)
	}
	var cfg recurrence.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("failed to decode recurrence: %w", err)
	}
	s.t.Recurrence = &cfg
	return nil
}

func checkAssignees(ctx context.Context, tx pgx.Tx, orgID uuid.UUID, assigneeIDs []uuid.UUID) error {
	if len(assigneeIDs) == 0 {
		return nil
	}
	var count int
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM users
		WHERE id = ANY($1) AND org_id = $2 AND deactivated_at IS NULL
	`, assigneeIDs, orgID).Scan(&count); err != nil {
		return fmt.Errorf("failed to check assignees: %w", err)
	}
	if count != len(uniqueIDs(assigneeIDs)) {
		return ErrInvalidAssignee
	}
	return nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	var out []uuid.UUID
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func eventType(e workflow.Event) events.Type {
	switch e {
	case workflow.EventReviewRequested:
		return events.ReviewRequested
	case workflow.EventTaskApproved:
		return events.TaskApproved
	case workflow.EventTaskReturned:
		return events.TaskReturned
	default:
		return ""
	}
}
