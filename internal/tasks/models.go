package tasks

import (
	"time"

	"github.com/google/uuid"

	"github.com/taskdeck/taskdeck/internal/recurrence"
	"github.com/taskdeck/taskdeck/internal/visibility"
	"github.com/taskdeck/taskdeck/internal/workflow"
)

// Priority levels, informational only. No access or workflow rule keys off
// priority.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Task is the full task row with its assignees.
type Task struct {
	ID          uuid.UUID             `json:"id"`
	OrgID       uuid.UUID             `json:"org_id"`
	OwnerID     uuid.UUID             `json:"owner_id"`
	ProjectID   *uuid.UUID            `json:"project_id,omitempty"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    string                `json:"priority"`
	Status      workflow.Status       `json:"status"`
	Visibility  visibility.Visibility `json:"visibility"`
	DueDate     *time.Time            `json:"due_date,omitempty"`
	Recurrence  *recurrence.Config    `json:"recurrence,omitempty"`
	ChainID     uuid.UUID             `json:"chain_id"`
	Generation  int                   `json:"generation"`
	AssigneeIDs []uuid.UUID           `json:"assignee_ids"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// View converts the task to the evaluator's input shape.
func (t *Task) View() visibility.TaskView {
	return visibility.TaskView{
		OrgID:       t.OrgID,
		OwnerID:     t.OwnerID,
		AssigneeIDs: t.AssigneeIDs,
		Visibility:  t.Visibility,
	}
}

// ListItem is the compact shape for task lists.
type ListItem struct {
	ID         uuid.UUID             `json:"id"`
	OwnerID    uuid.UUID             `json:"owner_id"`
	ProjectID  *uuid.UUID            `json:"project_id,omitempty"`
	Title      string                `json:"title"`
	Priority   string                `json:"priority"`
	Status     workflow.Status       `json:"status"`
	Visibility visibility.Visibility `json:"visibility"`
	DueDate    *time.Time            `json:"due_date,omitempty"`
	Recurring  bool                  `json:"recurring"`
	CreatedAt  time.Time             `json:"created_at"`
}

func validPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}
