package workflow

import (
	"errors"

	"github.com/taskdeck/taskdeck/internal/visibility"
)

var (
	// ErrForbidden is returned when the actor's access level does not allow
	// the requested transition
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidStatus is returned for an unknown or unreachable target status
	ErrInvalidStatus = errors.New("invalid status")
)

// Status is a task's position in the work flow.
type Status string

const (
	StatusBacklog    Status = "backlog"
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusBacklog, StatusTodo, StatusInProgress, StatusReview, StatusDone:
		return true
	}
	return false
}

// Active reports whether the status counts as open work (neither in review
// nor done).
func (s Status) Active() bool {
	switch s {
	case StatusBacklog, StatusTodo, StatusInProgress:
		return true
	}
	return false
}

// Event names the domain event a transition emits, if any.
type Event string

const (
	EventNone            Event = ""
	EventReviewRequested Event = "review_requested"
	EventTaskApproved    Event = "task_approved"
	EventTaskReturned    Event = "task_returned"
)

// Transition is a planned status change: the status that will actually be
// written (which may differ from the requested target) and the event to emit
// once the write commits.
type Transition struct {
	Status Status
	Event  Event
}

// Plan decides what a status change request turns into. It is pure; the
// caller executes the returned transition with a compare-and-swap on the
// current status.
//
// asOwner is true when the actor owns the task or holds an absolute role.
// Owner-level review decisions and direct completion require it; a non-owner
// with write access who moves a task to done is redirected to review instead.
func Plan(access visibility.Access, asOwner bool, current, target Status) (Transition, error) {
	if !current.IsValid() || !target.IsValid() {
		return Transition{}, ErrInvalidStatus
	}
	if !access.CanWrite() {
		return Transition{}, ErrForbidden
	}
	if target == current {
		return Transition{Status: current}, nil
	}

	if current == StatusReview {
		// Only the owner decides the outcome of a review.
		if !asOwner {
			return Transition{}, ErrForbidden
		}
		switch {
		case target == StatusDone:
			return Transition{Status: StatusDone, Event: EventTaskApproved}, nil
		case target.Active():
			return Transition{Status: target, Event: EventTaskReturned}, nil
		default:
			return Transition{}, ErrInvalidStatus
		}
	}

	switch {
	case target == StatusDone && asOwner:
		return Transition{Status: StatusDone}, nil
	case target == StatusDone:
		// Completion by a non-owner is a review submission.
		return Transition{Status: StatusReview, Event: EventReviewRequested}, nil
	case target == StatusReview:
		return Transition{Status: StatusReview, Event: EventReviewRequested}, nil
	default:
		return Transition{Status: target}, nil
	}
}
