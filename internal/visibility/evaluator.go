package visibility

import (
	"github.com/google/uuid"

	"github.com/taskdeck/taskdeck/internal/hierarchy"
	"github.com/taskdeck/taskdeck/internal/orgs"
)

// Actor is the authenticated principal a decision is made for.
type Actor struct {
	UserID uuid.UUID
	OrgID  uuid.UUID
	Role   orgs.Role
}

// TaskView carries the task fields the evaluator needs. Services populate it
// from the row under decision; it never leaves the process.
type TaskView struct {
	OrgID       uuid.UUID
	OwnerID     uuid.UUID
	AssigneeIDs []uuid.UUID
	Visibility  Visibility
}

// Evaluate resolves the actor's access to a task. It is the single decision
// function; every read path either calls it or filters with a Predicate built
// from the same rules.
//
// Rules, in order, first match wins:
//  1. different organization: none
//  2. absolute role (owner, admin): owner access
//  3. task owner: owner access
//  4. assignee: read-write
//  5. private task: none
//  6. team task and actor is in the owner's upward chain: read-only
//  7. otherwise: none
//
// Rule 6 considers only the part of the owner's chain that resolves cleanly;
// an actor the walk never reaches, missing snapshot included, fails closed.
func Evaluate(actor Actor, task TaskView, snap *hierarchy.Snapshot) Access {
	if actor.OrgID != task.OrgID {
		return AccessNone
	}

	if actor.Role.Absolute() {
		return AccessOwner
	}

	if actor.UserID == task.OwnerID {
		return AccessOwner
	}

	for _, id := range task.AssigneeIDs {
		if id == actor.UserID {
			return AccessReadWrite
		}
	}

	if task.Visibility != VisibilityTeam {
		return AccessNone
	}

	if snap != nil && snap.IsManagerOf(actor.UserID, task.OwnerID) {
		return AccessReadOnly
	}

	return AccessNone
}
