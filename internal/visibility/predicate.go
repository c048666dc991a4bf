package visibility

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/taskdeck/taskdeck/internal/hierarchy"
)

// Predicate compiles the Evaluate rules into a SQL fragment for list queries,
// so filtering happens in the database instead of loading every row. The
// fragment references tasks as `t` and task_assignees as a correlated
// subquery; argIndex is the placeholder number the fragment may start from.
//
// Callers must already scope the query to the actor's organization
// (`t.org_id = ...`); the fragment covers only the visibility dimension.
func Predicate(actor Actor, snap *hierarchy.Snapshot, argIndex int) (string, []any) {
	if actor.Role.Absolute() {
		return "TRUE", nil
	}

	var managedOwners []uuid.UUID
	if snap != nil {
		for id := range snap.SubordinateSet(actor.UserID) {
			managedOwners = append(managedOwners, id)
		}
	}

	ownerArg := argIndex
	clause := fmt.Sprintf(`(
		t.owner_id = $%d
		OR EXISTS (
		  SELECT 1 FROM task_assignees ta
		  WHERE ta.task_id = t.id AND ta.user_id = $%d
		)`, ownerArg, ownerArg)
	args := []any{actor.UserID}

	if len(managedOwners) > 0 {
		clause += fmt.Sprintf(`
		OR (t.visibility = 'team' AND t.owner_id = ANY($%d))`, argIndex+1)
		args = append(args, managedOwners)
	}

	clause += `
	)`

	return clause, args
}
