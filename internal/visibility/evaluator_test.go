package visibility

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/taskdeck/taskdeck/internal/hierarchy"
	"github.com/taskdeck/taskdeck/internal/orgs"
)

func TestEvaluate(t *testing.T) {
	org := uuid.New()
	otherOrg := uuid.New()

	owner := uuid.New()
	manager := uuid.New()
	grandManager := uuid.New()
	assignee := uuid.New()
	peer := uuid.New()

	snap := hierarchy.NewSnapshot(map[uuid.UUID]uuid.UUID{
		owner:   manager,
		manager: grandManager,
		peer:    manager,
	})

	task := func(vis Visibility) TaskView {
		return TaskView{
			OrgID:       org,
			OwnerID:     owner,
			AssigneeIDs: []uuid.UUID{assignee},
			Visibility:  vis,
		}
	}
	member := func(id uuid.UUID) Actor {
		return Actor{UserID: id, OrgID: org, Role: orgs.RoleMember}
	}

	t.Run("cross-org actor gets nothing regardless of role", func(t *testing.T) {
		actor := Actor{UserID: uuid.New(), OrgID: otherOrg, Role: orgs.RoleOwner}
		assert.Equal(t, AccessNone, Evaluate(actor, task(VisibilityTeam), snap))
	})

	t.Run("org owner and admin see everything", func(t *testing.T) {
		for _, role := range []orgs.Role{orgs.RoleOwner, orgs.RoleAdmin} {
			actor := Actor{UserID: uuid.New(), OrgID: org, Role: role}
			assert.Equal(t, AccessOwner, Evaluate(actor, task(VisibilityPrivate), snap))
		}
	})

	t.Run("task owner has owner access even on private tasks", func(t *testing.T) {
		assert.Equal(t, AccessOwner, Evaluate(member(owner), task(VisibilityPrivate), snap))
	})

	t.Run("assignee gets read-write", func(t *testing.T) {
		assert.Equal(t, AccessReadWrite, Evaluate(member(assignee), task(VisibilityPrivate), snap))
		assert.Equal(t, AccessReadWrite, Evaluate(member(assignee), task(VisibilityTeam), snap))
	})

	t.Run("private task is invisible to the management chain", func(t *testing.T) {
		assert.Equal(t, AccessNone, Evaluate(member(manager), task(VisibilityPrivate), snap))
		assert.Equal(t, AccessNone, Evaluate(member(grandManager), task(VisibilityPrivate), snap))
	})

	t.Run("team task is read-only up the whole chain", func(t *testing.T) {
		assert.Equal(t, AccessReadOnly, Evaluate(member(manager), task(VisibilityTeam), snap))
		assert.Equal(t, AccessReadOnly, Evaluate(member(grandManager), task(VisibilityTeam), snap))
	})

	t.Run("team task is invisible to peers and downward", func(t *testing.T) {
		assert.Equal(t, AccessNone, Evaluate(member(peer), task(VisibilityTeam), snap))

		// The owner manages peer, but visibility never flows downward.
		peerTask := TaskView{OrgID: org, OwnerID: manager, Visibility: VisibilityTeam}
		assert.Equal(t, AccessNone, Evaluate(member(owner), peerTask, snap))
	})

	t.Run("manager reached before an upstream cycle keeps read access", func(t *testing.T) {
		cyclic := hierarchy.NewSnapshot(map[uuid.UUID]uuid.UUID{
			owner:        manager,
			manager:      grandManager,
			grandManager: manager,
		})
		assert.Equal(t, AccessNone, Evaluate(member(peer), task(VisibilityTeam), cyclic))
		assert.Equal(t, AccessReadOnly, Evaluate(member(manager), task(VisibilityTeam), cyclic))
	})

	t.Run("manager beyond a cycle fails closed", func(t *testing.T) {
		cyclic := hierarchy.NewSnapshot(map[uuid.UUID]uuid.UUID{
			owner: peer,
			peer:  owner,
		})
		// The chain loops back before grandManager is ever reached.
		assert.Equal(t, AccessNone, Evaluate(member(grandManager), task(VisibilityTeam), cyclic))
	})

	t.Run("nil snapshot fails closed for chain visibility", func(t *testing.T) {
		assert.Equal(t, AccessNone, Evaluate(member(manager), task(VisibilityTeam), nil))
		// but identity-based rules still work
		assert.Equal(t, AccessOwner, Evaluate(member(owner), task(VisibilityTeam), nil))
	})
}

func TestAccessLevels(t *testing.T) {
	assert.False(t, AccessNone.CanRead())
	assert.False(t, AccessNone.CanWrite())

	assert.True(t, AccessReadOnly.CanRead())
	assert.False(t, AccessReadOnly.CanWrite())

	assert.True(t, AccessReadWrite.CanRead())
	assert.True(t, AccessReadWrite.CanWrite())

	assert.True(t, AccessOwner.CanRead())
	assert.True(t, AccessOwner.CanWrite())
}
