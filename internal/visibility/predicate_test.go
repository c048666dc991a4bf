package visibility

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskdeck/taskdeck/internal/hierarchy"
	"github.com/taskdeck/taskdeck/internal/orgs"
)

func TestPredicate(t *testing.T) {
	org := uuid.New()
	actorID := uuid.New()
	report := uuid.New()
	deepReport := uuid.New()

	snap := hierarchy.NewSnapshot(map[uuid.UUID]uuid.UUID{
		report:     actorID,
		deepReport: report,
	})

	t.Run("absolute role collapses to TRUE", func(t *testing.T) {
		actor := Actor{UserID: actorID, OrgID: org, Role: orgs.RoleAdmin}
		clause, args := Predicate(actor, snap, 2)
		assert.Equal(t, "TRUE", clause)
		assert.Empty(t, args)
	})

	t.Run("member with reports gets owner, assignee and team clauses", func(t *testing.T) {
		actor := Actor{UserID: actorID, OrgID: org, Role: orgs.RoleMember}
		clause, args := Predicate(actor, snap, 2)

		assert.Contains(t, clause, "t.owner_id = $2")
		assert.Contains(t, clause, "ta.user_id = $2")
		assert.Contains(t, clause, "t.visibility = 'team' AND t.owner_id = ANY($3)")

		require.Len(t, args, 2)
		assert.Equal(t, actorID, args[0])
		owners, ok := args[1].([]uuid.UUID)
		require.True(t, ok)
		assert.ElementsMatch(t, []uuid.UUID{report, deepReport}, owners)
	})

	t.Run("member without reports gets no team clause", func(t *testing.T) {
		leaf := Actor{UserID: deepReport, OrgID: org, Role: orgs.RoleMember}
		clause, args := Predicate(leaf, snap, 2)

		assert.False(t, strings.Contains(clause, "visibility"))
		require.Len(t, args, 1)
		assert.Equal(t, deepReport, args[0])
	})

	t.Run("nil snapshot behaves like no reports", func(t *testing.T) {
		actor := Actor{UserID: actorID, OrgID: org, Role: orgs.RoleMember}
		clause, args := Predicate(actor, nil, 4)

		assert.Contains(t, clause, "t.owner_id = $4")
		assert.False(t, strings.Contains(clause, "visibility"))
		assert.Len(t, args, 1)
	})
}
