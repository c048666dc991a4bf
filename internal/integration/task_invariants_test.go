package integration

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/taskdeck/taskdeck/internal/activity"
	"github.com/taskdeck/taskdeck/internal/directory"
	"github.com/taskdeck/taskdeck/internal/events"
	"github.com/taskdeck/taskdeck/internal/hierarchy"
	"github.com/taskdeck/taskdeck/internal/orgs"
	"github.com/taskdeck/taskdeck/internal/recurrence"
	"github.com/taskdeck/taskdeck/internal/tasks"
	"github.com/taskdeck/taskdeck/internal/visibility"
	"github.com/taskdeck/taskdeck/internal/workflow"
)

func seedUser(t *testing.T, pool *pgxpool.Pool, email string) uuid.UUID {
	t.Helper()

	var id uuid.UUID
	err := pool.QueryRow(context.Background(), `
		INSERT INTO users (email, password_hash) VALUES ($1, 'integration-test-hash')
		RETURNING id
	`, email).Scan(&id)
	require.NoError(t, err)
	return id
}

func seedMember(t *testing.T, pool *pgxpool.Pool, orgID uuid.UUID, email string, role orgs.Role) uuid.UUID {
	t.Helper()

	var id uuid.UUID
	err := pool.QueryRow(context.Background(), `
		INSERT INTO users (email, password_hash, org_id, role) VALUES ($1, 'integration-test-hash', $2, $3)
		RETURNING id
	`, email, orgID, role).Scan(&id)
	require.NoError(t, err)
	return id
}

func seedOrgWithOwner(t *testing.T, pool *pgxpool.Pool, slug string) (orgID, ownerID uuid.UUID) {
	t.Helper()

	ownerID = seedUser(t, pool, slug+"-owner@example.com")
	org, err := orgs.NewService(pool).CreateWithOwner(context.Background(), slug, slug, ownerID)
	require.NoError(t, err)
	return org.ID, ownerID
}

func newTaskService(pool *pgxpool.Pool) *tasks.Service {
	cache := hierarchy.NewCache(directory.EdgeLoader(pool))
	return tasks.NewService(pool, cache, activity.NewService(pool), events.NewBus())
}

func TestDuplicatePendingInviteRejected(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	orgID, ownerID := seedOrgWithOwner(t, pool, "acme")
	svc := orgs.NewService(pool)

	invite, token, err := svc.CreateInvite(ctx, orgID, ownerID, "newhire@example.com", orgs.RoleMember, nil)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(token, "tdi_"))

	// Same email, still pending: rejected regardless of role.
	_, _, err = svc.CreateInvite(ctx, orgID, ownerID, "newhire@example.com", orgs.RoleLead, nil)
	require.ErrorIs(t, err, orgs.ErrDuplicateInvitation)

	// Revoking the pending invite frees the slot.
	require.NoError(t, svc.RevokeInvite(ctx, orgID, invite.ID, ownerID))
	_, _, err = svc.CreateInvite(ctx, orgID, ownerID, "newhire@example.com", orgs.RoleMember, nil)
	require.NoError(t, err)
}

func TestStatusCASRejectsStaleExpectation(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	orgID, ownerID := seedOrgWithOwner(t, pool, "casorg")
	ts := newTaskService(pool)
	actor := visibility.Actor{UserID: ownerID, OrgID: orgID, Role: orgs.RoleOwner}

	task, err := ts.Create(ctx, actor, tasks.CreateParams{Title: "Quarterly report"})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusTodo, task.Status)

	_, err = ts.UpdateStatus(ctx, actor, task.ID, workflow.StatusTodo, workflow.StatusInProgress)
	require.NoError(t, err)

	// A client still holding the old status loses the race.
	_, err = ts.UpdateStatus(ctx, actor, task.ID, workflow.StatusTodo, workflow.StatusDone)
	require.ErrorIs(t, err, tasks.ErrConflict)

	var status string
	require.NoError(t, pool.QueryRow(ctx, `SELECT status FROM tasks WHERE id = $1`, task.ID).Scan(&status))
	require.Equal(t, string(workflow.StatusInProgress), status)
}

func TestConcurrentCompletionSpawnsOneSuccessor(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	orgID, ownerID := seedOrgWithOwner(t, pool, "recurorg")
	ts := newTaskService(pool)
	actor := visibility.Actor{UserID: ownerID, OrgID: orgID, Role: orgs.RoleOwner}

	due := time.Now().UTC().Add(24 * time.Hour)
	task, err := ts.Create(ctx, actor, tasks.CreateParams{
		Title:   "Weekly sync notes",
		DueDate: &due,
		Recurrence: &recurrence.Config{
			Frequency: recurrence.FrequencyDaily,
		},
	})
	require.NoError(t, err)

	const attempts = 4
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ts.UpdateStatus(ctx, actor, task.ID, workflow.StatusTodo, workflow.StatusDone)
		}(i)
	}
	wg.Wait()

	completions := 0
	for _, err := range errs {
		if err == nil {
			completions++
		} else {
			require.ErrorIs(t, err, tasks.ErrConflict)
		}
	}
	require.Equal(t, 1, completions, "exactly one completion must win")

	var successors int
	require.NoError(t, pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM tasks WHERE chain_id = $1 AND generation = 1
	`, task.ChainID).Scan(&successors))
	require.Equal(t, 1, successors)

	var status string
	require.NoError(t, pool.QueryRow(ctx, `
		SELECT status FROM tasks WHERE chain_id = $1 AND generation = 1
	`, task.ChainID).Scan(&status))
	require.Equal(t, string(workflow.StatusTodo), status)
}

func TestUpdateEchoesResolvedAccess(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	orgID, ownerID := seedOrgWithOwner(t, pool, "editorg")
	assigneeID := seedMember(t, pool, orgID, "assignee@example.com", orgs.RoleMember)
	ts := newTaskService(pool)
	ownerActor := visibility.Actor{UserID: ownerID, OrgID: orgID, Role: orgs.RoleOwner}

	task, err := ts.Create(ctx, ownerActor, tasks.CreateParams{
		Title:       "Draft launch plan",
		AssigneeIDs: []uuid.UUID{assigneeID},
	})
	require.NoError(t, err)

	desc := "updated by the assignee"
	assigneeActor := visibility.Actor{UserID: assigneeID, OrgID: orgID, Role: orgs.RoleMember}
	_, access, err := ts.Update(ctx, assigneeActor, task.ID, tasks.UpdateParams{Description: &desc})
	require.NoError(t, err)
	require.Equal(t, visibility.AccessReadWrite, access)

	_, access, err = ts.Update(ctx, ownerActor, task.ID, tasks.UpdateParams{Description: &desc})
	require.NoError(t, err)
	require.Equal(t, visibility.AccessOwner, access)
}
