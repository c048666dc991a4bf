package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskdeck/taskdeck/internal/visibility"
)

func TestPlan(t *testing.T) {
	t.Run("read-only and no access never mutate", func(t *testing.T) {
		for _, access := range []visibility.Access{visibility.AccessNone, visibility.AccessReadOnly} {
			_, err := Plan(access, false, StatusTodo, StatusInProgress)
			assert.ErrorIs(t, err, ErrForbidden)
		}
	})

	t.Run("owner completes directly from any state", func(t *testing.T) {
		for _, from := range []Status{StatusBacklog, StatusTodo, StatusInProgress} {
			tr, err := Plan(visibility.AccessOwner, true, from, StatusDone)
			require.NoError(t, err)
			assert.Equal(t, StatusDone, tr.Status)
			assert.Equal(t, EventNone, tr.Event)
		}
	})

	t.Run("non-owner completion is redirected to review", func(t *testing.T) {
		tr, err := Plan(visibility.AccessReadWrite, false, StatusInProgress, StatusDone)
		require.NoError(t, err)
		assert.Equal(t, StatusReview, tr.Status)
		assert.Equal(t, EventReviewRequested, tr.Event)
	})

	t.Run("explicit review submission emits the same event", func(t *testing.T) {
		tr, err := Plan(visibility.AccessReadWrite, false, StatusInProgress, StatusReview)
		require.NoError(t, err)
		assert.Equal(t, StatusReview, tr.Status)
		assert.Equal(t, EventReviewRequested, tr.Event)
	})

	t.Run("owner approves from review", func(t *testing.T) {
		tr, err := Plan(visibility.AccessOwner, true, StatusReview, StatusDone)
		require.NoError(t, err)
		assert.Equal(t, StatusDone, tr.Status)
		assert.Equal(t, EventTaskApproved, tr.Event)
	})

	t.Run("owner returns from review to an active status", func(t *testing.T) {
		tr, err := Plan(visibility.AccessOwner, true, StatusReview, StatusInProgress)
		require.NoError(t, err)
		assert.Equal(t, StatusInProgress, tr.Status)
		assert.Equal(t, EventTaskReturned, tr.Event)
	})

	t.Run("non-owner cannot exit review", func(t *testing.T) {
		_, err := Plan(visibility.AccessReadWrite, false, StatusReview, StatusDone)
		assert.ErrorIs(t, err, ErrForbidden)

		_, err = Plan(visibility.AccessReadWrite, false, StatusReview, StatusInProgress)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("ordinary moves between active states", func(t *testing.T) {
		tr, err := Plan(visibility.AccessReadWrite, false, StatusBacklog, StatusTodo)
		require.NoError(t, err)
		assert.Equal(t, StatusTodo, tr.Status)
		assert.Equal(t, EventNone, tr.Event)
	})

	t.Run("no-op transition is allowed and silent", func(t *testing.T) {
		tr, err := Plan(visibility.AccessReadWrite, false, StatusTodo, StatusTodo)
		require.NoError(t, err)
		assert.Equal(t, StatusTodo, tr.Status)
		assert.Equal(t, EventNone, tr.Event)
	})

	t.Run("unknown statuses are rejected", func(t *testing.T) {
		_, err := Plan(visibility.AccessOwner, true, StatusTodo, Status("archived"))
		assert.ErrorIs(t, err, ErrInvalidStatus)

		_, err = Plan(visibility.AccessOwner, true, Status(""), StatusTodo)
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})
}
