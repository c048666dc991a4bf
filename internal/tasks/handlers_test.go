package tasks

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskdeck/taskdeck/internal/visibility"
)

func TestUpdateTaskRequest_ToParams(t *testing.T) {
	decode := func(t *testing.T, body string) UpdateTaskRequest {
		t.Helper()
		var req UpdateTaskRequest
		require.NoError(t, json.Unmarshal([]byte(body), &req))
		return req
	}

	t.Run("absent fields stay unchanged", func(t *testing.T) {
		req := decode(t, `{"title":"Quarterly report"}`)
		params, err := req.toParams()
		require.NoError(t, err)

		assert.Equal(t, "Quarterly report", *params.Title)
		assert.Nil(t, params.ProjectID)
		assert.False(t, params.ClearProject)
		assert.Nil(t, params.DueDate)
		assert.False(t, params.ClearDueDate)
	})

	t.Run("explicit null clears project and due date", func(t *testing.T) {
		req := decode(t, `{"project_id":null,"due_date":null}`)
		params, err := req.toParams()
		require.NoError(t, err)

		assert.True(t, params.ClearProject)
		assert.Nil(t, params.ProjectID)
		assert.True(t, params.ClearDueDate)
		assert.Nil(t, params.DueDate)
	})

	t.Run("concrete values are parsed", func(t *testing.T) {
		projectID := uuid.New()
		req := decode(t, `{"project_id":"`+projectID.String()+`","due_date":"2026-09-15T00:00:00Z","visibility":"team"}`)
		params, err := req.toParams()
		require.NoError(t, err)

		require.NotNil(t, params.ProjectID)
		assert.Equal(t, projectID, *params.ProjectID)
		require.NotNil(t, params.DueDate)
		assert.Equal(t, time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC), params.DueDate.UTC())
		require.NotNil(t, params.Visibility)
		assert.Equal(t, visibility.VisibilityTeam, *params.Visibility)
		assert.False(t, params.ClearProject)
		assert.False(t, params.ClearDueDate)
	})

	t.Run("malformed values are rejected", func(t *testing.T) {
		req := decode(t, `{"project_id":"not-a-uuid"}`)
		_, err := req.toParams()
		assert.EqualError(t, err, "invalid project_id")

		req = decode(t, `{"due_date":"yesterday"}`)
		_, err = req.toParams()
		assert.EqualError(t, err, "invalid due_date")
	})
}
