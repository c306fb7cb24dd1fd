package api

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/dayplan-api/internal/api/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskHandler_CreateTask(t *testing.T) {
	f := newAPIFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/tasks", ownerToken,
		`{"title": "Write report", "description": "Q3 numbers", "estimated_minutes": 45}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	task := decodeBody[TaskResponse](t, rec)
	assert.NotEqual(t, uuid.Nil, task.ID)
	assert.Equal(t, "Write report", task.Title)
	assert.Equal(t, "Q3 numbers", task.Description)
	assert.Equal(t, "Todo", task.Status)
	require.NotNil(t, task.EstimatedMinutes)
	assert.Equal(t, 45, *task.EstimatedMinutes)

	assert.Equal(t, []uuid.UUID{f.ownerID}, f.notifier.calls(), "creating a task triggers regeneration")
}

func TestTaskHandler_CreateTaskRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{
			name:    "missing title",
			body:    `{"description": "no title"}`,
			message: "Invalid title: required field",
		},
		{
			name:    "blank title",
			body:    `{"title": "   "}`,
			message: "Invalid title: required field",
		},
		{
			name:    "negative estimate",
			body:    `{"title": "x", "estimated_minutes": -5}`,
			message: "Invalid estimated_minutes: too small",
		},
		{
			name:    "unknown field",
			body:    `{"title": "x", "priority": "high"}`,
			message: "Invalid request format",
		},
		{
			name:    "malformed json",
			body:    `{"title": `,
			message: "Invalid request format",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newAPIFixture(t, nil)

			rec := f.do(t, http.MethodPost, "/api/tasks", ownerToken, tc.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.message, decodeBody[shared.ErrorResponse](t, rec).Error)
			assert.Empty(t, f.notifier.calls())
		})
	}

	t.Run("empty body", func(t *testing.T) {
		f := newAPIFixture(t, nil)

		rec := f.do(t, http.MethodPost, "/api/tasks", ownerToken, "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Request body is required", decodeBody[shared.ErrorResponse](t, rec).Error)
	})
}

func TestTaskHandler_Unauthenticated(t *testing.T) {
	f := newAPIFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/tasks", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/tasks", "forged", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token", decodeBody[shared.ErrorResponse](t, rec).Error)
}

func TestTaskHandler_ListAndGet(t *testing.T) {
	f := newAPIFixture(t, nil)

	first := decodeBody[TaskResponse](t, f.do(t, http.MethodPost, "/api/tasks", ownerToken, `{"title": "one"}`))
	second := decodeBody[TaskResponse](t, f.do(t, http.MethodPost, "/api/tasks", ownerToken, `{"title": "two"}`))
	f.do(t, http.MethodPost, "/api/tasks", otherToken, `{"title": "someone else's"}`)

	rec := f.do(t, http.MethodGet, "/api/tasks", ownerToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]TaskResponse](t, rec)
	require.Len(t, list, 2)
	assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, []uuid.UUID{list[0].ID, list[1].ID})

	rec = f.do(t, http.MethodGet, "/api/tasks/"+first.ID.String(), ownerToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "one", decodeBody[TaskResponse](t, rec).Title)

	rec = f.do(t, http.MethodGet, "/api/tasks/"+first.ID.String(), otherToken, "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "foreign tasks are invisible")
	assert.Equal(t, "Task not found", decodeBody[shared.ErrorResponse](t, rec).Error)

	rec = f.do(t, http.MethodGet, "/api/tasks/not-a-uuid", ownerToken, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid id: has invalid format", decodeBody[shared.ErrorResponse](t, rec).Error)
}

func TestTaskHandler_ListEmpty(t *testing.T) {
	f := newAPIFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/tasks", ownerToken, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestTaskHandler_UpdateTask(t *testing.T) {
	f := newAPIFixture(t, nil)
	created := decodeBody[TaskResponse](t, f.do(t, http.MethodPost, "/api/tasks", ownerToken, `{"title": "draft"}`))
	path := "/api/tasks/" + created.ID.String()

	rec := f.do(t, http.MethodPut, path, ownerToken, `{"status": "In Progress", "estimated_minutes": 20}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[TaskResponse](t, rec)
	assert.Equal(t, "draft", updated.Title, "omitted fields stay unchanged")
	assert.Equal(t, "In Progress", updated.Status)
	require.NotNil(t, updated.EstimatedMinutes)
	assert.Equal(t, 20, *updated.EstimatedMinutes)
	assert.Len(t, f.notifier.calls(), 2)

	rec = f.do(t, http.MethodPut, path, ownerToken, `{"status": "Blocked"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid status: invalid value", decodeBody[shared.ErrorResponse](t, rec).Error)

	rec = f.do(t, http.MethodPut, path, otherToken, `{"status": "Done"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Len(t, f.notifier.calls(), 2, "failed updates do not trigger regeneration")
}

func TestTaskHandler_DeleteTask(t *testing.T) {
	f := newAPIFixture(t, nil)
	created := decodeBody[TaskResponse](t, f.do(t, http.MethodPost, "/api/tasks", ownerToken, `{"title": "obsolete"}`))
	path := "/api/tasks/" + created.ID.String()

	rec := f.do(t, http.MethodDelete, path, otherToken, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodDelete, path, ownerToken, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = f.do(t, http.MethodGet, path, ownerToken, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, []uuid.UUID{f.ownerID, f.ownerID}, f.notifier.calls())
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(shared.TraceIDHeader))
}
