package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/phrazzld/dayplan-api/internal/api/shared"
	"github.com/phrazzld/dayplan-api/internal/domain"
	"github.com/phrazzld/dayplan-api/internal/generation"
	"github.com/phrazzld/dayplan-api/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanHandler_GetCurrentPlan(t *testing.T) {
	ctx := context.Background()
	f := newAPIFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/plans/current", ownerToken, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Plan not found", decodeBody[shared.ErrorResponse](t, rec).Error)

	today := f.orch.Today()
	_, err := f.plans.Upsert(ctx, f.ownerID, today, "9:00 write report")
	require.NoError(t, err)

	rec = f.do(t, http.MethodGet, "/api/plans/current", ownerToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	plan := decodeBody[PlanResponse](t, rec)
	assert.Equal(t, "9:00 write report", plan.Plan)
	assert.Equal(t, today.Format(domain.PlanDateLayout), plan.Date)
	assert.False(t, plan.IsPlaceholder)

	rec = f.do(t, http.MethodGet, "/api/plans/current", otherToken, "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "plans are per owner")
}

func TestPlanHandler_ListAndDate(t *testing.T) {
	ctx := context.Background()
	f := newAPIFixture(t, nil)

	today := f.orch.Today()
	tomorrow := today.AddDate(0, 0, 1)
	_, err := f.plans.Upsert(ctx, f.ownerID, today, "today's plan")
	require.NoError(t, err)
	_, err = f.plans.Upsert(ctx, f.ownerID, tomorrow, domain.PlaceholderText)
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/plans", ownerToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]PlanResponse](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, tomorrow.Format(domain.PlanDateLayout), list[0].Date, "newest date first")
	assert.True(t, list[0].IsPlaceholder)
	assert.Equal(t, "today's plan", list[1].Plan)

	rec = f.do(t, http.MethodGet, "/api/plans/"+today.Format(domain.PlanDateLayout), ownerToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "today's plan", decodeBody[PlanResponse](t, rec).Plan)

	rec = f.do(t, http.MethodGet, "/api/plans/"+today.AddDate(0, 0, 5).Format(domain.PlanDateLayout), ownerToken, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/plans/2025-13-45", ownerToken, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid date: must be formatted as YYYY-MM-DD", decodeBody[shared.ErrorResponse](t, rec).Error)

	rec = f.do(t, http.MethodGet, "/api/plans", otherToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestPlanHandler_RequestRegeneration(t *testing.T) {
	f := newAPIFixture(t, mocks.NewMockGenerator("plan"))

	rec := f.do(t, http.MethodPost, "/api/plans/regenerate", ownerToken, "")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "accepted", decodeBody[RegenerateResponse](t, rec).Status)
	assert.Equal(t, []uuid.UUID{f.ownerID}, f.notifier.calls())
	assert.Equal(t, 0, f.gen.Calls(), "the run is scheduled, not executed inline")
}

func TestPlanHandler_StreamPlan(t *testing.T) {
	t.Run("relays committed fragments", func(t *testing.T) {
		f := newAPIFixture(t, mocks.NewMockGenerator("Plan\n", "for ", "today"))

		rec := f.do(t, http.MethodGet, "/api/plans/stream", ownerToken, "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

		events := parseSSE(t, rec.Body.String())
		require.Len(t, events, 5, rec.Body.String())

		var started StreamStarted
		assert.Equal(t, streamEventStarted, events[0].Name)
		require.NoError(t, json.Unmarshal([]byte(events[0].Data), &started))
		assert.NotEqual(t, uuid.Nil, started.PlanID)

		var texts []string
		for _, ev := range events[1:4] {
			assert.Equal(t, streamEventFragment, ev.Name)
			var fragment StreamFragment
			require.NoError(t, json.Unmarshal([]byte(ev.Data), &fragment))
			texts = append(texts, fragment.Text)
		}
		assert.Equal(t, []string{"Plan\n", "for ", "today"}, texts)
		assert.Equal(t, streamEventDone, events[4].Name)

		f.planSvc.Wait()
		plan, ok := f.plans.Plan(started.PlanID)
		require.True(t, ok)
		assert.Equal(t, "Plan\nfor today", plan.Plan)
	})

	t.Run("generation failure ends with an error event", func(t *testing.T) {
		gen := &mocks.MockGenerator{Streams: [][]mocks.StreamStep{{
			{Fragment: "partial"},
			{Err: generation.ErrTransientFailure},
		}}}
		f := newAPIFixture(t, gen)

		rec := f.do(t, http.MethodGet, "/api/plans/stream", ownerToken, "")

		require.Equal(t, http.StatusOK, rec.Code)
		events := parseSSE(t, rec.Body.String())
		require.Len(t, events, 3, rec.Body.String())
		assert.Equal(t, streamEventFragment, events[1].Name)
		assert.Equal(t, streamEventError, events[2].Name)
		assert.JSONEq(t, `{"error":"Plan generation failed"}`, events[2].Data)

		f.planSvc.Wait()
		current, err := f.planSvc.GetCurrentPlan(context.Background(), f.ownerID)
		require.NoError(t, err)
		assert.Equal(t, "partial", current.Plan, "committed fragments survive the failure")
	})

	t.Run("placeholder failure is an HTTP error", func(t *testing.T) {
		f := newAPIFixture(t, mocks.NewMockGenerator("never"))
		f.plans.UpsertFn = func(context.Context, uuid.UUID, time.Time, string) error {
			return errors.New("connection reset")
		}

		rec := f.do(t, http.MethodGet, "/api/plans/stream", ownerToken, "")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Equal(t, "Failed to start plan regeneration", decodeBody[shared.ErrorResponse](t, rec).Error)
		assert.Equal(t, 0, f.gen.Calls())
	})

	t.Run("requires authentication", func(t *testing.T) {
		f := newAPIFixture(t, mocks.NewMockGenerator("x"))

		rec := f.do(t, http.MethodGet, "/api/plans/stream", "", "")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, 0, f.plans.Count())
	})
}

func wsURL(server *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + path
}

func TestPlanHandler_StreamPlanWebSocket(t *testing.T) {
	t.Run("relays committed fragments", func(t *testing.T) {
		f := newAPIFixture(t, mocks.NewMockGenerator("a", "b", "c"))
		server := httptest.NewServer(f.router)
		defer server.Close()

		conn, resp, err := websocket.DefaultDialer.Dial(
			wsURL(server, "/api/plans/stream/ws?access_token="+ownerToken), nil)
		require.NoError(t, err)
		defer func() { _ = conn.Close() }()
		_ = resp.Body.Close()

		var messages []StreamMessage
		for {
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			var msg StreamMessage
			if err := conn.ReadJSON(&msg); err != nil {
				assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected read error: %v", err)
				break
			}
			messages = append(messages, msg)
		}

		require.Len(t, messages, 5)
		assert.Equal(t, streamEventStarted, messages[0].Type)
		require.NotNil(t, messages[0].PlanID)
		assert.Equal(t, "a", messages[1].Text)
		assert.Equal(t, "b", messages[2].Text)
		assert.Equal(t, "c", messages[3].Text)
		assert.Equal(t, streamEventDone, messages[4].Type)

		f.planSvc.Wait()
		plan, ok := f.plans.Plan(*messages[0].PlanID)
		require.True(t, ok)
		assert.Equal(t, "abc", plan.Plan)
	})

	t.Run("client disconnect does not stop persistence", func(t *testing.T) {
		gen := mocks.NewMockGenerator("a", "b", "c")
		gen.Delay = 20 * time.Millisecond
		f := newAPIFixture(t, gen)
		server := httptest.NewServer(f.router)
		defer server.Close()

		conn, resp, err := websocket.DefaultDialer.Dial(
			wsURL(server, "/api/plans/stream/ws?access_token="+ownerToken), nil)
		require.NoError(t, err)
		_ = resp.Body.Close()

		var started StreamMessage
		require.NoError(t, conn.ReadJSON(&started))
		require.NotNil(t, started.PlanID)
		_ = conn.Close()

		f.planSvc.Wait()
		plan, ok := f.plans.Plan(*started.PlanID)
		require.True(t, ok)
		assert.Equal(t, "abc", plan.Plan)
	})

	t.Run("rejects unauthenticated upgrades", func(t *testing.T) {
		f := newAPIFixture(t, mocks.NewMockGenerator("a"))
		server := httptest.NewServer(f.router)
		defer server.Close()

		_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, "/api/plans/stream/ws"), nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, 0, f.plans.Count())
	})

	t.Run("plain GET is rejected before a run starts", func(t *testing.T) {
		f := newAPIFixture(t, mocks.NewMockGenerator("a"))

		rec := f.do(t, http.MethodGet, "/api/plans/stream/ws", ownerToken, "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, 0, f.plans.Count())
	})
}
