package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/phrazzld/dayplan-api/internal/api/shared"
	"github.com/phrazzld/dayplan-api/internal/domain"
	"github.com/phrazzld/dayplan-api/internal/platform/logger"
	"github.com/phrazzld/dayplan-api/internal/redact"
	"github.com/phrazzld/dayplan-api/internal/service"
)

const (
	// wsWriteWait bounds each WebSocket write.
	wsWriteWait = 10 * time.Second

	// wsMaxMessageBytes bounds frames read from the client, which only
	// ever sends control frames.
	wsMaxMessageBytes = 512
)

// PlanManager is the plan service as used by PlanHandler.
type PlanManager interface {
	GetCurrentPlan(ctx context.Context, ownerID uuid.UUID) (*domain.DailyPlan, error)
	GetPlanForDate(ctx context.Context, ownerID uuid.UUID, date time.Time) (*domain.DailyPlan, error)
	ListPlanHistory(ctx context.Context, ownerID uuid.UUID) ([]*domain.DailyPlan, error)
	RequestRegeneration(ctx context.Context, ownerID uuid.UUID)
	StreamRegenerate(ctx context.Context, ownerID uuid.UUID) (*service.PlanStream, error)
}

var _ PlanManager = (*service.PlanService)(nil)

// PlanHandler serves /api/plans.
type PlanHandler struct {
	plans    PlanManager
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewPlanHandler creates a PlanHandler. WebSocket upgrades use gorilla's
// same-origin check.
func NewPlanHandler(plans PlanManager, logger *slog.Logger) *PlanHandler {
	if plans == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("plans cannot be nil for PlanHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PlanHandler{
		plans: plans,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		logger: logger.With(slog.String("component", "plan_handler")),
	}
}

// GetCurrentPlan handles GET /api/plans/current.
func (h *PlanHandler) GetCurrentPlan(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	plan, err := h.plans.GetCurrentPlan(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get current plan")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, planToResponse(plan))
}

// GetPlanForDate handles GET /api/plans/{date}.
func (h *PlanHandler) GetPlanForDate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	date, err := getPathDate(r, "date")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	plan, err := h.plans.GetPlanForDate(r.Context(), userID, date)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get plan")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, planToResponse(plan))
}

// ListPlans handles GET /api/plans, newest date first.
func (h *PlanHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	plans, err := h.plans.ListPlanHistory(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list plans")
		return
	}

	response := make([]PlanResponse, 0, len(plans))
	for _, p := range plans {
		response = append(response, planToResponse(p))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, response)
}

// RequestRegeneration handles POST /api/plans/regenerate. The run happens
// in the background.
func (h *PlanHandler) RequestRegeneration(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	h.plans.RequestRegeneration(r.Context(), userID)
	shared.RespondWithJSON(w, r, http.StatusAccepted, RegenerateResponse{Status: "accepted"})
}

// StreamPlan handles GET /api/plans/stream. It regenerates today's plan and
// relays each committed fragment as an SSE event. A client that disconnects
// stops receiving events; the run still completes.
func (h *PlanHandler) StreamPlan(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	sse, ok := newSSEWriter(w)
	if !ok {
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	stream, err := h.plans.StreamRegenerate(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to start plan regeneration")
		return
	}

	sse.Start()
	if err := sse.Event(streamEventStarted, StreamStarted{PlanID: stream.PlanID}); err != nil {
		log.Debug("plan stream client went away", redact.ErrorAttr(err))
		return
	}

	ctx := r.Context()
	count := 0
	for fragment, err := range stream.Fragments(ctx) {
		if err != nil {
			log.Warn("plan stream ended with error", redact.ErrorAttr(err), slog.Int("fragments", count))
			_ = sse.Event(streamEventError, StreamError{Error: GetSafeErrorMessage(err)})
			return
		}
		if err := sse.Event(streamEventFragment, StreamFragment{Text: fragment}); err != nil {
			log.Debug("plan stream client went away", redact.ErrorAttr(err))
			return
		}
		count++
	}

	if ctx.Err() != nil {
		log.Debug("plan stream client disconnected", slog.Int("fragments", count))
		return
	}
	_ = sse.Event(streamEventDone, StreamStarted{PlanID: stream.PlanID})
}

// StreamPlanWebSocket handles GET /api/plans/stream/ws. It carries the same
// stream as StreamPlan as JSON StreamMessage frames.
func (h *PlanHandler) StreamPlanWebSocket(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if !websocket.IsWebSocketUpgrade(r) {
		shared.RespondWithError(w, r, http.StatusBadRequest, "WebSocket upgrade required")
		return
	}

	stream, err := h.plans.StreamRegenerate(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to start plan regeneration")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		log.Warn("websocket upgrade failed", redact.ErrorAttr(err))
		return
	}
	defer func() { _ = conn.Close() }()

	// The server no longer watches a hijacked connection, so a read loop
	// detects the client going away.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	conn.SetReadLimit(wsMaxMessageBytes)
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(msg StreamMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(msg)
	}

	planID := stream.PlanID
	if err := send(StreamMessage{Type: streamEventStarted, PlanID: &planID}); err != nil {
		log.Debug("plan websocket client went away", redact.ErrorAttr(err))
		return
	}

	count := 0
	for fragment, err := range stream.Fragments(ctx) {
		if err != nil {
			log.Warn("plan stream ended with error", redact.ErrorAttr(err), slog.Int("fragments", count))
			_ = send(StreamMessage{Type: streamEventError, Error: GetSafeErrorMessage(err)})
			closeWebSocket(conn, websocket.CloseInternalServerErr)
			return
		}
		if err := send(StreamMessage{Type: streamEventFragment, Text: fragment}); err != nil {
			log.Debug("plan websocket client went away", redact.ErrorAttr(err))
			return
		}
		count++
	}

	if ctx.Err() != nil {
		log.Debug("plan websocket client disconnected", slog.Int("fragments", count))
		return
	}
	_ = send(StreamMessage{Type: streamEventDone, PlanID: &planID})
	closeWebSocket(conn, websocket.CloseNormalClosure)
}

func closeWebSocket(conn *websocket.Conn, code int) {
	msg := websocket.FormatCloseMessage(code, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}
