package api

import (
	"context"
	"iter"
	"log/slog"
	"net/http"

	"github.com/phrazzld/dayplan-api/internal/api/shared"
	"github.com/phrazzld/dayplan-api/internal/platform/logger"
	"github.com/phrazzld/dayplan-api/internal/redact"
	"github.com/phrazzld/dayplan-api/internal/service"
)

// Suggester drafts task descriptions.
type Suggester interface {
	SuggestDescription(ctx context.Context, title string) iter.Seq2[string, error]
}

var _ Suggester = (*service.PlanService)(nil)

// SuggestionHandler serves /api/suggestions.
type SuggestionHandler struct {
	suggester Suggester
	logger    *slog.Logger
}

// NewSuggestionHandler creates a SuggestionHandler.
func NewSuggestionHandler(suggester Suggester, logger *slog.Logger) *SuggestionHandler {
	if suggester == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("suggester cannot be nil for SuggestionHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SuggestionHandler{
		suggester: suggester,
		logger:    logger.With(slog.String("component", "suggestion_handler")),
	}
}

// SuggestDescription handles POST /api/suggestions, streaming the drafted
// description as SSE fragment events.
func (h *SuggestionHandler) SuggestDescription(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	if _, ok := requireUserID(w, r); !ok {
		return
	}

	var req SuggestionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	sse, ok := newSSEWriter(w)
	if !ok {
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	next, stop := iter.Pull2(h.suggester.SuggestDescription(r.Context(), req.Title))
	defer stop()

	// The first step decides between an HTTP error and a stream.
	fragment, err, more := next()
	if err != nil {
		HandleAPIError(w, r, err, "Failed to generate suggestion")
		return
	}

	sse.Start()
	for more {
		if err != nil {
			log.Warn("suggestion stream failed", redact.ErrorAttr(err))
			_ = sse.Event(streamEventError, StreamError{Error: GetSafeErrorMessage(err)})
			return
		}
		if err := sse.Event(streamEventFragment, StreamFragment{Text: fragment}); err != nil {
			log.Debug("suggestion client went away", redact.ErrorAttr(err))
			return
		}
		fragment, err, more = next()
	}

	if r.Context().Err() != nil {
		return
	}
	_ = sse.Event(streamEventDone, struct{}{})
}
