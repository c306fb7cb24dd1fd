package service

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/dayplan-api/internal/events"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingNotifier struct {
	mu     sync.Mutex
	owners []uuid.UUID
}

func (n *recordingNotifier) OnTaskChanged(_ context.Context, ownerID uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.owners = append(n.owners, ownerID)
}

func (n *recordingNotifier) calls() []uuid.UUID {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]uuid.UUID(nil), n.owners...)
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []*events.JobRequestEvent
	ctxErr []error
	err    error
}

func (e *recordingEmitter) EmitEvent(ctx context.Context, event *events.JobRequestEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	e.ctxErr = append(e.ctxErr, ctx.Err())
	return e.err
}
