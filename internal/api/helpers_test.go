package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/dayplan-api/internal/mocks"
	"github.com/phrazzld/dayplan-api/internal/service"
	"github.com/phrazzld/dayplan-api/internal/service/auth"
	"github.com/phrazzld/dayplan-api/internal/service/regeneration"
	"github.com/stretchr/testify/require"
)

const (
	ownerToken = "owner-token"
	otherToken = "other-token"
)

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

// apiFixture wires the real services over in-memory stores behind the
// router.
type apiFixture struct {
	router   http.Handler
	tasks    *mocks.MockTaskStore
	plans    *mocks.MockPlanStore
	gen      *mocks.MockGenerator
	notifier *recordingNotifier
	planSvc  *service.PlanService
	orch     *regeneration.Orchestrator
	ownerID  uuid.UUID
	otherID  uuid.UUID
}

func newAPIFixture(t *testing.T, gen *mocks.MockGenerator) *apiFixture {
	t.Helper()

	if gen == nil {
		gen = mocks.NewMockGenerator()
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &apiFixture{
		tasks:    mocks.NewMockTaskStore(),
		plans:    mocks.NewMockPlanStore(),
		gen:      gen,
		notifier: &recordingNotifier{},
		ownerID:  uuid.New(),
		otherID:  uuid.New(),
	}

	orch, err := regeneration.NewOrchestrator(f.tasks, f.plans, nil, gen, regeneration.Config{}, log)
	require.NoError(t, err)
	f.orch = orch

	taskSvc, err := service.NewTaskService(f.tasks, f.notifier, log)
	require.NoError(t, err)

	planSvc, err := service.NewPlanService(f.plans, orch, f.notifier, nil, gen, log)
	require.NoError(t, err)
	f.planSvc = planSvc
	t.Cleanup(planSvc.Wait)

	jwtService := &mocks.MockJWTService{
		ValidateTokenFn: func(_ context.Context, token string) (*auth.Claims, error) {
			switch token {
			case ownerToken:
				return &auth.Claims{UserID: f.ownerID}, nil
			case otherToken:
				return &auth.Claims{UserID: f.otherID}, nil
			default:
				return nil, auth.ErrInvalidToken
			}
		},
	}

	f.router = NewRouter(RouterDeps{
		Tasks:      taskSvc,
		Plans:      planSvc,
		Suggester:  planSvc,
		JWTService: jwtService,
		Logger:     log,
	})
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

// sseEvent is one parsed Server-Sent Event.
type sseEvent struct {
	Name string
	Data string
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()

	var events []sseEvent
	for _, block := range strings.Split(body, "\n\n") {
		if strings.TrimSpace(block) == "" {
			continue
		}
		var ev sseEvent
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.Name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.Data = strings.TrimPrefix(line, "data: ")
			}
		}
		events = append(events, ev)
	}
	return events
}
