package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	apiMiddleware "github.com/phrazzld/dayplan-api/internal/api/middleware"
	"github.com/phrazzld/dayplan-api/internal/service/auth"
)

// RouterDeps are the collaborators behind the HTTP surface.
type RouterDeps struct {
	Tasks      TaskManager
	Plans      PlanManager
	Suggester  Suggester
	JWTService auth.JWTService
	Logger     *slog.Logger

	// RequestLogging enables chi's access log.
	RequestLogging bool
}

// NewRouter builds the chi router for every /api route and /health.
func NewRouter(deps RouterDeps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	taskHandler := NewTaskHandler(deps.Tasks, log)
	planHandler := NewPlanHandler(deps.Plans, log)
	suggestionHandler := NewSuggestionHandler(deps.Suggester, log)
	authMiddleware := apiMiddleware.NewAuthMiddleware(deps.JWTService)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if deps.RequestLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware(log))

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", taskHandler.CreateTask)
			r.Get("/", taskHandler.ListTasks)
			r.Get("/{id}", taskHandler.GetTask)
			r.Put("/{id}", taskHandler.UpdateTask)
			r.Delete("/{id}", taskHandler.DeleteTask)
		})

		r.Route("/plans", func(r chi.Router) {
			r.Get("/", planHandler.ListPlans)
			r.Get("/current", planHandler.GetCurrentPlan)
			r.Post("/regenerate", planHandler.RequestRegeneration)
			r.Get("/stream", planHandler.StreamPlan)
			r.Get("/stream/ws", planHandler.StreamPlanWebSocket)
			r.Get("/{date}", planHandler.GetPlanForDate)
		})

		r.Post("/suggestions", suggestionHandler.SuggestDescription)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
