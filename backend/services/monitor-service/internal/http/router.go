package httpserver

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/http/handlers"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/http/middleware"
)

// Routes aggregates handlers for the HTTP server.
type Routes struct {
	Sensors   *handlers.SensorsHandlers
	Alerts    *handlers.AlertsHandlers
	Auth      *handlers.AuthHandlers
	Events    http.Handler
	WebSocket http.Handler
	Health    http.HandlerFunc
	Metrics   http.Handler
}

// RouterOptions configures mounting and cross-cutting middleware.
type RouterOptions struct {
	BasePath    string
	CORSOrigins []string
	// RequireAuth guards mutating routes when set.
	RequireAuth func(http.Handler) http.Handler
	Logger      *zap.Logger
}

// NewRouter wires all HTTP routes.
func NewRouter(routes Routes, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	guard := opts.RequireAuth
	if guard == nil {
		guard = func(next http.Handler) http.Handler { return next }
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RecoveryMiddleware(logger))
	r.Use(middleware.LoggingMiddleware(logger))
	r.Use(middleware.MetricsMiddleware)
	r.Use(middleware.CORSMiddleware(opts.CORSOrigins))

	if routes.Health != nil {
		r.Get("/health", routes.Health)
	}
	if routes.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", routes.Metrics)
	}

	api := chi.NewRouter()
	if routes.Auth != nil {
		api.Route("/auth", func(ar chi.Router) {
			ar.Post("/register", routes.Auth.Register)
			ar.Post("/login", routes.Auth.Login)
			ar.Get("/me", routes.Auth.Me)
			ar.Post("/logout", routes.Auth.Logout)
		})
	}

	if routes.Sensors != nil {
		api.Route("/sensors", func(sr chi.Router) {
			sr.Get("/", routes.Sensors.List)
			sr.With(guard).Post("/", routes.Sensors.Create)
			if routes.Events != nil {
				sr.Method(http.MethodGet, "/events", routes.Events)
			}
			if routes.WebSocket != nil {
				sr.Method(http.MethodGet, "/ws", routes.WebSocket)
			}
			sr.Route("/{id}", func(ir chi.Router) {
				ir.Get("/", routes.Sensors.Get)
				ir.With(guard).Put("/", routes.Sensors.Update)
				ir.With(guard).Delete("/", routes.Sensors.Delete)
				ir.Get("/datapoints", routes.Sensors.Datapoints)
				ir.With(guard).Post("/datapoints", routes.Sensors.Ingest)
			})
		})
	}

	if routes.Alerts != nil {
		api.Route("/alerts", func(ar chi.Router) {
			ar.Get("/", routes.Alerts.List)
			ar.With(guard).Post("/", routes.Alerts.Create)
			ar.Route("/{id}", func(ir chi.Router) {
				ir.Get("/", routes.Alerts.Get)
				ir.With(guard).Put("/", routes.Alerts.Update)
				ir.With(guard).Delete("/", routes.Alerts.Delete)
			})
		})
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Not found"}` + "\n"))
	})

	base := "/" + strings.Trim(opts.BasePath, "/")
	if base == "/" {
		r.Mount("/", api)
	} else {
		r.Mount(base, api)
	}
	return r
}
