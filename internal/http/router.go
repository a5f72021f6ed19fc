package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Schedules *ScheduleHandler
	// Assigner guards the assigner-only routes. When nil they always answer 401.
	Assigner   func(http.Handler) http.Handler
	Health     HealthChecker
	Metrics    http.Handler
	Logger     *slog.Logger
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	responder := newResponder(cfg.Logger)

	assigner := cfg.Assigner
	if assigner == nil {
		assigner = RequireAssignerKey(nil, cfg.Logger)
	}
	guarded := func(h http.HandlerFunc) http.Handler {
		return assigner(h)
	}

	if cfg.Schedules != nil {
		const schedulePath = "/sessions/{id}/schedule"
		mux.HandleFunc("GET "+schedulePath, cfg.Schedules.Get)
		mux.HandleFunc("POST "+schedulePath, cfg.Schedules.Request)
		mux.HandleFunc("PUT "+schedulePath, cfg.Schedules.Complete)
		mux.Handle("DELETE "+schedulePath, guarded(cfg.Schedules.Reset))
		mux.HandleFunc(schedulePath, func(w http.ResponseWriter, r *http.Request) {
			methodNotAllowed(w, r, responder, http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete)
		})

		mux.Handle("PUT "+schedulePath+"/assignment", guarded(cfg.Schedules.Assign))
		mux.HandleFunc(schedulePath+"/assignment", func(w http.ResponseWriter, r *http.Request) {
			methodNotAllowed(w, r, responder, http.MethodPut)
		})

		mux.Handle("GET /schedules", guarded(cfg.Schedules.List))
		mux.HandleFunc("/schedules", func(w http.ResponseWriter, r *http.Request) {
			methodNotAllowed(w, r, responder, http.MethodGet)
		})
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health.Ping(r.Context()); err != nil {
				responder.loggerFor(r.Context()).ErrorContext(r.Context(), "health check failed", "error", err)
				responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		responder.writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		responder.writeJSON(r.Context(), w, http.StatusNotFound, errorResponse{Error: statusMessage(http.StatusNotFound)})
	})

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, responder responder, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	responder.writeJSON(r.Context(), w, http.StatusMethodNotAllowed, errorResponse{Error: statusMessage(http.StatusMethodNotAllowed)})
}
