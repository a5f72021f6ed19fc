package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/example/coaching-scheduler/internal/application"
)

const (
	requestIDHeader   = "X-Request-ID"
	assignerKeyHeader = "X-Assigner-Key"
)

// AssignerAuthenticator resolves an assigner key to a principal.
type AssignerAuthenticator interface {
	Authenticate(ctx context.Context, key string) (application.Principal, error)
}

// RequestObserver receives one observation per handled request.
type RequestObserver interface {
	ObserveHTTP(method, route string, status int, elapsed time.Duration)
}

// RequireAssignerKey rejects requests whose X-Assigner-Key header does not
// authenticate and attaches the assigner principal otherwise.
func RequireAssignerKey(auth AssignerAuthenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(assignerKeyHeader)
			if key == "" {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingAssignerKey)
				return
			}
			if auth == nil {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, errInvalidAssignerKey)
				return
			}

			principal, err := auth.Authenticate(r.Context(), key)
			if err != nil {
				switch {
				case errors.Is(err, application.ErrUnauthorized):
					responder.writeError(r.Context(), w, http.StatusUnauthorized, errInvalidAssignerKey)
				default:
					responder.loggerFor(r.Context()).ErrorContext(r.Context(), "assigner authentication failed", "error", err)
					responder.writeError(r.Context(), w, http.StatusInternalServerError, errAssignerCheckFailed)
				}
				return
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// RequestLogger assigns a request ID (reusing a well-formed incoming
// X-Request-ID), attaches a request scoped logger, and records the outcome.
// observer may be nil.
func RequestLogger(base *slog.Logger, observer RequestObserver) func(http.Handler) http.Handler {
	base = defaultLogger(base)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)

			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)
			ctx := ContextWithLogger(ContextWithRequestID(r.Context(), id), logger)
			rec := &statusRecorder{ResponseWriter: w}
			req := r.WithContext(ctx)

			start := time.Now()
			logger.DebugContext(ctx, "request started")
			next.ServeHTTP(rec, req)
			elapsed := time.Since(start)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			// ServeMux records the matched pattern on the request it was handed.
			route := req.Pattern
			if route == "" {
				route = "unmatched"
			}
			if observer != nil {
				observer.ObserveHTTP(r.Method, route, status, elapsed)
			}
			logger.InfoContext(ctx, "request completed", "status", status, "route", route, "duration", elapsed)
		})
	}
}
