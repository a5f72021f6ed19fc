package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/coaching-scheduler/internal/application"
)

var (
	errBadRequestBody      = errors.New("request body is not valid JSON")
	errInvalidSessionID    = errors.New("invalid session id")
	errMissingAssignerKey  = errors.New("assigner key is required")
	errInvalidAssignerKey  = errors.New("assigner key is invalid")
	errAssignerCheckFailed = errors.New("assigner key could not be verified")
)

type errorResponse struct {
	Error     string            `json:"error"`
	ErrorCode string            `json:"error_code,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	return responder{logger: defaultLogger(logger)}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := statusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request rejected", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Error: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	switch {
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			Error:     "the assigner role is required for this operation",
			ErrorCode: "FORBIDDEN",
		})
	case errors.Is(err, application.ErrAlreadyScheduled):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			Error:     "session already scheduled",
			ErrorCode: "ALREADY_SCHEDULED",
		})
	case errors.Is(err, application.ErrNotScheduled):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			Error:     "session has not been scheduled",
			ErrorCode: "NOT_SCHEDULED",
		})
	case errors.Is(err, application.ErrInvalidTransition):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			Error:     "session is already completed",
			ErrorCode: "INVALID_TRANSITION",
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Error: statusMessage(http.StatusNotFound)})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		r.writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{Error: statusMessage(http.StatusServiceUnavailable)})
	default:
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
				Error:     firstFieldMessage(vErr.FieldErrors),
				ErrorCode: "VALIDATION_FAILED",
				Fields:    vErr.FieldErrors,
			})
			return
		}

		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "error", err, "error_kind", application.ErrorKind(err))
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: statusMessage(http.StatusInternalServerError)})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "the request is malformed"
	case http.StatusUnauthorized:
		return "authentication is required"
	case http.StatusForbidden:
		return "this operation is not permitted"
	case http.StatusNotFound:
		return "the requested resource was not found"
	case http.StatusMethodNotAllowed:
		return "method not allowed"
	case http.StatusConflict:
		return "the request conflicts with the current state of the session"
	case http.StatusUnprocessableEntity:
		return "the request contains invalid values"
	case http.StatusServiceUnavailable:
		return "the service is temporarily unavailable"
	default:
		return "internal server error"
	}
}

// firstFieldMessage picks a deterministic summary for the top-level error text.
func firstFieldMessage(fields map[string]string) string {
	if len(fields) == 0 {
		return statusMessage(http.StatusUnprocessableEntity)
	}
	var first string
	for field := range fields {
		if first == "" || field < first {
			first = field
		}
	}
	return fields[first]
}
