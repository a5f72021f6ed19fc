package scheduling

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidScheduleTime is returned when a request names a non-future instant.
	ErrInvalidScheduleTime = errors.New("scheduling: session time must be in the future")
	// ErrRequestFailed is returned when the store rejects or fails a schedule request.
	ErrRequestFailed = errors.New("scheduling: schedule request failed")
	// ErrPollFailed marks a failed periodic status fetch. It is logged, never returned to users.
	ErrPollFailed = errors.New("scheduling: status poll failed")
	// ErrCompletionWriteFailed marks a failed completion write.
	ErrCompletionWriteFailed = errors.New("scheduling: completion write failed")
	// ErrAlreadyScheduled is returned when a request is submitted for a session that already has one.
	ErrAlreadyScheduled = errors.New("scheduling: session already scheduled")
	// ErrRequestInFlight is returned when a second request is submitted while one is outstanding.
	ErrRequestInFlight = errors.New("scheduling: schedule request already in flight")
	// ErrJoinUnavailable is returned when the meeting cannot be joined right now.
	ErrJoinUnavailable = errors.New("scheduling: meeting is not joinable")
	// ErrControllerStopped is returned by operations on a controller that is no longer running.
	ErrControllerStopped = errors.New("scheduling: controller stopped")
	// ErrControllerRunning is returned when Run is invoked twice.
	ErrControllerRunning = errors.New("scheduling: controller already running")
)

// RequestFailedError carries the store's explanation for a failed schedule request.
type RequestFailedError struct {
	Message string
	Err     error
}

// Error implements the error interface.
func (e *RequestFailedError) Error() string {
	if e == nil {
		return ""
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		return ErrRequestFailed.Error() + ": " + msg
	}
	return ErrRequestFailed.Error()
}

// Unwrap exposes the transport error.
func (e *RequestFailedError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrRequestFailed.
func (e *RequestFailedError) Is(target error) bool {
	return target == ErrRequestFailed
}

// UserMessage returns the text to surface to the participant.
func (e *RequestFailedError) UserMessage() string {
	if e == nil {
		return ""
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		return msg
	}
	return "The session could not be scheduled. Please try again."
}

// serverMessager is implemented by store errors that carry a server-provided explanation.
type serverMessager interface {
	ServerMessage() string
}

func newRequestFailed(err error) *RequestFailedError {
	out := &RequestFailedError{Err: err}
	var sm serverMessager
	if errors.As(err, &sm) {
		out.Message = sm.ServerMessage()
	}
	return out
}

// ErrorKind maps scheduling errors to a stable logging label.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidScheduleTime):
		return "invalid_schedule_time"
	case errors.Is(err, ErrRequestFailed):
		return "request_failed"
	case errors.Is(err, ErrPollFailed):
		return "poll_failed"
	case errors.Is(err, ErrCompletionWriteFailed):
		return "completion_write_failed"
	case errors.Is(err, ErrAlreadyScheduled):
		return "already_scheduled"
	case errors.Is(err, ErrRequestInFlight):
		return "request_in_flight"
	case errors.Is(err, ErrJoinUnavailable):
		return "join_unavailable"
	case errors.Is(err, ErrControllerStopped):
		return "controller_stopped"
	}
	return "unexpected"
}
