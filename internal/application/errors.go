package application

import "errors"

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyScheduled is returned when a schedule is requested for a session that already has one.
	ErrAlreadyScheduled = errors.New("application: session already scheduled")
	// ErrNotScheduled is returned when an operation needs a schedule the session does not have.
	ErrNotScheduled = errors.New("application: session not scheduled")
	// ErrInvalidTransition is returned when the requested change does not follow the session lifecycle.
	ErrInvalidTransition = errors.New("application: invalid status transition")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// Field returns the message recorded for field, if any.
func (v *ValidationError) Field(field string) string {
	if v == nil {
		return ""
	}
	return v.FieldErrors[field]
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}
