package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a record with the same key already exists.
	ErrDuplicate = errors.New("persistence: duplicate")
	// ErrConstraintViolation is returned when a write breaks a schema constraint.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrBusy is returned when the database stayed locked past the retry budget.
	ErrBusy = errors.New("persistence: database busy")
)
