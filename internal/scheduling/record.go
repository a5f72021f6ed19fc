package scheduling

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle stage of a requested coaching session.
type Status string

const (
	// StatusNotScheduled indicates that no schedule has been requested yet.
	StatusNotScheduled Status = "not_scheduled"
	// StatusPending indicates a request awaiting coach assignment.
	StatusPending Status = "pending"
	// StatusAssigned indicates a coach (and possibly a meeting link) has been assigned.
	StatusAssigned Status = "assigned"
	// StatusCompleted is terminal.
	StatusCompleted Status = "completed"
)

// ParseStatus converts the wire representation into a Status.
func ParseStatus(value string) (Status, error) {
	switch Status(strings.TrimSpace(value)) {
	case StatusNotScheduled:
		return StatusNotScheduled, nil
	case StatusPending:
		return StatusPending, nil
	case StatusAssigned:
		return StatusAssigned, nil
	case StatusCompleted:
		return StatusCompleted, nil
	}
	return "", fmt.Errorf("scheduling: unknown status %q", value)
}

func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 1
	case StatusAssigned:
		return 2
	case StatusCompleted:
		return 3
	}
	return 0
}

// Ahead reports whether s is further along the lifecycle than other.
func (s Status) Ahead(other Status) bool {
	return s.rank() > other.rank()
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusCompleted
}

// Active reports whether a session in status s is waiting on the store or the clock.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusAssigned
}

func (s Status) String() string {
	if s == "" {
		return string(StatusNotScheduled)
	}
	return string(s)
}

// Record is the scheduling snapshot of one coaching session as reported by
// the scheduling store.
type Record struct {
	SessionID   string
	Status      Status
	ScheduledAt time.Time
	MeetingLink string
	CoachID     string
}

// Scheduled reports whether the record carries a scheduled instant.
func (r Record) Scheduled() bool {
	return !r.ScheduledAt.IsZero()
}
