package persistence

import "time"

// SchedulingRecord is the stored scheduling state of one coaching session.
// Sessions that never requested a schedule have no row.
type SchedulingRecord struct {
	SessionID       string
	Status          string
	SessionDatetime time.Time
	MeetingLink     *string
	CoachID         *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}
