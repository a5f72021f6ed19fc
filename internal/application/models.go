package application

import (
	"time"

	"github.com/example/coaching-scheduler/internal/scheduling"
)

// Principal identifies the caller of a store operation. Participants act on
// their own session; the assigner may assign coaches and reset schedules.
type Principal struct {
	ID       string
	Assigner bool
}

// SessionSchedule is the stored scheduling state of one coaching session.
type SessionSchedule struct {
	SessionID   string
	Status      scheduling.Status
	ScheduledAt time.Time
	MeetingLink string
	CoachID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// Record projects the schedule onto the view shared with participants.
func (s SessionSchedule) Record() scheduling.Record {
	return scheduling.Record{
		SessionID:   s.SessionID,
		Status:      s.Status,
		ScheduledAt: s.ScheduledAt,
		MeetingLink: s.MeetingLink,
		CoachID:     s.CoachID,
	}
}

// RequestScheduleParams carries a participant's scheduling request.
type RequestScheduleParams struct {
	SessionID       string
	SessionDatetime time.Time
}

// CompleteScheduleParams marks a session as completed.
type CompleteScheduleParams struct {
	SessionID string
}

// AssignCoachParams records the coach and meeting link chosen for a pending session.
type AssignCoachParams struct {
	Principal   Principal
	SessionID   string
	CoachID     string
	MeetingLink string
}

// ResetScheduleParams returns a session to not_scheduled so it can be requested again.
type ResetScheduleParams struct {
	Principal Principal
	SessionID string
}

// ListSchedulesParams narrows the assigner's view of stored schedules.
// A non-nil Before keeps only sessions starting strictly before it.
type ListSchedulesParams struct {
	Principal Principal
	Statuses  []scheduling.Status
	CoachID   string
	Before    *time.Time
	Limit     int
}
