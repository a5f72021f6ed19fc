package scheduling

import "time"

const (
	// JoinLeadTime is how long before the scheduled instant the meeting opens.
	JoinLeadTime = 10 * time.Minute
	// CompletionGrace is how long after the scheduled instant a session stays open.
	CompletionGrace = 24 * time.Hour
)

// Window is the time-derived view of a scheduled session at a given instant.
type Window struct {
	TimeUntilStart time.Duration
	InJoinWindow   bool
	Overdue        bool
}

// Evaluate computes the join window for scheduledAt as observed at now.
//
// A session is joinable from JoinLeadTime before the scheduled instant
// (inclusive) until CompletionGrace after it (exclusive). It is overdue from
// CompletionGrace after the scheduled instant onwards.
func Evaluate(scheduledAt, now time.Time) Window {
	until := scheduledAt.Sub(now)
	overdue := until <= -CompletionGrace
	return Window{
		TimeUntilStart: until,
		InJoinWindow:   !overdue && until <= JoinLeadTime,
		Overdue:        overdue,
	}
}

// CanJoin reports whether a participant may open the meeting link of rec at now.
func CanJoin(rec Record, now time.Time) bool {
	if rec.Status == StatusCompleted || rec.MeetingLink == "" || !rec.Scheduled() {
		return false
	}
	return Evaluate(rec.ScheduledAt, now).InJoinWindow
}
