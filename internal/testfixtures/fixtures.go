package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/coaching-scheduler/internal/application"
	"github.com/example/coaching-scheduler/internal/persistence"
	"github.com/example/coaching-scheduler/internal/scheduling"
)

var sessionCounter uint64

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ScheduleFixture represents a deterministic session schedule that can be
// materialised for scheduling, application, or persistence tests.
type ScheduleFixture struct {
	SessionID   string
	Status      scheduling.Status
	ScheduledAt time.Time
	CoachID     string
	MeetingLink string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// ScheduleOption configures the generated schedule fixture.
type ScheduleOption func(*ScheduleFixture)

// NewScheduleFixture returns a pending session scheduled two days after
// ReferenceTime, with optional overrides.
func NewScheduleFixture(opts ...ScheduleOption) ScheduleFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := ScheduleFixture{
		SessionID:   fmt.Sprintf("session-%03d", idx),
		Status:      scheduling.StatusPending,
		ScheduledAt: referenceTime.Add(48 * time.Hour),
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionID overrides the generated session identifier.
func WithSessionID(id string) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.SessionID = id
	}
}

// WithScheduledAt sets the scheduled instant.
func WithScheduledAt(at time.Time) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.ScheduledAt = at
	}
}

// StartingIn schedules the session d after ReferenceTime. Negative values
// place it in the past.
func StartingIn(d time.Duration) ScheduleOption {
	return WithScheduledAt(referenceTime.Add(d))
}

// Assigned marks the fixture as assigned to coachID with the given meeting link.
func Assigned(coachID, link string) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.Status = scheduling.StatusAssigned
		f.CoachID = coachID
		f.MeetingLink = link
	}
}

// Completed marks the fixture as completed at the given instant.
func Completed(at time.Time) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.Status = scheduling.StatusCompleted
		f.MeetingLink = ""
		f.CompletedAt = &at
		f.UpdatedAt = at
	}
}

// Record converts the fixture into the participant-facing scheduling record.
func (f ScheduleFixture) Record() scheduling.Record {
	return scheduling.Record{
		SessionID:   f.SessionID,
		Status:      f.Status,
		ScheduledAt: f.ScheduledAt,
		MeetingLink: f.MeetingLink,
		CoachID:     f.CoachID,
	}
}

// Application converts the fixture into an application schedule.
func (f ScheduleFixture) Application() application.SessionSchedule {
	return application.SessionSchedule{
		SessionID:   f.SessionID,
		Status:      f.Status,
		ScheduledAt: f.ScheduledAt,
		MeetingLink: f.MeetingLink,
		CoachID:     f.CoachID,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
		CompletedAt: cloneTime(f.CompletedAt),
	}
}

// Persistence converts the fixture into a persistence record.
func (f ScheduleFixture) Persistence() persistence.SchedulingRecord {
	return persistence.SchedulingRecord{
		SessionID:       f.SessionID,
		Status:          string(f.Status),
		SessionDatetime: f.ScheduledAt,
		MeetingLink:     optionalString(f.MeetingLink),
		CoachID:         optionalString(f.CoachID),
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
		CompletedAt:     cloneTime(f.CompletedAt),
	}
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
