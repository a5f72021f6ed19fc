package persistence

import (
	"context"
	"time"
)

// SchedulingRecordFilter narrows record listings. Zero values match everything.
type SchedulingRecordFilter struct {
	Statuses        []string
	CoachID         string
	ScheduledBefore *time.Time
	Limit           int
}

// SchedulingRecordRepository stores scheduling records keyed by session ID.
type SchedulingRecordRepository interface {
	CreateSchedulingRecord(ctx context.Context, record SchedulingRecord) error
	UpdateSchedulingRecord(ctx context.Context, record SchedulingRecord) error
	GetSchedulingRecord(ctx context.Context, sessionID string) (SchedulingRecord, error)
	ListSchedulingRecords(ctx context.Context, filter SchedulingRecordFilter) ([]SchedulingRecord, error)
	DeleteSchedulingRecord(ctx context.Context, sessionID string) error
}
