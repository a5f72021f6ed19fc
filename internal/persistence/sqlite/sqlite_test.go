package sqlite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/coaching-scheduler/internal/persistence"
	"github.com/example/coaching-scheduler/internal/persistence/sqlite/migration"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	storage, err := Open(filepath.Join(t.TempDir(), "scheduler.db"),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}
	t.Cleanup(func() {
		_ = storage.Close()
	})

	if err := storage.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return storage
}

func strPtr(v string) *string { return &v }

func pendingRecord(id string, at time.Time) persistence.SchedulingRecord {
	return persistence.SchedulingRecord{
		SessionID:       id,
		Status:          "pending",
		SessionDatetime: at,
		CreatedAt:       at.Add(-48 * time.Hour),
		UpdatedAt:       at.Add(-48 * time.Hour),
	}
}

func TestSchedulingRecordLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := newTestStorage(t)
	at := time.Date(2025, time.June, 2, 14, 0, 0, 0, time.UTC)

	if _, err := storage.GetSchedulingRecord(ctx, "session-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before creation, got %v", err)
	}

	record := pendingRecord("session-1", at)
	if err := storage.CreateSchedulingRecord(ctx, record); err != nil {
		t.Fatalf("CreateSchedulingRecord failed: %v", err)
	}
	if err := storage.CreateSchedulingRecord(ctx, record); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate on second create, got %v", err)
	}

	fetched, err := storage.GetSchedulingRecord(ctx, "session-1")
	if err != nil {
		t.Fatalf("GetSchedulingRecord failed: %v", err)
	}
	if fetched.Status != "pending" || !fetched.SessionDatetime.Equal(at) || fetched.MeetingLink != nil {
		t.Fatalf("unexpected record %+v", fetched)
	}

	fetched.Status = "assigned"
	fetched.CoachID = strPtr("coach-1")
	fetched.MeetingLink = strPtr("https://meet.example.com/session-1")
	fetched.UpdatedAt = at.Add(-time.Hour)
	if err := storage.UpdateSchedulingRecord(ctx, fetched); err != nil {
		t.Fatalf("UpdateSchedulingRecord failed: %v", err)
	}

	updated, err := storage.GetSchedulingRecord(ctx, "session-1")
	if err != nil {
		t.Fatalf("GetSchedulingRecord failed: %v", err)
	}
	if updated.Status != "assigned" || updated.MeetingLink == nil || *updated.CoachID != "coach-1" {
		t.Fatalf("update not persisted: %+v", updated)
	}
	if !updated.CreatedAt.Equal(record.CreatedAt) {
		t.Fatalf("created_at changed: %v", updated.CreatedAt)
	}

	completedAt := at.Add(25 * time.Hour)
	updated.Status = "completed"
	updated.MeetingLink = nil
	updated.CompletedAt = &completedAt
	if err := storage.UpdateSchedulingRecord(ctx, updated); err != nil {
		t.Fatalf("UpdateSchedulingRecord failed: %v", err)
	}
	completed, _ := storage.GetSchedulingRecord(ctx, "session-1")
	if completed.CompletedAt == nil || !completed.CompletedAt.Equal(completedAt) || completed.MeetingLink != nil {
		t.Fatalf("completion not persisted: %+v", completed)
	}

	if err := storage.DeleteSchedulingRecord(ctx, "session-1"); err != nil {
		t.Fatalf("DeleteSchedulingRecord failed: %v", err)
	}
	if err := storage.DeleteSchedulingRecord(ctx, "session-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestUpdateMissingRecord(t *testing.T) {
	t.Parallel()

	storage := newTestStorage(t)
	err := storage.UpdateSchedulingRecord(context.Background(), pendingRecord("ghost", time.Now()))
	if !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStatusCheckConstraint(t *testing.T) {
	t.Parallel()

	storage := newTestStorage(t)
	record := pendingRecord("session-x", time.Now())
	record.Status = "not_scheduled"
	err := storage.CreateSchedulingRecord(context.Background(), record)
	if !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}
}

func TestListSchedulingRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := newTestStorage(t)
	base := time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)

	for i := 3; i >= 1; i-- {
		record := pendingRecord(fmt.Sprintf("session-%d", i), base.Add(time.Duration(i)*time.Hour))
		if i == 2 {
			record.Status = "assigned"
			record.CoachID = strPtr("coach-9")
		}
		if err := storage.CreateSchedulingRecord(ctx, record); err != nil {
			t.Fatalf("CreateSchedulingRecord failed: %v", err)
		}
	}

	all, err := storage.ListSchedulingRecords(ctx, persistence.SchedulingRecordFilter{})
	if err != nil {
		t.Fatalf("ListSchedulingRecords failed: %v", err)
	}
	if len(all) != 3 || all[0].SessionID != "session-1" || all[2].SessionID != "session-3" {
		t.Fatalf("expected records ordered by time, got %+v", all)
	}

	pending, err := storage.ListSchedulingRecords(ctx, persistence.SchedulingRecordFilter{Statuses: []string{"pending"}})
	if err != nil {
		t.Fatalf("ListSchedulingRecords failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending records, got %d", len(pending))
	}

	byCoach, _ := storage.ListSchedulingRecords(ctx, persistence.SchedulingRecordFilter{CoachID: "coach-9"})
	if len(byCoach) != 1 || byCoach[0].SessionID != "session-2" {
		t.Fatalf("unexpected coach filter result %+v", byCoach)
	}

	before := base.Add(150 * time.Minute)
	early, _ := storage.ListSchedulingRecords(ctx, persistence.SchedulingRecordFilter{ScheduledBefore: &before, Limit: 1})
	if len(early) != 1 || early[0].SessionID != "session-1" {
		t.Fatalf("unexpected time filter result %+v", early)
	}
}

func TestOpenInMemoryStorage(t *testing.T) {
	t.Parallel()

	storage, err := Open(migration.MemoryPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer storage.Close()

	ctx := context.Background()
	if err := storage.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if err := storage.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if err := storage.CreateSchedulingRecord(ctx, pendingRecord("mem-1", time.Now())); err != nil {
		t.Fatalf("CreateSchedulingRecord failed: %v", err)
	}
}

func TestErrorMapperFallsBackToMessages(t *testing.T) {
	t.Parallel()

	mapper := NewErrorMapper()
	tests := []struct {
		err  error
		want error
	}{
		{errors.New("UNIQUE constraint failed: scheduling_records.session_id"), persistence.ErrDuplicate},
		{errors.New("CHECK constraint failed: status"), persistence.ErrConstraintViolation},
		{errors.New("database is locked"), persistence.ErrBusy},
	}
	for _, tc := range tests {
		if got := mapper.MapError(tc.err); !errors.Is(got, tc.want) {
			t.Fatalf("MapError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
	if mapper.MapError(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestRetryHelperRetriesBusyOnly(t *testing.T) {
	t.Parallel()

	helper := NewRetryHelper(RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 2})

	calls := 0
	err := helper.WithRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("expected success on third attempt, got err=%v calls=%d", err, calls)
	}

	calls = 0
	err = helper.WithRetry(context.Background(), func() error {
		calls++
		return errors.New("UNIQUE constraint failed: x")
	})
	if !errors.Is(err, persistence.ErrDuplicate) || calls != 1 {
		t.Fatalf("expected single non-retried attempt, got err=%v calls=%d", err, calls)
	}

	err = helper.WithRetry(context.Background(), func() error { return errors.New("database is locked") })
	if !errors.Is(err, persistence.ErrBusy) {
		t.Fatalf("expected ErrBusy after exhausting retries, got %v", err)
	}
}
