package main

import (
	"context"
	"strings"
	"time"

	"github.com/example/coaching-scheduler/internal/application"
	"github.com/example/coaching-scheduler/internal/persistence"
	"github.com/example/coaching-scheduler/internal/scheduling"
)

type scheduleRepositoryAdapter struct {
	repo persistence.SchedulingRecordRepository
}

func newScheduleRepositoryAdapter(repo persistence.SchedulingRecordRepository) *scheduleRepositoryAdapter {
	return &scheduleRepositoryAdapter{repo: repo}
}

func (a *scheduleRepositoryAdapter) CreateSchedule(ctx context.Context, schedule application.SessionSchedule) (application.SessionSchedule, error) {
	if err := a.repo.CreateSchedulingRecord(ctx, toPersistenceRecord(schedule)); err != nil {
		return application.SessionSchedule{}, err
	}
	return a.GetSchedule(ctx, schedule.SessionID)
}

func (a *scheduleRepositoryAdapter) GetSchedule(ctx context.Context, sessionID string) (application.SessionSchedule, error) {
	stored, err := a.repo.GetSchedulingRecord(ctx, sessionID)
	if err != nil {
		return application.SessionSchedule{}, err
	}
	return toApplicationSchedule(stored)
}

func (a *scheduleRepositoryAdapter) UpdateSchedule(ctx context.Context, schedule application.SessionSchedule) (application.SessionSchedule, error) {
	if err := a.repo.UpdateSchedulingRecord(ctx, toPersistenceRecord(schedule)); err != nil {
		return application.SessionSchedule{}, err
	}
	return a.GetSchedule(ctx, schedule.SessionID)
}

func (a *scheduleRepositoryAdapter) DeleteSchedule(ctx context.Context, sessionID string) error {
	return a.repo.DeleteSchedulingRecord(ctx, sessionID)
}

func (a *scheduleRepositoryAdapter) ListSchedules(ctx context.Context, filter application.ScheduleRepositoryFilter) ([]application.SessionSchedule, error) {
	persistedFilter := persistence.SchedulingRecordFilter{
		CoachID:         filter.CoachID,
		ScheduledBefore: cloneTime(filter.ScheduledBefore),
		Limit:           filter.Limit,
	}
	for _, status := range filter.Statuses {
		persistedFilter.Statuses = append(persistedFilter.Statuses, status.String())
	}

	models, err := a.repo.ListSchedulingRecords(ctx, persistedFilter)
	if err != nil {
		return nil, err
	}
	schedules := make([]application.SessionSchedule, 0, len(models))
	for _, model := range models {
		schedule, err := toApplicationSchedule(model)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, schedule)
	}
	return schedules, nil
}

func toApplicationSchedule(model persistence.SchedulingRecord) (application.SessionSchedule, error) {
	status, err := scheduling.ParseStatus(model.Status)
	if err != nil {
		return application.SessionSchedule{}, err
	}
	return application.SessionSchedule{
		SessionID:   model.SessionID,
		Status:      status,
		ScheduledAt: model.SessionDatetime,
		MeetingLink: derefString(model.MeetingLink),
		CoachID:     derefString(model.CoachID),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
		CompletedAt: cloneTime(model.CompletedAt),
	}, nil
}

func toPersistenceRecord(schedule application.SessionSchedule) persistence.SchedulingRecord {
	return persistence.SchedulingRecord{
		SessionID:       schedule.SessionID,
		Status:          schedule.Status.String(),
		SessionDatetime: schedule.ScheduledAt,
		MeetingLink:     optionalString(schedule.MeetingLink),
		CoachID:         optionalString(schedule.CoachID),
		CreatedAt:       schedule.CreatedAt,
		UpdatedAt:       schedule.UpdatedAt,
		CompletedAt:     cloneTime(schedule.CompletedAt),
	}
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	clone := value
	return &clone
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
