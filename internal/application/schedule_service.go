package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/example/coaching-scheduler/internal/persistence"
	"github.com/example/coaching-scheduler/internal/scheduling"
)

// ScheduleRepository captures the persistence interactions needed by the service.
type ScheduleRepository interface {
	CreateSchedule(ctx context.Context, schedule SessionSchedule) (SessionSchedule, error)
	GetSchedule(ctx context.Context, sessionID string) (SessionSchedule, error)
	UpdateSchedule(ctx context.Context, schedule SessionSchedule) (SessionSchedule, error)
	DeleteSchedule(ctx context.Context, sessionID string) error
	ListSchedules(ctx context.Context, filter ScheduleRepositoryFilter) ([]SessionSchedule, error)
}

// ScheduleRepositoryFilter narrows queries issued to the schedule repository.
type ScheduleRepositoryFilter struct {
	Statuses        []scheduling.Status
	CoachID         string
	ScheduledBefore *time.Time
	Limit           int
}

const maxListLimit = 500

// ScheduleService is the authoritative scheduling state store for coaching sessions.
type ScheduleService struct {
	schedules ScheduleRepository
	now       func() time.Time
	logger    *slog.Logger
}

// NewScheduleService wires dependencies for schedule operations.
func NewScheduleService(schedules ScheduleRepository, now func() time.Time) *ScheduleService {
	return NewScheduleServiceWithLogger(schedules, now, nil)
}

// NewScheduleServiceWithLogger wires dependencies for schedule operations with a specified logger.
func NewScheduleServiceWithLogger(schedules ScheduleRepository, now func() time.Time, logger *slog.Logger) *ScheduleService {
	if now == nil {
		now = time.Now
	}
	return &ScheduleService{schedules: schedules, now: now, logger: defaultLogger(logger)}
}

func (s *ScheduleService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ScheduleService", operation, attrs...)
}

func (s *ScheduleService) ready() error {
	if s == nil {
		return fmt.Errorf("ScheduleService is nil")
	}
	if s.schedules == nil {
		return fmt.Errorf("schedule repository not configured")
	}
	return nil
}

// GetSchedule returns the scheduling state of sessionID. Sessions without a
// stored record are reported as not_scheduled.
func (s *ScheduleService) GetSchedule(ctx context.Context, sessionID string) (schedule SessionSchedule, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "GetSchedule", "session_id", sessionID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to get schedule", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "schedule loaded", "status", schedule.Status)
	}()

	sessionID = strings.TrimSpace(sessionID)
	if vErr := validateSessionID(sessionID); vErr.HasErrors() {
		err = vErr
		return
	}

	schedule, err = s.schedules.GetSchedule(ctx, sessionID)
	if err != nil {
		err = mapScheduleRepoError(err)
		if errors.Is(err, ErrNotFound) {
			return SessionSchedule{SessionID: sessionID, Status: scheduling.StatusNotScheduled}, nil
		}
		return SessionSchedule{}, err
	}
	return schedule, nil
}

// RequestSchedule moves a not_scheduled session to pending at the requested instant.
func (s *ScheduleService) RequestSchedule(ctx context.Context, params RequestScheduleParams) (schedule SessionSchedule, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "RequestSchedule", "session_id", params.SessionID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to request schedule", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("session_datetime", schedule.ScheduledAt).InfoContext(ctx, "schedule requested")
	}()

	sessionID := strings.TrimSpace(params.SessionID)
	now := s.now()

	vErr := validateSessionID(sessionID)
	switch {
	case params.SessionDatetime.IsZero():
		vErr.add("session_datetime", "session_datetime is required")
	case !params.SessionDatetime.After(now):
		vErr.add("session_datetime", "session_datetime must be in the future")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if _, getErr := s.schedules.GetSchedule(ctx, sessionID); getErr == nil {
		err = ErrAlreadyScheduled
		return
	} else if mapped := mapScheduleRepoError(getErr); !errors.Is(mapped, ErrNotFound) {
		err = mapped
		return
	}

	schedule, err = s.schedules.CreateSchedule(ctx, SessionSchedule{
		SessionID:   sessionID,
		Status:      scheduling.StatusPending,
		ScheduledAt: params.SessionDatetime.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		err = mapScheduleRepoError(err)
		return SessionSchedule{}, err
	}
	return schedule, nil
}

// CompleteSchedule marks a pending or assigned session as completed. Completing
// an already completed session returns the stored record unchanged.
func (s *ScheduleService) CompleteSchedule(ctx context.Context, params CompleteScheduleParams) (schedule SessionSchedule, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "CompleteSchedule", "session_id", params.SessionID)
	alreadyCompleted := false
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to complete schedule", "error", err, "error_kind", ErrorKind(err))
			return
		}
		if alreadyCompleted {
			logger.InfoContext(ctx, "schedule already completed")
			return
		}
		logger.InfoContext(ctx, "schedule completed")
	}()

	sessionID := strings.TrimSpace(params.SessionID)
	if vErr := validateSessionID(sessionID); vErr.HasErrors() {
		err = vErr
		return
	}

	existing, err := s.schedules.GetSchedule(ctx, sessionID)
	if err != nil {
		err = notScheduledOnMissing(mapScheduleRepoError(err))
		return SessionSchedule{}, err
	}
	if existing.Status == scheduling.StatusCompleted {
		alreadyCompleted = true
		return existing, nil
	}

	now := s.now()
	updated := existing
	updated.Status = scheduling.StatusCompleted
	updated.MeetingLink = ""
	updated.CompletedAt = &now
	updated.UpdatedAt = now

	schedule, err = s.schedules.UpdateSchedule(ctx, updated)
	if err != nil {
		err = notScheduledOnMissing(mapScheduleRepoError(err))
		return SessionSchedule{}, err
	}
	return schedule, nil
}

// AssignCoach records the coach and meeting link for a pending or assigned
// session. Only the assigner may call it.
func (s *ScheduleService) AssignCoach(ctx context.Context, params AssignCoachParams) (schedule SessionSchedule, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "AssignCoach",
		"session_id", params.SessionID,
		"principal_id", params.Principal.ID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to assign coach", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("coach_id", schedule.CoachID).InfoContext(ctx, "coach assigned")
	}()

	if !params.Principal.Assigner {
		err = ErrUnauthorized
		return
	}

	sessionID := strings.TrimSpace(params.SessionID)
	coachID := strings.TrimSpace(params.CoachID)
	link := strings.TrimSpace(params.MeetingLink)

	vErr := validateSessionID(sessionID)
	if coachID == "" {
		vErr.add("coach_id", "coach_id is required")
	}
	vErr.merge(validateMeetingLink(link))
	if vErr.HasErrors() {
		err = vErr
		return
	}

	existing, err := s.schedules.GetSchedule(ctx, sessionID)
	if err != nil {
		err = notScheduledOnMissing(mapScheduleRepoError(err))
		return SessionSchedule{}, err
	}
	if existing.Status == scheduling.StatusCompleted {
		err = fmt.Errorf("%w: session %s is completed", ErrInvalidTransition, sessionID)
		return SessionSchedule{}, err
	}

	updated := existing
	updated.Status = scheduling.StatusAssigned
	updated.CoachID = coachID
	updated.MeetingLink = link
	updated.UpdatedAt = s.now()

	schedule, err = s.schedules.UpdateSchedule(ctx, updated)
	if err != nil {
		err = notScheduledOnMissing(mapScheduleRepoError(err))
		return SessionSchedule{}, err
	}
	return schedule, nil
}

// ResetSchedule deletes the stored schedule of a session that has not been
// completed, returning it to not_scheduled. Only the assigner may call it.
func (s *ScheduleService) ResetSchedule(ctx context.Context, params ResetScheduleParams) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "ResetSchedule",
		"session_id", params.SessionID,
		"principal_id", params.Principal.ID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to reset schedule", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "schedule reset")
	}()

	if !params.Principal.Assigner {
		return ErrUnauthorized
	}

	sessionID := strings.TrimSpace(params.SessionID)
	if vErr := validateSessionID(sessionID); vErr.HasErrors() {
		return vErr
	}

	existing, err := s.schedules.GetSchedule(ctx, sessionID)
	if err != nil {
		return notScheduledOnMissing(mapScheduleRepoError(err))
	}
	if existing.Status == scheduling.StatusCompleted {
		return fmt.Errorf("%w: session %s is completed", ErrInvalidTransition, sessionID)
	}

	if err = s.schedules.DeleteSchedule(ctx, sessionID); err != nil {
		return notScheduledOnMissing(mapScheduleRepoError(err))
	}
	return nil
}

// ListSchedules returns stored schedules ordered by session time. Only the
// assigner may call it.
func (s *ScheduleService) ListSchedules(ctx context.Context, params ListSchedulesParams) (schedules []SessionSchedule, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "ListSchedules", "principal_id", params.Principal.ID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list schedules", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(schedules)).InfoContext(ctx, "schedules listed")
	}()

	if !params.Principal.Assigner {
		err = ErrUnauthorized
		return
	}

	vErr := &ValidationError{}
	for _, status := range params.Statuses {
		if status == scheduling.StatusNotScheduled {
			vErr.add("status", "not_scheduled sessions are not stored")
			continue
		}
		if _, parseErr := scheduling.ParseStatus(string(status)); parseErr != nil {
			vErr.add("status", fmt.Sprintf("unknown status %q", status))
		}
	}
	if params.Limit < 0 || params.Limit > maxListLimit {
		vErr.add("limit", fmt.Sprintf("limit must be between 0 and %d", maxListLimit))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	schedules, err = s.schedules.ListSchedules(ctx, ScheduleRepositoryFilter{
		Statuses: params.Statuses,
		CoachID:         strings.TrimSpace(params.CoachID),
		ScheduledBefore: params.Before,
		Limit:           params.Limit,
	})
	if err != nil {
		err = mapScheduleRepoError(err)
		if errors.Is(err, ErrNotFound) {
			return []SessionSchedule{}, nil
		}
		return nil, err
	}
	if schedules == nil {
		schedules = []SessionSchedule{}
	}
	return schedules, nil
}

func validateSessionID(sessionID string) *ValidationError {
	vErr := &ValidationError{}
	switch {
	case sessionID == "":
		vErr.add("session_id", "session_id is required")
	case len(sessionID) > 128:
		vErr.add("session_id", "session_id must be at most 128 characters")
	case strings.ContainsAny(sessionID, "/?# \t\n"):
		vErr.add("session_id", "session_id contains invalid characters")
	}
	return vErr
}

func validateMeetingLink(link string) *ValidationError {
	vErr := &ValidationError{}
	if link == "" {
		return vErr
	}
	parsed, err := url.ParseRequestURI(link)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "https" && parsed.Scheme != "http") {
		vErr.add("meeting_link", "meeting_link must be an absolute http(s) URL")
	}
	return vErr
}

func notScheduledOnMissing(err error) error {
	if errors.Is(err, ErrNotFound) {
		return ErrNotScheduled
	}
	return err
}

func mapScheduleRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return fmt.Errorf("%w: %w", ErrAlreadyScheduled, err)
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("schedule", "schedule violates storage constraints")
		return vErr
	}
	return err
}
