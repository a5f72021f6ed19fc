package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/coaching-scheduler/internal/application"
	"github.com/example/coaching-scheduler/internal/scheduling"
)

const maxBodyBytes = 1 << 20

type scheduleService interface {
	GetSchedule(ctx context.Context, sessionID string) (application.SessionSchedule, error)
	RequestSchedule(ctx context.Context, params application.RequestScheduleParams) (application.SessionSchedule, error)
	CompleteSchedule(ctx context.Context, params application.CompleteScheduleParams) (application.SessionSchedule, error)
	AssignCoach(ctx context.Context, params application.AssignCoachParams) (application.SessionSchedule, error)
	ResetSchedule(ctx context.Context, params application.ResetScheduleParams) error
	ListSchedules(ctx context.Context, params application.ListSchedulesParams) ([]application.SessionSchedule, error)
}

type ScheduleHandler struct {
	service   scheduleService
	responder responder
	logger    *slog.Logger
}

func NewScheduleHandler(service scheduleService, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{service: service, responder: newResponder(logger), logger: defaultLogger(logger)}
}

type insightsDTO struct {
	SessionDatetime string `json:"session_datetime,omitempty"`
	MeetingLink     string `json:"meeting_link,omitempty"`
	CoachID         string `json:"coach_id,omitempty"`
}

type scheduleDTO struct {
	SessionID        string      `json:"session_id,omitempty"`
	SchedulingStatus string      `json:"scheduling_status"`
	Insights         insightsDTO `json:"insights"`
}

type listResponse struct {
	Schedules []scheduleDTO `json:"schedules"`
}

type requestScheduleRequest struct {
	SessionDatetime string `json:"session_datetime" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=completed"`
}

type assignmentRequest struct {
	CoachID     string `json:"coach_id" validate:"required,max=128"`
	MeetingLink string `json:"meeting_link" validate:"omitempty,http_url,max=2048"`
}

type listQuery struct {
	Statuses []string `query:"status" validate:"dive,oneof=pending assigned completed"`
	CoachID  string   `query:"coach_id" validate:"max=128"`
	Before   string   `query:"before" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Limit    int      `query:"limit" validate:"min=0,max=500"`
}

func (h *ScheduleHandler) available(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

func (h *ScheduleHandler) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionID)
		return "", false
	}
	return id, true
}

// decode reads a JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler should continue.
func (h *ScheduleHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("request body is required")
		} else {
			err = errBadRequestBody
		}
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return false
	}
	if err := validateRequest(dst); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return false
	}
	return true
}

// Get handles GET /sessions/{id}/schedule.
func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	schedule, err := h.service.GetSchedule(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toScheduleDTO(schedule, false))
}

// Request handles POST /sessions/{id}/schedule.
func (h *ScheduleHandler) Request(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req requestScheduleRequest
	if !h.decode(w, r, &req) {
		return
	}
	at, err := time.Parse(time.RFC3339Nano, req.SessionDatetime)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, &application.ValidationError{
			FieldErrors: map[string]string{"session_datetime": "session_datetime must be an RFC 3339 timestamp"},
		})
		return
	}

	schedule, err := h.service.RequestSchedule(r.Context(), application.RequestScheduleParams{
		SessionID:       id,
		SessionDatetime: at,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	handlerLogger(r.Context(), h.logger, "ScheduleHandler", "Request", "session_id", id).
		DebugContext(r.Context(), "schedule request accepted", "session_datetime", schedule.ScheduledAt)
	w.Header().Set("Location", "/sessions/"+url.PathEscape(id)+"/schedule")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toScheduleDTO(schedule, false))
}

// Complete handles PUT /sessions/{id}/schedule.
func (h *ScheduleHandler) Complete(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	schedule, err := h.service.CompleteSchedule(r.Context(), application.CompleteScheduleParams{SessionID: id})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	handlerLogger(r.Context(), h.logger, "ScheduleHandler", "Complete", "session_id", id).
		DebugContext(r.Context(), "completion acknowledged")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toScheduleDTO(schedule, false))
}

// Assign handles PUT /sessions/{id}/schedule/assignment.
func (h *ScheduleHandler) Assign(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req assignmentRequest
	if !h.decode(w, r, &req) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	schedule, err := h.service.AssignCoach(r.Context(), application.AssignCoachParams{
		Principal:   principal,
		SessionID:   id,
		CoachID:     req.CoachID,
		MeetingLink: req.MeetingLink,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toScheduleDTO(schedule, false))
}

// Reset handles DELETE /sessions/{id}/schedule.
func (h *ScheduleHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.ResetSchedule(r.Context(), application.ResetScheduleParams{Principal: principal, SessionID: id}); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// List handles GET /schedules.
func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	query, err := parseListQuery(r.URL.Query())
	if err == nil {
		err = validateRequest(&query)
	}
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	var before *time.Time
	if query.Before != "" {
		at, err := time.Parse(time.RFC3339Nano, query.Before)
		if err != nil {
			h.responder.handleServiceError(r.Context(), w, &application.ValidationError{
				FieldErrors: map[string]string{"before": "before must be an RFC 3339 timestamp"},
			})
			return
		}
		before = &at
	}

	statuses := make([]scheduling.Status, 0, len(query.Statuses))
	for _, s := range query.Statuses {
		statuses = append(statuses, scheduling.Status(s))
	}

	principal, _ := PrincipalFromContext(r.Context())
	schedules, err := h.service.ListSchedules(r.Context(), application.ListSchedulesParams{
		Principal: principal,
		Statuses:  statuses,
		CoachID:   query.CoachID,
		Before:    before,
		Limit:     query.Limit,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := listResponse{Schedules: make([]scheduleDTO, 0, len(schedules))}
	for _, schedule := range schedules {
		out.Schedules = append(out.Schedules, toScheduleDTO(schedule, true))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, out)
}

func parseListQuery(values url.Values) (listQuery, error) {
	var q listQuery
	for _, raw := range values["status"] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				q.Statuses = append(q.Statuses, part)
			}
		}
	}
	q.CoachID = strings.TrimSpace(values.Get("coach_id"))
	q.Before = strings.TrimSpace(values.Get("before"))
	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return listQuery{}, &application.ValidationError{
				FieldErrors: map[string]string{"limit": "limit must be an integer"},
			}
		}
		q.Limit = limit
	}
	return q, nil
}

func toScheduleDTO(schedule application.SessionSchedule, withID bool) scheduleDTO {
	dto := scheduleDTO{
		SchedulingStatus: schedule.Status.String(),
		Insights: insightsDTO{
			MeetingLink: schedule.MeetingLink,
			CoachID:     schedule.CoachID,
		},
	}
	if withID {
		dto.SessionID = schedule.SessionID
	}
	if !schedule.ScheduledAt.IsZero() {
		dto.Insights.SessionDatetime = schedule.ScheduledAt.UTC().Format(time.RFC3339Nano)
	}
	return dto
}
