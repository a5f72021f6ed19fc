package storeclient

import (
	"fmt"
	"time"

	"github.com/example/coaching-scheduler/internal/scheduling"
)

type insights struct {
	SessionDatetime string `json:"session_datetime,omitempty"`
	MeetingLink     string `json:"meeting_link,omitempty"`
	CoachID         string `json:"coach_id,omitempty"`
}

type scheduleResponse struct {
	SchedulingStatus string   `json:"scheduling_status"`
	Insights         insights `json:"insights"`
}

type listItem struct {
	SessionID string `json:"session_id"`
	scheduleResponse
}

type listResponse struct {
	Schedules []listItem `json:"schedules"`
}

type requestScheduleBody struct {
	SessionDatetime string `json:"session_datetime"`
}

type updateStatusBody struct {
	Status string `json:"status"`
}

type assignmentBody struct {
	CoachID     string `json:"coach_id"`
	MeetingLink string `json:"meeting_link,omitempty"`
}

func (r scheduleResponse) record(sessionID string) (scheduling.Record, error) {
	status, err := scheduling.ParseStatus(r.SchedulingStatus)
	if err != nil {
		return scheduling.Record{}, fmt.Errorf("storeclient: decode schedule: %w", err)
	}
	rec := scheduling.Record{
		SessionID:   sessionID,
		Status:      status,
		MeetingLink: r.Insights.MeetingLink,
		CoachID:     r.Insights.CoachID,
	}
	if r.Insights.SessionDatetime != "" {
		at, err := time.Parse(time.RFC3339Nano, r.Insights.SessionDatetime)
		if err != nil {
			return scheduling.Record{}, fmt.Errorf("storeclient: decode session_datetime: %w", err)
		}
		rec.ScheduledAt = at
	}
	return rec, nil
}
