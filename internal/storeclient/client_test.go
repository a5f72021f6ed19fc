package storeclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/example/coaching-scheduler/internal/scheduling"
)

func TestFetchScheduleDecodesRecord(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/sessions/s-1/schedule" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get(RequestIDHeader) == "" {
			t.Errorf("missing %s header", RequestIDHeader)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"scheduling_status":"assigned","insights":{"session_datetime":"2025-06-02T14:00:00Z","meeting_link":"https://meet.example.com/s-1","coach_id":"coach-1"}}`))
	}))
	defer srv.Close()

	rec, err := New(srv.URL + "/").FetchSchedule(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("FetchSchedule: %v", err)
	}
	want := time.Date(2025, time.June, 2, 14, 0, 0, 0, time.UTC)
	if rec.SessionID != "s-1" || rec.Status != scheduling.StatusAssigned || !rec.ScheduledAt.Equal(want) || rec.MeetingLink == "" || rec.CoachID != "coach-1" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestFetchScheduleNotScheduled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"scheduling_status":"not_scheduled","insights":{}}`))
	}))
	defer srv.Close()

	rec, err := New(srv.URL).FetchSchedule(context.Background(), "s-2")
	if err != nil {
		t.Fatalf("FetchSchedule: %v", err)
	}
	if rec.Status != scheduling.StatusNotScheduled || rec.Scheduled() {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestRequestScheduleSendsDatetime(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, time.June, 2, 14, 0, 0, 0, time.FixedZone("JST", 9*60*60))
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method: %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"scheduling_status":"pending","insights":{"session_datetime":"2025-06-02T05:00:00Z"}}`))
	}))
	defer srv.Close()

	rec, err := New(srv.URL).RequestSchedule(context.Background(), "s-1", at)
	if err != nil {
		t.Fatalf("RequestSchedule: %v", err)
	}
	if body["session_datetime"] != "2025-06-02T05:00:00Z" {
		t.Fatalf("unexpected body %v", body)
	}
	if rec.Status != scheduling.StatusPending || !rec.ScheduledAt.Equal(at) {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestRequestScheduleKeepsSubsecondPrecision(t *testing.T) {
	t.Parallel()

	at := time.Date(2030, time.January, 1, 10, 0, 0, 900_000_001, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"scheduling_status": "pending",
			"insights":          map[string]string{"session_datetime": body["session_datetime"]},
		})
	}))
	defer srv.Close()

	rec, err := New(srv.URL).RequestSchedule(context.Background(), "s-1", at)
	if err != nil {
		t.Fatalf("RequestSchedule: %v", err)
	}
	if !rec.ScheduledAt.Equal(at) {
		t.Fatalf("scheduled at %v, want %v", rec.ScheduledAt, at)
	}
}

func TestAPIErrorCarriesServerMessage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(RequestIDHeader, "req-42")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"session already scheduled"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).RequestSchedule(context.Background(), "s-1", time.Now().Add(time.Hour))
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.ServerMessage() != "session already scheduled" || apiErr.RequestID != "req-42" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
	if !errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected conflict mapping, got %v", err)
	}

	// The controller surfaces the same text to the participant.
	failed := &scheduling.RequestFailedError{Message: apiErr.ServerMessage(), Err: err}
	if failed.UserMessage() != "session already scheduled" {
		t.Fatalf("unexpected user message %q", failed.UserMessage())
	}
}

func TestAPIErrorStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, ErrNotFound},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusUnprocessableEntity, ErrInvalidRequest},
		{http.StatusBadGateway, ErrServer},
	}
	for _, tc := range tests {
		err := &APIError{Method: http.MethodGet, Path: "/x", StatusCode: tc.status}
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v", tc.status, tc.want)
		}
		if err.Error() == "" {
			t.Fatalf("expected message for status %d", tc.status)
		}
	}
}

func TestMarkCompletedAndAssignerCalls(t *testing.T) {
	t.Parallel()

	type call struct {
		method, path, key, requestID string
		body                         map[string]string
	}
	var (
		mu    sync.Mutex
		calls []call
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := call{method: r.Method, path: r.URL.RequestURI(), key: r.Header.Get(AssignerKeyHeader), requestID: r.Header.Get(RequestIDHeader)}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&c.body)
		}
		mu.Lock()
		calls = append(calls, c)
		mu.Unlock()
		switch {
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/schedules":
			_, _ = w.Write([]byte(`{"schedules":[{"session_id":"s-1","scheduling_status":"pending","insights":{"session_datetime":"2025-06-02T05:00:00Z"}}]}`))
		default:
			_, _ = w.Write([]byte(`{"scheduling_status":"completed","insights":{"session_datetime":"2025-06-02T05:00:00Z","coach_id":"coach-1"}}`))
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	participant := New(srv.URL)
	participant.NewRequestID = func() string { return "fixed-id" }
	if rec, err := participant.MarkCompleted(ctx, "s 1"); err != nil || rec.Status != scheduling.StatusCompleted {
		t.Fatalf("MarkCompleted: %+v %v", rec, err)
	}

	assigner := NewAssigner(srv.URL, "k3y")
	if _, err := assigner.AssignCoach(ctx, "s-1", "coach-1", "https://meet.example.com/s-1"); err != nil {
		t.Fatalf("AssignCoach: %v", err)
	}
	if err := assigner.ResetSchedule(ctx, "s-1"); err != nil {
		t.Fatalf("ResetSchedule: %v", err)
	}
	list, err := assigner.ListSchedules(ctx, []scheduling.Status{scheduling.StatusPending}, "coach-1", time.Date(2025, time.June, 3, 0, 0, 0, 0, time.UTC), 5)
	if err != nil || len(list) != 1 || list[0].SessionID != "s-1" {
		t.Fatalf("ListSchedules: %+v %v", list, err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 4 {
		t.Fatalf("expected 4 calls, got %d", len(calls))
	}
	if calls[0].path != "/sessions/s%201/schedule" || calls[0].body["status"] != "completed" || calls[0].key != "" || calls[0].requestID != "fixed-id" {
		t.Fatalf("unexpected completion call %+v", calls[0])
	}
	if calls[1].path != "/sessions/s-1/schedule/assignment" || calls[1].key != "k3y" || calls[1].body["coach_id"] != "coach-1" {
		t.Fatalf("unexpected assignment call %+v", calls[1])
	}
	if calls[2].method != http.MethodDelete {
		t.Fatalf("unexpected reset call %+v", calls[2])
	}
	if calls[3].path != "/schedules?before=2025-06-03T00%3A00%3A00Z&coach_id=coach-1&limit=5&status=pending" {
		t.Fatalf("unexpected list call %+v", calls[3])
	}
}

func TestDecodeRejectsUnknownStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"scheduling_status":"cancelled","insights":{}}`))
	}))
	defer srv.Close()

	if _, err := New(srv.URL).FetchSchedule(context.Background(), "s-1"); err == nil {
		t.Fatalf("expected unknown status to be rejected")
	}
}
