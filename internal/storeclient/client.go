// Package storeclient calls the scheduling store HTTP API. It implements the
// store view used by the scheduling controller.
package storeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/coaching-scheduler/internal/scheduling"
)

const (
	// RequestIDHeader carries the per-request correlation ID.
	RequestIDHeader = "X-Request-ID"
	// AssignerKeyHeader authenticates assigner-only calls.
	AssignerKeyHeader = "X-Assigner-Key"
)

var (
	ErrNotFound       = errors.New("storeclient: not found")
	ErrConflict       = errors.New("storeclient: conflict")
	ErrUnauthorized   = errors.New("storeclient: unauthorized")
	ErrInvalidRequest = errors.New("storeclient: invalid request")
	ErrServer         = errors.New("storeclient: server error")
)

// APIError is a non-2xx response from the store.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	RequestID  string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api %s %s: %s", e.Method, e.Path, e.Message)
	}
	return fmt.Sprintf("api %s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// ServerMessage returns the store's explanation, if it sent one.
func (e *APIError) ServerMessage() string {
	return e.Message
}

// Is maps the status code onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrInvalidRequest:
		return e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusUnprocessableEntity
	case ErrServer:
		return e.StatusCode >= 500
	}
	return false
}

// Client calls the scheduling store API. It is safe for concurrent use.
type Client struct {
	BaseURL     string       // e.g. "http://localhost:8080"
	AssignerKey string       // optional; sent as X-Assigner-Key
	HTTPClient  *http.Client // optional; nil uses http.DefaultClient
	// NewRequestID, when set, replaces uuid.NewString for X-Request-ID.
	NewRequestID func() string
}

var _ scheduling.Store = (*Client)(nil)

// New returns a client for the given base URL.
func New(baseURL string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/")}
}

// NewAssigner returns a client that authenticates assigner-only calls with key.
func NewAssigner(baseURL, key string) *Client {
	c := New(baseURL)
	c.AssignerKey = key
	return c
}

func (c *Client) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) requestID() string {
	if c.NewRequestID != nil {
		return c.NewRequestID()
	}
	return uuid.NewString()
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.BaseURL, "/")+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, c.requestID())
	if c.AssignerKey != "" {
		req.Header.Set(AssignerKeyHeader, c.AssignerKey)
	}
	return c.client().Do(req)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&errBody)
		return &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(errBody.Error),
			RequestID:  resp.Header.Get(RequestIDHeader),
		}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func schedulePath(sessionID string) string {
	return "/sessions/" + url.PathEscape(sessionID) + "/schedule"
}

// FetchSchedule returns the current record of sessionID.
func (c *Client) FetchSchedule(ctx context.Context, sessionID string) (scheduling.Record, error) {
	var out scheduleResponse
	if err := c.doJSON(ctx, http.MethodGet, schedulePath(sessionID), nil, &out); err != nil {
		return scheduling.Record{}, err
	}
	return out.record(sessionID)
}

// RequestSchedule asks the store to schedule sessionID at at.
func (c *Client) RequestSchedule(ctx context.Context, sessionID string, at time.Time) (scheduling.Record, error) {
	body := requestScheduleBody{SessionDatetime: at.UTC().Format(time.RFC3339Nano)}
	var out scheduleResponse
	if err := c.doJSON(ctx, http.MethodPost, schedulePath(sessionID), body, &out); err != nil {
		return scheduling.Record{}, err
	}
	return out.record(sessionID)
}

// MarkCompleted writes the completed status for sessionID.
func (c *Client) MarkCompleted(ctx context.Context, sessionID string) (scheduling.Record, error) {
	body := updateStatusBody{Status: string(scheduling.StatusCompleted)}
	var out scheduleResponse
	if err := c.doJSON(ctx, http.MethodPut, schedulePath(sessionID), body, &out); err != nil {
		return scheduling.Record{}, err
	}
	return out.record(sessionID)
}

// AssignCoach records the coach and meeting link of sessionID. Requires an assigner key.
func (c *Client) AssignCoach(ctx context.Context, sessionID, coachID, meetingLink string) (scheduling.Record, error) {
	body := assignmentBody{CoachID: coachID, MeetingLink: meetingLink}
	var out scheduleResponse
	if err := c.doJSON(ctx, http.MethodPut, schedulePath(sessionID)+"/assignment", body, &out); err != nil {
		return scheduling.Record{}, err
	}
	return out.record(sessionID)
}

// ResetSchedule returns sessionID to not_scheduled. Requires an assigner key.
func (c *Client) ResetSchedule(ctx context.Context, sessionID string) error {
	return c.doJSON(ctx, http.MethodDelete, schedulePath(sessionID), nil, nil)
}

// ListSchedules returns stored schedules, optionally filtered by status,
// coach and a session time upper bound (zero = unbounded, limit 0 = server
// default). Requires an assigner key.
func (c *Client) ListSchedules(ctx context.Context, statuses []scheduling.Status, coachID string, before time.Time, limit int) ([]scheduling.Record, error) {
	q := url.Values{}
	for _, s := range statuses {
		q.Add("status", string(s))
	}
	if coachID != "" {
		q.Set("coach_id", coachID)
	}
	if !before.IsZero() {
		q.Set("before", before.UTC().Format(time.RFC3339Nano))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/schedules"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out listResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	records := make([]scheduling.Record, 0, len(out.Schedules))
	for _, item := range out.Schedules {
		rec, err := item.scheduleResponse.record(item.SessionID)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Health reports whether the store answered its health check.
func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/healthz", nil, nil)
}
