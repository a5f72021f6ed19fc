package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/coaching-scheduler/internal/config"
	"github.com/example/coaching-scheduler/internal/scheduling"
	"github.com/example/coaching-scheduler/internal/storeclient"
	"github.com/example/coaching-scheduler/internal/testfixtures"
)

type fakeStore struct {
	mu          sync.Mutex
	record      scheduling.Record
	requestErr  error
	requested   []time.Time
	completions int
	assigned    []string
	resets      []string
	listed      []scheduling.Status
	listCoach   string
	listBefore  time.Time
	listLimit   int
}

func (f *fakeStore) FetchSchedule(ctx context.Context, sessionID string) (scheduling.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.record
	rec.SessionID = sessionID
	if rec.Status == "" {
		rec.Status = scheduling.StatusNotScheduled
	}
	return rec, nil
}

func (f *fakeStore) RequestSchedule(ctx context.Context, sessionID string, at time.Time) (scheduling.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.requestErr != nil {
		return scheduling.Record{}, f.requestErr
	}
	f.requested = append(f.requested, at)
	f.record = scheduling.Record{SessionID: sessionID, Status: scheduling.StatusPending, ScheduledAt: at}
	return f.record, nil
}

func (f *fakeStore) MarkCompleted(ctx context.Context, sessionID string) (scheduling.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completions++
	f.record.Status = scheduling.StatusCompleted
	f.record.MeetingLink = ""
	return f.record, nil
}

func (f *fakeStore) AssignCoach(ctx context.Context, sessionID, coachID, meetingLink string) (scheduling.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assigned = append(f.assigned, sessionID+"="+coachID)
	f.record.SessionID = sessionID
	f.record.Status = scheduling.StatusAssigned
	f.record.CoachID = coachID
	f.record.MeetingLink = meetingLink
	return f.record, nil
}

func (f *fakeStore) ResetSchedule(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, sessionID)
	f.record = scheduling.Record{}
	return nil
}

func (f *fakeStore) ListSchedules(ctx context.Context, statuses []scheduling.Status, coachID string, before time.Time, limit int) ([]scheduling.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed = statuses
	f.listCoach = coachID
	f.listBefore = before
	f.listLimit = limit
	return []scheduling.Record{testfixtures.NewScheduleFixture(testfixtures.Assigned("coach-1", "https://meet.example.com/a")).Record()}, nil
}

func (f *fakeStore) completionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completions
}

type cliHarness struct {
	clock   *testfixtures.Clock
	tickers *testfixtures.Tickers
	store   *fakeStore
	deps    *Dependencies
}

func newHarness(rec scheduling.Record, withAssigner bool) *cliHarness {
	h := &cliHarness{
		clock:   testfixtures.NewClock(time.Time{}),
		tickers: testfixtures.NewTickers(),
		store:   &fakeStore{record: rec},
	}
	h.deps = &Dependencies{
		Config: config.WatcherConfig{
			PollInterval:          30 * time.Second,
			TickInterval:          time.Minute,
			FetchTimeout:          time.Second,
			MaxCompletionAttempts: 3,
		},
		Store: h.store,
		Now:   h.clock.NowFunc(),
		NewTicker: func(d time.Duration) scheduling.Ticker {
			return h.tickers.New(d)
		},
	}
	if withAssigner {
		h.deps.Assigner = h.store
	}
	return h
}

func execute(ctx context.Context, deps *Dependencies, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := NewRootCmd(deps)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestStatusCommand(t *testing.T) {
	t.Parallel()

	ref := testfixtures.ReferenceTime()
	h := newHarness(scheduling.Record{
		Status:      scheduling.StatusAssigned,
		ScheduledAt: ref.Add(90 * time.Minute),
		CoachID:     "coach-7",
		MeetingLink: "https://meet.example.com/s",
	}, false)

	out, err := execute(context.Background(), h.deps, "status", "s-1")
	if err != nil {
		t.Fatalf("status returned error: %v", err)
	}
	for _, want := range []string{"s-1", "assigned", "in 1h30m0s", "coach-7", "https://meet.example.com/s", "joinable  no"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestJoinCommand(t *testing.T) {
	t.Parallel()

	ref := testfixtures.ReferenceTime()
	link := "https://meet.example.com/j"

	tests := []struct {
		name    string
		record  scheduling.Record
		wantOut string
		wantErr string
	}{
		{
			name:    "open window prints the link",
			record:  scheduling.Record{Status: scheduling.StatusAssigned, ScheduledAt: ref.Add(5 * time.Minute), MeetingLink: link},
			wantOut: link,
		},
		{
			name:    "too early reports when it opens",
			record:  scheduling.Record{Status: scheduling.StatusAssigned, ScheduledAt: ref.Add(time.Hour), MeetingLink: link},
			wantErr: "opens in 50m0s",
		},
		{
			name:    "pending has no coach yet",
			record:  scheduling.Record{Status: scheduling.StatusPending, ScheduledAt: ref.Add(time.Minute)},
			wantErr: "no coach has been assigned yet",
		},
		{
			name:    "unscheduled",
			record:  scheduling.Record{Status: scheduling.StatusNotScheduled},
			wantErr: "not scheduled",
		},
		{
			name:    "window closed",
			record:  scheduling.Record{Status: scheduling.StatusAssigned, ScheduledAt: ref.Add(-25 * time.Hour), MeetingLink: link},
			wantErr: "window has closed",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(tc.record, false)
			out, err := execute(context.Background(), h.deps, "join", "s-1")
			if tc.wantErr != "" {
				if !errors.Is(err, scheduling.ErrJoinUnavailable) || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected join unavailable containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("join returned error: %v", err)
			}
			if strings.TrimSpace(out) != tc.wantOut {
				t.Fatalf("expected %q, got %q", tc.wantOut, out)
			}
		})
	}
}

func TestRequestCommand(t *testing.T) {
	t.Parallel()

	ref := testfixtures.ReferenceTime()

	t.Run("submits a future time", func(t *testing.T) {
		t.Parallel()

		h := newHarness(scheduling.Record{}, false)
		at := ref.Add(48 * time.Hour)
		out, err := execute(context.Background(), h.deps, "request", "s-1", "--at", at.Format(time.RFC3339))
		if err != nil {
			t.Fatalf("request returned error: %v", err)
		}
		if len(h.store.requested) != 1 || !h.store.requested[0].Equal(at) {
			t.Fatalf("unexpected requests %v", h.store.requested)
		}
		if !strings.Contains(out, "status pending") {
			t.Fatalf("unexpected output %q", out)
		}
	})

	t.Run("past time never reaches the store", func(t *testing.T) {
		t.Parallel()

		h := newHarness(scheduling.Record{}, false)
		_, err := execute(context.Background(), h.deps, "request", "s-1", "--at", ref.Add(-time.Hour).Format(time.RFC3339))
		if !errors.Is(err, scheduling.ErrInvalidScheduleTime) {
			t.Fatalf("expected ErrInvalidScheduleTime, got %v", err)
		}
		if UserMessage(err) != "The session time must be in the future." {
			t.Fatalf("unexpected user message %q", UserMessage(err))
		}
		if len(h.store.requested) != 0 {
			t.Fatalf("store should not be called")
		}
	})

	t.Run("store rejection surfaces the server message", func(t *testing.T) {
		t.Parallel()

		h := newHarness(scheduling.Record{}, false)
		h.store.requestErr = &storeclient.APIError{StatusCode: 409, Message: "session already scheduled"}
		_, err := execute(context.Background(), h.deps, "request", "s-1", "--at", ref.Add(time.Hour).Format(time.RFC3339))
		if !errors.Is(err, scheduling.ErrRequestFailed) {
			t.Fatalf("expected ErrRequestFailed, got %v", err)
		}
		if got := UserMessage(err); got != "session already scheduled" {
			t.Fatalf("unexpected user message %q", got)
		}
	})

	t.Run("malformed time", func(t *testing.T) {
		t.Parallel()

		h := newHarness(scheduling.Record{}, false)
		if _, err := execute(context.Background(), h.deps, "request", "s-1", "--at", "tomorrow"); err == nil {
			t.Fatalf("expected parse error")
		}
	})
}

func TestWatchCommand(t *testing.T) {
	t.Parallel()

	t.Run("completed session exits immediately", func(t *testing.T) {
		t.Parallel()

		h := newHarness(scheduling.Record{Status: scheduling.StatusCompleted, ScheduledAt: testfixtures.ReferenceTime().Add(-48 * time.Hour)}, false)
		out, err := execute(context.Background(), h.deps, "watch", "s-1")
		if err != nil {
			t.Fatalf("watch returned error: %v", err)
		}
		if !strings.Contains(out, "session s-1 completed") {
			t.Fatalf("unexpected output %q", out)
		}
	})

	t.Run("announces the open meeting and completes after the window", func(t *testing.T) {
		t.Parallel()

		ref := testfixtures.ReferenceTime()
		at := ref.Add(5 * time.Minute)
		link := "https://meet.example.com/w"
		h := newHarness(scheduling.Record{Status: scheduling.StatusAssigned, ScheduledAt: at, MeetingLink: link, CoachID: "coach-2"}, false)

		type result struct {
			out string
			err error
		}
		done := make(chan result, 1)
		go func() {
			out, err := execute(context.Background(), h.deps, "watch", "s-1")
			done <- result{out: out, err: err}
		}()

		// Polling starts while the initial record is applied, so the open
		// window has been observed before the clock moves on.
		h.tickers.Await(t, 30*time.Second)
		h.clock.Set(at.Add(scheduling.CompletionGrace))
		if !h.tickers.Await(t, time.Minute).Fire(h.clock.Now(), 2*time.Second) {
			t.Fatalf("tick was not consumed")
		}

		select {
		case res := <-done:
			if res.err != nil {
				t.Fatalf("watch returned error: %v", res.err)
			}
			for _, want := range []string{"meeting is open: " + link, "completed", "session s-1 completed"} {
				if !strings.Contains(res.out, want) {
					t.Fatalf("output missing %q:\n%s", want, res.out)
				}
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("watch did not finish")
		}
		if got := h.store.completionCount(); got != 1 {
			t.Fatalf("expected one completion write, got %d", got)
		}
	})

	t.Run("cancellation is a clean exit", func(t *testing.T) {
		t.Parallel()

		h := newHarness(scheduling.Record{Status: scheduling.StatusPending, ScheduledAt: testfixtures.ReferenceTime().Add(time.Hour)}, false)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			_, err := execute(ctx, h.deps, "watch", "s-1")
			done <- err
		}()

		h.tickers.Await(t, time.Minute)
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("expected nil on cancellation, got %v", err)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("watch did not stop")
		}
	})
}

func TestAssignerCommands(t *testing.T) {
	t.Parallel()

	t.Run("require an assigner key", func(t *testing.T) {
		t.Parallel()

		h := newHarness(scheduling.Record{}, false)
		for _, args := range [][]string{
			{"assign", "s-1", "--coach", "c"},
			{"reset", "s-1"},
			{"list"},
		} {
			if _, err := execute(context.Background(), h.deps, args...); !errors.Is(err, errNoAssignerKey) {
				t.Fatalf("%v: expected errNoAssignerKey, got %v", args, err)
			}
		}
	})

	t.Run("assign and reset", func(t *testing.T) {
		t.Parallel()

		h := newHarness(scheduling.Record{Status: scheduling.StatusPending, ScheduledAt: testfixtures.ReferenceTime().Add(time.Hour)}, true)
		out, err := execute(context.Background(), h.deps, "assign", "s-1", "--coach", "coach-4", "--link", "https://meet.example.com/z")
		if err != nil {
			t.Fatalf("assign returned error: %v", err)
		}
		if len(h.store.assigned) != 1 || h.store.assigned[0] != "s-1=coach-4" || !strings.Contains(out, "assigned") {
			t.Fatalf("unexpected assign result %v\n%s", h.store.assigned, out)
		}

		out, err = execute(context.Background(), h.deps, "reset", "s-1")
		if err != nil {
			t.Fatalf("reset returned error: %v", err)
		}
		if len(h.store.resets) != 1 || !strings.Contains(out, "not_scheduled") {
			t.Fatalf("unexpected reset result %v\n%s", h.store.resets, out)
		}
	})

	t.Run("list forwards filters", func(t *testing.T) {
		t.Parallel()

		h := newHarness(scheduling.Record{}, true)
		out, err := execute(context.Background(), h.deps, "list", "--status", "pending,assigned", "--coach", "coach-1", "--before", "2024-01-05T00:00:00.5Z", "--limit", "10")
		if err != nil {
			t.Fatalf("list returned error: %v", err)
		}
		want := []scheduling.Status{scheduling.StatusPending, scheduling.StatusAssigned}
		if len(h.store.listed) != 2 || h.store.listed[0] != want[0] || h.store.listed[1] != want[1] {
			t.Fatalf("unexpected statuses %v", h.store.listed)
		}
		if h.store.listCoach != "coach-1" || h.store.listLimit != 10 {
			t.Fatalf("unexpected filter coach=%q limit=%d", h.store.listCoach, h.store.listLimit)
		}
		if wantBefore := time.Date(2024, time.January, 5, 0, 0, 0, 500_000_000, time.UTC); !h.store.listBefore.Equal(wantBefore) {
			t.Fatalf("unexpected before bound %v", h.store.listBefore)
		}
		if !strings.Contains(out, "SESSION") || !strings.Contains(out, "coach-1") {
			t.Fatalf("unexpected output:\n%s", out)
		}
	})

	t.Run("list rejects unknown statuses", func(t *testing.T) {
		t.Parallel()

		h := newHarness(scheduling.Record{}, true)
		if _, err := execute(context.Background(), h.deps, "list", "--status", "not_scheduled"); err == nil {
			t.Fatalf("expected error for not_scheduled filter")
		}
	})
}
