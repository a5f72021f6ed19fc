package scheduling

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingWriter struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (w *countingWriter) MarkCompleted(ctx context.Context, sessionID string) (Record, error) {
	w.calls.Add(1)
	if w.release != nil {
		select {
		case <-w.release:
		case <-ctx.Done():
			return Record{}, ctx.Err()
		}
	}
	if w.err != nil {
		return Record{}, w.err
	}
	return Record{SessionID: sessionID, Status: StatusCompleted}, nil
}

type outcomeRecorder struct {
	mu       sync.Mutex
	writes   []string
	polls    []string
	statuses []string
}

func (r *outcomeRecorder) PollCompleted(outcome string) {
	r.mu.Lock()
	r.polls = append(r.polls, outcome)
	r.mu.Unlock()
}

func (r *outcomeRecorder) CompletionWrite(outcome string) {
	r.mu.Lock()
	r.writes = append(r.writes, outcome)
	r.mu.Unlock()
}

func (r *outcomeRecorder) Transitioned(from, to string) {
	r.mu.Lock()
	r.statuses = append(r.statuses, from+"->"+to)
	r.mu.Unlock()
}

func TestCompletionNotifierWritesOnce(t *testing.T) {
	t.Parallel()

	writer := &countingWriter{}
	metrics := &outcomeRecorder{}
	notifier := NewCompletionNotifier(writer, time.Second, nil, metrics)

	for i := 0; i < 3; i++ {
		if err := notifier.Notify(context.Background(), "s-1"); err != nil {
			t.Fatalf("Notify returned error: %v", err)
		}
	}
	if got := writer.calls.Load(); got != 1 {
		t.Fatalf("expected a single write, got %d", got)
	}
	if !notifier.Confirmed("s-1") {
		t.Fatalf("expected session to be confirmed")
	}
	if len(metrics.writes) != 3 || metrics.writes[0] != "ok" || metrics.writes[2] != "duplicate" {
		t.Fatalf("unexpected write outcomes %v", metrics.writes)
	}
}

func TestCompletionNotifierSharesConcurrentWrites(t *testing.T) {
	t.Parallel()

	writer := &countingWriter{release: make(chan struct{})}
	notifier := NewCompletionNotifier(writer, time.Second, nil, nil)

	const callers = 5
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- notifier.Notify(context.Background(), "s-1")
		}()
	}

	deadline := time.Now().Add(time.Second)
	for writer.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	// Give the remaining callers time to join the in-flight write.
	time.Sleep(20 * time.Millisecond)
	close(writer.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Notify returned error: %v", err)
		}
	}
	if got := writer.calls.Load(); got != 1 {
		t.Fatalf("expected one shared write, got %d", got)
	}
}

func TestCompletionNotifierWrapsFailures(t *testing.T) {
	t.Parallel()

	cause := errors.New("store unavailable")
	writer := &countingWriter{err: cause}
	notifier := NewCompletionNotifier(writer, time.Second, nil, nil)

	err := notifier.Notify(context.Background(), "s-1")
	if !errors.Is(err, ErrCompletionWriteFailed) || !errors.Is(err, cause) {
		t.Fatalf("expected wrapped completion failure, got %v", err)
	}
	if notifier.Confirmed("s-1") {
		t.Fatalf("failed write must not be confirmed")
	}

	writer.err = nil
	if err := notifier.Notify(context.Background(), "s-1"); err != nil {
		t.Fatalf("retry returned error: %v", err)
	}
	if got := writer.calls.Load(); got != 2 {
		t.Fatalf("expected retry to write again, got %d calls", got)
	}
}

func TestCompletionNotifierSkipsExternallyConfirmed(t *testing.T) {
	t.Parallel()

	writer := &countingWriter{}
	notifier := NewCompletionNotifier(writer, time.Second, nil, nil)
	notifier.MarkConfirmed("s-1")

	if err := notifier.Notify(context.Background(), "s-1"); err != nil {
		t.Fatalf("Notify returned error: %v", err)
	}
	if writer.calls.Load() != 0 {
		t.Fatalf("expected no write for confirmed session")
	}
}
