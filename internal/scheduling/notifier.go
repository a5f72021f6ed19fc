package scheduling

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// CompletionWriter persists the completed status of a session.
type CompletionWriter interface {
	MarkCompleted(ctx context.Context, sessionID string) (Record, error)
}

// CompletionNotifier writes completion back to the store at most once per
// session. Overlapping calls share one write; once a write is confirmed,
// further calls are no-ops.
type CompletionNotifier struct {
	writer  CompletionWriter
	timeout time.Duration
	logger  *slog.Logger
	metrics Recorder

	group     singleflight.Group
	mu        sync.Mutex
	confirmed map[string]struct{}
}

// NewCompletionNotifier returns a notifier writing through writer.
func NewCompletionNotifier(writer CompletionWriter, timeout time.Duration, logger *slog.Logger, metrics Recorder) *CompletionNotifier {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &CompletionNotifier{
		writer:    writer,
		timeout:   timeout,
		logger:    defaultLogger(logger),
		metrics:   defaultRecorder(metrics),
		confirmed: make(map[string]struct{}),
	}
}

// Notify marks sessionID completed in the store. Failures wrap ErrCompletionWriteFailed.
func (n *CompletionNotifier) Notify(ctx context.Context, sessionID string) error {
	if n == nil || n.writer == nil {
		return fmt.Errorf("%w: notifier not configured", ErrCompletionWriteFailed)
	}
	if n.Confirmed(sessionID) {
		n.metrics.CompletionWrite("duplicate")
		return nil
	}

	_, err, shared := n.group.Do(sessionID, func() (any, error) {
		if n.Confirmed(sessionID) {
			return nil, nil
		}
		writeCtx, cancel := context.WithTimeout(ctx, n.timeout)
		defer cancel()
		if _, err := n.writer.MarkCompleted(writeCtx, sessionID); err != nil {
			return nil, err
		}
		n.MarkConfirmed(sessionID)
		return nil, nil
	})

	logger := n.logger.With("session_id", sessionID)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrCompletionWriteFailed, err)
		n.metrics.CompletionWrite("error")
		logger.ErrorContext(ctx, "completion write failed", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	if shared {
		n.metrics.CompletionWrite("shared")
	} else {
		n.metrics.CompletionWrite("ok")
	}
	logger.InfoContext(ctx, "session marked completed")
	return nil
}

// Confirmed reports whether completion of sessionID is known to be persisted.
func (n *CompletionNotifier) Confirmed(sessionID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.confirmed[sessionID]
	return ok
}

// MarkConfirmed records that the store already holds completion for sessionID.
func (n *CompletionNotifier) MarkConfirmed(sessionID string) {
	n.mu.Lock()
	n.confirmed[sessionID] = struct{}{}
	n.mu.Unlock()
}
