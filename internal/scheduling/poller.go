package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultPollInterval is the cadence of status fetches while a session is active.
	DefaultPollInterval = 30 * time.Second
	// DefaultTickInterval is the cadence of time-window recalculation.
	DefaultTickInterval = 60 * time.Second
	// DefaultFetchTimeout bounds a single call to the store.
	DefaultFetchTimeout = 10 * time.Second
)

// Ticker delivers instants on a channel until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type realTicker struct {
	t *time.Ticker
}

// NewTicker wraps time.NewTicker.
func NewTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Poller periodically fetches a session's record and hands it to deliver.
type Poller struct {
	interval  time.Duration
	timeout   time.Duration
	fetch     func(ctx context.Context) (Record, error)
	deliver   func(ctx context.Context, rec Record)
	newTicker TickerFunc
	logger    *slog.Logger
	metrics   Recorder

	mu       sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	inflight atomic.Bool
}

// PollerConfig wires a Poller.
type PollerConfig struct {
	Interval  time.Duration
	Timeout   time.Duration
	Fetch     func(ctx context.Context) (Record, error)
	Deliver   func(ctx context.Context, rec Record)
	NewTicker TickerFunc
	Logger    *slog.Logger
	Metrics   Recorder
}

// NewPoller validates cfg and returns a stopped poller.
func NewPoller(cfg PollerConfig) (*Poller, error) {
	if cfg.Fetch == nil || cfg.Deliver == nil {
		return nil, errors.New("scheduling: poller requires fetch and deliver functions")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultFetchTimeout
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = NewTicker
	}
	return &Poller{
		interval:  cfg.Interval,
		timeout:   cfg.Timeout,
		fetch:     cfg.Fetch,
		deliver:   cfg.Deliver,
		newTicker: cfg.NewTicker,
		logger:    defaultLogger(cfg.Logger),
		metrics:   defaultRecorder(cfg.Metrics),
	}, nil
}

// Start begins polling. Calling Start on a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	ticker := p.newTicker(p.interval)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer ticker.Stop()
		p.logger.DebugContext(loopCtx, "status poller started", "interval", p.interval)
		for {
			select {
			case <-loopCtx.Done():
				p.logger.DebugContext(loopCtx, "status poller stopped")
				return
			case <-ticker.C():
				p.pollOnce(loopCtx)
			}
		}
	}()
}

// Stop cancels polling and waits for the loop and any in-flight fetch to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

// Running reports whether the poller has been started and not stopped.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Poller) pollOnce(ctx context.Context) {
	if !p.inflight.CompareAndSwap(false, true) {
		p.metrics.PollCompleted("skipped")
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.inflight.Store(false)

		fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
		rec, err := p.fetch(fetchCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			err = fmt.Errorf("%w: %w", ErrPollFailed, err)
			p.metrics.PollCompleted("error")
			p.logger.WarnContext(ctx, "status poll failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		p.metrics.PollCompleted("ok")
		p.deliver(ctx, rec)
	}()
}
