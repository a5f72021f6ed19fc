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

// Store is the narrow view of the scheduling store used by the controller.
type Store interface {
	CompletionWriter
	FetchSchedule(ctx context.Context, sessionID string) (Record, error)
	RequestSchedule(ctx context.Context, sessionID string, at time.Time) (Record, error)
}

// View is the read model published after every handled event.
type View struct {
	SessionID           string
	Status              Status
	ScheduledAt         time.Time
	MeetingLink         string
	CoachID             string
	TimeUntilStart      time.Duration
	CanJoin             bool
	Overdue             bool
	LastObservedAt      time.Time
	CompletionConfirmed bool
}

func viewOf(s Snapshot) View {
	return View{
		SessionID:           s.Record.SessionID,
		Status:              s.Record.Status,
		ScheduledAt:         s.Record.ScheduledAt,
		MeetingLink:         s.Record.MeetingLink,
		CoachID:             s.Record.CoachID,
		TimeUntilStart:      s.Window.TimeUntilStart,
		CanJoin:             s.CanJoin,
		Overdue:             s.Window.Overdue,
		LastObservedAt:      s.LastObservedAt,
		CompletionConfirmed: s.CompletionConfirmed,
	}
}

// ControllerConfig wires a Controller.
type ControllerConfig struct {
	SessionID             string
	Store                 Store
	Notifier              *CompletionNotifier
	Now                   func() time.Time
	NewTicker             TickerFunc
	PollInterval          time.Duration
	TickInterval          time.Duration
	FetchTimeout          time.Duration
	MaxCompletionAttempts int
	Logger                *slog.Logger
	Metrics               Recorder
	// OnChange, when set, is called from the controller goroutine after every handled event.
	OnChange func(View)
}

type envelope struct {
	ev    Event
	reply chan View
}

// Controller runs the scheduling state machine for one session. All state
// changes happen on the goroutine executing Run; store calls run elsewhere and
// post their results back.
type Controller struct {
	sessionID    string
	store        Store
	notifier     *CompletionNotifier
	now          func() time.Time
	newTicker    TickerFunc
	pollInterval time.Duration
	tickInterval time.Duration
	fetchTimeout time.Duration
	logger       *slog.Logger
	metrics      Recorder
	onChange     func(View)

	machine *Machine
	poller  *Poller
	events  chan envelope

	mu   sync.RWMutex
	view View

	started    atomic.Bool
	submitting atomic.Bool
	ready      chan struct{}
	readyOnce  sync.Once
	done       chan struct{}
	writes     sync.WaitGroup
	ticking    bool
}

// NewController validates cfg and returns a controller ready to Run.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.SessionID == "" {
		return nil, errors.New("scheduling: session id is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("scheduling: store is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = NewTicker
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	logger := defaultLogger(cfg.Logger).With("session_id", cfg.SessionID)
	metrics := defaultRecorder(cfg.Metrics)
	if cfg.Notifier == nil {
		cfg.Notifier = NewCompletionNotifier(cfg.Store, cfg.FetchTimeout, logger, metrics)
	}

	c := &Controller{
		sessionID:    cfg.SessionID,
		store:        cfg.Store,
		notifier:     cfg.Notifier,
		now:          cfg.Now,
		newTicker:    cfg.NewTicker,
		pollInterval: cfg.PollInterval,
		tickInterval: cfg.TickInterval,
		fetchTimeout: cfg.FetchTimeout,
		logger:       logger,
		metrics:      metrics,
		onChange:     cfg.OnChange,
		machine:      NewMachine(cfg.SessionID, Rules{MaxCompletionAttempts: cfg.MaxCompletionAttempts}, cfg.Now),
		events:       make(chan envelope),
		ready:        make(chan struct{}),
		done:         make(chan struct{}),
	}
	c.view = viewOf(c.machine.Snapshot())
	return c, nil
}

// Current returns the latest published view.
func (c *Controller) Current() View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.view
}

// Ready is closed once the initial record has been loaded.
func (c *Controller) Ready() <-chan struct{} {
	return c.ready
}

// Done is closed when Run returns.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Run loads the session's record and processes events until ctx is cancelled
// or the session has settled as completed.
func (c *Controller) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrControllerRunning
	}
	defer close(c.done)

	loopCtx, cancel := context.WithCancel(ctx)
	poller, err := NewPoller(PollerConfig{
		Interval: c.pollInterval,
		Timeout:  c.fetchTimeout,
		Fetch: func(ctx context.Context) (Record, error) {
			return c.store.FetchSchedule(ctx, c.sessionID)
		},
		Deliver: func(ctx context.Context, rec Record) {
			c.post(ctx, envelope{ev: RecordObserved{Record: rec}})
		},
		NewTicker: c.newTicker,
		Logger:    c.logger,
		Metrics:   c.metrics,
	})
	if err != nil {
		cancel()
		return err
	}
	c.poller = poller
	defer func() {
		cancel()
		c.poller.Stop()
		c.writes.Wait()
	}()

	fetchCtx, fetchCancel := context.WithTimeout(loopCtx, c.fetchTimeout)
	initial, err := c.store.FetchSchedule(fetchCtx, c.sessionID)
	fetchCancel()
	if err != nil {
		return fmt.Errorf("load schedule for session %s: %w", c.sessionID, err)
	}

	ticker := c.newTicker(c.tickInterval)
	defer ticker.Stop()
	c.ticking = true

	c.handle(loopCtx, envelope{ev: RecordObserved{Record: initial}})
	c.readyOnce.Do(func() { close(c.ready) })

	for {
		if c.machine.Snapshot().Settled() {
			c.logger.InfoContext(loopCtx, "session settled", "status", c.Current().Status)
			return nil
		}
		var tickC <-chan time.Time
		if c.ticking {
			tickC = ticker.C()
		}
		select {
		case <-loopCtx.Done():
			return ctx.Err()
		case <-tickC:
			c.handle(loopCtx, envelope{ev: Tick{}})
		case env := <-c.events:
			c.handle(loopCtx, env)
		}
	}
}

// Submit requests a session at instant at. Validation and store failures
// leave the session not_scheduled and are returned to the caller.
func (c *Controller) Submit(ctx context.Context, at time.Time) (View, error) {
	select {
	case <-c.ready:
	case <-c.done:
		return View{}, ErrControllerStopped
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
	if !c.submitting.CompareAndSwap(false, true) {
		return View{}, ErrRequestInFlight
	}
	defer c.submitting.Store(false)

	logger := c.logger.With("operation", "Submit", "scheduled_at", at)
	if err := ValidateRequest(c.Current().Status, at, c.now()); err != nil {
		logger.InfoContext(ctx, "schedule request rejected", "error", err, "error_kind", ErrorKind(err))
		return View{}, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	rec, err := c.store.RequestSchedule(reqCtx, c.sessionID, at)
	cancel()
	if err != nil {
		failure := newRequestFailed(err)
		logger.ErrorContext(ctx, "schedule request failed", "error", err, "error_kind", ErrorKind(failure))
		return View{}, failure
	}
	if rec.SessionID == "" {
		rec.SessionID = c.sessionID
	}

	reply := make(chan View, 1)
	if !c.post(ctx, envelope{ev: RequestAccepted{Record: rec}, reply: reply}) {
		return View{}, ErrControllerStopped
	}
	select {
	case view := <-reply:
		logger.InfoContext(ctx, "schedule request accepted", "status", view.Status)
		return view, nil
	case <-c.done:
		return View{}, ErrControllerStopped
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// Join returns the meeting link when the session is joinable at the current instant.
func (c *Controller) Join() (string, error) {
	view := c.Current()
	rec := Record{
		SessionID:   view.SessionID,
		Status:      view.Status,
		ScheduledAt: view.ScheduledAt,
		MeetingLink: view.MeetingLink,
	}
	if !CanJoin(rec, c.now()) {
		return "", ErrJoinUnavailable
	}
	return view.MeetingLink, nil
}

func (c *Controller) post(ctx context.Context, env envelope) bool {
	select {
	case c.events <- env:
		return true
	case <-ctx.Done():
		return false
	case <-c.done:
		return false
	}
}

func (c *Controller) handle(ctx context.Context, env envelope) {
	prior := c.machine.Snapshot()
	effects := c.machine.Apply(env.ev)
	snapshot := c.machine.Snapshot()
	before, after := prior.Record.Status, snapshot.Record.Status

	if before != after {
		c.metrics.Transitioned(before.String(), after.String())
		c.logger.InfoContext(ctx, "session status changed", "from", before, "to", after)
	}
	if snapshot.CompletionConfirmed {
		c.notifier.MarkConfirmed(c.sessionID)
	}
	if snapshot.CompletionAbandoned && !prior.CompletionAbandoned {
		c.logger.ErrorContext(ctx, "giving up on completion write", "attempts", snapshot.CompletionAttempts, "error", snapshot.LastCompletionError)
	}

	for _, effect := range effects {
		switch effect {
		case EffectStartPolling:
			c.poller.Start(ctx)
		case EffectStopPolling:
			c.poller.Stop()
		case EffectWriteCompletion:
			c.writeCompletion(ctx)
		case EffectStopTicking:
			c.ticking = false
		}
	}

	view := viewOf(snapshot)
	c.mu.Lock()
	c.view = view
	c.mu.Unlock()

	if env.reply != nil {
		env.reply <- view
	}
	if c.onChange != nil {
		c.onChange(view)
	}
}

func (c *Controller) writeCompletion(ctx context.Context) {
	c.writes.Add(1)
	go func() {
		defer c.writes.Done()
		err := c.notifier.Notify(ctx, c.sessionID)
		c.post(ctx, envelope{ev: CompletionWritten{Err: err}})
	}()
}
