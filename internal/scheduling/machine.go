package scheduling

import "time"

// DefaultMaxCompletionAttempts bounds how many completion writes are issued
// for a session before the controller gives up.
const DefaultMaxCompletionAttempts = 5

// Snapshot is the state machine's view of one session.
type Snapshot struct {
	Record         Record
	LastObservedAt time.Time
	Window         Window
	CanJoin        bool

	CompletionAttempts  int
	CompletionInFlight  bool
	CompletionConfirmed bool
	CompletionAbandoned bool
	LastCompletionError error
}

// Settled reports whether nothing further will happen to the session.
func (s Snapshot) Settled() bool {
	return s.Record.Status == StatusCompleted && !s.CompletionInFlight &&
		(s.CompletionConfirmed || s.CompletionAbandoned)
}

// Event is an input to the state machine.
type Event interface {
	event()
}

// RequestAccepted reports that the store accepted a schedule request.
type RequestAccepted struct {
	Record Record
}

// RecordObserved reports a record fetched from the store.
type RecordObserved struct {
	Record Record
}

// Tick reports the passage of time.
type Tick struct{}

// CompletionWritten reports the outcome of a completion write.
type CompletionWritten struct {
	Err error
}

func (RequestAccepted) event()   {}
func (RecordObserved) event()    {}
func (Tick) event()              {}
func (CompletionWritten) event() {}

// Effect is a side effect requested by a transition.
type Effect int

const (
	// EffectStartPolling starts (or keeps running) the status poller.
	EffectStartPolling Effect = iota + 1
	// EffectStopPolling cancels the status poller.
	EffectStopPolling
	// EffectWriteCompletion asks the completion notifier to persist completion.
	EffectWriteCompletion
	// EffectStopTicking cancels the time-recalculation tick.
	EffectStopTicking
)

func (e Effect) String() string {
	switch e {
	case EffectStartPolling:
		return "start_polling"
	case EffectStopPolling:
		return "stop_polling"
	case EffectWriteCompletion:
		return "write_completion"
	case EffectStopTicking:
		return "stop_ticking"
	}
	return "unknown"
}

// Rules parameterises the transition function.
type Rules struct {
	MaxCompletionAttempts int
}

// DefaultRules returns the rules used when none are configured.
func DefaultRules() Rules {
	return Rules{MaxCompletionAttempts: DefaultMaxCompletionAttempts}
}

// Transition applies ev to s at instant now. It is pure.
func Transition(s Snapshot, ev Event, now time.Time) (Snapshot, []Effect) {
	return DefaultRules().Transition(s, ev, now)
}

// Transition applies ev to s at instant now under the receiver's rules.
func (r Rules) Transition(s Snapshot, ev Event, now time.Time) (Snapshot, []Effect) {
	if r.MaxCompletionAttempts <= 0 {
		r.MaxCompletionAttempts = DefaultMaxCompletionAttempts
	}

	switch e := ev.(type) {
	case RequestAccepted:
		if s.Record.Status != StatusNotScheduled && s.Record.Status != "" {
			return s, nil
		}
		return r.observe(s, e.Record, now)
	case RecordObserved:
		return r.observe(s, e.Record, now)
	case Tick:
		return r.tick(s, now)
	case CompletionWritten:
		return r.completionWritten(s, e.Err)
	}
	return s, nil
}

func (r Rules) observe(s Snapshot, rec Record, now time.Time) (Snapshot, []Effect) {
	if s.Record.Status == StatusCompleted {
		return s, nil
	}
	if s.Record.SessionID != "" && rec.SessionID != "" && rec.SessionID != s.Record.SessionID {
		return s, nil
	}

	prev := s.Record.Status
	if prev == "" {
		prev = StatusNotScheduled
	}
	next := s
	if next.Record.SessionID == "" {
		next.Record.SessionID = rec.SessionID
	}
	if next.Record.Status == "" {
		next.Record.Status = StatusNotScheduled
	}
	if rec.Status.Ahead(prev) {
		next.Record.Status = rec.Status
	}
	if !next.Record.Scheduled() && rec.Scheduled() && next.Record.Status != StatusNotScheduled {
		next.Record.ScheduledAt = rec.ScheduledAt
	}
	if next.Record.Status == StatusAssigned && rec.Status == StatusAssigned {
		if rec.MeetingLink != "" {
			next.Record.MeetingLink = rec.MeetingLink
		}
		if rec.CoachID != "" {
			next.Record.CoachID = rec.CoachID
		}
	}

	var effects []Effect
	switch next.Record.Status {
	case StatusCompleted:
		// The store already records completion; nothing is written back.
		next.Record.MeetingLink = ""
		next.CompletionConfirmed = true
		next.Window = Window{}
		next.CanJoin = false
		next.LastObservedAt = now
		return next, []Effect{EffectStopPolling, EffectStopTicking}
	case StatusPending, StatusAssigned:
		if !prev.Active() {
			effects = append(effects, EffectStartPolling)
		}
	}

	next, more := r.settle(next, now, false)
	return next, append(effects, more...)
}

func (r Rules) tick(s Snapshot, now time.Time) (Snapshot, []Effect) {
	return r.settle(s, now, true)
}

// settle recomputes derived fields and detects overdue sessions. Completion
// writes are retried only on ticks.
func (r Rules) settle(s Snapshot, now time.Time, retry bool) (Snapshot, []Effect) {
	s.LastObservedAt = now

	if s.Record.Status == StatusCompleted {
		s.Window = Window{}
		s.CanJoin = false
		if s.CompletionConfirmed {
			return s, []Effect{EffectStopTicking}
		}
		if s.CompletionInFlight || !retry || s.CompletionAbandoned {
			return s, nil
		}
		if s.CompletionAttempts >= r.MaxCompletionAttempts {
			s.CompletionAbandoned = true
			return s, []Effect{EffectStopTicking}
		}
		s.CompletionAttempts++
		s.CompletionInFlight = true
		return s, []Effect{EffectWriteCompletion}
	}

	if !s.Record.Scheduled() {
		s.Window = Window{}
		s.CanJoin = false
		return s, nil
	}

	s.Window = Evaluate(s.Record.ScheduledAt, now)
	s.CanJoin = CanJoin(s.Record, now)

	if s.Record.Status.Active() && s.Window.Overdue {
		s.Record.Status = StatusCompleted
		s.Record.MeetingLink = ""
		s.Window = Window{}
		s.CanJoin = false
		s.CompletionAttempts++
		s.CompletionInFlight = true
		return s, []Effect{EffectStopPolling, EffectWriteCompletion}
	}
	return s, nil
}

func (r Rules) completionWritten(s Snapshot, err error) (Snapshot, []Effect) {
	if s.Record.Status != StatusCompleted || !s.CompletionInFlight {
		return s, nil
	}
	s.CompletionInFlight = false
	if err == nil {
		s.CompletionConfirmed = true
		s.LastCompletionError = nil
		return s, []Effect{EffectStopTicking}
	}
	s.LastCompletionError = err
	if s.CompletionAttempts >= r.MaxCompletionAttempts {
		s.CompletionAbandoned = true
		return s, []Effect{EffectStopTicking}
	}
	return s, nil
}

// Machine owns a session snapshot and applies events to it using an injected clock.
// It is not safe for concurrent use; the Controller serialises access.
type Machine struct {
	rules    Rules
	now      func() time.Time
	snapshot Snapshot
}

// NewMachine returns a machine for sessionID in the not_scheduled state.
func NewMachine(sessionID string, rules Rules, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{
		rules: rules,
		now:   now,
		snapshot: Snapshot{
			Record: Record{SessionID: sessionID, Status: StatusNotScheduled},
		},
	}
}

// Apply feeds ev to the machine and returns the effects to run.
func (m *Machine) Apply(ev Event) []Effect {
	next, effects := m.rules.Transition(m.snapshot, ev, m.now())
	m.snapshot = next
	return effects
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	return m.snapshot
}

// ValidateRequest checks whether a schedule request for at may be submitted now.
func (m *Machine) ValidateRequest(at time.Time) error {
	return ValidateRequest(m.snapshot.Record.Status, at, m.now())
}

// ValidateRequest checks whether a session in status may request a session at
// instant at, observed at now.
func ValidateRequest(status Status, at, now time.Time) error {
	if status != StatusNotScheduled && status != "" {
		return ErrAlreadyScheduled
	}
	if at.IsZero() || !at.After(now) {
		return ErrInvalidScheduleTime
	}
	return nil
}
