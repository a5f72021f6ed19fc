package testfixtures

import (
	"sync"
	"testing"
	"time"
)

// Clock is a manually advanced time source shared by the controller, the
// application services and the HTTP layer in tests.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock returns a clock at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

// Now returns the clock's instant.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowFunc exposes Now for injection. A nil clock yields time.Now.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new instant.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	c.current = c.current.Add(d)
	updated := c.current
	c.mu.Unlock()
	return updated
}

// ManualTicker is a ticker whose ticks are delivered by the test.
type ManualTicker struct {
	Interval time.Duration

	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func newManualTicker(d time.Duration) *ManualTicker {
	return &ManualTicker{Interval: d, ch: make(chan time.Time)}
}

// C returns the tick channel.
func (t *ManualTicker) C() <-chan time.Time { return t.ch }

// Stop marks the ticker stopped; later Fire calls are dropped.
func (t *ManualTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

// Stopped reports whether Stop has been called.
func (t *ManualTicker) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Fire delivers at to the receiver, waiting up to wait. It reports whether
// the tick was consumed.
func (t *ManualTicker) Fire(at time.Time, wait time.Duration) bool {
	if t.Stopped() {
		return false
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case t.ch <- at:
		return true
	case <-timer.C:
		return false
	}
}

// Tickers records every ManualTicker it creates, keyed by interval.
type Tickers struct {
	mu      sync.Mutex
	created map[time.Duration][]*ManualTicker
}

// NewTickers returns an empty ticker registry.
func NewTickers() *Tickers {
	return &Tickers{created: make(map[time.Duration][]*ManualTicker)}
}

// New creates and records a ticker for interval d.
func (f *Tickers) New(d time.Duration) *ManualTicker {
	ticker := newManualTicker(d)
	f.mu.Lock()
	f.created[d] = append(f.created[d], ticker)
	f.mu.Unlock()
	return ticker
}

// Count returns how many tickers have been created for d.
func (f *Tickers) Count(d time.Duration) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created[d])
}

// Latest returns the most recent ticker created for d, or nil.
func (f *Tickers) Latest(d time.Duration) *ManualTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.created[d]
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}

// Await blocks until a ticker for d exists and returns the latest one.
func (f *Tickers) Await(tb testing.TB, d time.Duration) *ManualTicker {
	tb.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ticker := f.Latest(d); ticker != nil {
			return ticker
		}
		time.Sleep(time.Millisecond)
	}
	tb.Fatalf("no ticker created for interval %v", d)
	return nil
}

// Eventually polls cond until it holds or two seconds elapse.
func Eventually(tb testing.TB, cond func() bool, format string, args ...any) {
	tb.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	tb.Fatalf(format, args...)
}
