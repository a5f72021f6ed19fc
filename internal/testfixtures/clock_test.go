package testfixtures

import (
	"testing"
	"time"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	t.Parallel()

	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}
}

func TestClockAdvanceAndSet(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, time.March, 14, 9, 26, 0, 0, time.UTC)
	clock := NewClock(start)
	nowFn := clock.NowFunc()

	if got := clock.Advance(25 * time.Hour); !got.Equal(start.Add(25 * time.Hour)) {
		t.Fatalf("advance returned %v", got)
	}
	if got := nowFn(); !got.Equal(start.Add(25 * time.Hour)) {
		t.Fatalf("NowFunc did not observe advance: %v", got)
	}

	clock.Set(start)
	if got := clock.Now(); !got.Equal(start) {
		t.Fatalf("expected %v after Set, got %v", start, got)
	}
}

func TestManualTickerFireAndStop(t *testing.T) {
	t.Parallel()

	tickers := NewTickers()
	ticker := tickers.New(time.Minute)
	if tickers.Count(time.Minute) != 1 || tickers.Latest(time.Minute) != ticker {
		t.Fatalf("expected ticker to be recorded")
	}

	received := make(chan time.Time, 1)
	go func() { received <- <-ticker.C() }()

	at := ReferenceTime()
	if !ticker.Fire(at, time.Second) {
		t.Fatalf("expected tick to be consumed")
	}
	if got := <-received; !got.Equal(at) {
		t.Fatalf("expected %v, got %v", at, got)
	}

	ticker.Stop()
	if ticker.Fire(at, 10*time.Millisecond) {
		t.Fatalf("expected stopped ticker to drop ticks")
	}
}

func TestManualTickerFireTimesOutWithoutReceiver(t *testing.T) {
	t.Parallel()

	ticker := NewTickers().New(time.Second)
	if ticker.Fire(ReferenceTime(), 10*time.Millisecond) {
		t.Fatalf("expected Fire to time out")
	}
}
