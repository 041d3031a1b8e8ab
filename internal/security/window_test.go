package security

import (
	"sync"
	"testing"
	"time"
)

// fakeClock is a controllable Clock shared by the tests in this package.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	// Minute-aligned base keeps bucket math easy to follow.
	return &fakeClock{now: time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestSlidingWindow_CountWithin(t *testing.T) {
	clock := newFakeClock()
	w := NewSlidingWindow()

	// Three events spread over 90 seconds.
	w.Record("client-1", clock.Now())
	clock.Advance(30 * time.Second)
	w.Record("client-1", clock.Now())
	clock.Advance(60 * time.Second)
	w.Record("client-1", clock.Now())

	now := clock.Now()

	if got := w.CountWithin("client-1", time.Second, now); got != 1 {
		t.Errorf("count within 1s = %d, want 1", got)
	}
	if got := w.CountWithin("client-1", time.Minute, now); got != 2 {
		t.Errorf("count within 1m = %d, want 2", got)
	}
	if got := w.CountWithin("client-1", 2*time.Minute, now); got != 3 {
		t.Errorf("count within 2m = %d, want 3", got)
	}
}

func TestSlidingWindow_UnknownIdentity(t *testing.T) {
	w := NewSlidingWindow()
	if got := w.CountWithin("nobody", time.Minute, time.Now()); got != 0 {
		t.Errorf("count for unknown identity = %d, want 0", got)
	}
}

func TestSlidingWindow_EvictionBeyondRetention(t *testing.T) {
	clock := newFakeClock()
	w := NewSlidingWindow()

	for i := 0; i < 10; i++ {
		w.Record("client-1", clock.Now())
	}

	// Past the retention window everything is gone, even for a wide query.
	clock.Advance(retentionWindow + time.Second)
	if got := w.CountWithin("client-1", 10*time.Minute, clock.Now()); got != 0 {
		t.Errorf("count after retention = %d, want 0", got)
	}

	// The log itself was emptied, not just filtered.
	value, ok := w.logs.Load("client-1")
	if !ok {
		t.Fatal("log entry missing")
	}
	if n := len(value.(*timestampLog).timestamps); n != 0 {
		t.Errorf("stored timestamps = %d, want 0", n)
	}
}

func TestSlidingWindow_CountIsStable(t *testing.T) {
	clock := newFakeClock()
	w := NewSlidingWindow()

	w.Record("client-1", clock.Now())
	w.Record("client-1", clock.Now())

	now := clock.Now()
	first := w.CountWithin("client-1", time.Minute, now)
	second := w.CountWithin("client-1", time.Minute, now)
	if first != second {
		t.Errorf("repeated counts differ: %d then %d", first, second)
	}
}

func TestSlidingWindow_Admit_RecordsOnApproval(t *testing.T) {
	clock := newFakeClock()
	w := NewSlidingWindow()

	admitted, lastSecond, lastMinute := w.Admit("client-1", clock.Now(), func(s, m int) bool {
		return m < 5
	})
	if !admitted || lastSecond != 0 || lastMinute != 0 {
		t.Errorf("first admit = (%v, %d, %d), want (true, 0, 0)", admitted, lastSecond, lastMinute)
	}

	// Denial must not record the event.
	admitted, _, lastMinute = w.Admit("client-1", clock.Now(), func(s, m int) bool {
		return false
	})
	if admitted {
		t.Error("admit with rejecting decision returned true")
	}
	if lastMinute != 1 {
		t.Errorf("lastMinute = %d, want 1", lastMinute)
	}
	if got := w.CountWithin("client-1", time.Minute, clock.Now()); got != 1 {
		t.Errorf("count after denied admit = %d, want 1", got)
	}
}

func TestSlidingWindow_Admit_AtomicAtBoundary(t *testing.T) {
	const limit = 50
	clock := newFakeClock()
	w := NewSlidingWindow()
	now := clock.Now()

	// 100 concurrent requests race for 50 slots. Count-then-record runs
	// under the identity's lock, so exactly 50 may win.
	var wg sync.WaitGroup
	var mu sync.Mutex
	admittedCount := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _, _ := w.Admit("client-1", now, func(s, m int) bool {
				return m < limit
			})
			if ok {
				mu.Lock()
				admittedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admittedCount != limit {
		t.Errorf("admitted = %d, want exactly %d", admittedCount, limit)
	}
	if got := w.CountWithin("client-1", time.Minute, now); got != limit {
		t.Errorf("recorded = %d, want %d", got, limit)
	}
}

func TestSlidingWindow_IndependentIdentities(t *testing.T) {
	clock := newFakeClock()
	w := NewSlidingWindow()

	for i := 0; i < 5; i++ {
		w.Record("client-a", clock.Now())
	}
	w.Record("client-b", clock.Now())

	now := clock.Now()
	if got := w.CountWithin("client-a", time.Minute, now); got != 5 {
		t.Errorf("client-a count = %d, want 5", got)
	}
	if got := w.CountWithin("client-b", time.Minute, now); got != 1 {
		t.Errorf("client-b count = %d, want 1", got)
	}
}

func TestSlidingWindow_Sweep(t *testing.T) {
	clock := newFakeClock()
	w := NewSlidingWindow()

	w.Record("old", clock.Now())
	clock.Advance(retentionWindow + time.Second)
	w.Record("fresh", clock.Now())

	removed := w.Sweep(clock.Now())
	if removed != 1 {
		t.Errorf("swept = %d, want 1", removed)
	}
	if _, ok := w.logs.Load("old"); ok {
		t.Error("stale identity still tracked after sweep")
	}
	if _, ok := w.logs.Load("fresh"); !ok {
		t.Error("fresh identity removed by sweep")
	}
}

func TestSlidingWindow_EvictionReallocatesLargeLogs(t *testing.T) {
	clock := newFakeClock()
	w := NewSlidingWindow()

	// Build a large log, then let most of it expire so eviction takes the
	// reallocation path.
	for i := 0; i < 500; i++ {
		w.Record("burst", clock.Now())
	}
	clock.Advance(retentionWindow + time.Second)
	w.Record("burst", clock.Now())

	value, _ := w.logs.Load("burst")
	l := value.(*timestampLog)
	l.mu.Lock()
	length, capacity := len(l.timestamps), cap(l.timestamps)
	l.mu.Unlock()

	if length != 1 {
		t.Errorf("len = %d, want 1", length)
	}
	if capacity >= 500 {
		t.Errorf("cap = %d, want shrunk backing array", capacity)
	}
}
