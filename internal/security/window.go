package security

import (
	"sync"
	"time"
)

// retentionWindow is the widest interval any caller counts against. Entries
// at or beyond this age are evicted whenever a log is touched.
const retentionWindow = 2 * time.Minute

// timestampLog holds the recent event timestamps for one identity, oldest
// first. Each log carries its own mutex so identities never contend with
// each other.
type timestampLog struct {
	mu         sync.Mutex
	timestamps []time.Time
}

// evict drops entries outside the retention window. The backing array is
// reused; it is reallocated only when a large share of a big log was
// dropped, so memory is actually reclaimed after a burst.
func (l *timestampLog) evict(now time.Time) {
	cutoff := now.Add(-retentionWindow)
	oldCount := len(l.timestamps)
	kept := l.timestamps[:0]
	for _, ts := range l.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) < oldCount/2 && oldCount > 100 {
		l.timestamps = append([]time.Time(nil), kept...)
	} else {
		l.timestamps = kept
	}
}

// countWithin reports how many entries are strictly newer than now - d.
// Caller holds the lock.
func (l *timestampLog) countWithin(d time.Duration, now time.Time) int {
	cutoff := now.Add(-d)
	n := 0
	for _, ts := range l.timestamps {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}

// SlidingWindow tracks request timestamps per client identity and answers
// how many fall within a recent interval. Logs for different identities are
// fully independent; mutating one never observes another.
type SlidingWindow struct {
	logs sync.Map // map[string]*timestampLog
}

// NewSlidingWindow returns an empty window.
func NewSlidingWindow() *SlidingWindow {
	return &SlidingWindow{}
}

func (w *SlidingWindow) log(identity string) *timestampLog {
	value, _ := w.logs.LoadOrStore(identity, &timestampLog{})
	return value.(*timestampLog)
}

// Record appends an event timestamp to the identity's log, evicting entries
// outside the retention window on the way.
func (w *SlidingWindow) Record(identity string, now time.Time) {
	l := w.log(identity)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict(now)
	l.timestamps = append(l.timestamps, now)
}

// CountWithin reports how many events for identity happened after now - d.
// Aside from evicting entries past the retention window it does not mutate
// the log, so repeated calls at the same instant return the same count.
func (w *SlidingWindow) CountWithin(identity string, d time.Duration, now time.Time) int {
	value, ok := w.logs.Load(identity)
	if !ok {
		return 0
	}
	l := value.(*timestampLog)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict(now)
	return l.countWithin(d, now)
}

// Admit runs decide against the identity's current one-second and one-minute
// counts and, when decide approves, records the event, all under the
// identity's lock. Two concurrent requests racing for the last slot can
// therefore never both be admitted. The returned counts are the ones decide
// observed, taken before the event was recorded.
func (w *SlidingWindow) Admit(identity string, now time.Time, decide func(lastSecond, lastMinute int) bool) (admitted bool, lastSecond, lastMinute int) {
	l := w.log(identity)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict(now)
	lastSecond = l.countWithin(time.Second, now)
	lastMinute = l.countWithin(time.Minute, now)
	if !decide(lastSecond, lastMinute) {
		return false, lastSecond, lastMinute
	}
	l.timestamps = append(l.timestamps, now)
	return true, lastSecond, lastMinute
}

// Sweep removes identities whose logs hold no entries inside the retention
// window. Per-log eviction already bounds each log; Sweep reclaims the map
// entries of identities that went quiet and is meant for a periodic hygiene
// worker, never for correctness.
func (w *SlidingWindow) Sweep(now time.Time) (removed int) {
	w.logs.Range(func(key, value any) bool {
		l := value.(*timestampLog)
		l.mu.Lock()
		l.evict(now)
		empty := len(l.timestamps) == 0
		l.mu.Unlock()
		if empty {
			w.logs.Delete(key)
			removed++
		}
		return true
	})
	return removed
}
