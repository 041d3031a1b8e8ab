package security

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/audit"
	"github.com/davidtres03/EcommerceStarter-sub003/internal/policy"
)

// bucketLookback bounds how far back minute buckets are kept. A bucket
// older than this can never participate in a streak.
const bucketLookback = 60 * time.Minute

// Blocker is the escalation target for spike detection. Implemented by
// ReputationStore.
type Blocker interface {
	Block(ctx context.Context, ip, reason, source string, duration time.Duration, permanent bool) Block
}

// errorBuckets holds one IP's per-minute error counts, keyed by the
// minute's Unix timestamp. Each has its own mutex: increments for the same
// (ip, minute) are atomic and different IPs never contend.
type errorBuckets struct {
	mu     sync.Mutex
	counts map[int64]int
}

// Escalation describes one spike detection result.
type Escalation struct {
	IP        string
	Streak    int  // consecutive minutes at or above the threshold
	Threshold int  // per-minute error threshold that applied
	Permanent bool // whether the resulting block is permanent
	Blocked   bool // false when IP blocking is disabled by policy
}

// ErrorSpikeDetector watches error responses per client IP and escalates to
// the reputation store when errors stay above a threshold for enough
// consecutive minutes. Detection is deliberately decoupled from rate
// limiting: a client can stay under every rate budget and still trip it.
type ErrorSpikeDetector struct {
	clock   Clock
	blocker Blocker
	events  EventSink
	buckets sync.Map // map[string]*errorBuckets
}

// NewErrorSpikeDetector creates a detector escalating to blocker and
// emitting events to events. clock may be nil for the system clock.
func NewErrorSpikeDetector(clock Clock, blocker Blocker, events EventSink) *ErrorSpikeDetector {
	if clock == nil {
		clock = SystemClock{}
	}
	if events == nil {
		events = audit.NopSink{}
	}
	return &ErrorSpikeDetector{clock: clock, blocker: blocker, events: events}
}

// RecordError ingests one error response (status >= 400) for the request's
// IP, evaluates the consecutive-minute streak, and escalates when the
// streak is long enough. Re-triggering on later errors inside the same
// spike is tolerated: re-blocking an already-blocked ip is an idempotent
// refresh. Returns the escalation when one fired, nil otherwise.
func (d *ErrorSpikeDetector) RecordError(ctx context.Context, req RequestContext, pol policy.Policy) *Escalation {
	pol = pol.Normalized()
	threshold := pol.ErrorSpikeThresholdPerMinute
	needed := pol.ErrorSpikeConsecutiveMinutes

	now := d.clock.Now()
	minute := now.Truncate(time.Minute).Unix()

	entry, _ := d.buckets.LoadOrStore(req.IP, &errorBuckets{counts: make(map[int64]int)})
	b := entry.(*errorBuckets)

	b.mu.Lock()
	b.counts[minute]++
	horizon := minute - int64(bucketLookback/time.Second)
	for m := range b.counts {
		if m < horizon {
			delete(b.counts, m)
		}
	}
	// The streak must be unbroken, walking backward from the current
	// minute. One quiet minute resets it.
	streak := 0
	for i := 0; i < needed; i++ {
		if b.counts[minute-int64(i*60)] < threshold {
			break
		}
		streak++
	}
	b.mu.Unlock()

	if streak < needed {
		return nil
	}
	return d.escalate(ctx, req, pol, streak)
}

func (d *ErrorSpikeDetector) escalate(ctx context.Context, req RequestContext, pol policy.Policy, streak int) *Escalation {
	esc := &Escalation{
		IP:        req.IP,
		Streak:    streak,
		Threshold: pol.ErrorSpikeThresholdPerMinute,
		Permanent: pol.AutoPermanentBlacklistEnabled,
	}
	reason := fmt.Sprintf("error spike: %d or more errors per minute for %d consecutive minute(s)",
		pol.ErrorSpikeThresholdPerMinute, streak)

	if pol.IPBlockingEnabled {
		duration := time.Duration(pol.IPBlockDurationMinutes) * time.Minute
		d.blocker.Block(ctx, req.IP, reason, BlockSourceErrorSpike, duration, esc.Permanent)
		esc.Blocked = true
	}

	d.events.Record(ctx, audit.Event{
		Type:      audit.EventSuspiciousActivity,
		Severity:  audit.SeverityHigh,
		IPAddress: req.IP,
		Endpoint:  req.Path,
		UserAgent: req.UserAgent,
		Details:   reason,
		IsBlocked: esc.Blocked,
	})
	if esc.Blocked && esc.Permanent {
		d.events.Record(ctx, audit.Event{
			Type:      audit.EventIPBlacklistedPermanent,
			Severity:  audit.SeverityCritical,
			IPAddress: req.IP,
			Endpoint:  req.Path,
			UserAgent: req.UserAgent,
			Details:   "permanently blacklisted after sustained error spike",
			IsBlocked: true,
		})
	}
	return esc
}

// Sweep drops IPs whose buckets are all outside the lookback horizon.
// Hygiene only; RecordError prunes per-IP buckets on every touch.
func (d *ErrorSpikeDetector) Sweep(now time.Time) (removed int) {
	horizon := now.Truncate(time.Minute).Unix() - int64(bucketLookback/time.Second)
	d.buckets.Range(func(key, value any) bool {
		b := value.(*errorBuckets)
		b.mu.Lock()
		stale := true
		for m := range b.counts {
			if m >= horizon {
				stale = false
				break
			}
		}
		b.mu.Unlock()
		if stale {
			d.buckets.Delete(key)
			removed++
		}
		return true
	})
	return removed
}
