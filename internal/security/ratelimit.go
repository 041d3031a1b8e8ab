package security

import (
	"time"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/policy"
)

// RateLimitResult is the outcome of one rate-limit check.
type RateLimitResult struct {
	Allowed    bool
	Limit      int       // per-minute limit that applied
	Remaining  int       // per-minute quota left after this request
	RetryAfter int       // seconds; 1 for a per-second breach, 60 for per-minute
	Reset      time.Time // when the per-minute window rolls over
}

// RateLimiter enforces the per-second and per-minute budgets against a
// shared sliding window. It only ever denies individual requests; blocking
// an IP outright is the spike detector's job.
type RateLimiter struct {
	window *SlidingWindow
	clock  Clock
}

// NewRateLimiter creates a limiter over the given window. Nil arguments get
// a fresh window and the system clock.
func NewRateLimiter(window *SlidingWindow, clock Clock) *RateLimiter {
	if window == nil {
		window = NewSlidingWindow()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &RateLimiter{window: window, clock: clock}
}

// Check decides whether identity has budget left for the given endpoint
// class and records the request when it does. The per-second budget is
// checked before the per-minute budget, and count-then-record runs
// atomically per identity, so a client sitting exactly at its limit is
// denied on the crossing request even under concurrency.
func (rl *RateLimiter) Check(identity string, class EndpointClass, pol policy.Policy) RateLimitResult {
	pol = pol.Normalized()

	secondLimit := pol.MaxRequestsPerSecond
	minuteLimit := pol.MaxRequestsPerMinute
	if class == ClassAuthSensitive {
		secondLimit = pol.MaxRequestsPerSecondAuth
		minuteLimit = pol.MaxRequestsPerMinuteAuth
	}

	now := rl.clock.Now()
	admitted, lastSecond, lastMinute := rl.window.Admit(identity, now, func(lastSecond, lastMinute int) bool {
		return lastSecond < secondLimit && lastMinute < minuteLimit
	})

	result := RateLimitResult{
		Allowed: admitted,
		Limit:   minuteLimit,
		Reset:   now.Add(time.Minute),
	}
	if !admitted {
		// The per-second budget takes precedence when both are exhausted.
		if lastSecond >= secondLimit {
			result.RetryAfter = 1
		} else {
			result.RetryAfter = 60
		}
		return result
	}
	result.Remaining = max(0, minuteLimit-(lastMinute+1))
	return result
}
