// Package security implements the storefront's request admission layer:
// a per-identity sliding-window rate limiter, an IP reputation store with
// whitelist/temporary-block/permanent-blacklist tiers, and an error-spike
// detector, composed into a single per-request decision pipeline.
//
// All decision state is held in memory and re-synthesized empty on process
// restart; starting with "no counters, no blocks" is the expected cold-start
// behavior. Persistence of block records is a best-effort mirror, never a
// correctness requirement.
package security

import "time"

// Clock supplies timestamps for all window math. Eviction, counting, and
// expiry share one clock so a count taken immediately after an eviction is
// consistent. Tests inject fakes to control time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }
