package security

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/audit"
	"github.com/davidtres03/EcommerceStarter-sub003/internal/policy"
)

type failingPolicySource struct{}

func (failingPolicySource) Current(context.Context) (policy.Policy, error) {
	return policy.Policy{}, errors.New("settings store down")
}

func newTestPipeline(clock *fakeClock, pol policy.Policy) (*Pipeline, *ReputationStore, *recordingSink) {
	store := NewReputationStore(clock, nil)
	limiter := NewRateLimiter(NewSlidingWindow(), clock)
	sink := &recordingSink{}
	detector := NewErrorSpikeDetector(clock, store, sink)
	p := NewPipeline(policy.Static{Policy: pol}, store, limiter, detector, sink, clock)
	return p, store, sink
}

func anonRequest(ip, path string) RequestContext {
	return RequestContext{IP: ip, Path: path, Method: "GET", UserAgent: "test-agent"}
}

func TestPipeline_AllowWithQuota(t *testing.T) {
	clock := newFakeClock()
	p, _, _ := newTestPipeline(clock, testPolicy())

	v := p.Evaluate(context.Background(), anonRequest("203.0.113.1", "/products"))
	if !v.Allowed {
		t.Fatal("plain request denied")
	}
	if !v.HasQuota() {
		t.Fatal("no quota metadata on a rate-limited allow")
	}
	if v.Limit != 100 || v.Remaining != 99 {
		t.Errorf("quota = %d/%d, want 99/100", v.Remaining, v.Limit)
	}
	if want := clock.Now().Add(time.Minute); !v.Reset.Equal(want) {
		t.Errorf("reset = %v, want %v", v.Reset, want)
	}
}

func TestPipeline_FullyDisabledBypassesEverything(t *testing.T) {
	clock := newFakeClock()
	pol := testPolicy()
	pol.RateLimitingEnabled = false
	pol.IPBlockingEnabled = false
	p, store, sink := newTestPipeline(clock, pol)

	// Even a blacklisted ip passes when the whole pipeline is off.
	store.Block(context.Background(), "203.0.113.2", "manual", BlockSourceAdmin, 0, true)

	v := p.Evaluate(context.Background(), anonRequest("203.0.113.2", "/products"))
	if !v.Allowed {
		t.Error("request denied while pipeline disabled")
	}
	if v.HasQuota() {
		t.Error("quota metadata present while pipeline disabled")
	}
	if len(sink.ofType(audit.EventBlacklistedIPAttempt)) != 0 {
		t.Error("events emitted while pipeline disabled")
	}
}

func TestPipeline_WhitelistBypassesAllChecks(t *testing.T) {
	clock := newFakeClock()
	pol := testPolicy()
	pol.MaxRequestsPerSecond = 1
	p, store, sink := newTestPipeline(clock, pol)
	ctx := context.Background()

	store.Whitelist("203.0.113.3")
	store.Block(ctx, "203.0.113.3", "manual", BlockSourceAdmin, 0, true)

	// Whitelisted clients are exempt from blocking and rate limiting both.
	for i := 0; i < 10; i++ {
		v := p.Evaluate(ctx, anonRequest("203.0.113.3", "/products"))
		if !v.Allowed {
			t.Fatalf("request %d from whitelisted ip denied", i+1)
		}
	}
	if len(sink.events) != 0 {
		t.Errorf("events emitted for whitelisted ip = %d, want 0", len(sink.events))
	}
}

func TestPipeline_PermanentBlockDenied(t *testing.T) {
	clock := newFakeClock()
	p, store, sink := newTestPipeline(clock, testPolicy())
	ctx := context.Background()

	store.Block(ctx, "203.0.113.4", "fraud", BlockSourceAdmin, 0, true)

	v := p.Evaluate(ctx, anonRequest("203.0.113.4", "/products"))
	if v.Allowed {
		t.Fatal("blacklisted ip allowed")
	}
	if v.Reason != DenyIPBlocked || v.Scope != ScopePermanent {
		t.Errorf("verdict = %q/%q, want ip_blocked/permanent", v.Reason, v.Scope)
	}
	if !strings.Contains(v.Message, "permanently") {
		t.Errorf("message %q does not say the block is permanent", v.Message)
	}
	if v.HasQuota() {
		t.Error("quota metadata on a blacklist denial")
	}

	events := sink.ofType(audit.EventBlacklistedIPAttempt)
	if len(events) != 1 {
		t.Fatalf("blacklisted attempt events = %d, want 1", len(events))
	}
	if events[0].IPAddress != "203.0.113.4" || !events[0].IsBlocked {
		t.Errorf("event = %+v, want blocked event for 203.0.113.4", events[0])
	}
}

func TestPipeline_TemporaryBlockDeniedUntilExpiry(t *testing.T) {
	clock := newFakeClock()
	p, store, sink := newTestPipeline(clock, testPolicy())
	ctx := context.Background()

	store.Block(ctx, "203.0.113.5", "spike", BlockSourceErrorSpike, 30*time.Minute, false)

	v := p.Evaluate(ctx, anonRequest("203.0.113.5", "/products"))
	if v.Allowed {
		t.Fatal("temporarily blocked ip allowed")
	}
	if v.Scope != ScopeTemporary {
		t.Errorf("scope = %q, want temporary", v.Scope)
	}
	if !strings.Contains(v.Message, "temporarily") || !strings.Contains(v.Message, "suspicious") {
		t.Errorf("message %q does not describe a temporary suspicious-activity block", v.Message)
	}
	if len(sink.ofType(audit.EventBlockedIPAttempt)) != 1 {
		t.Error("no blocked attempt event emitted")
	}

	clock.Advance(31 * time.Minute)
	if v := p.Evaluate(ctx, anonRequest("203.0.113.5", "/products")); !v.Allowed {
		t.Error("ip still denied after the block expired")
	}
}

func TestPipeline_BlockOutranksRateLimit(t *testing.T) {
	clock := newFakeClock()
	p, store, _ := newTestPipeline(clock, testPolicy())
	ctx := context.Background()

	store.Block(ctx, "203.0.113.6", "spike", BlockSourceErrorSpike, 30*time.Minute, false)

	// A blocked ip with untouched budget must still be denied as blocked,
	// never as rate limited.
	v := p.Evaluate(ctx, anonRequest("203.0.113.6", "/products"))
	if v.Allowed || v.Reason != DenyIPBlocked {
		t.Errorf("verdict = %+v, want ip_blocked denial", v)
	}
}

func TestPipeline_RateLimitDenied(t *testing.T) {
	clock := newFakeClock()
	pol := testPolicy()
	pol.MaxRequestsPerSecond = 2
	p, _, sink := newTestPipeline(clock, pol)
	ctx := context.Background()

	p.Evaluate(ctx, anonRequest("203.0.113.7", "/products"))
	p.Evaluate(ctx, anonRequest("203.0.113.7", "/products"))
	v := p.Evaluate(ctx, anonRequest("203.0.113.7", "/products"))

	if v.Allowed {
		t.Fatal("third request in one second allowed, want denied")
	}
	if v.Reason != DenyRateLimited {
		t.Errorf("reason = %q, want rate_limit_exceeded", v.Reason)
	}
	if v.RetryAfter != 1 {
		t.Errorf("retry after = %d, want 1", v.RetryAfter)
	}
	if v.Remaining != 0 {
		t.Errorf("remaining = %d, want 0", v.Remaining)
	}

	events := sink.ofType(audit.EventRateLimitExceeded)
	if len(events) != 1 {
		t.Fatalf("rate limit events = %d, want 1", len(events))
	}
	if !strings.Contains(events[0].Details, "203.0.113.7") {
		t.Errorf("event details %q missing identity", events[0].Details)
	}
}

func TestPipeline_AdminExemption(t *testing.T) {
	clock := newFakeClock()
	pol := testPolicy()
	pol.MaxRequestsPerSecond = 1
	pol.MaxRequestsPerSecondAuth = 1
	pol.ExemptAdminsFromRateLimiting = true
	p, _, _ := newTestPipeline(clock, pol)
	ctx := context.Background()

	admin := RequestContext{
		IP:        "203.0.113.8",
		Path:      "/admin/api/security/blocks",
		Method:    "GET",
		UserAgent: "test-agent",
		Principal: "admin-1",
		Roles:     []string{"Admin"}, // role match is case-insensitive
	}
	for i := 0; i < 20; i++ {
		if v := p.Evaluate(ctx, admin); !v.Allowed {
			t.Fatalf("exempt admin denied on request %d", i+1)
		}
	}
}

func TestPipeline_AdminLimitedWithoutExemption(t *testing.T) {
	clock := newFakeClock()
	pol := testPolicy()
	pol.MaxRequestsPerSecondAuth = 2
	pol.ExemptAdminsFromRateLimiting = false
	p, _, _ := newTestPipeline(clock, pol)
	ctx := context.Background()

	admin := RequestContext{
		IP:        "203.0.113.9",
		Path:      "/admin/api/security/blocks",
		Method:    "GET",
		UserAgent: "test-agent",
		Principal: "admin-1",
		Roles:     []string{"admin"},
	}
	p.Evaluate(ctx, admin)
	p.Evaluate(ctx, admin)
	if v := p.Evaluate(ctx, admin); v.Allowed {
		t.Error("admin exceeded the auth budget but was allowed without exemption")
	}
}

func TestPipeline_IPBlockingDisabledSkipsBlockChecks(t *testing.T) {
	clock := newFakeClock()
	pol := testPolicy()
	pol.IPBlockingEnabled = false
	p, store, _ := newTestPipeline(clock, pol)
	ctx := context.Background()

	store.Block(ctx, "203.0.113.10", "manual", BlockSourceAdmin, 0, true)

	v := p.Evaluate(ctx, anonRequest("203.0.113.10", "/products"))
	if !v.Allowed {
		t.Error("blacklist enforced while ip blocking disabled")
	}
	if !v.HasQuota() {
		t.Error("rate limiting skipped while it is still enabled")
	}
}

func TestPipeline_RateLimitingDisabledSkipsLimiter(t *testing.T) {
	clock := newFakeClock()
	pol := testPolicy()
	pol.RateLimitingEnabled = false
	pol.MaxRequestsPerSecond = 1
	p, _, _ := newTestPipeline(clock, pol)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		v := p.Evaluate(ctx, anonRequest("203.0.113.11", "/products"))
		if !v.Allowed {
			t.Fatalf("request %d denied while rate limiting disabled", i+1)
		}
		if v.HasQuota() {
			t.Fatal("quota metadata present while rate limiting disabled")
		}
	}
}

func TestPipeline_PolicyFailureFailsOpen(t *testing.T) {
	clock := newFakeClock()
	store := NewReputationStore(clock, nil)
	limiter := NewRateLimiter(NewSlidingWindow(), clock)
	sink := &recordingSink{}
	detector := NewErrorSpikeDetector(clock, store, sink)
	p := NewPipeline(failingPolicySource{}, store, limiter, detector, sink, clock)
	ctx := context.Background()

	// Unreachable settings must degrade to "allow", never to an error page.
	v := p.Evaluate(ctx, anonRequest("203.0.113.12", "/products"))
	if !v.Allowed {
		t.Error("policy failure denied a request, want fail open")
	}
	if v.HasQuota() {
		t.Error("quota metadata fabricated without a policy")
	}

	// Error accounting is skipped too rather than guessing at thresholds.
	if esc := p.RecordOutcome(ctx, anonRequest("203.0.113.12", "/products"), 500); esc != nil {
		t.Error("escalation fired without a loaded policy")
	}
}

func TestPipeline_IdentityKeying(t *testing.T) {
	clock := newFakeClock()
	pol := testPolicy()
	pol.MaxRequestsPerSecond = 2
	p, _, _ := newTestPipeline(clock, pol)
	ctx := context.Background()

	// Anonymous traffic from one NAT ip shares a budget...
	p.Evaluate(ctx, anonRequest("198.51.100.30", "/products"))
	p.Evaluate(ctx, anonRequest("198.51.100.30", "/products"))
	if v := p.Evaluate(ctx, anonRequest("198.51.100.30", "/products")); v.Allowed {
		t.Error("anonymous budget not shared per ip")
	}

	// ...but authenticated principals behind the same ip get their own.
	userA := RequestContext{IP: "198.51.100.30", Path: "/products", Principal: "user-a"}
	userB := RequestContext{IP: "198.51.100.30", Path: "/products", Principal: "user-b"}
	if v := p.Evaluate(ctx, userA); !v.Allowed {
		t.Error("user-a denied by the anonymous ip budget")
	}
	if v := p.Evaluate(ctx, userB); !v.Allowed {
		t.Error("user-b denied by user-a's budget")
	}
}

func TestPipeline_RecordOutcome_FeedsDetector(t *testing.T) {
	clock := newFakeClock()
	pol := testPolicy()
	pol.ErrorSpikeThresholdPerMinute = 3
	pol.ErrorSpikeConsecutiveMinutes = 1
	p, _, sink := newTestPipeline(clock, pol)
	ctx := context.Background()

	req := anonRequest("198.51.100.31", "/products/999")

	if esc := p.RecordOutcome(ctx, req, 404); esc != nil {
		t.Fatal("escalated on first error")
	}
	if esc := p.RecordOutcome(ctx, req, 404); esc != nil {
		t.Fatal("escalated on second error")
	}
	esc := p.RecordOutcome(ctx, req, 404)
	if esc == nil {
		t.Fatal("no escalation at the threshold")
	}
	if !esc.Blocked {
		t.Error("escalation did not block while ip blocking enabled")
	}

	// The block now takes effect on admission.
	v := p.Evaluate(ctx, req)
	if v.Allowed || v.Scope != ScopeTemporary {
		t.Errorf("verdict after escalation = %+v, want temporary block denial", v)
	}
	if len(sink.ofType(audit.EventSuspiciousActivity)) != 1 {
		t.Error("suspicious activity event missing")
	}
}

func TestPipeline_RecordOutcome_IgnoresSuccesses(t *testing.T) {
	clock := newFakeClock()
	pol := testPolicy()
	pol.ErrorSpikeThresholdPerMinute = 1
	p, _, _ := newTestPipeline(clock, pol)
	ctx := context.Background()

	req := anonRequest("198.51.100.32", "/products")
	for _, status := range []int{200, 201, 302, 399} {
		if esc := p.RecordOutcome(ctx, req, status); esc != nil {
			t.Errorf("status %d triggered error accounting", status)
		}
	}
	if v := p.Evaluate(ctx, req); !v.Allowed {
		t.Error("ip blocked by successful responses")
	}
}

func TestPipeline_RecordOutcome_SkipsWhitelisted(t *testing.T) {
	clock := newFakeClock()
	pol := testPolicy()
	pol.ErrorSpikeThresholdPerMinute = 1
	p, store, _ := newTestPipeline(clock, pol)
	ctx := context.Background()

	store.Whitelist("198.51.100.33")
	req := anonRequest("198.51.100.33", "/products/999")
	for i := 0; i < 10; i++ {
		if esc := p.RecordOutcome(ctx, req, 404); esc != nil {
			t.Fatal("whitelisted ip escalated")
		}
	}
}

func TestPipeline_RecordOutcome_RunsWithRateLimitingDisabled(t *testing.T) {
	clock := newFakeClock()
	pol := testPolicy()
	pol.RateLimitingEnabled = false
	pol.ErrorSpikeThresholdPerMinute = 2
	p, _, _ := newTestPipeline(clock, pol)
	ctx := context.Background()

	// Error-spike detection is an independent signal; switching off rate
	// limiting must not switch it off.
	req := anonRequest("198.51.100.34", "/products/999")
	p.RecordOutcome(ctx, req, 404)
	if esc := p.RecordOutcome(ctx, req, 404); esc == nil {
		t.Fatal("no escalation while rate limiting disabled")
	}

	if v := p.Evaluate(ctx, req); v.Allowed {
		t.Error("escalated ip not blocked while rate limiting disabled")
	}
}

func TestPipeline_TemporaryBlockRoundTrip(t *testing.T) {
	clock := newFakeClock()
	pol := testPolicy()
	pol.ErrorSpikeThresholdPerMinute = 3
	pol.ErrorSpikeConsecutiveMinutes = 2
	pol.IPBlockDurationMinutes = 30
	p, _, _ := newTestPipeline(clock, pol)
	ctx := context.Background()

	req := anonRequest("198.51.100.35", "/products/999")

	// Four errors in minute one, three in minute two.
	for i := 0; i < 4; i++ {
		if esc := p.RecordOutcome(ctx, req, 404); esc != nil {
			t.Fatal("escalated during the first minute")
		}
		clock.Advance(time.Second)
	}
	clock.Advance(56 * time.Second)
	var esc *Escalation
	for i := 0; i < 3; i++ {
		esc = p.RecordOutcome(ctx, req, 404)
		clock.Advance(time.Second)
	}
	if esc == nil {
		t.Fatal("no escalation at the third error of the second minute")
	}

	if v := p.Evaluate(ctx, req); v.Allowed {
		t.Fatal("ip not denied right after escalation")
	}

	// Thirty-one minutes later the block has lapsed and traffic flows.
	clock.Advance(31 * time.Minute)
	if v := p.Evaluate(ctx, req); !v.Allowed {
		t.Error("ip still denied after the block duration elapsed")
	}
}
