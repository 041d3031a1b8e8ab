package security

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/audit"
	"github.com/davidtres03/EcommerceStarter-sub003/internal/policy"
)

// RoleAdmin is the role granting the rate-limit exemption when the policy
// allows it. Role matching is case-insensitive.
const RoleAdmin = "admin"

// RequestContext carries the per-request facts the pipeline decides on.
// The client IP is resolved once by the transport layer; the pipeline never
// re-derives it.
type RequestContext struct {
	IP        string
	Path      string
	Method    string
	UserAgent string
	Principal string // authenticated principal id, empty when anonymous
	Roles     []string
}

// Identity returns the rate-limiting key: the authenticated principal when
// present, otherwise the client IP. Users behind a shared NAT stop sharing
// a budget the moment they log in.
func (rc RequestContext) Identity() string {
	if rc.Principal != "" {
		return rc.Principal
	}
	return rc.IP
}

// IsAdmin reports whether the caller carries the admin role.
func (rc RequestContext) IsAdmin() bool {
	for _, role := range rc.Roles {
		if strings.EqualFold(role, RoleAdmin) {
			return true
		}
	}
	return false
}

// DenyReason says which check denied a request.
type DenyReason string

// Deny reasons.
const (
	DenyRateLimited DenyReason = "rate_limit_exceeded"
	DenyIPBlocked   DenyReason = "ip_blocked"
)

// Verdict is the outcome of one pipeline evaluation. Verdicts are computed
// fresh per request and never persisted.
type Verdict struct {
	Allowed    bool
	Reason     DenyReason // empty when allowed
	Scope      BlockScope // set when Reason is DenyIPBlocked
	RetryAfter int        // seconds, set when Reason is DenyRateLimited
	Limit      int        // per-minute limit; zero when the limiter did not run
	Remaining  int
	Reset      time.Time
	Message    string // human-readable denial text
}

// HasQuota reports whether the limiter ran, meaning rate-limit headers
// belong on the response.
func (v Verdict) HasQuota() bool {
	return v.Limit > 0
}

// PolicySource supplies the policy snapshot for each decision.
type PolicySource interface {
	Current(ctx context.Context) (policy.Policy, error)
}

// EventSink receives security audit events. Implementations must not block;
// the pipeline calls it inline on the request path.
type EventSink interface {
	Record(ctx context.Context, event audit.Event)
}

// Pipeline composes the reputation store, rate limiter, and error-spike
// detector into one per-request admission decision with fixed precedence:
// disabled policy, then whitelist, then permanent blacklist, then temporary
// block, then rate limiting.
type Pipeline struct {
	policies PolicySource
	store    *ReputationStore
	limiter  *RateLimiter
	detector *ErrorSpikeDetector
	events   EventSink
	clock    Clock

	warn rate.Sometimes
}

// NewPipeline wires the pipeline. events and clock may be nil; a nil events
// sink discards audit events.
func NewPipeline(policies PolicySource, store *ReputationStore, limiter *RateLimiter, detector *ErrorSpikeDetector, events EventSink, clock Clock) *Pipeline {
	if events == nil {
		events = audit.NopSink{}
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Pipeline{
		policies: policies,
		store:    store,
		limiter:  limiter,
		detector: detector,
		events:   events,
		clock:    clock,
		warn:     rate.Sometimes{Interval: 30 * time.Second},
	}
}

// Evaluate runs the admission checks in precedence order and returns the
// verdict. A policy load failure fails open: the request is allowed as if
// the pipeline were disabled, with a throttled warning. Protection gaps are
// preferred over outages, and the failure is never visible to the client.
func (p *Pipeline) Evaluate(ctx context.Context, req RequestContext) Verdict {
	pol, err := p.policies.Current(ctx)
	if err != nil {
		p.warn.Do(func() {
			slog.Warn("security policy unavailable, failing open", "error", err)
		})
		return Verdict{Allowed: true}
	}
	pol = pol.Normalized()

	if !pol.RateLimitingEnabled && !pol.IPBlockingEnabled {
		return Verdict{Allowed: true}
	}

	// The whitelist bypasses everything below, including rate limiting.
	if p.store.IsWhitelisted(req.IP) {
		return Verdict{Allowed: true}
	}

	if pol.IPBlockingEnabled {
		if p.store.IsBlacklisted(req.IP) {
			p.events.Record(ctx, audit.Event{
				Type:      audit.EventBlacklistedIPAttempt,
				Severity:  audit.SeverityHigh,
				IPAddress: req.IP,
				Endpoint:  req.Path,
				UserAgent: req.UserAgent,
				Details:   "request from permanently blacklisted ip",
				IsBlocked: true,
			})
			return Verdict{
				Allowed: false,
				Reason:  DenyIPBlocked,
				Scope:   ScopePermanent,
				Message: "Access denied: this IP address is permanently blocked.",
			}
		}
		if p.store.IsTemporarilyBlocked(req.IP, p.clock.Now()) {
			p.events.Record(ctx, audit.Event{
				Type:      audit.EventBlockedIPAttempt,
				Severity:  audit.SeverityMedium,
				IPAddress: req.IP,
				Endpoint:  req.Path,
				UserAgent: req.UserAgent,
				Details:   "request from temporarily blocked ip",
				IsBlocked: true,
			})
			return Verdict{
				Allowed: false,
				Reason:  DenyIPBlocked,
				Scope:   ScopeTemporary,
				Message: "Access denied: this IP address is temporarily blocked due to suspicious activity.",
			}
		}
	}

	if !pol.RateLimitingEnabled {
		return Verdict{Allowed: true}
	}
	if req.IsAdmin() && pol.ExemptAdminsFromRateLimiting {
		return Verdict{Allowed: true}
	}

	class := ClassifyEndpoint(req.Path)
	res := p.limiter.Check(req.Identity(), class, pol)
	if !res.Allowed {
		p.events.Record(ctx, audit.Event{
			Type:      audit.EventRateLimitExceeded,
			Severity:  audit.SeverityMedium,
			IPAddress: req.IP,
			Endpoint:  req.Path,
			UserAgent: req.UserAgent,
			Details:   fmt.Sprintf("rate limit exceeded for identity %q on %s endpoint", req.Identity(), class),
			IsBlocked: true,
		})
		return Verdict{
			Allowed:    false,
			Reason:     DenyRateLimited,
			RetryAfter: res.RetryAfter,
			Limit:      res.Limit,
			Remaining:  0,
			Reset:      res.Reset,
			Message:    "Rate limit exceeded. Please slow down and try again.",
		}
	}

	return Verdict{
		Allowed:   true,
		Limit:     res.Limit,
		Remaining: res.Remaining,
		Reset:     res.Reset,
	}
}

// RecordOutcome feeds a completed response status into error-spike
// detection. It runs for every non-whitelisted IP regardless of whether
// rate limiting is enabled; detection is an independent signal, not part of
// the admission decision. Returns the escalation when one fired.
func (p *Pipeline) RecordOutcome(ctx context.Context, req RequestContext, status int) *Escalation {
	if status < 400 {
		return nil
	}
	pol, err := p.policies.Current(ctx)
	if err != nil {
		p.warn.Do(func() {
			slog.Warn("security policy unavailable, skipping error accounting", "error", err)
		})
		return nil
	}
	if p.store.IsWhitelisted(req.IP) {
		return nil
	}
	return p.detector.RecordError(ctx, req, pol)
}
