// Package middleware carries the storefront's HTTP middleware chain:
// panic recovery, request logging, security headers, and the admission
// control layer that enforces rate limits and IP blocks on every request.
package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/metrics"
	"github.com/davidtres03/EcommerceStarter-sub003/internal/models"
	"github.com/davidtres03/EcommerceStarter-sub003/internal/security"
	"github.com/davidtres03/EcommerceStarter-sub003/internal/utils"
)

// IdentityResolver supplies the authenticated principal and role set for a
// request. It runs on every request and must never fail one; anonymous
// requests resolve to an empty principal.
type IdentityResolver interface {
	Identity(r *http.Request) (principal string, roles []string)
}

// AnonymousResolver treats every request as unauthenticated.
type AnonymousResolver struct{}

// Identity returns the anonymous identity.
func (AnonymousResolver) Identity(*http.Request) (string, []string) { return "", nil }

// Admission enforces the security pipeline on every request. IP blocks
// become 403, rate limits become 429 with Retry-After, and requests that
// passed the limiter carry X-RateLimit-* headers either way. After the
// handler runs, the response status feeds error-spike accounting.
type Admission struct {
	pipeline          *security.Pipeline
	identities        IdentityResolver
	trustProxyHeaders string
	trustedProxyIPs   string
}

// NewAdmission wires the middleware. identities may be nil to treat all
// traffic as anonymous.
func NewAdmission(pipeline *security.Pipeline, identities IdentityResolver, trustProxyHeaders, trustedProxyIPs string) *Admission {
	if identities == nil {
		identities = AnonymousResolver{}
	}
	return &Admission{
		pipeline:          pipeline,
		identities:        identities,
		trustProxyHeaders: trustProxyHeaders,
		trustedProxyIPs:   trustedProxyIPs,
	}
}

// Middleware wraps next with admission control.
func (a *Admission) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, roles := a.identities.Identity(r)
		req := security.RequestContext{
			IP:        utils.GetClientIPWithTrust(r, a.trustProxyHeaders, a.trustedProxyIPs),
			Path:      r.URL.Path,
			Method:    r.Method,
			UserAgent: r.UserAgent(),
			Principal: principal,
			Roles:     roles,
		}

		verdict := a.pipeline.Evaluate(r.Context(), req)
		if verdict.HasQuota() {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(verdict.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(verdict.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(verdict.Reset.Unix(), 10))
		}

		if !verdict.Allowed {
			metrics.AdmissionDecisionsTotal.WithLabelValues(string(verdict.Reason)).Inc()
			a.deny(w, r, req, verdict)
			return
		}
		metrics.AdmissionDecisionsTotal.WithLabelValues("allowed").Inc()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}
		next.ServeHTTP(wrapped, r)

		if esc := a.pipeline.RecordOutcome(r.Context(), req, wrapped.statusCode); esc != nil && esc.Blocked {
			metrics.IPBlocksTotal.WithLabelValues(security.BlockSourceErrorSpike).Inc()
			slog.Warn("ip blocked after error spike",
				"ip", esc.IP,
				"streak_minutes", esc.Streak,
				"threshold_per_minute", esc.Threshold,
				"permanent", esc.Permanent,
			)
		}
	})
}

// deny writes the verdict's denial. Rate-limit denials already carry the
// X-RateLimit-* headers from Middleware; only Retry-After is added here.
func (a *Admission) deny(w http.ResponseWriter, r *http.Request, req security.RequestContext, verdict security.Verdict) {
	w.Header().Set("Content-Type", "application/json")

	switch verdict.Reason {
	case security.DenyIPBlocked:
		slog.Warn("blocked IP attempted access",
			"ip", req.IP,
			"path", r.URL.Path,
			"method", r.Method,
			"scope", string(verdict.Scope),
			"user_agent", req.UserAgent,
		)
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(models.ErrorResponse{
			Error: verdict.Message,
			Code:  "IP_BLOCKED",
		})
	case security.DenyRateLimited:
		w.Header().Set("Retry-After", strconv.Itoa(verdict.RetryAfter))
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(models.ErrorResponse{
			Error: verdict.Message,
			Code:  "RATE_LIMIT_EXCEEDED",
		})
	default:
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(models.ErrorResponse{
			Error: "Access denied",
			Code:  "FORBIDDEN",
		})
	}
}
