package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/repository"
)

// Provider supplies the current policy snapshot. Implementations must be
// safe for concurrent use.
type Provider interface {
	Current(ctx context.Context) (Policy, error)
}

// Static serves a fixed policy. Used in tests and for deployments that
// configure everything through the environment.
type Static struct {
	Policy Policy
}

// Current returns the fixed policy.
func (s Static) Current(context.Context) (Policy, error) {
	return s.Policy, nil
}

// StoreProvider reads the policy from the settings repository so admin
// changes take effect without a restart. When no settings row exists the
// fallback (environment-derived) policy is served.
type StoreProvider struct {
	settings repository.SettingsRepository
	fallback Policy
}

// NewStoreProvider creates a provider backed by the settings repository.
func NewStoreProvider(settings repository.SettingsRepository, fallback Policy) *StoreProvider {
	return &StoreProvider{settings: settings, fallback: fallback}
}

// Current loads the settings row and maps it onto a policy. A missing row
// is not an error; it means nothing was ever saved and defaults apply.
func (p *StoreProvider) Current(ctx context.Context) (Policy, error) {
	settings, err := p.settings.Get(ctx)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to load security settings: %w", err)
	}
	if settings == nil {
		return p.fallback, nil
	}
	return FromSettings(settings), nil
}

// Cached decorates a provider with a short-TTL snapshot so the admission
// hot path almost never touches the underlying store. When a refresh fails
// the last known good policy keeps serving and a throttled warning is
// logged; an error escapes only when no snapshot was ever loaded.
type Cached struct {
	source Provider
	ttl    time.Duration

	mu        sync.RWMutex
	have      bool
	policy    Policy
	fetchedAt time.Time

	warn rate.Sometimes
}

// NewCached wraps source with a cache. A non-positive ttl gets the 5s
// default.
func NewCached(source Provider, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Cached{
		source: source,
		ttl:    ttl,
		warn:   rate.Sometimes{Interval: 30 * time.Second},
	}
}

// Current returns the cached snapshot, refreshing it when stale.
func (c *Cached) Current(ctx context.Context) (Policy, error) {
	c.mu.RLock()
	if c.have && time.Since(c.fetchedAt) < c.ttl {
		policy := c.policy
		c.mu.RUnlock()
		return policy, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another caller may have refreshed while we waited for the lock.
	if c.have && time.Since(c.fetchedAt) < c.ttl {
		return c.policy, nil
	}
	policy, err := c.source.Current(ctx)
	if err != nil {
		if c.have {
			c.warn.Do(func() {
				slog.Warn("policy refresh failed, serving last known snapshot", "error", err)
			})
			return c.policy, nil
		}
		return Policy{}, err
	}
	c.policy = policy
	c.have = true
	c.fetchedAt = time.Now()
	return policy, nil
}

// Invalidate drops the cached snapshot so the next read hits the source.
// Called after admin settings updates to make them visible immediately.
func (c *Cached) Invalidate() {
	c.mu.Lock()
	c.have = false
	c.mu.Unlock()
}
