package security

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// BlockScope distinguishes expiring blocks from permanent blacklist entries.
type BlockScope string

// Block scopes.
const (
	ScopeTemporary BlockScope = "temporary"
	ScopePermanent BlockScope = "permanent"
)

// Block sources recorded on reputation entries.
const (
	BlockSourceAdmin      = "admin"
	BlockSourceErrorSpike = "error_spike"
)

// Block is one active deny entry for an IP.
type Block struct {
	IP        string
	Reason    string
	Source    string // BlockSourceAdmin or BlockSourceErrorSpike
	BlockedAt time.Time
	ExpiresAt *time.Time // nil for permanent entries
}

// Permanent reports whether the entry never expires.
func (b Block) Permanent() bool {
	return b.ExpiresAt == nil
}

// Scope returns the entry's tier.
func (b Block) Scope() BlockScope {
	if b.Permanent() {
		return ScopePermanent
	}
	return ScopeTemporary
}

// Expired reports whether a temporary block has lapsed at now.
func (b Block) Expired(now time.Time) bool {
	return b.ExpiresAt != nil && now.After(*b.ExpiresAt)
}

// BlockPersister mirrors block mutations to durable storage so blocks
// survive a restart. Implementations must be safe for concurrent use.
type BlockPersister interface {
	SaveBlock(ctx context.Context, block Block) error
	DeleteBlock(ctx context.Context, ip string) error
}

// ReputationStore is the single source of truth for whitelist, temporary
// block, and permanent blacklist membership. All state lives in memory;
// an empty store after restart is the expected cold-start state, with
// previously persisted blocks re-loaded via Hydrate. Entries are stored as
// immutable values and replaced atomically, so checks and mutations for the
// same IP are linearizable while different IPs never contend.
//
// Mutations are mirrored to the optional persister best-effort: a failed
// write logs a throttled warning and never fails the in-memory change.
type ReputationStore struct {
	clock   Clock
	persist BlockPersister

	whitelist sync.Map // map[string]struct{}
	blocks    sync.Map // map[string]Block

	warn rate.Sometimes
}

// NewReputationStore creates an empty store. clock may be nil for the
// system clock; persister may be nil for a purely in-memory store.
func NewReputationStore(clock Clock, persister BlockPersister) *ReputationStore {
	if clock == nil {
		clock = SystemClock{}
	}
	return &ReputationStore{
		clock:   clock,
		persist: persister,
		warn:    rate.Sometimes{Interval: 30 * time.Second},
	}
}

// Whitelist marks ip as always allowed. The whitelist is an explicit
// operator override: while present it defeats blacklist and block entries
// for that ip.
func (s *ReputationStore) Whitelist(ip string) {
	s.whitelist.Store(ip, struct{}{})
}

// RemoveWhitelist withdraws the override for ip.
func (s *ReputationStore) RemoveWhitelist(ip string) {
	s.whitelist.Delete(ip)
}

// SetWhitelist replaces the whole whitelist with ips.
func (s *ReputationStore) SetWhitelist(ips []string) {
	want := make(map[string]struct{}, len(ips))
	for _, ip := range ips {
		want[ip] = struct{}{}
	}
	s.whitelist.Range(func(key, _ any) bool {
		if _, ok := want[key.(string)]; !ok {
			s.whitelist.Delete(key)
		}
		return true
	})
	for ip := range want {
		s.whitelist.Store(ip, struct{}{})
	}
}

// IsWhitelisted reports whether ip carries the operator override.
func (s *ReputationStore) IsWhitelisted(ip string) bool {
	_, ok := s.whitelist.Load(ip)
	return ok
}

// IsBlacklisted reports whether ip holds a permanent blacklist entry.
// Temporary blocks never count, and a whitelisted ip is never blacklisted.
func (s *ReputationStore) IsBlacklisted(ip string) bool {
	if s.IsWhitelisted(ip) {
		return false
	}
	value, ok := s.blocks.Load(ip)
	if !ok {
		return false
	}
	return value.(Block).Permanent()
}

// IsTemporarilyBlocked reports whether an active temporary block exists for
// ip at now. An expired entry is treated as absent; it is also physically
// removed, though correctness never depends on that cleanup. A whitelisted
// ip is never blocked.
func (s *ReputationStore) IsTemporarilyBlocked(ip string, now time.Time) bool {
	if s.IsWhitelisted(ip) {
		return false
	}
	value, ok := s.blocks.Load(ip)
	if !ok {
		return false
	}
	b := value.(Block)
	if b.Permanent() {
		return false
	}
	if b.Expired(now) {
		s.blocks.CompareAndDelete(ip, value)
		return false
	}
	return true
}

// Block upserts a deny entry for ip and returns the entry now in force.
// Blocking an already-blocked ip refreshes its reason and expiry, and
// escalating a temporary block to permanent replaces it. The one exception
// is downgrading: a permanent entry is kept as-is when a temporary block
// arrives for the same ip, since permanent entries persist until explicit
// removal.
func (s *ReputationStore) Block(ctx context.Context, ip, reason, source string, duration time.Duration, permanent bool) Block {
	now := s.clock.Now()
	incoming := Block{IP: ip, Reason: reason, Source: source, BlockedAt: now}
	if !permanent {
		expires := now.Add(duration)
		incoming.ExpiresAt = &expires
	}

	var final Block
	for {
		old, loaded := s.blocks.Load(ip)
		if !loaded {
			if _, raced := s.blocks.LoadOrStore(ip, incoming); raced {
				continue
			}
			final = incoming
			break
		}
		if old.(Block).Permanent() && !permanent {
			return old.(Block)
		}
		if s.blocks.CompareAndSwap(ip, old, incoming) {
			final = incoming
			break
		}
	}

	s.persistSave(ctx, final)
	return final
}

// Unblock removes any block entry for ip and reports whether one existed.
func (s *ReputationStore) Unblock(ctx context.Context, ip string) bool {
	_, existed := s.blocks.LoadAndDelete(ip)
	if s.persist != nil {
		if err := s.persist.DeleteBlock(ctx, ip); err != nil {
			s.warn.Do(func() {
				slog.Warn("failed to remove persisted ip block", "ip", ip, "error", err)
			})
		}
	}
	return existed
}

// Lookup returns the active block entry for ip, if any.
func (s *ReputationStore) Lookup(ip string, now time.Time) (Block, bool) {
	value, ok := s.blocks.Load(ip)
	if !ok {
		return Block{}, false
	}
	b := value.(Block)
	if b.Expired(now) {
		s.blocks.CompareAndDelete(ip, value)
		return Block{}, false
	}
	return b, true
}

// ActiveBlocks returns all non-expired entries, newest first.
func (s *ReputationStore) ActiveBlocks(now time.Time) []Block {
	var out []Block
	s.blocks.Range(func(key, value any) bool {
		b := value.(Block)
		if b.Expired(now) {
			s.blocks.CompareAndDelete(key, value)
			return true
		}
		out = append(out, b)
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].BlockedAt.After(out[j].BlockedAt)
	})
	return out
}

// CleanupExpired physically removes lapsed temporary blocks and reports how
// many were dropped. Expired entries are already logically absent; this
// bounds memory for IPs that never come back.
func (s *ReputationStore) CleanupExpired(now time.Time) (removed int) {
	s.blocks.Range(func(key, value any) bool {
		if value.(Block).Expired(now) {
			if s.blocks.CompareAndDelete(key, value) {
				removed++
			}
		}
		return true
	})
	return removed
}

// Hydrate loads previously persisted blocks, skipping entries already
// expired. Meant to run once at startup, before traffic.
func (s *ReputationStore) Hydrate(blocks []Block) (loaded int) {
	now := s.clock.Now()
	for _, b := range blocks {
		if b.Expired(now) {
			continue
		}
		s.blocks.Store(b.IP, b)
		loaded++
	}
	return loaded
}

// ReputationStats summarizes current membership for monitoring.
type ReputationStats struct {
	Whitelisted     int
	TemporaryBlocks int
	PermanentBlocks int
}

// Stats counts current entries. Expired temporary blocks are excluded but
// not removed.
func (s *ReputationStore) Stats(now time.Time) ReputationStats {
	var stats ReputationStats
	s.whitelist.Range(func(_, _ any) bool {
		stats.Whitelisted++
		return true
	})
	s.blocks.Range(func(_, value any) bool {
		b := value.(Block)
		switch {
		case b.Permanent():
			stats.PermanentBlocks++
		case !b.Expired(now):
			stats.TemporaryBlocks++
		}
		return true
	})
	return stats
}

func (s *ReputationStore) persistSave(ctx context.Context, b Block) {
	if s.persist == nil {
		return
	}
	if err := s.persist.SaveBlock(ctx, b); err != nil {
		s.warn.Do(func() {
			slog.Warn("failed to persist ip block", "ip", b.IP, "error", err)
		})
	}
}
