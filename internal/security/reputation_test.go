package security

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakePersister records mirror calls and can be made to fail.
type fakePersister struct {
	mu      sync.Mutex
	saved   []Block
	deleted []string
	fail    bool
}

func (f *fakePersister) SaveBlock(_ context.Context, block Block) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("storage down")
	}
	f.saved = append(f.saved, block)
	return nil
}

func (f *fakePersister) DeleteBlock(_ context.Context, ip string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("storage down")
	}
	f.deleted = append(f.deleted, ip)
	return nil
}

func TestReputationStore_TemporaryBlockLifecycle(t *testing.T) {
	clock := newFakeClock()
	s := NewReputationStore(clock, nil)
	ctx := context.Background()

	s.Block(ctx, "198.51.100.7", "error spike", BlockSourceErrorSpike, 30*time.Minute, false)

	if !s.IsTemporarilyBlocked("198.51.100.7", clock.Now()) {
		t.Fatal("ip not blocked immediately after Block")
	}
	if s.IsBlacklisted("198.51.100.7") {
		t.Error("temporary block reported as permanent blacklist")
	}

	// Still blocked just before expiry, free just after.
	if !s.IsTemporarilyBlocked("198.51.100.7", clock.Now().Add(29*time.Minute)) {
		t.Error("ip unblocked before the 30 minute duration elapsed")
	}
	if s.IsTemporarilyBlocked("198.51.100.7", clock.Now().Add(31*time.Minute)) {
		t.Error("ip still blocked 31 minutes after a 30 minute block")
	}

	// The expired entry was lazily removed.
	if _, ok := s.blocks.Load("198.51.100.7"); ok {
		t.Error("expired entry still stored after lazy eviction")
	}
}

func TestReputationStore_WhitelistAlwaysWins(t *testing.T) {
	clock := newFakeClock()
	s := NewReputationStore(clock, nil)
	ctx := context.Background()

	s.Whitelist("203.0.113.50")
	s.Block(ctx, "203.0.113.50", "manual", BlockSourceAdmin, 0, true)
	s.Block(ctx, "203.0.113.50", "spike", BlockSourceErrorSpike, 30*time.Minute, false)

	if s.IsBlacklisted("203.0.113.50") {
		t.Error("whitelisted ip reported blacklisted")
	}
	if s.IsTemporarilyBlocked("203.0.113.50", clock.Now()) {
		t.Error("whitelisted ip reported temporarily blocked")
	}
	if !s.IsWhitelisted("203.0.113.50") {
		t.Error("whitelist entry missing")
	}

	// Withdrawing the override exposes the underlying entry again.
	s.RemoveWhitelist("203.0.113.50")
	if !s.IsBlacklisted("203.0.113.50") {
		t.Error("blacklist entry not visible after whitelist removal")
	}
}

func TestReputationStore_EscalateTemporaryToPermanent(t *testing.T) {
	clock := newFakeClock()
	s := NewReputationStore(clock, nil)
	ctx := context.Background()

	s.Block(ctx, "198.51.100.8", "spike", BlockSourceErrorSpike, 30*time.Minute, false)
	if !s.IsTemporarilyBlocked("198.51.100.8", clock.Now()) {
		t.Fatal("temporary block not applied")
	}

	s.Block(ctx, "198.51.100.8", "repeat offender", BlockSourceErrorSpike, 0, true)

	if s.IsTemporarilyBlocked("198.51.100.8", clock.Now()) {
		t.Error("escalated ip still reported temporarily blocked")
	}
	if !s.IsBlacklisted("198.51.100.8") {
		t.Error("escalated ip not reported blacklisted")
	}
}

func TestReputationStore_PermanentNeverDowngraded(t *testing.T) {
	clock := newFakeClock()
	s := NewReputationStore(clock, nil)
	ctx := context.Background()

	s.Block(ctx, "198.51.100.9", "manual", BlockSourceAdmin, 0, true)
	got := s.Block(ctx, "198.51.100.9", "spike", BlockSourceErrorSpike, 30*time.Minute, false)

	if !got.Permanent() {
		t.Error("Block returned a downgraded entry")
	}
	if !s.IsBlacklisted("198.51.100.9") {
		t.Error("permanent entry lost after temporary re-block")
	}
	if s.IsTemporarilyBlocked("198.51.100.9", clock.Now()) {
		t.Error("permanent entry reported as temporary")
	}
}

func TestReputationStore_ReblockRefreshesExpiry(t *testing.T) {
	clock := newFakeClock()
	s := NewReputationStore(clock, nil)
	ctx := context.Background()

	start := clock.Now()
	s.Block(ctx, "198.51.100.10", "spike", BlockSourceErrorSpike, 30*time.Minute, false)

	// Re-blocking 20 minutes in pushes the expiry out to minute 50.
	clock.Advance(20 * time.Minute)
	s.Block(ctx, "198.51.100.10", "spike again", BlockSourceErrorSpike, 30*time.Minute, false)

	if !s.IsTemporarilyBlocked("198.51.100.10", start.Add(40*time.Minute)) {
		t.Error("refreshed block expired on the original schedule")
	}
	if s.IsTemporarilyBlocked("198.51.100.10", start.Add(51*time.Minute)) {
		t.Error("refreshed block outlived its new expiry")
	}

	b, ok := s.Lookup("198.51.100.10", clock.Now())
	if !ok {
		t.Fatal("entry missing after refresh")
	}
	if b.Reason != "spike again" {
		t.Errorf("reason = %q, want refreshed reason", b.Reason)
	}
}

func TestReputationStore_Unblock(t *testing.T) {
	clock := newFakeClock()
	s := NewReputationStore(clock, nil)
	ctx := context.Background()

	s.Block(ctx, "198.51.100.11", "manual", BlockSourceAdmin, 0, true)

	if !s.Unblock(ctx, "198.51.100.11") {
		t.Error("Unblock of existing entry returned false")
	}
	if s.IsBlacklisted("198.51.100.11") {
		t.Error("ip still blacklisted after unblock")
	}
	if s.Unblock(ctx, "198.51.100.11") {
		t.Error("Unblock of absent entry returned true")
	}
}

func TestReputationStore_PersisterMirror(t *testing.T) {
	clock := newFakeClock()
	p := &fakePersister{}
	s := NewReputationStore(clock, p)
	ctx := context.Background()

	s.Block(ctx, "198.51.100.12", "manual", BlockSourceAdmin, 15*time.Minute, false)
	s.Unblock(ctx, "198.51.100.12")

	p.mu.Lock()
	saved, deleted := len(p.saved), len(p.deleted)
	p.mu.Unlock()
	if saved != 1 {
		t.Errorf("persisted saves = %d, want 1", saved)
	}
	if deleted != 1 {
		t.Errorf("persisted deletes = %d, want 1", deleted)
	}
}

func TestReputationStore_PersisterFailureIsFailOpen(t *testing.T) {
	clock := newFakeClock()
	p := &fakePersister{fail: true}
	s := NewReputationStore(clock, p)
	ctx := context.Background()

	// A broken mirror must not stop the in-memory block from applying.
	s.Block(ctx, "198.51.100.13", "spike", BlockSourceErrorSpike, 30*time.Minute, false)
	if !s.IsTemporarilyBlocked("198.51.100.13", clock.Now()) {
		t.Error("block not applied when persister fails")
	}

	s.Unblock(ctx, "198.51.100.13")
	if s.IsTemporarilyBlocked("198.51.100.13", clock.Now()) {
		t.Error("unblock not applied when persister fails")
	}
}

func TestReputationStore_Hydrate(t *testing.T) {
	clock := newFakeClock()
	s := NewReputationStore(clock, nil)

	past := clock.Now().Add(-time.Hour)
	expired := clock.Now().Add(-time.Minute)
	future := clock.Now().Add(time.Hour)

	loaded := s.Hydrate([]Block{
		{IP: "10.1.0.1", Reason: "old", Source: BlockSourceAdmin, BlockedAt: past, ExpiresAt: &expired},
		{IP: "10.1.0.2", Reason: "active", Source: BlockSourceErrorSpike, BlockedAt: past, ExpiresAt: &future},
		{IP: "10.1.0.3", Reason: "permanent", Source: BlockSourceAdmin, BlockedAt: past},
	})

	if loaded != 2 {
		t.Errorf("hydrated = %d, want 2", loaded)
	}
	if s.IsTemporarilyBlocked("10.1.0.1", clock.Now()) {
		t.Error("expired entry hydrated")
	}
	if !s.IsTemporarilyBlocked("10.1.0.2", clock.Now()) {
		t.Error("active entry not hydrated")
	}
	if !s.IsBlacklisted("10.1.0.3") {
		t.Error("permanent entry not hydrated")
	}
}

func TestReputationStore_SetWhitelist(t *testing.T) {
	s := NewReputationStore(newFakeClock(), nil)

	s.Whitelist("10.0.0.1")
	s.Whitelist("10.0.0.2")
	s.SetWhitelist([]string{"10.0.0.2", "10.0.0.3"})

	if s.IsWhitelisted("10.0.0.1") {
		t.Error("removed entry still whitelisted")
	}
	if !s.IsWhitelisted("10.0.0.2") || !s.IsWhitelisted("10.0.0.3") {
		t.Error("replacement whitelist incomplete")
	}
}

func TestReputationStore_ActiveBlocksAndStats(t *testing.T) {
	clock := newFakeClock()
	s := NewReputationStore(clock, nil)
	ctx := context.Background()

	s.Whitelist("10.0.0.1")
	s.Block(ctx, "10.2.0.1", "a", BlockSourceAdmin, 0, true)
	clock.Advance(time.Second)
	s.Block(ctx, "10.2.0.2", "b", BlockSourceErrorSpike, 30*time.Minute, false)
	clock.Advance(time.Second)
	s.Block(ctx, "10.2.0.3", "c", BlockSourceErrorSpike, time.Minute, false)

	// Let the last one expire.
	clock.Advance(2 * time.Minute)

	blocks := s.ActiveBlocks(clock.Now())
	if len(blocks) != 2 {
		t.Fatalf("active blocks = %d, want 2", len(blocks))
	}
	// Newest first.
	if blocks[0].IP != "10.2.0.2" || blocks[1].IP != "10.2.0.1" {
		t.Errorf("order = %s, %s; want 10.2.0.2, 10.2.0.1", blocks[0].IP, blocks[1].IP)
	}

	stats := s.Stats(clock.Now())
	if stats.Whitelisted != 1 || stats.PermanentBlocks != 1 || stats.TemporaryBlocks != 1 {
		t.Errorf("stats = %+v, want 1/1/1", stats)
	}
}

func TestReputationStore_CleanupExpired(t *testing.T) {
	clock := newFakeClock()
	s := NewReputationStore(clock, nil)
	ctx := context.Background()

	s.Block(ctx, "10.3.0.1", "short", BlockSourceErrorSpike, time.Minute, false)
	s.Block(ctx, "10.3.0.2", "long", BlockSourceErrorSpike, time.Hour, false)
	s.Block(ctx, "10.3.0.3", "forever", BlockSourceAdmin, 0, true)

	clock.Advance(5 * time.Minute)
	if removed := s.CleanupExpired(clock.Now()); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if !s.IsTemporarilyBlocked("10.3.0.2", clock.Now()) {
		t.Error("active temporary block removed by cleanup")
	}
	if !s.IsBlacklisted("10.3.0.3") {
		t.Error("permanent entry removed by cleanup")
	}
}

func TestReputationStore_ConcurrentSameIP(t *testing.T) {
	clock := newFakeClock()
	s := NewReputationStore(clock, nil)
	ctx := context.Background()

	// Concurrent re-blocks and checks on one ip must end in a consistent
	// blocked state.
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Block(ctx, "10.4.0.1", "spike", BlockSourceErrorSpike, 30*time.Minute, false)
			s.IsTemporarilyBlocked("10.4.0.1", clock.Now())
		}()
	}
	wg.Wait()

	if !s.IsTemporarilyBlocked("10.4.0.1", clock.Now()) {
		t.Error("ip not blocked after concurrent re-blocks")
	}
}
