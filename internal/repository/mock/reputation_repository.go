package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/repository"
)

// ReputationRepository is a mock implementation of repository.ReputationRepository.
// It stores block records in memory keyed by IP address.
type ReputationRepository struct {
	mu     sync.RWMutex
	blocks map[string]repository.BlockedIP
	nextID int64

	// Error injection for testing error handling
	// NOTE: Set these BEFORE concurrent access begins
	UpsertError         error
	RemoveError         error
	ListActiveError     error
	CleanupExpiredError error
}

// NewReputationRepository creates a new empty mock ReputationRepository.
func NewReputationRepository() *ReputationRepository {
	return &ReputationRepository{
		blocks: make(map[string]repository.BlockedIP),
		nextID: 1,
	}
}

// Ensure ReputationRepository implements repository.ReputationRepository
var _ repository.ReputationRepository = (*ReputationRepository)(nil)

// Reset clears all blocks and injected errors for a fresh test state.
func (r *ReputationRepository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.blocks = make(map[string]repository.BlockedIP)
	r.nextID = 1
	r.UpsertError = nil
	r.RemoveError = nil
	r.ListActiveError = nil
	r.CleanupExpiredError = nil
}

// AddBlock directly stores a block record for test setup.
func (r *ReputationRepository) AddBlock(block repository.BlockedIP) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if block.ID == 0 {
		block.ID = r.nextID
		r.nextID++
	}
	if block.ID >= r.nextID {
		r.nextID = block.ID + 1
	}
	r.blocks[block.IPAddress] = copyBlockedIP(block)
}

// Upsert inserts or refreshes the entry for block.IPAddress.
func (r *ReputationRepository) Upsert(ctx context.Context, block *repository.BlockedIP) error {
	if r.UpsertError != nil {
		return r.UpsertError
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for context cancellation
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	entry := copyBlockedIP(*block)
	if existing, ok := r.blocks[block.IPAddress]; ok {
		entry.ID = existing.ID
	} else {
		entry.ID = r.nextID
		r.nextID++
	}
	r.blocks[block.IPAddress] = entry
	return nil
}

// Remove deletes the entry for ip.
func (r *ReputationRepository) Remove(ctx context.Context, ip string) error {
	if r.RemoveError != nil {
		return r.RemoveError
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if _, ok := r.blocks[ip]; !ok {
		return repository.ErrNotFound
	}
	delete(r.blocks, ip)
	return nil
}

// ListActive returns entries that are permanent or expire after now,
// newest first.
func (r *ReputationRepository) ListActive(ctx context.Context, now time.Time) ([]repository.BlockedIP, error) {
	if r.ListActiveError != nil {
		return nil, r.ListActiveError
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var out []repository.BlockedIP
	for _, b := range r.blocks {
		if b.ExpiresAt != nil && !b.ExpiresAt.After(now) {
			continue
		}
		out = append(out, copyBlockedIP(b))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].BlockedAt.After(out[j].BlockedAt)
	})
	return out, nil
}

// CleanupExpired deletes temporary entries expired at or before now.
func (r *ReputationRepository) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	if r.CleanupExpiredError != nil {
		return 0, r.CleanupExpiredError
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	var removed int64
	for ip, b := range r.blocks {
		if b.ExpiresAt != nil && !b.ExpiresAt.After(now) {
			delete(r.blocks, ip)
			removed++
		}
	}
	return removed, nil
}

// Count returns how many records are stored, for test assertions.
func (r *ReputationRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.blocks)
}

// copyBlockedIP creates a deep copy including the expiry pointer.
func copyBlockedIP(src repository.BlockedIP) repository.BlockedIP {
	dst := src
	if src.ExpiresAt != nil {
		expires := *src.ExpiresAt
		dst.ExpiresAt = &expires
	}
	return dst
}
