package mock

import (
	"context"
	"sync"
	"time"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/repository"
)

// SecurityEventRepository is a mock implementation of
// repository.SecurityEventRepository. Events are kept in insertion order.
type SecurityEventRepository struct {
	mu     sync.RWMutex
	events []repository.SecurityEvent
	nextID int64

	// Error injection for testing error handling
	// NOTE: Set these BEFORE concurrent access begins
	InsertError           error
	ListRecentError       error
	CleanupOlderThanError error
}

// NewSecurityEventRepository creates a new empty mock SecurityEventRepository.
func NewSecurityEventRepository() *SecurityEventRepository {
	return &SecurityEventRepository{nextID: 1}
}

// Ensure SecurityEventRepository implements repository.SecurityEventRepository
var _ repository.SecurityEventRepository = (*SecurityEventRepository)(nil)

// Reset clears all events and injected errors for a fresh test state.
func (r *SecurityEventRepository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = nil
	r.nextID = 1
	r.InsertError = nil
	r.ListRecentError = nil
	r.CleanupOlderThanError = nil
}

// Insert stores one event.
func (r *SecurityEventRepository) Insert(ctx context.Context, event *repository.SecurityEvent) error {
	if r.InsertError != nil {
		return r.InsertError
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for context cancellation
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	stored := *event
	stored.ID = r.nextID
	r.nextID++
	r.events = append(r.events, stored)
	return nil
}

// ListRecent returns up to limit events, newest first.
func (r *SecurityEventRepository) ListRecent(ctx context.Context, limit int) ([]repository.SecurityEvent, error) {
	if r.ListRecentError != nil {
		return nil, r.ListRecentError
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var out []repository.SecurityEvent
	for i := len(r.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.events[i])
	}
	return out, nil
}

// CleanupOlderThan deletes events created at or before cutoff.
func (r *SecurityEventRepository) CleanupOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.CleanupOlderThanError != nil {
		return 0, r.CleanupOlderThanError
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	var kept []repository.SecurityEvent
	var removed int64
	for _, e := range r.events {
		if e.CreatedAt.After(cutoff) {
			kept = append(kept, e)
		} else {
			removed++
		}
	}
	r.events = kept
	return removed, nil
}

// Inserted returns a copy of all stored events in insertion order, for test
// assertions.
func (r *SecurityEventRepository) Inserted() []repository.SecurityEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]repository.SecurityEvent(nil), r.events...)
}
