package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/repository"
)

// Sink records security events. Implementations must be safe for concurrent
// use and must not block the request path.
type Sink interface {
	Record(ctx context.Context, event Event)
}

// stamp fills the generated fields of an event. Idempotent: fields already
// set are kept, so fanning out through several sinks preserves one ID.
func stamp(event Event) Event {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	return event
}

// LogSink writes events to the structured log.
type LogSink struct{}

// Record logs the event at warn level.
func (LogSink) Record(_ context.Context, event Event) {
	event = stamp(event)
	slog.Warn("security event",
		"event_id", event.ID,
		"event_type", string(event.Type),
		"severity", string(event.Severity),
		"ip", event.IPAddress,
		"endpoint", event.Endpoint,
		"user_agent", event.UserAgent,
		"blocked", event.IsBlocked,
		"details", event.Details,
	)
}

// StoreSink persists events through the security event repository. Write
// failures are logged and the event dropped; auditing never fails a
// request.
type StoreSink struct {
	events repository.SecurityEventRepository
}

// NewStoreSink creates a sink writing to the given repository.
func NewStoreSink(events repository.SecurityEventRepository) *StoreSink {
	return &StoreSink{events: events}
}

// Record inserts the event into the audit table.
func (s *StoreSink) Record(ctx context.Context, event Event) {
	event = stamp(event)
	record := &repository.SecurityEvent{
		EventID:   event.ID,
		EventType: string(event.Type),
		Severity:  string(event.Severity),
		IPAddress: event.IPAddress,
		Endpoint:  event.Endpoint,
		UserAgent: event.UserAgent,
		Details:   event.Details,
		IsBlocked: event.IsBlocked,
		CreatedAt: event.CreatedAt,
	}
	if err := s.events.Insert(ctx, record); err != nil {
		slog.Error("failed to persist security event",
			"event_type", string(event.Type),
			"ip", event.IPAddress,
			"error", err)
	}
}

// MultiSink fans an event out to each sink in order.
type MultiSink []Sink

// Record stamps the event once so every sink sees the same ID, then
// delivers to each sink.
func (m MultiSink) Record(ctx context.Context, event Event) {
	event = stamp(event)
	for _, sink := range m {
		sink.Record(ctx, event)
	}
}

// NopSink discards events.
type NopSink struct{}

// Record does nothing.
func (NopSink) Record(context.Context, Event) {}
