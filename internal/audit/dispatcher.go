package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MetricsRecorder records dispatcher health metrics. Implementations must
// be safe for concurrent use.
type MetricsRecorder interface {
	RecordEvent(eventType string)
	RecordDelivery(eventType, status string)
	RecordDeliveryDuration(eventType string, duration time.Duration)
	RecordDroppedEvent()
	SetQueueSize(size int)
}

// nopMetrics is used when no recorder is configured.
type nopMetrics struct{}

func (nopMetrics) RecordEvent(string)                          {}
func (nopMetrics) RecordDelivery(string, string)               {}
func (nopMetrics) RecordDeliveryDuration(string, time.Duration) {}
func (nopMetrics) RecordDroppedEvent()                         {}
func (nopMetrics) SetQueueSize(int)                            {}

// deliveryTimeout bounds how long one sink delivery may take.
const deliveryTimeout = 5 * time.Second

// Dispatcher delivers events to a downstream sink asynchronously so slow
// storage never stalls request handling. The queue is bounded: when it is
// full, events are dropped and counted rather than applying backpressure to
// the request path.
type Dispatcher struct {
	sink         Sink
	eventChan    chan Event
	workerCount  int
	shutdown     chan struct{}
	wg           sync.WaitGroup
	metrics      MetricsRecorder
	shutdownOnce sync.Once
}

// NewDispatcher creates a dispatcher in front of sink. Non-positive worker
// or buffer sizes get defaults (2 workers, 256 events). A nil metrics
// recorder disables instrumentation.
func NewDispatcher(sink Sink, workerCount, bufferSize int, metrics MetricsRecorder) *Dispatcher {
	if workerCount <= 0 {
		workerCount = 2
	}
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Dispatcher{
		sink:        sink,
		eventChan:   make(chan Event, bufferSize),
		workerCount: workerCount,
		shutdown:    make(chan struct{}),
		metrics:     metrics,
	}
}

// Start launches the delivery workers.
func (d *Dispatcher) Start() {
	slog.Info("starting security event dispatcher", "workers", d.workerCount)
	for i := 0; i < d.workerCount; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

// Shutdown stops the workers and waits for them to exit. Safe to call more
// than once.
func (d *Dispatcher) Shutdown() {
	d.shutdownOnce.Do(func() {
		slog.Info("shutting down security event dispatcher")
		close(d.shutdown)
		close(d.eventChan)
	})
	d.wg.Wait()
}

// Record enqueues the event without blocking. Implements Sink, so the
// dispatcher can front any synchronous sink. The request's context is not
// carried into delivery; workers use their own bounded context.
func (d *Dispatcher) Record(_ context.Context, event Event) {
	select {
	case <-d.shutdown:
		slog.Warn("event dispatcher shutting down, dropping event",
			"event_type", string(event.Type))
		d.metrics.RecordDroppedEvent()
		return
	default:
	}

	select {
	case d.eventChan <- stamp(event):
		d.metrics.RecordEvent(string(event.Type))
		d.metrics.SetQueueSize(len(d.eventChan))
	default:
		slog.Warn("security event queue full, dropping event",
			"event_type", string(event.Type))
		d.metrics.RecordDroppedEvent()
	}
}

// QueueSize returns the number of events currently queued.
func (d *Dispatcher) QueueSize() int {
	return len(d.eventChan)
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	slog.Debug("event dispatcher worker started", "worker_id", id)

	for {
		select {
		case <-d.shutdown:
			slog.Debug("event dispatcher worker stopping", "worker_id", id)
			return
		case event, ok := <-d.eventChan:
			if !ok {
				return
			}
			d.deliver(event)
			d.metrics.SetQueueSize(len(d.eventChan))
		}
	}
}

// deliver hands one event to the sink, isolating panics so a broken sink
// cannot take down a worker.
func (d *Dispatcher) deliver(event Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("security event sink panicked",
				"error", r,
				"event_type", string(event.Type))
			d.metrics.RecordDelivery(string(event.Type), "panic")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	start := time.Now()
	d.sink.Record(ctx, event)
	d.metrics.RecordDeliveryDuration(string(event.Type), time.Since(start))
	d.metrics.RecordDelivery(string(event.Type), "delivered")
}
