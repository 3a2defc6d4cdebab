package events

import (
	"context"
	"sync"
	"time"

	"github.com/devicehub/devicehub-core/internal/infrastructure/logging"
)

// defaultQueueSize bounds the number of undelivered events.
const defaultQueueSize = 256

// Fanout queues events and delivers them to every registered sink on a
// single background goroutine, preserving order.
//
// Thread Safety:
//   - Notify, Add, and Close are safe for concurrent use.
type Fanout struct {
	logger *logging.Logger

	mu     sync.RWMutex
	sinks  []Sink
	closed bool

	queue chan Event
	done  chan struct{}
	once  sync.Once
}

// NewFanout creates a Fanout and starts its delivery goroutine.
// Call Close to drain pending events and stop it.
func NewFanout(logger *logging.Logger, sinks ...Sink) *Fanout {
	f := &Fanout{
		logger: logger.With("component", "events"),
		sinks:  sinks,
		queue:  make(chan Event, defaultQueueSize),
		done:   make(chan struct{}),
	}
	go f.run()
	return f
}

// Notify queues e for delivery. A zero Timestamp is set to now. When the
// queue is full the event is dropped and a warning logged.
func (f *Fanout) Notify(_ context.Context, e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}

	select {
	case f.queue <- e:
	default:
		f.logger.Warn("event queue full, dropping event",
			"type", e.Type,
			"serial_number", e.SerialNumber,
		)
	}
}

// Close stops accepting events, delivers everything already queued, and
// waits for the delivery goroutine to exit. Safe to call more than once.
func (f *Fanout) Close() {
	f.once.Do(func() {
		f.mu.Lock()
		f.closed = true
		close(f.queue)
		f.mu.Unlock()
	})
	<-f.done
}

func (f *Fanout) run() {
	defer close(f.done)
	for e := range f.queue {
		f.mu.RLock()
		sinks := make([]Sink, len(f.sinks))
		copy(sinks, f.sinks)
		f.mu.RUnlock()

		for _, s := range sinks {
			f.deliver(s, e)
		}
	}
}

// deliver calls one sink, recovering from panics so the others still run.
func (f *Fanout) deliver(s Sink, e Event) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("event sink panic recovered",
				"type", e.Type,
				"serial_number", e.SerialNumber,
				"panic", r,
			)
		}
	}()
	s.Notify(context.Background(), e)
}
