package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/devicehub/devicehub-core/internal/infrastructure/logging"
	"github.com/devicehub/devicehub-core/internal/infrastructure/mqtt"
)

// recorder is a Sink that stores everything it receives.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(_ context.Context, e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func TestFanout_DeliversInOrderToAllSinks(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	f := NewFanout(logging.Discard(), a, b)

	f.Notify(context.Background(), Event{Type: DeviceCreated, SerialNumber: "SN-1"})
	f.Notify(context.Background(), Event{Type: DeviceTaken, SerialNumber: "SN-1", UserID: "u1"})
	f.Close()

	for name, r := range map[string]*recorder{"a": a, "b": b} {
		got := r.snapshot()
		if len(got) != 2 {
			t.Fatalf("sink %s got %d events, want 2", name, len(got))
		}
		if got[0].Type != DeviceCreated || got[1].Type != DeviceTaken {
			t.Errorf("sink %s order = %v, %v", name, got[0].Type, got[1].Type)
		}
		if got[0].Timestamp.IsZero() {
			t.Errorf("sink %s: timestamp not filled in", name)
		}
	}
}

func TestFanout_PanickingSinkIsolated(t *testing.T) {
	good := &recorder{}
	bad := SinkFunc(func(context.Context, Event) { panic("boom") })
	f := NewFanout(logging.Discard(), bad, good)

	f.Notify(context.Background(), Event{Type: DeviceDeleted, SerialNumber: "SN-2"})
	f.Close()

	if len(good.snapshot()) != 1 {
		t.Error("healthy sink should still receive the event")
	}
}

func TestFanout_NotifyAfterCloseIsDropped(t *testing.T) {
	r := &recorder{}
	f := NewFanout(logging.Discard(), r)
	f.Close()
	f.Close() // idempotent

	f.Notify(context.Background(), Event{Type: DeviceCreated})
	if len(r.snapshot()) != 0 {
		t.Error("events after Close should be dropped")
	}
}

func TestFanout_FullQueueDropsWithoutBlocking(t *testing.T) {
	release := make(chan struct{})
	blocking := SinkFunc(func(context.Context, Event) { <-release })
	f := NewFanout(logging.Discard(), blocking)

	done := make(chan struct{})
	go func() {
		for i := 0; i < defaultQueueSize*2; i++ {
			f.Notify(context.Background(), Event{Type: DeviceUpdated})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Notify blocked on a full queue")
	}
	close(release)
	f.Close()
}

// fakePublisher captures MQTT publishes.
type fakePublisher struct {
	topic string
	value any
	err   error
}

func (p *fakePublisher) PublishJSON(topic string, v any) error {
	p.topic, p.value = topic, v
	return p.err
}

func (p *fakePublisher) Topics() mqtt.Topics { return mqtt.NewTopics("lab") }

func TestMQTTSink(t *testing.T) {
	pub := &fakePublisher{}
	s := NewMQTTSink(pub, logging.Discard())

	e := Event{Type: DeviceReturned, SerialNumber: "SN-9", UserID: "u1"}
	s.Notify(context.Background(), e)

	if pub.topic != "lab/events/device.returned/SN-9" {
		t.Errorf("topic = %q", pub.topic)
	}
	if got, ok := pub.value.(Event); !ok || got != e {
		t.Errorf("published value = %#v, want %#v", pub.value, e)
	}

	// Publish errors are swallowed.
	pub.err = errors.New("broker down")
	s.Notify(context.Background(), e)
}

type fakeHistory struct {
	args []string
	at   time.Time
}

func (h *fakeHistory) WriteInventoryEvent(eventType, serialNumber, deviceID, userID string, at time.Time) {
	h.args = []string{eventType, serialNumber, deviceID, userID}
	h.at = at
}

func TestInfluxSink(t *testing.T) {
	h := &fakeHistory{}
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	NewInfluxSink(h).Notify(context.Background(), Event{
		Type: DeviceTaken, SerialNumber: "SN-1", DeviceID: "d1", UserID: "u1", Timestamp: at,
	})

	want := []string{"device.taken", "SN-1", "d1", "u1"}
	for i := range want {
		if h.args[i] != want[i] {
			t.Errorf("arg %d = %q, want %q", i, h.args[i], want[i])
		}
	}
	if !h.at.Equal(at) {
		t.Errorf("at = %v, want %v", h.at, at)
	}
}
