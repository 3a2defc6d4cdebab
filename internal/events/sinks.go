package events

import (
	"context"
	"time"

	"github.com/devicehub/devicehub-core/internal/infrastructure/logging"
	"github.com/devicehub/devicehub-core/internal/infrastructure/mqtt"
)

// Publisher is the subset of *mqtt.Client used by MQTTSink.
type Publisher interface {
	PublishJSON(topic string, v any) error
	Topics() mqtt.Topics
}

// MQTTSink publishes each event as JSON on
// <prefix>/events/<type>/<serial number>.
type MQTTSink struct {
	pub    Publisher
	logger *logging.Logger
}

// NewMQTTSink creates a sink publishing through pub.
func NewMQTTSink(pub Publisher, logger *logging.Logger) *MQTTSink {
	return &MQTTSink{pub: pub, logger: logger.With("sink", "mqtt")}
}

// Notify publishes e. Failures are logged; the broker being down is not
// an error for the caller.
func (s *MQTTSink) Notify(_ context.Context, e Event) {
	topic := s.pub.Topics().InventoryEvent(string(e.Type), e.SerialNumber)
	if err := s.pub.PublishJSON(topic, e); err != nil {
		s.logger.Warn("publishing inventory event failed",
			"topic", topic,
			"error", err,
		)
	}
}

// HistoryWriter is the subset of *influxdb.Client used by InfluxSink.
type HistoryWriter interface {
	WriteInventoryEvent(eventType, serialNumber, deviceID, userID string, at time.Time)
}

// InfluxSink records each event as a point in the inventory history.
type InfluxSink struct {
	w HistoryWriter
}

// NewInfluxSink creates a sink writing through w.
func NewInfluxSink(w HistoryWriter) *InfluxSink {
	return &InfluxSink{w: w}
}

// Notify writes e. The underlying write is non-blocking.
func (s *InfluxSink) Notify(_ context.Context, e Event) {
	s.w.WriteInventoryEvent(string(e.Type), e.SerialNumber, e.DeviceID, e.UserID, e.Timestamp)
}
