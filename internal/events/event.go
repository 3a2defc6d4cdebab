package events

import (
	"context"
	"time"
)

// Type identifies what happened.
type Type string

// Inventory event types.
const (
	DeviceCreated  Type = "device.created"
	DeviceUpdated  Type = "device.updated"
	DeviceDeleted  Type = "device.deleted"
	DeviceTaken    Type = "device.taken"
	DeviceReturned Type = "device.returned"
	ImageUploaded  Type = "image.uploaded"
	ImageDeleted   Type = "image.deleted"
)

// Event describes one inventory change.
type Event struct {
	Type         Type      `json:"type"`
	SerialNumber string    `json:"serialNumber"`
	DeviceID     string    `json:"deviceId,omitempty"`
	UserID       string    `json:"userId,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Sink receives events. Implementations must be safe for concurrent use
// and should return quickly.
type Sink interface {
	Notify(ctx context.Context, e Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, e Event)

// Notify calls f(ctx, e).
func (f SinkFunc) Notify(ctx context.Context, e Event) {
	f(ctx, e)
}

// Discard is a Sink that drops every event.
var Discard Sink = SinkFunc(func(context.Context, Event) {})
