package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// InventoryMeasurement is the measurement holding inventory event history.
const InventoryMeasurement = "inventory_events"

// WriteInventoryEvent records one inventory event as a point.
//
// Tags are event_type and serial_number so history can be grouped per
// device; device_id and user_id are stored as fields because they are
// high cardinality. The write is non-blocking and batched; failures arrive
// through the SetOnError callback.
//
// Example:
//
//	client.WriteInventoryEvent("device.taken", "SN-001", deviceID, userID, time.Now())
func (c *Client) WriteInventoryEvent(eventType, serialNumber, deviceID, userID string, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(inventoryPoint(eventType, serialNumber, deviceID, userID, at))
}

// inventoryPoint builds the point written by WriteInventoryEvent.
func inventoryPoint(eventType, serialNumber, deviceID, userID string, at time.Time) *write.Point {
	fields := map[string]any{
		"count":     1,
		"device_id": deviceID,
	}
	if userID != "" {
		fields["user_id"] = userID
	}
	if at.IsZero() {
		at = time.Now()
	}

	return write.NewPoint(
		InventoryMeasurement,
		map[string]string{
			"event_type":    eventType,
			"serial_number": serialNumber,
		},
		fields,
		at,
	)
}
