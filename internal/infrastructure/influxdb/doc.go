// Package influxdb records DeviceHub inventory history in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. When influxdb.enabled
// is true in config.yaml, every inventory event (device created, taken,
// returned, image uploaded, ...) becomes one point in the inventory_events
// measurement, tagged by event type and serial number. This gives a lending
// history per device without adding tables to the primary store.
//
// Usage:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteInventoryEvent("device.returned", "SN-001", deviceID, userID, time.Now())
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Asynchronous write failures are delivered to the
// callback registered with SetOnError. Connection and health check errors
// are returned directly.
package influxdb
