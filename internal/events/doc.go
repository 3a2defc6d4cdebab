// Package events distributes inventory events to optional observers.
//
// Every state change DeviceHub makes (device created, updated, deleted,
// taken, returned, image uploaded or deleted) produces an Event. The
// Fanout delivers each event to the registered sinks: the MQTT publisher,
// the InfluxDB history writer, and the WebSocket hub. Delivery happens on
// a background goroutine so a slow broker never delays an HTTP response;
// a panicking or failing sink is logged and does not affect the others.
//
// Events are notifications only. The primary store remains the source of
// truth and nothing in the request path waits for a sink.
package events
