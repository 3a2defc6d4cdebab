// Package mqtt publishes DeviceHub inventory events to an MQTT broker.
//
// The broker is optional. When mqtt.enabled is true in config.yaml the
// service connects at startup and every inventory change (device created,
// taken, returned, image uploaded, ...) is published as JSON on
//
//	<topic_prefix>/events/<event type>/<serial number>
//
// A retained status message on <topic_prefix>/system/status reports
// "online" after connect, "offline" on graceful shutdown, and the broker
// publishes the Last Will "offline" message if the process dies.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := client.Topics().InventoryEvent("device.taken", "SN-001")
//	err = client.PublishJSON(topic, event)
package mqtt
