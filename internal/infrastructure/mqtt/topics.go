package mqtt

import "strings"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "devicehub"

// Topics builds DeviceHub MQTT topic names under a common prefix.
//
//	topics := mqtt.NewTopics("devicehub")
//	topics.InventoryEvent("device.taken", "SN-001")
//	// Returns: "devicehub/events/device.taken/SN-001"
type Topics struct {
	prefix string
}

// NewTopics returns a builder for the given prefix. Trailing slashes are
// trimmed and an empty prefix falls back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic root.
func (t Topics) Prefix() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

// SystemStatus returns the retained online/offline status topic.
func (t Topics) SystemStatus() string {
	return t.Prefix() + "/system/status"
}

// InventoryEvent returns the topic for an inventory event about one device.
// Wildcard characters in the serial number are replaced so a device cannot
// publish outside its own topic.
func (t Topics) InventoryEvent(eventType, serialNumber string) string {
	return t.Prefix() + "/events/" + sanitizeLevel(eventType) + "/" + sanitizeLevel(serialNumber)
}

// sanitizeLevel makes s safe to use as a single topic level.
func sanitizeLevel(s string) string {
	if s == "" {
		return "_"
	}
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(s)
}
