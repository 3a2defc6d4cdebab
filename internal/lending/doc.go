// Package lending implements taking and returning devices.
//
// A device's holder and the holder's device list are two records in two
// collections. Service keeps them in agreement:
//
//	device.User == u  <=>  u.Devices contains device.ID
//
// Operations on one serial number are serialised in-process by a
// KeyedMutex. The device-side write is a compare-and-set on the holder, so
// a second process sharing the store cannot double-lend a device either.
// When the user-side write fails the device-side write is undone before
// the error is returned.
package lending
