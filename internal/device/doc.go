// Package device provides the device catalogue for DeviceHub Core.
//
// A Device is a piece of lab or office equipment identified by its serial
// number. Each device may carry one Image (a photo stored as base64 text)
// and may be held by one user at a time; lending itself lives in the
// lending package.
//
// # Key Types
//
//   - Device: The catalogue entry; User is the current holder's ID or empty
//   - Image: One stored photo per serial number
//   - Repository / ImageRepository: persistence contracts with SQLite and
//     MongoDB implementations
//   - Registry: CRUD and image operations used by the HTTP API, emitting
//     inventory events after each successful change
//
// # Serial numbers
//
// Serial numbers are not unique in the catalogue. Every by-serial
// operation acts on the earliest inserted matching device.
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB)
//	images := device.NewSQLiteImageRepository(db.DB)
//	registry := device.NewRegistry(repo, images, notifier, logger)
//
//	d, err := registry.GetDevice(ctx, "SN-001")
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // 404
//	}
package device
