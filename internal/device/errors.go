package device

import "errors"

// Domain errors for the device package.
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when no device matches the serial number or ID.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrHolderChanged is returned by CompareAndSetHolder when the stored
	// holder no longer matches the expected value.
	ErrHolderChanged = errors.New("device: holder changed concurrently")

	// ErrImageNotFound is returned when no image is stored for a serial number.
	ErrImageNotFound = errors.New("device: image not found")

	// ErrInvalidImage is returned when image data is empty or not valid base64.
	ErrInvalidImage = errors.New("device: invalid image")
)
