package lending

import "errors"

// Workflow errors. A missing device is reported as device.ErrDeviceNotFound.
var (
	// ErrAlreadyTaken is returned by Take when the device has a holder,
	// whoever it is.
	ErrAlreadyTaken = errors.New("lending: device already taken")

	// ErrNotTaken is returned by Return when the device has no holder.
	ErrNotTaken = errors.New("lending: device not taken")

	// ErrNotHolder is returned by Return when the requester is not the holder.
	ErrNotHolder = errors.New("lending: device held by another user")
)
