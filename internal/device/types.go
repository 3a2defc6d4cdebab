package device

// Device is a catalogue entry.
//
// JSON field names match the public API (and the document layout in
// MongoDB). User is the ID of the user currently holding the device, or
// empty when the device is available.
type Device struct {
	ID           string `json:"_id" bson:"_id"`
	DeviceName   string `json:"deviceName" bson:"deviceName"`
	Description  string `json:"description" bson:"description"`
	SerialNumber string `json:"serialNumber" bson:"serialNumber"`
	Manufacturer string `json:"manufacturer" bson:"manufacturer"`
	QRCode       string `json:"qrCode" bson:"qrCode"`
	User         string `json:"user,omitempty" bson:"user,omitempty"`
}

// IsTaken reports whether the device currently has a holder.
func (d *Device) IsTaken() bool {
	return d.User != ""
}

// Details returns a copy holding only the descriptive fields: no ID and no holder.
func (d *Device) Details() Device {
	return Device{
		DeviceName:   d.DeviceName,
		Description:  d.Description,
		SerialNumber: d.SerialNumber,
		Manufacturer: d.Manufacturer,
		QRCode:       d.QRCode,
	}
}

// Image is the stored photo of a device. Data is base64 text.
type Image struct {
	ID           string `json:"_id" bson:"_id"`
	SerialNumber string `json:"serialNumber" bson:"serialNumber"`
	Data         string `json:"data" bson:"data"`
}
