package device

import (
	"context"
	"fmt"

	"github.com/devicehub/devicehub-core/internal/events"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides the device and image operations behind the HTTP API.
// It wraps the repositories and emits an inventory event after every
// successful change.
//
// Taking, returning, and deleting devices touch user records too and are
// handled by the lending package.
//
// All public methods are thread-safe.
type Registry struct {
	repo     Repository
	images   ImageRepository
	notifier events.Sink
	logger   Logger
}

// NewRegistry creates a device registry. A nil notifier discards events.
func NewRegistry(repo Repository, images ImageRepository, notifier events.Sink) *Registry {
	if notifier == nil {
		notifier = events.Discard
	}
	return &Registry{
		repo:     repo,
		images:   images,
		notifier: notifier,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// ListDevices returns the whole catalogue. An empty catalogue is an empty
// slice, never nil.
func (r *Registry) ListDevices(ctx context.Context) ([]Device, error) {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if devices == nil {
		devices = []Device{}
	}
	return devices, nil
}

// GetDevice returns the first device with the serial number.
func (r *Registry) GetDevice(ctx context.Context, serial string) (*Device, error) {
	return r.repo.GetBySerial(ctx, serial)
}

// CreateDevice stores the descriptive fields of d as a new device.
// Any ID or holder supplied by the caller is ignored: new devices get a
// fresh ID and start available. The stored device is written back into d.
func (r *Registry) CreateDevice(ctx context.Context, d *Device) error {
	*d = d.Details()
	if err := r.repo.Create(ctx, d); err != nil {
		return err
	}

	r.logger.Info("device created", "id", d.ID, "serial_number", d.SerialNumber)
	r.notifier.Notify(ctx, events.Event{
		Type:         events.DeviceCreated,
		SerialNumber: d.SerialNumber,
		DeviceID:     d.ID,
	})
	return nil
}

// UpdateDevice overwrites the descriptive fields of the first device with
// the serial number. The holder is never changed here.
func (r *Registry) UpdateDevice(ctx context.Context, serial string, fields Device) (*Device, error) {
	d, err := r.repo.ReplaceBySerial(ctx, serial, fields.Details())
	if err != nil {
		return nil, err
	}

	r.logger.Info("device updated", "id", d.ID, "serial_number", d.SerialNumber)
	r.notifier.Notify(ctx, events.Event{
		Type:         events.DeviceUpdated,
		SerialNumber: d.SerialNumber,
		DeviceID:     d.ID,
		UserID:       d.User,
	})
	return d, nil
}

// UploadImage stores raw as the image of the device, replacing any
// existing one. Returns ErrDeviceNotFound when no device has the serial
// number and ErrInvalidImage when raw is empty.
func (r *Registry) UploadImage(ctx context.Context, serial string, raw []byte) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty file", ErrInvalidImage)
	}

	d, err := r.repo.GetBySerial(ctx, serial)
	if err != nil {
		return err
	}

	if _, err := r.images.Upsert(ctx, serial, EncodeImage(raw)); err != nil {
		return err
	}

	r.logger.Info("image uploaded", "serial_number", serial, "bytes", len(raw))
	r.notifier.Notify(ctx, events.Event{
		Type:         events.ImageUploaded,
		SerialNumber: serial,
		DeviceID:     d.ID,
	})
	return nil
}

// GetImage returns the decoded image bytes for the serial number.
// Returns ErrImageNotFound when no image (or an empty one) is stored.
func (r *Registry) GetImage(ctx context.Context, serial string) ([]byte, error) {
	img, err := r.images.GetBySerial(ctx, serial)
	if err != nil {
		return nil, err
	}
	return DecodeImage(img.Data)
}

// DeleteImage removes the image for the serial number.
// Returns ErrImageNotFound when there is none.
func (r *Registry) DeleteImage(ctx context.Context, serial string) error {
	if err := r.images.DeleteBySerial(ctx, serial); err != nil {
		return err
	}

	r.logger.Info("image deleted", "serial_number", serial)
	r.notifier.Notify(ctx, events.Event{
		Type:         events.ImageDeleted,
		SerialNumber: serial,
	})
	return nil
}
