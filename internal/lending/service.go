package lending

import (
	"context"
	"errors"
	"fmt"

	"github.com/devicehub/devicehub-core/internal/auth"
	"github.com/devicehub/devicehub-core/internal/device"
	"github.com/devicehub/devicehub-core/internal/events"
)

// Logger defines the logging interface used by the Service.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Service runs the take, return and retire workflows.
//
// All public methods are thread-safe.
type Service struct {
	devices  device.Repository
	users    auth.UserRepository
	locks    KeyedMutex
	notifier events.Sink
	logger   Logger
}

// NewService creates a lending service. A nil notifier discards events.
func NewService(devices device.Repository, users auth.UserRepository, notifier events.Sink) *Service {
	if notifier == nil {
		notifier = events.Discard
	}
	return &Service{
		devices:  devices,
		users:    users,
		notifier: notifier,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// Take makes userID the holder of the first device with the serial number.
//
// Returns device.ErrDeviceNotFound when no device matches and
// ErrAlreadyTaken when the device already has a holder, including when
// the holder is userID.
func (s *Service) Take(ctx context.Context, serial, userID string) (*device.Device, error) {
	unlock := s.locks.Lock(serial)
	defer unlock()

	d, err := s.devices.GetBySerial(ctx, serial)
	if err != nil {
		return nil, err
	}
	if d.IsTaken() {
		return nil, ErrAlreadyTaken
	}

	if err := s.devices.CompareAndSetHolder(ctx, d.ID, "", userID); err != nil {
		if errors.Is(err, device.ErrHolderChanged) {
			return nil, ErrAlreadyTaken
		}
		return nil, fmt.Errorf("setting holder: %w", err)
	}

	if err := s.users.AddDevice(ctx, userID, d.ID); err != nil {
		s.undoHolder(ctx, d, userID, "", err)
		return nil, fmt.Errorf("adding device to user: %w", err)
	}

	d.User = userID
	s.logger.Info("device taken", "id", d.ID, "serial_number", serial, "user_id", userID)
	s.notifier.Notify(ctx, events.Event{
		Type:         events.DeviceTaken,
		SerialNumber: serial,
		DeviceID:     d.ID,
		UserID:       userID,
	})
	return d, nil
}

// Return clears the holder of the first device with the serial number.
//
// Returns device.ErrDeviceNotFound when no device matches, ErrNotTaken
// when it has no holder and ErrNotHolder when userID is not the holder.
func (s *Service) Return(ctx context.Context, serial, userID string) (*device.Device, error) {
	unlock := s.locks.Lock(serial)
	defer unlock()

	d, err := s.devices.GetBySerial(ctx, serial)
	if err != nil {
		return nil, err
	}
	if !d.IsTaken() {
		return nil, ErrNotTaken
	}
	if d.User != userID {
		return nil, ErrNotHolder
	}

	if err := s.devices.CompareAndSetHolder(ctx, d.ID, userID, ""); err != nil {
		if errors.Is(err, device.ErrHolderChanged) {
			return nil, s.returnConflict(ctx, d.ID, userID)
		}
		return nil, fmt.Errorf("clearing holder: %w", err)
	}

	if err := s.users.RemoveDevice(ctx, userID, d.ID); err != nil {
		s.undoHolder(ctx, d, "", userID, err)
		return nil, fmt.Errorf("removing device from user: %w", err)
	}

	d.User = ""
	s.logger.Info("device returned", "id", d.ID, "serial_number", serial, "user_id", userID)
	s.notifier.Notify(ctx, events.Event{
		Type:         events.DeviceReturned,
		SerialNumber: serial,
		DeviceID:     d.ID,
		UserID:       userID,
	})
	return d, nil
}

// Retire deletes the first device with the serial number and drops it
// from its holder's list. Reports whether a device was deleted; a missing
// device is not an error.
func (s *Service) Retire(ctx context.Context, serial string) (bool, error) {
	unlock := s.locks.Lock(serial)
	defer unlock()

	d, err := s.devices.DeleteBySerial(ctx, serial)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			return false, nil
		}
		return false, err
	}

	if d.IsTaken() {
		err := s.users.RemoveDevice(ctx, d.User, d.ID)
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			s.logger.Warn("retired device held by unknown user", "id", d.ID, "user_id", d.User)
		case err != nil:
			return true, fmt.Errorf("removing retired device from user: %w", err)
		}
	}

	s.logger.Info("device deleted", "id", d.ID, "serial_number", serial)
	s.notifier.Notify(ctx, events.Event{
		Type:         events.DeviceDeleted,
		SerialNumber: serial,
		DeviceID:     d.ID,
		UserID:       d.User,
	})
	return true, nil
}

// returnConflict maps a lost compare-and-set during Return to the error
// the current state would have produced.
func (s *Service) returnConflict(ctx context.Context, id, userID string) error {
	d, err := s.devices.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !d.IsTaken() {
		return ErrNotTaken
	}
	if d.User != userID {
		return ErrNotHolder
	}
	return fmt.Errorf("clearing holder: %w", device.ErrHolderChanged)
}

// undoHolder restores the device holder after the user-side write failed.
// The rollback runs even if ctx has been cancelled.
func (s *Service) undoHolder(ctx context.Context, d *device.Device, current, previous string, cause error) {
	ctx = context.WithoutCancel(ctx)
	if err := s.devices.CompareAndSetHolder(ctx, d.ID, current, previous); err != nil {
		s.logger.Error("holder rollback failed, device and user records disagree",
			"id", d.ID,
			"serial_number", d.SerialNumber,
			"holder", current,
			"want_holder", previous,
			"cause", cause,
			"error", err,
		)
		return
	}
	s.logger.Warn("holder change rolled back", "id", d.ID, "serial_number", d.SerialNumber, "cause", cause)
}
