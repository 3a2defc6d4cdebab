package device

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/devicehub/devicehub-core/internal/events"
)

// eventRecorder captures notifications synchronously.
type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) Notify(_ context.Context, e events.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *eventRecorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func setupRegistry(t *testing.T) (*Registry, *eventRecorder) {
	t.Helper()
	db := setupTestDB(t)
	rec := &eventRecorder{}
	return NewRegistry(NewSQLiteRepository(db), NewSQLiteImageRepository(db), rec), rec
}

func TestRegistry_CreateIgnoresIDAndHolder(t *testing.T) {
	reg, rec := setupRegistry(t)
	ctx := context.Background()

	d := testDevice("SN-1", "Multimeter")
	d.ID = "client-chosen"
	d.User = "someone"

	if err := reg.CreateDevice(ctx, d); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	if d.ID == "client-chosen" || d.ID == "" {
		t.Errorf("ID = %q, want freshly generated", d.ID)
	}
	if d.User != "" {
		t.Errorf("User = %q, new devices must start available", d.User)
	}

	stored, err := reg.GetDevice(ctx, "SN-1")
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	if *stored != *d {
		t.Errorf("stored = %+v, want %+v", *stored, *d)
	}

	if got := rec.types(); len(got) != 1 || got[0] != events.DeviceCreated {
		t.Errorf("events = %v, want [device.created]", got)
	}
}

func TestRegistry_ListEmpty(t *testing.T) {
	reg, _ := setupRegistry(t)

	devices, err := reg.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if devices == nil || len(devices) != 0 {
		t.Errorf("ListDevices() = %#v, want empty slice", devices)
	}
}

func TestRegistry_UpdateDevice(t *testing.T) {
	reg, rec := setupRegistry(t)
	ctx := context.Background()

	d := testDevice("SN-1", "Old")
	if err := reg.CreateDevice(ctx, d); err != nil {
		t.Fatal(err)
	}

	updated, err := reg.UpdateDevice(ctx, "SN-1", Device{
		ID:           "ignored",
		User:         "ignored",
		DeviceName:   "New",
		SerialNumber: "SN-1",
	})
	if err != nil {
		t.Fatalf("UpdateDevice() error = %v", err)
	}
	if updated.ID != d.ID || updated.User != "" || updated.DeviceName != "New" || updated.Manufacturer != "" {
		t.Errorf("updated = %+v", *updated)
	}

	if _, err := reg.UpdateDevice(ctx, "missing", Device{}); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("UpdateDevice(missing) error = %v, want ErrDeviceNotFound", err)
	}

	got := rec.types()
	if len(got) != 2 || got[1] != events.DeviceUpdated {
		t.Errorf("events = %v, want [device.created device.updated]", got)
	}
}

func TestRegistry_ImageRoundTrip(t *testing.T) {
	reg, rec := setupRegistry(t)
	ctx := context.Background()

	if err := reg.CreateDevice(ctx, testDevice("SN-IMG", "Camera")); err != nil {
		t.Fatal(err)
	}

	raw := []byte("\xff\xd8\xff\xe0 not really a jpeg \x00\x01\x02")
	if err := reg.UploadImage(ctx, "SN-IMG", raw); err != nil {
		t.Fatalf("UploadImage() error = %v", err)
	}

	got, err := reg.GetImage(ctx, "SN-IMG")
	if err != nil {
		t.Fatalf("GetImage() error = %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Errorf("GetImage() = %q, want %q", got, raw)
	}

	// A second upload replaces the first.
	if err := reg.UploadImage(ctx, "SN-IMG", []byte("v2")); err != nil {
		t.Fatalf("second UploadImage() error = %v", err)
	}
	got, _ = reg.GetImage(ctx, "SN-IMG")
	if string(got) != "v2" {
		t.Errorf("after replace GetImage() = %q, want v2", got)
	}

	if err := reg.DeleteImage(ctx, "SN-IMG"); err != nil {
		t.Fatalf("DeleteImage() error = %v", err)
	}
	if _, err := reg.GetImage(ctx, "SN-IMG"); !errors.Is(err, ErrImageNotFound) {
		t.Errorf("GetImage() after delete error = %v, want ErrImageNotFound", err)
	}
	if err := reg.DeleteImage(ctx, "SN-IMG"); !errors.Is(err, ErrImageNotFound) {
		t.Errorf("second DeleteImage() error = %v, want ErrImageNotFound", err)
	}

	want := []events.Type{events.DeviceCreated, events.ImageUploaded, events.ImageUploaded, events.ImageDeleted}
	gotTypes := rec.types()
	if len(gotTypes) != len(want) {
		t.Fatalf("events = %v, want %v", gotTypes, want)
	}
	for i := range want {
		if gotTypes[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, gotTypes[i], want[i])
		}
	}
}

func TestRegistry_UploadImageErrors(t *testing.T) {
	reg, _ := setupRegistry(t)
	ctx := context.Background()

	if err := reg.UploadImage(ctx, "missing", []byte("x")); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("UploadImage(missing device) error = %v, want ErrDeviceNotFound", err)
	}

	if err := reg.CreateDevice(ctx, testDevice("SN-1", "x")); err != nil {
		t.Fatal(err)
	}
	if err := reg.UploadImage(ctx, "SN-1", nil); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("UploadImage(empty) error = %v, want ErrInvalidImage", err)
	}
}
