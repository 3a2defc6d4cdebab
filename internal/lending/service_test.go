package lending

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"sort"
	"sync"
	"testing"

	"github.com/devicehub/devicehub-core/internal/auth"
	"github.com/devicehub/devicehub-core/internal/device"
	"github.com/devicehub/devicehub-core/internal/events"
	"github.com/devicehub/devicehub-core/internal/infrastructure/database"
	_ "github.com/devicehub/devicehub-core/migrations" // registers the schema
)

// setupTestDB creates an in-memory SQLite database with the full schema applied.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Test cleanup
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // Test cleanup
	})
	return db.DB
}

// eventRecorder collects notified events.
type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) Notify(_ context.Context, e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// failingUsers wraps a UserRepository and fails the device-list writes on demand.
type failingUsers struct {
	auth.UserRepository
	failAdd    error
	failRemove error
}

func (f *failingUsers) AddDevice(ctx context.Context, userID, deviceID string) error {
	if f.failAdd != nil {
		return f.failAdd
	}
	return f.UserRepository.AddDevice(ctx, userID, deviceID)
}

func (f *failingUsers) RemoveDevice(ctx context.Context, userID, deviceID string) error {
	if f.failRemove != nil {
		return f.failRemove
	}
	return f.UserRepository.RemoveDevice(ctx, userID, deviceID)
}

type fixture struct {
	svc     *Service
	devices device.Repository
	users   *failingUsers
	rec     *eventRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	f := &fixture{
		devices: device.NewSQLiteRepository(db),
		users:   &failingUsers{UserRepository: auth.NewUserRepository(db)},
		rec:     &eventRecorder{},
	}
	f.svc = NewService(f.devices, f.users, f.rec)
	return f
}

func (f *fixture) addDevice(t *testing.T, serial string) *device.Device {
	t.Helper()
	d := &device.Device{DeviceName: "Scope", SerialNumber: serial, Manufacturer: "Acme"}
	if err := f.devices.Create(context.Background(), d); err != nil {
		t.Fatalf("Create device: %v", err)
	}
	return d
}

func (f *fixture) addUser(t *testing.T, name string) *auth.User {
	t.Helper()
	u := &auth.User{Username: name, PasswordHash: "x"}
	if err := f.users.Create(context.Background(), u); err != nil {
		t.Fatalf("Create user: %v", err)
	}
	return u
}

// assertHolding checks both halves of the lending invariant for one device.
func (f *fixture) assertHolding(t *testing.T, d *device.Device, holder string, users ...*auth.User) {
	t.Helper()
	ctx := context.Background()

	got, err := f.devices.GetByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.User != holder {
		t.Errorf("device holder = %q, want %q", got.User, holder)
	}

	for _, u := range users {
		stored, err := f.users.GetByID(ctx, u.ID)
		if err != nil {
			t.Fatalf("GetByID user: %v", err)
		}
		count := 0
		for _, id := range stored.Devices {
			if id == d.ID {
				count++
			}
		}
		want := 0
		if u.ID == holder {
			want = 1
		}
		if count != want {
			t.Errorf("user %s lists device %d times, want %d", u.Username, count, want)
		}
	}
}

func TestTake_SetsHolderAndList(t *testing.T) {
	f := newFixture(t)
	d := f.addDevice(t, "SN1")
	alice := f.addUser(t, "alice")

	got, err := f.svc.Take(context.Background(), "SN1", alice.ID)
	if err != nil {
		t.Fatalf("Take() error = %v", err)
	}
	if got.User != alice.ID {
		t.Errorf("Take().User = %q, want %q", got.User, alice.ID)
	}
	f.assertHolding(t, d, alice.ID, alice)

	types := f.rec.types()
	if len(types) != 1 || types[0] != events.DeviceTaken {
		t.Errorf("events = %v, want [device.taken]", types)
	}
}

func TestTake_AlreadyTakenByAnyone(t *testing.T) {
	f := newFixture(t)
	d := f.addDevice(t, "SN1")
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	ctx := context.Background()

	if _, err := f.svc.Take(ctx, "SN1", alice.ID); err != nil {
		t.Fatalf("Take() error = %v", err)
	}

	for _, u := range []*auth.User{alice, bob} {
		if _, err := f.svc.Take(ctx, "SN1", u.ID); !errors.Is(err, ErrAlreadyTaken) {
			t.Errorf("Take() by %s error = %v, want ErrAlreadyTaken", u.Username, err)
		}
	}
	f.assertHolding(t, d, alice.ID, alice, bob)
}

func TestTake_DeviceNotFound(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice")

	if _, err := f.svc.Take(context.Background(), "missing", alice.ID); !errors.Is(err, device.ErrDeviceNotFound) {
		t.Errorf("Take() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestReturn_Rules(t *testing.T) {
	f := newFixture(t)
	d := f.addDevice(t, "SN1")
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	ctx := context.Background()

	if _, err := f.svc.Return(ctx, "SN1", alice.ID); !errors.Is(err, ErrNotTaken) {
		t.Errorf("Return() unheld error = %v, want ErrNotTaken", err)
	}
	if _, err := f.svc.Return(ctx, "missing", alice.ID); !errors.Is(err, device.ErrDeviceNotFound) {
		t.Errorf("Return() missing error = %v, want ErrDeviceNotFound", err)
	}

	if _, err := f.svc.Take(ctx, "SN1", alice.ID); err != nil {
		t.Fatalf("Take() error = %v", err)
	}
	if _, err := f.svc.Return(ctx, "SN1", bob.ID); !errors.Is(err, ErrNotHolder) {
		t.Errorf("Return() by non-holder error = %v, want ErrNotHolder", err)
	}
	f.assertHolding(t, d, alice.ID, alice, bob)

	got, err := f.svc.Return(ctx, "SN1", alice.ID)
	if err != nil {
		t.Fatalf("Return() error = %v", err)
	}
	if got.User != "" {
		t.Errorf("Return().User = %q, want empty", got.User)
	}
	f.assertHolding(t, d, "", alice, bob)
}

func TestTakeReturn_RoundTripRestoresList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	f.addDevice(t, "SN1")
	f.addDevice(t, "SN2")
	f.addDevice(t, "SN3")

	for _, sn := range []string{"SN1", "SN2"} {
		if _, err := f.svc.Take(ctx, sn, alice.ID); err != nil {
			t.Fatalf("Take(%s) error = %v", sn, err)
		}
	}
	before, err := f.users.GetByID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	if _, err := f.svc.Take(ctx, "SN3", alice.ID); err != nil {
		t.Fatalf("Take(SN3) error = %v", err)
	}
	if _, err := f.svc.Return(ctx, "SN3", alice.ID); err != nil {
		t.Fatalf("Return(SN3) error = %v", err)
	}

	after, err := f.users.GetByID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	a, b := append([]string(nil), before.Devices...), append([]string(nil), after.Devices...)
	sort.Strings(a)
	sort.Strings(b)
	if len(a) != len(b) {
		t.Fatalf("devices after round trip = %v, want %v", after.Devices, before.Devices)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("devices after round trip = %v, want %v", after.Devices, before.Devices)
		}
	}
}

func TestTake_ConcurrentExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	d := f.addDevice(t, "SN1")

	const n = 16
	users := make([]*auth.User, n)
	for i := range users {
		users[i] = f.addUser(t, "user"+string(rune('a'+i)))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes []string
	)
	for _, u := range users {
		wg.Add(1)
		go func(u *auth.User) {
			defer wg.Done()
			_, err := f.svc.Take(context.Background(), "SN1", u.ID)
			switch {
			case err == nil:
				mu.Lock()
				successes = append(successes, u.ID)
				mu.Unlock()
			case !errors.Is(err, ErrAlreadyTaken):
				t.Errorf("Take() unexpected error = %v", err)
			}
		}(u)
	}
	wg.Wait()

	if len(successes) != 1 {
		t.Fatalf("successful takes = %d, want 1", len(successes))
	}
	f.assertHolding(t, d, successes[0], users...)
}

func TestTake_CompareAndSetClosesRaceAcrossServices(t *testing.T) {
	// Two services share a store but not a lock, as two processes would.
	f := newFixture(t)
	d := f.addDevice(t, "SN1")
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	other := NewService(f.devices, f.users, nil)
	ctx := context.Background()

	if _, err := f.svc.Take(ctx, "SN1", alice.ID); err != nil {
		t.Fatalf("Take() error = %v", err)
	}
	if _, err := other.Take(ctx, "SN1", bob.ID); !errors.Is(err, ErrAlreadyTaken) {
		t.Errorf("Take() from second service error = %v, want ErrAlreadyTaken", err)
	}
	f.assertHolding(t, d, alice.ID, alice, bob)
}

func TestTake_CompensatesWhenUserWriteFails(t *testing.T) {
	f := newFixture(t)
	d := f.addDevice(t, "SN1")
	alice := f.addUser(t, "alice")
	boom := errors.New("disk full")
	f.users.failAdd = boom

	_, err := f.svc.Take(context.Background(), "SN1", alice.ID)
	if !errors.Is(err, boom) {
		t.Fatalf("Take() error = %v, want wrapped %v", err, boom)
	}
	f.assertHolding(t, d, "", alice)
	if types := f.rec.types(); len(types) != 0 {
		t.Errorf("events after failed take = %v, want none", types)
	}

	// The device is still available afterwards.
	f.users.failAdd = nil
	if _, err := f.svc.Take(context.Background(), "SN1", alice.ID); err != nil {
		t.Errorf("Take() after rollback error = %v", err)
	}
}

func TestTake_UnknownUserRollsBack(t *testing.T) {
	f := newFixture(t)
	d := f.addDevice(t, "SN1")

	_, err := f.svc.Take(context.Background(), "SN1", "ghost")
	if !errors.Is(err, auth.ErrUserNotFound) {
		t.Fatalf("Take() error = %v, want ErrUserNotFound", err)
	}
	f.assertHolding(t, d, "")
}

func TestReturn_CompensatesWhenUserWriteFails(t *testing.T) {
	f := newFixture(t)
	d := f.addDevice(t, "SN1")
	alice := f.addUser(t, "alice")
	ctx := context.Background()

	if _, err := f.svc.Take(ctx, "SN1", alice.ID); err != nil {
		t.Fatalf("Take() error = %v", err)
	}
	boom := errors.New("disk full")
	f.users.failRemove = boom

	if _, err := f.svc.Return(ctx, "SN1", alice.ID); !errors.Is(err, boom) {
		t.Fatalf("Return() error = %v, want wrapped %v", err, boom)
	}
	f.assertHolding(t, d, alice.ID, alice)
}

func TestTake_CancelledContextStillRollsBack(t *testing.T) {
	f := newFixture(t)
	d := f.addDevice(t, "SN1")
	alice := f.addUser(t, "alice")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	users := &cancellingUsers{UserRepository: f.users.UserRepository, cancel: cancel}
	svc := NewService(f.devices, users, nil)

	if _, err := svc.Take(ctx, "SN1", alice.ID); !errors.Is(err, context.Canceled) {
		t.Fatalf("Take() error = %v, want context.Canceled", err)
	}
	f.assertHolding(t, d, "", alice)
}

// cancellingUsers cancels the request context and fails AddDevice, as a
// client disconnect between the two writes would.
type cancellingUsers struct {
	auth.UserRepository
	cancel context.CancelFunc
}

func (c *cancellingUsers) AddDevice(ctx context.Context, _, _ string) error {
	c.cancel()
	return ctx.Err()
}

func TestRetire(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	held := f.addDevice(t, "SN1")
	f.addDevice(t, "SN2")

	if _, err := f.svc.Take(ctx, "SN1", alice.ID); err != nil {
		t.Fatalf("Take() error = %v", err)
	}

	deleted, err := f.svc.Retire(ctx, "SN1")
	if err != nil {
		t.Fatalf("Retire() error = %v", err)
	}
	if !deleted {
		t.Error("Retire() reported nothing deleted")
	}
	if _, err := f.devices.GetByID(ctx, held.ID); !errors.Is(err, device.ErrDeviceNotFound) {
		t.Errorf("retired device still present: %v", err)
	}
	u, err := f.users.GetByID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if slices.Contains(u.Devices, held.ID) {
		t.Errorf("holder still lists retired device: %v", u.Devices)
	}

	deleted, err = f.svc.Retire(ctx, "missing")
	if err != nil || deleted {
		t.Errorf("Retire(missing) = %v, %v; want false, nil", deleted, err)
	}

	types := f.rec.types()
	if types[len(types)-1] != events.DeviceDeleted {
		t.Errorf("last event = %v, want device.deleted", types[len(types)-1])
	}
}
