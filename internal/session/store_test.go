package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/sessions"

	"github.com/devicehub/devicehub-core/internal/infrastructure/config"
)

const cookieName = "devicehub_session"

func newTestStore(t *testing.T, maxAge int) *Store {
	t.Helper()
	return NewStore(NewSQLiteRepository(setupTestDB(t)), OptionsFromConfig(config.SessionConfig{
		CookieName: cookieName,
		MaxAge:     maxAge,
	}))
}

// login performs a login and returns the issued cookie.
func login(t *testing.T, store *Store, userID string) *http.Cookie {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/login", nil)
	w := httptest.NewRecorder()
	if err := store.Login(w, r, cookieName, userID); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("Login() set %d cookies, want 1", len(cookies))
	}
	return cookies[0]
}

func requestWith(c *http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/devices", nil)
	if c != nil {
		r.AddCookie(c)
	}
	return r
}

func TestStore_LoginThenUserID(t *testing.T) {
	store := newTestStore(t, 3600)
	c := login(t, store, "user-1")

	if !c.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}
	if c.MaxAge != 3600 {
		t.Errorf("cookie MaxAge = %d, want 3600", c.MaxAge)
	}

	got, err := store.UserID(requestWith(c), cookieName)
	if err != nil {
		t.Fatalf("UserID() error = %v", err)
	}
	if got != "user-1" {
		t.Errorf("UserID() = %q, want user-1", got)
	}
}

func TestStore_TokenIsNotStored(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(NewSQLiteRepository(db), nil)

	r := httptest.NewRequest(http.MethodPost, "/login", nil)
	w := httptest.NewRecorder()
	if err := store.Login(w, r, cookieName, "user-1"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	token := w.Result().Cookies()[0].Value

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM sessions WHERE id = ?", token).Scan(&n); err != nil {
		t.Fatalf("query error = %v", err)
	}
	if n != 0 {
		t.Error("raw cookie token found in sessions table")
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM sessions WHERE id = ?", hashToken(token)).Scan(&n); err != nil {
		t.Fatalf("query error = %v", err)
	}
	if n != 1 {
		t.Errorf("hashed token rows = %d, want 1", n)
	}
}

func TestStore_NoCookie(t *testing.T) {
	store := newTestStore(t, 0)
	if _, err := store.UserID(requestWith(nil), cookieName); !errors.Is(err, ErrNoSession) {
		t.Errorf("UserID() error = %v, want ErrNoSession", err)
	}
}

func TestStore_UnknownToken(t *testing.T) {
	store := newTestStore(t, 0)
	c := &http.Cookie{Name: cookieName, Value: "forged-token"}
	if _, err := store.UserID(requestWith(c), cookieName); !errors.Is(err, ErrNoSession) {
		t.Errorf("UserID() error = %v, want ErrNoSession", err)
	}
}

func TestStore_Expired(t *testing.T) {
	store := newTestStore(t, 60)
	c := login(t, store, "user-1")

	store.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := store.UserID(requestWith(c), cookieName); !errors.Is(err, ErrNoSession) {
		t.Errorf("UserID() after expiry error = %v, want ErrNoSession", err)
	}
}

func TestStore_Logout(t *testing.T) {
	store := newTestStore(t, 0)
	c := login(t, store, "user-1")

	r := requestWith(c)
	w := httptest.NewRecorder()
	if err := store.Logout(w, r, cookieName); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	cleared := w.Result().Cookies()
	if len(cleared) != 1 || cleared[0].MaxAge >= 0 {
		t.Errorf("Logout() cookies = %+v, want one expired cookie", cleared)
	}

	// The old token no longer authenticates.
	if _, err := store.UserID(requestWith(c), cookieName); !errors.Is(err, ErrNoSession) {
		t.Errorf("UserID() after logout error = %v, want ErrNoSession", err)
	}
}

func TestStore_LoginRotatesToken(t *testing.T) {
	store := newTestStore(t, 0)
	first := login(t, store, "user-1")

	r := requestWith(first)
	w := httptest.NewRecorder()
	if err := store.Login(w, r, cookieName, "user-2"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	second := w.Result().Cookies()[0]
	if second.Value == first.Value {
		t.Fatal("second login reused the previous token")
	}
	if _, err := store.UserID(requestWith(first), cookieName); !errors.Is(err, ErrNoSession) {
		t.Errorf("old token error = %v, want ErrNoSession", err)
	}
	got, err := store.UserID(requestWith(second), cookieName)
	if err != nil || got != "user-2" {
		t.Errorf("UserID() = %q, %v; want user-2", got, err)
	}
}

func TestStore_DeleteExpired(t *testing.T) {
	store := newTestStore(t, 60)
	login(t, store, "user-1")

	store.now = func() time.Time { return time.Now().Add(time.Hour) }
	n, err := store.DeleteExpired(context.Background())
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteExpired() = %d, want 1", n)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	tests := []struct {
		sameSite string
		want     http.SameSite
	}{
		{"", http.SameSiteLaxMode},
		{"lax", http.SameSiteLaxMode},
		{"Strict", http.SameSiteStrictMode},
		{"none", http.SameSiteNoneMode},
	}
	for _, tt := range tests {
		opts := OptionsFromConfig(config.SessionConfig{SameSite: tt.sameSite, Secure: true, MaxAge: 10})
		if opts.SameSite != tt.want {
			t.Errorf("SameSite(%q) = %v, want %v", tt.sameSite, opts.SameSite, tt.want)
		}
		if !opts.Secure || !opts.HttpOnly || opts.MaxAge != 10 || opts.Path != "/" {
			t.Errorf("OptionsFromConfig() = %+v", opts)
		}
	}
}

func TestUserIDOf_WrongType(t *testing.T) {
	s := sessions.NewSession(nil, cookieName)
	s.Values[userIDKey] = 42
	if got := UserIDOf(s); got != "" {
		t.Errorf("UserIDOf() = %q, want empty", got)
	}
}
