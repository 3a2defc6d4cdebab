package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/sessions"

	"github.com/devicehub/devicehub-core/internal/infrastructure/config"
)

// userIDKey is the session value holding the authenticated user's ID.
const userIDKey = "userId"

// tokenBytes is the amount of randomness in a session token.
const tokenBytes = 32

// ErrNoSession is returned by UserID when the request carries no
// authenticated session.
var ErrNoSession = errors.New("session: not authenticated")

// Store is a gorilla/sessions Store backed by a Repository.
type Store struct {
	repo    Repository
	Options *sessions.Options
	now     func() time.Time
}

var _ sessions.Store = (*Store)(nil)

// NewStore creates a store. A nil opts uses path "/" with HttpOnly set.
func NewStore(repo Repository, opts *sessions.Options) *Store {
	if opts == nil {
		opts = &sessions.Options{Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode}
	}
	return &Store{repo: repo, Options: opts, now: time.Now}
}

// OptionsFromConfig builds cookie options from the session config.
func OptionsFromConfig(cfg config.SessionConfig) *sessions.Options {
	opts := &sessions.Options{
		Path:     "/",
		MaxAge:   cfg.MaxAge,
		Secure:   cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	switch strings.ToLower(cfg.SameSite) {
	case "strict":
		opts.SameSite = http.SameSiteStrictMode
	case "none":
		opts.SameSite = http.SameSiteNoneMode
	}
	return opts
}

// Get returns the named session, cached per request.
func (s *Store) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

// New loads the session named by the request cookie, or returns a fresh
// session when the cookie is absent, unknown or expired.
func (s *Store) New(r *http.Request, name string) (*sessions.Session, error) {
	session := sessions.NewSession(s, name)
	opts := *s.Options
	session.Options = &opts
	session.IsNew = true

	cookie, err := r.Cookie(name)
	if err != nil || cookie.Value == "" {
		return session, nil
	}

	id := hashToken(cookie.Value)
	rec, err := s.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return session, nil
		}
		return session, err
	}
	if rec.Expired(s.now()) {
		_ = s.repo.Delete(r.Context(), id) //nolint:errcheck // record is unusable either way
		return session, nil
	}

	session.ID = cookie.Value
	session.Values[userIDKey] = rec.UserID
	session.IsNew = false
	return session, nil
}

// Save persists the session and writes its cookie. A negative MaxAge
// deletes the server record and expires the cookie.
func (s *Store) Save(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	if session.Options.MaxAge < 0 {
		if session.ID != "" {
			if err := s.repo.Delete(r.Context(), hashToken(session.ID)); err != nil {
				return err
			}
		}
		http.SetCookie(w, sessions.NewCookie(session.Name(), "", session.Options))
		return nil
	}

	if session.ID == "" {
		token, err := newToken()
		if err != nil {
			return err
		}
		session.ID = token
	}

	now := s.now().UTC()
	rec := &Record{
		ID:        hashToken(session.ID),
		UserID:    UserIDOf(session),
		CreatedAt: now,
	}
	if session.Options.MaxAge > 0 {
		exp := now.Add(time.Duration(session.Options.MaxAge) * time.Second)
		rec.ExpiresAt = &exp
	}
	if err := s.repo.Save(r.Context(), rec); err != nil {
		return err
	}

	http.SetCookie(w, sessions.NewCookie(session.Name(), session.ID, session.Options))
	return nil
}

// Login starts a new authenticated session for userID. Any session the
// request already carried is discarded so that tokens are never reused
// across logins.
func (s *Store) Login(w http.ResponseWriter, r *http.Request, name, userID string) error {
	session, err := s.Get(r, name)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	if session.ID != "" {
		if err := s.repo.Delete(r.Context(), hashToken(session.ID)); err != nil {
			return fmt.Errorf("discarding previous session: %w", err)
		}
		session.ID = ""
	}
	SetUserID(session, userID)
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Logout ends the request's session, if any.
func (s *Store) Logout(w http.ResponseWriter, r *http.Request, name string) error {
	session, err := s.Get(r, name)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	session.Options.MaxAge = -1
	delete(session.Values, userIDKey)
	return session.Save(r, w)
}

// UserID returns the authenticated user of the request's session.
func (s *Store) UserID(r *http.Request, name string) (string, error) {
	session, err := s.Get(r, name)
	if err != nil {
		return "", fmt.Errorf("loading session: %w", err)
	}
	id := UserIDOf(session)
	if id == "" {
		return "", ErrNoSession
	}
	return id, nil
}

// DeleteExpired removes expired session records.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now())
}

// UserIDOf returns the user ID stored in the session, or "".
func UserIDOf(session *sessions.Session) string {
	id, _ := session.Values[userIDKey].(string) //nolint:errcheck // type assertion, not an error
	return id
}

// SetUserID stores the user ID in the session.
func SetUserID(session *sessions.Session, userID string) {
	session.Values[userIDKey] = userID
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
