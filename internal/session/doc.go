// Package session implements server-side login sessions for DeviceHub.
//
// Store satisfies the gorilla/sessions Store interface. The cookie carries
// only an opaque random token; the server keeps a record keyed by the
// token's SHA-256 digest, so a leaked database does not yield usable
// cookies. Records live in SQLite or MongoDB behind Repository.
//
// Usage:
//
//	store := session.NewStore(repo, session.OptionsFromConfig(cfg.Session))
//	if err := store.Login(w, r, user.ID); err != nil { ... }
//	userID, err := store.UserID(r)
package session
