package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/devicehub/devicehub-core/internal/auth"
)

// handleRegister creates an account and returns it without the password hash.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var creds auth.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeBadRequest(w, msgInvalidJSON)
		return
	}

	user, err := auth.Register(r.Context(), s.users, creds)
	switch {
	case err == nil:
		s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
		writeJSON(w, http.StatusCreated, user)
	case errors.Is(err, auth.ErrMissingCredentials):
		writeBadRequest(w, msgMissingCredentials)
	case errors.Is(err, auth.ErrUsernameExists):
		writeBadRequest(w, msgUsernameExists)
	default:
		s.writeInternalError(w, r, "failed to register user", err)
	}
}

// handleLogin verifies credentials and starts a session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds auth.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeBadRequest(w, msgInvalidJSON)
		return
	}

	user, err := auth.Authenticate(r.Context(), s.users, creds)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrMissingCredentials) {
			s.logger.Info("login failed", "username", creds.Username)
			writeUnauthorized(w, msgInvalidCredentials)
			return
		}
		s.writeInternalError(w, r, "failed to authenticate user", err)
		return
	}

	if err := s.sessions.Login(w, r, s.sessCfg.CookieName, user.ID); err != nil {
		s.writeInternalError(w, r, "failed to start session", err)
		return
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	writeMessage(w, http.StatusOK, msgLoginSuccessful)
}

// handleLogout destroys the caller's session, if any.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Logout(w, r, s.sessCfg.CookieName); err != nil {
		s.logger.Error("failed to destroy session", "error", err, "request_id", r.Context().Value(ctxKeyRequestID))
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, msgLogoutFailed)
		return
	}
	writeMessage(w, http.StatusOK, msgLogoutSuccessful)
}
