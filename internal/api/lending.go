package api

import (
	"errors"
	"net/http"

	"github.com/devicehub/devicehub-core/internal/auth"
	"github.com/devicehub/devicehub-core/internal/device"
	"github.com/devicehub/devicehub-core/internal/lending"
)

// handleTakeDevice makes the logged-in user the device's holder.
func (s *Server) handleTakeDevice(w http.ResponseWriter, r *http.Request) {
	_, err := s.lending.Take(r.Context(), serialParam(r), userIDFromContext(r.Context()))
	if err != nil {
		s.writeLendingError(w, r, "failed to take device", err)
		return
	}
	writeMessage(w, http.StatusOK, msgTaken)
}

// handleReturnDevice clears the device's holder if it is the logged-in user.
func (s *Server) handleReturnDevice(w http.ResponseWriter, r *http.Request) {
	_, err := s.lending.Return(r.Context(), serialParam(r), userIDFromContext(r.Context()))
	if err != nil {
		s.writeLendingError(w, r, "failed to return device", err)
		return
	}
	writeMessage(w, http.StatusOK, msgReturned)
}

// writeLendingError maps lending workflow errors to responses.
func (s *Server) writeLendingError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		writeNotFound(w, msgDeviceNotFound)
	case errors.Is(err, lending.ErrAlreadyTaken):
		writeBadRequest(w, msgAlreadyTaken)
	case errors.Is(err, lending.ErrNotTaken):
		writeBadRequest(w, msgNotTaken)
	case errors.Is(err, lending.ErrNotHolder):
		writeForbidden(w, msgNotHolder)
	case errors.Is(err, auth.ErrUserNotFound):
		// The session outlived its account.
		writeUnauthorized(w, msgUnauthorized)
	default:
		s.writeInternalError(w, r, msg, err)
	}
}
