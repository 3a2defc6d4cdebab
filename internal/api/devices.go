package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/devicehub/devicehub-core/internal/device"
)

// handleListDevices returns the whole catalogue as a JSON array.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.registry.ListDevices(r.Context())
	if err != nil {
		s.writeInternalError(w, r, "failed to list devices", err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

// handleGetDevice returns the first device with the serial number.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	dev, err := s.registry.GetDevice(r.Context(), serialParam(r))
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, msgDeviceNotFound)
			return
		}
		s.writeInternalError(w, r, "failed to get device", err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// handleCreateDevice creates a new device from the request body.
// Any _id or user in the body is ignored.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var dev device.Device
	if err := json.NewDecoder(r.Body).Decode(&dev); err != nil {
		writeBadRequest(w, msgInvalidJSON)
		return
	}

	if err := s.registry.CreateDevice(r.Context(), &dev); err != nil {
		s.writeInternalError(w, r, "failed to create device", err)
		return
	}
	writeJSON(w, http.StatusCreated, dev)
}

// handleUpdateDevice overwrites every descriptive field of the device.
// Fields missing from the body are stored empty.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	var fields device.Device
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeBadRequest(w, msgInvalidJSON)
		return
	}

	dev, err := s.registry.UpdateDevice(r.Context(), serialParam(r), fields)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, msgDeviceNotFound)
			return
		}
		s.writeInternalError(w, r, "failed to update device", err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// handleDeleteDevice deletes the device. The response is the same whether
// or not a device matched.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	if _, err := s.lending.Retire(r.Context(), serialParam(r)); err != nil {
		s.writeInternalError(w, r, "failed to delete device", err)
		return
	}
	writeMessage(w, http.StatusOK, msgDeviceDeleted)
}
