package api

import (
	"encoding/json"
	"net/http"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Message is the body of responses that carry only a status message.
type Message struct {
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest      = "bad_request"
	ErrCodeNotFound        = "not_found"
	ErrCodeUnauthorized    = "unauthorised"
	ErrCodeForbidden       = "forbidden"
	ErrCodeConflict        = "conflict"
	ErrCodeInternal        = "internal_error"
	ErrCodePayloadTooLarge = "payload_too_large"
)

// Response messages. Clients match on these texts.
const (
	msgWelcome            = "Welcome to the main page"
	msgInternal           = "Internal Server Error"
	msgUnauthorized       = "Unauthorized"
	msgInvalidJSON        = "Invalid JSON body"
	msgDeviceNotFound     = "Device not found"
	msgDeviceDeleted      = "Device deleted successfully"
	msgImageNotFound      = "Image not found"
	msgImageUploaded      = "Image uploaded successfully"
	msgImageDeleted       = "Image deleted successfully"
	msgNoFile             = "No file uploaded"
	msgFileTooLarge       = "File too large"
	msgUsernameExists     = "User with this username already exists"
	msgMissingCredentials = "Username and password are required"
	msgInvalidCredentials = "Invalid username or password"
	msgLoginSuccessful    = "Login successful"
	msgLogoutSuccessful   = "Logout successful"
	msgLogoutFailed       = "Error logging out"
	msgAlreadyTaken       = "Device is already taken"
	msgTaken              = "Device taken successfully"
	msgNotTaken           = "Device is not taken"
	msgNotHolder          = "You are not allowed to return this device"
	msgReturned           = "Device returned successfully"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeMessage writes a {"message": ...} response.
func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Message{Message: message})
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeInternalError logs err and writes a generic 500 response. The
// error detail never reaches the client.
func (s *Server) writeInternalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.logger.Error(msg,
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", r.Context().Value(ctxKeyRequestID),
	)
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, msgInternal)
}
