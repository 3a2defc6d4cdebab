package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/devicehub/devicehub-core/internal/device"
)

// uploadField is the multipart form field carrying the image file.
const uploadField = "Images"

// multipartMemory is how much of a multipart body is held in memory
// before spilling to temporary files.
const multipartMemory = 8 << 20

// imageContentType is served for every stored image.
const imageContentType = "image/jpeg"

// handleUploadImage stores the uploaded file as the device's image,
// replacing any previous one.
func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, msgFileTooLarge)
			return
		}
		writeBadRequest(w, msgNoFile)
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck // Temp file cleanup is best-effort

	file, _, err := r.FormFile(uploadField)
	if err != nil {
		writeBadRequest(w, msgNoFile)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeInternalError(w, r, "failed to read uploaded image", err)
		return
	}

	err = s.registry.UploadImage(r.Context(), serialParam(r), data)
	switch {
	case err == nil:
		writeMessage(w, http.StatusOK, msgImageUploaded)
	case errors.Is(err, device.ErrDeviceNotFound):
		writeNotFound(w, msgDeviceNotFound)
	case errors.Is(err, device.ErrInvalidImage):
		writeBadRequest(w, msgNoFile)
	default:
		s.writeInternalError(w, r, "failed to store image", err)
	}
}

// handleViewImage returns the raw image bytes.
func (s *Server) handleViewImage(w http.ResponseWriter, r *http.Request) {
	data, err := s.registry.GetImage(r.Context(), serialParam(r))
	if err != nil {
		if errors.Is(err, device.ErrImageNotFound) {
			writeNotFound(w, msgImageNotFound)
			return
		}
		s.writeInternalError(w, r, "failed to load image", err)
		return
	}

	w.Header().Set("Content-Type", imageContentType)
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(data)
}

// handleDeleteImage removes the device's image.
func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.DeleteImage(r.Context(), serialParam(r)); err != nil {
		if errors.Is(err, device.ErrImageNotFound) {
			writeNotFound(w, msgImageNotFound)
			return
		}
		s.writeInternalError(w, r, "failed to delete image", err)
		return
	}
	writeMessage(w, http.StatusOK, msgImageDeleted)
}
