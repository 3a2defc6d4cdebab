package device

import (
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

// EncodeImage converts raw image bytes into the stored base64 text.
func EncodeImage(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

// DecodeImage converts stored base64 text back into the original bytes.
func DecodeImage(data string) ([]byte, error) {
	if data == "" {
		return nil, ErrImageNotFound
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	return raw, nil
}

// GenerateID returns a new random record identifier.
func GenerateID() string {
	return uuid.New().String()
}
