package device

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecodeImage(t *testing.T) {
	raw := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

	encoded := EncodeImage(raw)
	decoded, err := DecodeImage(encoded)
	if err != nil {
		t.Fatalf("DecodeImage() error = %v", err)
	}
	if !bytes.Equal(decoded, raw) {
		t.Errorf("round trip = %v, want %v", decoded, raw)
	}
}

func TestDecodeImage_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"empty", "", ErrImageNotFound},
		{"not base64", "%%%not-base64%%%", ErrInvalidImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeImage(tt.data); !errors.Is(err, tt.wantErr) {
				t.Errorf("DecodeImage(%q) error = %v, want %v", tt.data, err, tt.wantErr)
			}
		})
	}
}

func TestGenerateID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateID()
		if seen[id] {
			t.Fatalf("duplicate ID %s", id)
		}
		seen[id] = true
	}
}
