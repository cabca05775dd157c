package diagnosis

import (
	"errors"
	"net/http"
	"testing"
)

func TestValidateUpload(t *testing.T) {
	jpeg := []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")

	tests := []struct {
		name     string
		upload   Upload
		wantType string
		status   int
	}{
		{"declared png", Upload{ContentType: "image/png", Data: pngHeader}, "image/png", 0},
		{"declared with params", Upload{ContentType: "image/jpeg; charset=binary", Data: jpeg}, "image/jpeg", 0},
		{"sniffed when undeclared", Upload{Data: jpeg}, "image/jpeg", 0},
		{"sniffed when octet-stream", Upload{ContentType: "application/octet-stream", Data: pngHeader}, "image/png", 0},
		{"text rejected", Upload{ContentType: "text/plain", Data: []byte("hello")}, "", http.StatusUnsupportedMediaType},
		{"pdf rejected", Upload{ContentType: "application/pdf", Data: []byte("%PDF-1.7")}, "", http.StatusUnsupportedMediaType},
		{"empty rejected", Upload{ContentType: "image/png"}, "", http.StatusBadRequest},
		{"too large", Upload{ContentType: "image/png", Data: make([]byte, MaxUploadBytes+1)}, "", http.StatusRequestEntityTooLarge},
		{"exactly at limit", Upload{ContentType: "image/png", Data: make([]byte, MaxUploadBytes)}, "image/png", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateUpload(tt.upload)
			if tt.status == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got != tt.wantType {
					t.Errorf("content type = %q, want %q", got, tt.wantType)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.HTTPStatus() != tt.status {
				t.Errorf("status = %d, want %d", ve.HTTPStatus(), tt.status)
			}
		})
	}
}
