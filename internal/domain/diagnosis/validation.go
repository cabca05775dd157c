package diagnosis

import (
	"fmt"
	"mime"
	"net/http"
	"strings"
)

// MaxUploadBytes is the largest accepted scan image.
const MaxUploadBytes = 10 * 1024 * 1024

// ValidationError reports an upload rejected before any network call.
type ValidationError struct {
	Field  string
	Reason string
	Status int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// HTTPStatus is 400, 413 or 415 depending on the failed rule.
func (e *ValidationError) HTTPStatus() int {
	if e.Status == 0 {
		return http.StatusBadRequest
	}
	return e.Status
}

// ValidateUpload checks size and type. The declared content type is used
// when it names an image; otherwise the type is sniffed from the bytes. It
// returns the content type to store.
func ValidateUpload(u Upload) (string, error) {
	if len(u.Data) == 0 {
		return "", &ValidationError{Field: "file", Reason: "file is empty", Status: http.StatusBadRequest}
	}
	if len(u.Data) > MaxUploadBytes {
		return "", &ValidationError{
			Field:  "file",
			Reason: fmt.Sprintf("file is %d bytes, limit is %d", len(u.Data), MaxUploadBytes),
			Status: http.StatusRequestEntityTooLarge,
		}
	}

	if ct := mediaType(u.ContentType); strings.HasPrefix(ct, "image/") {
		return ct, nil
	}
	if sniffed := mediaType(http.DetectContentType(u.Data)); strings.HasPrefix(sniffed, "image/") {
		return sniffed, nil
	}
	return "", &ValidationError{
		Field:  "file",
		Reason: "please upload a valid image file",
		Status: http.StatusUnsupportedMediaType,
	}
}

func mediaType(ct string) string {
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(ct))
	}
	return mt
}
