package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestParseLimit(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1M", 1 << 20},
		{"12M", 12 << 20},
		{"512K", 512 << 10},
		{"1G", 1 << 30},
		{"10MB", 10 << 20},
		{"2048", 2048},
		{"", 1 << 20},
		{"lots", 1 << 20},
		{"-5", 1 << 20},
	}
	for _, tt := range tests {
		if got := parseLimit(tt.in); got != tt.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func runBodyLimit(t *testing.T, mw echo.MiddlewareFunc, req *http.Request) error {
	t.Helper()
	e := echo.New()
	c := e.NewContext(req, httptest.NewRecorder())
	return mw(func(c echo.Context) error {
		_, err := io.ReadAll(c.Request().Body)
		return err
	})(c)
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != code {
		t.Fatalf("expected %d, got %v", code, err)
	}
}

func TestBodyLimit_AllowsSmallBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/api/v1/medical-history", strings.NewReader(`{"chronic_diseases":"Diabetes"}`))
	if err := runBodyLimit(t, BodyLimit("1K", "1M"), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBodyLimit_RejectsByContentLength(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/api/v1/medical-history", bytes.NewReader(make([]byte, 2048)))
	expectStatus(t, runBodyLimit(t, BodyLimit("1K", "1M"), req), http.StatusRequestEntityTooLarge)
}

func TestBodyLimit_UploadLimitForMultipart(t *testing.T) {
	body := bytes.NewReader(make([]byte, 4096))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/diagnoses", body)
	req.Header.Set(echo.HeaderContentType, "multipart/form-data; boundary=x")
	if err := runBodyLimit(t, BodyLimit("1K", "8K", "/api/v1/diagnoses"), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBodyLimit_UploadLimitOnlyForListedPaths(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/other", bytes.NewReader(make([]byte, 4096)))
	req.Header.Set(echo.HeaderContentType, "multipart/form-data; boundary=x")
	expectStatus(t, runBodyLimit(t, BodyLimit("1K", "8K", "/api/v1/diagnoses"), req), http.StatusRequestEntityTooLarge)
}

func TestBodyLimit_EnforcesLimitDuringRead(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/x", io.NopCloser(bytes.NewReader(make([]byte, 2048))))
	req.ContentLength = -1
	expectStatus(t, runBodyLimit(t, BodyLimit("1K", "1M"), req), http.StatusRequestEntityTooLarge)
}

func TestBodyLimit_SkipsEmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if err := runBodyLimit(t, BodyLimit("1K", "1M"), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
