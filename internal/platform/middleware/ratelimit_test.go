package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/octvision/octvision/internal/platform/auth"
)

func doRateLimited(mw echo.MiddlewareFunc, e *echo.Echo, ip string, sess *auth.Session) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/scans", nil)
	req.RemoteAddr = ip + ":1234"
	if sess != nil {
		req = req.WithContext(auth.WithSession(req.Context(), sess))
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return rec, mw(func(c echo.Context) error { return c.String(http.StatusOK, "ok") })(c)
}

func TestRateLimit_RequestsWithinLimit(t *testing.T) {
	e := echo.New()
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 5})

	for i := 0; i < 5; i++ {
		rec, err := doRateLimited(mw, e, "10.0.0.1", nil)
		if err != nil {
			t.Fatalf("request %d: unexpected error %v", i, err)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "1" {
			t.Errorf("expected limit header, got %q", rec.Header().Get("X-RateLimit-Limit"))
		}
	}
}

func TestRateLimit_ExceedsLimit(t *testing.T) {
	e := echo.New()
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 0.5, BurstSize: 2})

	for i := 0; i < 2; i++ {
		if _, err := doRateLimited(mw, e, "10.0.0.2", nil); err != nil {
			t.Fatalf("request %d: unexpected error %v", i, err)
		}
	}
	rec, err := doRateLimited(mw, e, "10.0.0.2", nil)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestRateLimit_PerUserIsolation(t *testing.T) {
	e := echo.New()
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 0.1, BurstSize: 1})
	a := &auth.Session{UserID: uuid.New()}
	b := &auth.Session{UserID: uuid.New()}

	if _, err := doRateLimited(mw, e, "10.0.0.3", a); err != nil {
		t.Fatalf("user a first request: %v", err)
	}
	if _, err := doRateLimited(mw, e, "10.0.0.3", a); err == nil {
		t.Fatal("expected user a to be limited")
	}
	if _, err := doRateLimited(mw, e, "10.0.0.3", b); err != nil {
		t.Fatalf("user b should have its own bucket: %v", err)
	}
}

func TestLimiterStore_EvictsIdle(t *testing.T) {
	now := time.Now()
	s := newLimiterStore(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, IdleTTL: time.Minute})
	s.now = func() time.Time { return now }

	s.get("a")
	s.get("b")
	if s.len() != 2 {
		t.Fatalf("expected 2 visitors, got %d", s.len())
	}

	now = now.Add(2 * time.Minute)
	s.get("c")
	if s.len() != 1 {
		t.Errorf("expected idle visitors to be evicted, got %d", s.len())
	}
}

func TestRateLimit_DefaultConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond != 20 || cfg.BurstSize != 40 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}
