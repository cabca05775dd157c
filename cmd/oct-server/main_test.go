package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/octvision/octvision/internal/config"
	"github.com/octvision/octvision/internal/domain/dashboard"
	"github.com/octvision/octvision/internal/domain/diagnosis"
	"github.com/octvision/octvision/internal/domain/patient"
	"github.com/octvision/octvision/internal/domain/report"
	"github.com/octvision/octvision/internal/platform/auth"
	"github.com/octvision/octvision/internal/platform/blobstore"
	"github.com/octvision/octvision/internal/platform/cache"
	"github.com/octvision/octvision/internal/platform/events"
	"github.com/octvision/octvision/internal/platform/middleware"
	"github.com/octvision/octvision/internal/platform/textgen"
)

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

// testServices builds services without backing stores; only routing is
// exercised.
func testServices() *services {
	log := zerolog.Nop()
	return &services{
		diagnosis: diagnosis.NewService(nil, nil, nil, nil, blobstore.NewMemoryStore("test"), nil, log),
		patient:   patient.NewService(nil, nil, log),
		report:    report.NewService(nil, nil, nil, nil, nil, log),
		dashboard: dashboard.NewService(nil, nil, nil, nil, nil, log),
	}
}

func testServer(cfg *config.Config) *echo.Echo {
	e := newEcho(cfg, zerolog.Nop())
	registerRoutes(e, okPinger{}, nil, testServices(), rateLimitConfig(cfg))
	return e
}

func TestRateLimitConfig(t *testing.T) {
	def := middleware.DefaultRateLimitConfig()
	if got := rateLimitConfig(&config.Config{}); got != def {
		t.Errorf("zero config should use defaults, got %+v", got)
	}
	got := rateLimitConfig(&config.Config{RateLimitRPS: 5, RateLimitBurst: 7})
	if got.RequestsPerSecond != 5 || got.BurstSize != 7 || got.IdleTTL != def.IdleTTL {
		t.Errorf("unexpected config %+v", got)
	}
}

func TestNewObjectStore_Memory(t *testing.T) {
	store, err := newObjectStore(context.Background(), &config.Config{StorageBackend: "memory", StorageBucket: "octscans"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*blobstore.MemoryStore); !ok {
		t.Errorf("expected MemoryStore, got %T", store)
	}
}

func TestNewCache(t *testing.T) {
	c, closeFn, err := newCache(context.Background(), &config.Config{})
	if err != nil {
		t.Fatal(err)
	}
	closeFn()
	if _, ok := c.(cache.Noop); !ok {
		t.Errorf("expected Noop without REDIS_URL, got %T", c)
	}

	mr := miniredis.RunT(t)
	c, closeFn, err = newCache(context.Background(), &config.Config{RedisURL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()
	if _, ok := c.(*cache.Redis); !ok {
		t.Errorf("expected Redis cache, got %T", c)
	}
}

func TestNewPublisherAndGenerator_Disabled(t *testing.T) {
	cfg := &config.Config{}
	if _, ok := newPublisher(cfg).(events.Nop); !ok {
		t.Error("expected Nop publisher without brokers")
	}
	if _, ok := newGenerator(cfg, zerolog.Nop()).(textgen.Disabled); !ok {
		t.Error("expected Disabled generator without an API key")
	}
	if _, ok := newGenerator(&config.Config{GeminiAPIKey: "k", GenerationTimeout: time.Second}, zerolog.Nop()).(*textgen.Gemini); !ok {
		t.Error("expected Gemini generator with an API key")
	}
}

func TestRoutes_Registered(t *testing.T) {
	e := testServer(&config.Config{Env: "development"})

	want := make(map[string]bool)
	for _, route := range []string{
		"GET /health",
		"GET /health/db",
		"GET /",
		"GET /education",
		"POST /api/v1/diagnoses",
		"GET /api/v1/scans",
		"DELETE /api/v1/scans/:id",
		"GET /api/v1/predictions/:id",
		"PUT /api/v1/medical-history",
		"POST /api/v1/predictions/:id/reports/patient",
		"GET /api/v1/predictions/:id/report/download",
		"GET /api/v1/dashboard",
		"GET /api/v1/dashboard/export",
	} {
		want[route] = false
	}
	for _, r := range e.Routes() {
		key := r.Method + " " + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for route, found := range want {
		if !found {
			t.Errorf("route %s not registered", route)
		}
	}
}

func TestServer_PublicAndProtectedRoutes(t *testing.T) {
	e := testServer(&config.Config{Env: "production", AuthJWTSecret: "secret"})

	for _, path := range []string{"/health", "/health/db", "/", "/education?lang=ar"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, rec.Code)
		}
		if rec.Header().Get(echo.HeaderXRequestID) == "" {
			t.Errorf("GET %s: missing request id", path)
		}
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without a token, got %d", rec.Code)
	}
}

func TestAuthMiddleware_DevSession(t *testing.T) {
	mw := authMiddleware(&config.Config{Env: "development"})
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil), httptest.NewRecorder())

	var sess *auth.Session
	err := mw(func(c echo.Context) error {
		sess = auth.SessionFromContext(c.Request().Context())
		return nil
	})(c)
	if err != nil {
		t.Fatal(err)
	}
	if sess == nil || sess.UserID != auth.DevUserID {
		t.Errorf("expected dev session, got %+v", sess)
	}
}

func TestPoolOptions(t *testing.T) {
	opts := poolOptions(&config.Config{DatabaseURL: "postgres://x", DBMaxConns: 9, DBMinConns: 1, DBSchema: "oct"})
	if opts.DatabaseURL != "postgres://x" || opts.MaxConns != 9 || opts.MinConns != 1 || opts.Schema != "oct" || opts.PingTimeout <= 0 {
		t.Errorf("unexpected pool options %+v", opts)
	}
}
