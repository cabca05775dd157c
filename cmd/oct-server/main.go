package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/octvision/octvision/internal/config"
	"github.com/octvision/octvision/internal/domain/content"
	"github.com/octvision/octvision/internal/domain/dashboard"
	"github.com/octvision/octvision/internal/domain/diagnosis"
	"github.com/octvision/octvision/internal/domain/patient"
	"github.com/octvision/octvision/internal/domain/report"
	"github.com/octvision/octvision/internal/platform/auth"
	"github.com/octvision/octvision/internal/platform/blobstore"
	"github.com/octvision/octvision/internal/platform/cache"
	"github.com/octvision/octvision/internal/platform/classifier"
	"github.com/octvision/octvision/internal/platform/db"
	"github.com/octvision/octvision/internal/platform/events"
	"github.com/octvision/octvision/internal/platform/middleware"
	"github.com/octvision/octvision/internal/platform/textgen"
)

const version = "0.1.0"

// uploadPath is the only route that accepts scan uploads.
const uploadPath = "/api/v1/diagnoses"

func main() {
	rootCmd := &cobra.Command{
		Use:   "oct-server",
		Short: "OCT scan diagnosis API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Running migrations on schema: %s\n", schema)
			count, err := db.NewMigrator(pool, dir, schema).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", db.DefaultSchema, "Target schema for migrations")
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir, schema).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format(time.DateTime)
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", db.DefaultSchema, "Target schema for migrations")
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return db.NewPool(ctx, poolOptions(cfg))
}

func poolOptions(cfg *config.Config) db.PoolOptions {
	return db.PoolOptions{
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DBMaxConns,
		MinConns:    cfg.DBMinConns,
		Schema:      cfg.DBSchema,
		PingTimeout: 5 * time.Second,
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, poolOptions(cfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	store, err := newObjectStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure object storage")
	}
	logger.Info().Str("backend", cfg.StorageBackend).Str("bucket", cfg.StorageBucket).Msg("object storage ready")

	dashCache, closeCache, err := newCache(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer closeCache()

	publisher := newPublisher(cfg)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing event publisher")
		}
	}()

	generator := newGenerator(cfg, logger)
	if !cfg.GenerationEnabled() {
		logger.Warn().Msg("GEMINI_API_KEY not set: patient reports use the fallback text, clinician reports omit recommendations")
	}

	svcs := wireServices(pool, store, dashCache, publisher, generator, cfg, logger)

	e := newEcho(cfg, logger)
	registerRoutes(e, pool, func() *db.PoolStats { return db.GetPoolStats(pool) }, svcs, rateLimitConfig(cfg))

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newObjectStore(ctx context.Context, cfg *config.Config) (blobstore.ObjectStore, error) {
	if cfg.StorageBackend == "s3" {
		return blobstore.NewS3Store(ctx, blobstore.S3Options{
			Bucket:    cfg.StorageBucket,
			Region:    cfg.StorageRegion,
			Endpoint:  cfg.StorageEndpoint,
			PublicURL: cfg.StoragePublicURL,
		})
	}
	return blobstore.NewMemoryStore(cfg.StorageBucket), nil
}

// newCache returns the dashboard cache and a function releasing it. Without
// REDIS_URL caching is disabled.
func newCache(ctx context.Context, cfg *config.Config) (cache.Cache, func(), error) {
	if cfg.RedisURL == "" {
		return cache.Noop{}, func() {}, nil
	}
	client, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return cache.NewRedis(client, "oct:"), func() { _ = client.Close() }, nil
}

func newPublisher(cfg *config.Config) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.Nop{}
	}
	p := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	p.SetTimeout(cfg.KafkaPublishTimeout)
	return p
}

func newGenerator(cfg *config.Config, logger zerolog.Logger) textgen.Generator {
	if !cfg.GenerationEnabled() {
		return textgen.Disabled{}
	}
	return textgen.NewGemini(textgen.Options{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
		Timeout: cfg.GenerationTimeout,
	}, logger)
}

type services struct {
	diagnosis *diagnosis.Service
	patient   *patient.Service
	report    *report.Service
	dashboard *dashboard.Service
}

func wireServices(
	pool *pgxpool.Pool,
	store blobstore.ObjectStore,
	dashCache cache.Cache,
	publisher events.Publisher,
	generator textgen.Generator,
	cfg *config.Config,
	logger zerolog.Logger,
) *services {
	scanRepo := diagnosis.NewScanRepoPG(pool)
	predRepo := diagnosis.NewPredictionRepoPG(pool)
	reportRepo := diagnosis.NewHealthReportRepoPG(pool)
	historyRepo := patient.NewMedicalHistoryRepoPG(pool)
	profileRepo := patient.NewProfileRepoPG(pool)

	dashSvc := dashboard.NewService(scanRepo, predRepo, reportRepo, historyRepo, profileRepo, logger)
	dashSvc.SetCache(dashCache, cfg.DashboardCacheTTL)

	cls := classifier.New(classifier.Options{
		BaseURL: cfg.ClassifierURL,
		Timeout: cfg.ClassifierTimeout,
		Retries: cfg.ClassifierRetries,
	}, logger)
	diagSvc := diagnosis.NewService(scanRepo, predRepo, reportRepo, db.NewTxManager(pool), store, cls, logger)
	diagSvc.SetPublisher(publisher)
	diagSvc.SetInvalidator(dashSvc)

	patientSvc := patient.NewService(historyRepo, profileRepo, logger)
	patientSvc.SetInvalidator(dashSvc)

	reportSvc := report.NewService(predRepo, reportRepo, historyRepo, profileRepo, generator, logger)
	reportSvc.SetGenerationTimeout(cfg.GenerationTimeout)
	reportSvc.SetPublisher(publisher)
	reportSvc.SetInvalidator(dashSvc)

	return &services{
		diagnosis: diagSvc,
		patient:   patientSvc,
		report:    reportSvc,
		dashboard: dashSvc,
	}
}

func newEcho(cfg *config.Config, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Disposition", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit("1M", "12M", uploadPath))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(authMiddleware(cfg))
	return e
}

// authMiddleware verifies bearer tokens. In development, requests without a
// token run as the dev user and tokens are checked only when a verification
// source is configured.
func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	jwtCfg := auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		JWKSURL:  cfg.AuthJWKSURL,
		Skipper:  auth.AuthSkipper,
	}
	if cfg.AuthJWTSecret != "" {
		jwtCfg.SigningKey = []byte(cfg.AuthJWTSecret)
	}
	hasVerifier := cfg.AuthJWTSecret != "" || cfg.AuthIssuer != "" || cfg.AuthJWKSURL != ""

	if cfg.IsDev() {
		var verify echo.MiddlewareFunc
		if hasVerifier {
			verify = auth.JWTMiddleware(jwtCfg)
		}
		return auth.DevAuthMiddleware(verify)
	}
	return auth.JWTMiddleware(jwtCfg)
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	if cfg.RateLimitRPS <= 0 {
		return middleware.DefaultRateLimitConfig()
	}
	rl := middleware.DefaultRateLimitConfig()
	rl.RequestsPerSecond = cfg.RateLimitRPS
	if cfg.RateLimitBurst > 0 {
		rl.BurstSize = cfg.RateLimitBurst
	}
	return rl
}

func registerRoutes(e *echo.Echo, pinger db.Pinger, stats func() *db.PoolStats, svcs *services, rl middleware.RateLimitConfig) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pinger, stats))

	content.NewHandler().RegisterRoutes(e)

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(rl))
	diagnosis.NewHandler(svcs.diagnosis).RegisterRoutes(apiV1)
	patient.NewHandler(svcs.patient).RegisterRoutes(apiV1)
	report.NewHandler(svcs.report).RegisterRoutes(apiV1)
	dashboard.NewHandler(svcs.dashboard).RegisterRoutes(apiV1)
}
