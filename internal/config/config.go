package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string   `mapstructure:"PORT"`
	Env           string   `mapstructure:"ENV"`
	DatabaseURL   string   `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32    `mapstructure:"DB_MIN_CONNS"`
	DBSchema      string   `mapstructure:"DB_SCHEMA"`
	MigrationsDir string   `mapstructure:"MIGRATIONS_DIR"`
	CORSOrigins   []string `mapstructure:"CORS_ORIGINS"`

	AuthIssuer    string `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL   string `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience  string `mapstructure:"AUTH_AUDIENCE"`
	AuthJWTSecret string `mapstructure:"AUTH_JWT_SECRET"`

	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	ClassifierURL     string        `mapstructure:"CLASSIFIER_URL"`
	ClassifierTimeout time.Duration `mapstructure:"CLASSIFIER_TIMEOUT"`
	ClassifierRetries int           `mapstructure:"CLASSIFIER_RETRIES"`

	GeminiAPIKey      string        `mapstructure:"GEMINI_API_KEY"`
	GeminiModel       string        `mapstructure:"GEMINI_MODEL"`
	GeminiBaseURL     string        `mapstructure:"GEMINI_BASE_URL"`
	GenerationTimeout time.Duration `mapstructure:"GENERATION_TIMEOUT"`

	StorageBackend   string `mapstructure:"STORAGE_BACKEND"`
	StorageBucket    string `mapstructure:"STORAGE_BUCKET"`
	StorageEndpoint  string `mapstructure:"STORAGE_ENDPOINT"`
	StorageRegion    string `mapstructure:"STORAGE_REGION"`
	StoragePublicURL string `mapstructure:"STORAGE_PUBLIC_URL"`

	RedisURL          string        `mapstructure:"REDIS_URL"`
	DashboardCacheTTL time.Duration `mapstructure:"DASHBOARD_CACHE_TTL"`

	KafkaBrokers        []string      `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic          string        `mapstructure:"KAFKA_TOPIC"`
	KafkaPublishTimeout time.Duration `mapstructure:"KAFKA_PUBLISH_TIMEOUT"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "DB_SCHEMA", "MIGRATIONS_DIR", "CORS_ORIGINS",
	"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_JWT_SECRET",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT",
	"CLASSIFIER_URL", "CLASSIFIER_TIMEOUT", "CLASSIFIER_RETRIES",
	"GEMINI_API_KEY", "GEMINI_MODEL", "GEMINI_BASE_URL", "GENERATION_TIMEOUT",
	"STORAGE_BACKEND", "STORAGE_BUCKET", "STORAGE_ENDPOINT", "STORAGE_REGION", "STORAGE_PUBLIC_URL",
	"REDIS_URL", "DASHBOARD_CACHE_TTL",
	"KAFKA_BROKERS", "KAFKA_TOPIC", "KAFKA_PUBLISH_TIMEOUT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("REQUEST_TIMEOUT", "90s")
	v.SetDefault("CLASSIFIER_URL", "https://vvs-dkhchtbpd9gkbhcn.polandcentral-01.azurewebsites.net")
	v.SetDefault("CLASSIFIER_TIMEOUT", "30s")
	v.SetDefault("CLASSIFIER_RETRIES", 2)
	v.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")
	v.SetDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")
	v.SetDefault("GENERATION_TIMEOUT", "20s")
	v.SetDefault("STORAGE_BACKEND", "memory")
	v.SetDefault("STORAGE_BUCKET", "octscans")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("DASHBOARD_CACHE_TTL", "60s")
	v.SetDefault("KAFKA_TOPIC", "oct.diagnoses")
	v.SetDefault("KAFKA_PUBLISH_TIMEOUT", "3s")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	}
	if cfg.KafkaBrokers == nil {
		cfg.KafkaBrokers = splitList(v.GetString("KAFKA_BROKERS"))
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ENV=development: DevAuthMiddleware is active, requests without a token act as the dev user.")
	}

	return cfg, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// GenerationEnabled reports whether a text-generation API key is configured.
func (c *Config) GenerationEnabled() bool {
	return c.GeminiAPIKey != ""
}

// Validate checks that the configuration is safe to run. Outside development
// a token verification source (shared secret or issuer/JWKS) is mandatory.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthJWTSecret == "" && c.AuthIssuer == "" && c.AuthJWKSURL == "" {
		return fmt.Errorf("one of AUTH_JWT_SECRET, AUTH_ISSUER or AUTH_JWKS_URL must be set when ENV=%q", c.Env)
	}
	if c.ClassifierURL == "" {
		return fmt.Errorf("CLASSIFIER_URL is required")
	}
	if c.ClassifierTimeout <= 0 {
		return fmt.Errorf("CLASSIFIER_TIMEOUT must be positive, got %s", c.ClassifierTimeout)
	}
	if c.ClassifierRetries < 0 {
		return fmt.Errorf("CLASSIFIER_RETRIES must not be negative, got %d", c.ClassifierRetries)
	}
	switch c.StorageBackend {
	case "memory":
		if c.IsProduction() {
			return fmt.Errorf("STORAGE_BACKEND=memory is not allowed in production")
		}
	case "s3":
		if c.StorageBucket == "" {
			return fmt.Errorf("STORAGE_BUCKET is required when STORAGE_BACKEND is \"s3\"")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be \"memory\" or \"s3\", got %q", c.StorageBackend)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}
