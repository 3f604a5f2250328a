// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"github.com/kolamba/backend/internal/domain"
)

// Config holds all configuration values for the API server and the sweeper.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on.
	Port string `envconfig:"PORT" default:"8080"`

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// JWTSecret is the HS256 key bearer tokens are signed with. Required.
	JWTSecret string `envconfig:"JWT_SECRET"`

	// LogLevel controls the minimum log level.
	// Valid values: debug, info, warn, error.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173"`

	MaxBodyBytes   int64 `envconfig:"MAX_BODY_BYTES" default:"1048576"`
	MigrateOnStart bool  `envconfig:"MIGRATE_ON_START" default:"false"`

	QuoteMaxAmount decimal.Decimal `envconfig:"QUOTE_MAX_AMOUNT" default:"1000000"`
	QuoteMaxNotes  int             `envconfig:"QUOTE_MAX_NOTES" default:"2000"`

	// GeoServiceURL is the routing service base URL. When empty, travel
	// times are estimated from coordinates only.
	GeoServiceURL       string        `envconfig:"GEO_SERVICE_URL"`
	GeoTimeout          time.Duration `envconfig:"GEO_TIMEOUT" default:"3s"`
	GeoBreakerThreshold int64         `envconfig:"GEO_BREAKER_THRESHOLD" default:"5"`
	GeoAvgSpeedKMH      float64       `envconfig:"GEO_AVG_SPEED_KMH" default:"70"`

	// GeoRecomputeBudget caps all lookups of one itinerary recompute, which
	// runs while the tour row is locked.
	GeoRecomputeBudget time.Duration `envconfig:"GEO_RECOMPUTE_BUDGET" default:"10s"`

	// RedisURL enables the route cache when set.
	RedisURL    string        `envconfig:"REDIS_URL"`
	GeoCacheTTL time.Duration `envconfig:"GEO_CACHE_TTL" default:"24h"`

	// AMQPURL enables lifecycle event publishing when set.
	AMQPURL string `envconfig:"AMQP_URL"`

	ScoreWeightConfirmed  float64 `envconfig:"SCORE_WEIGHT_CONFIRMED" default:"0.4"`
	ScoreWeightViolations float64 `envconfig:"SCORE_WEIGHT_VIOLATIONS" default:"0.4"`
	ScoreWeightProfit     float64 `envconfig:"SCORE_WEIGHT_PROFIT" default:"0.2"`

	// SweepInterval and SweepBatch drive cmd/sweeper.
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"1h"`
	SweepBatch    int           `envconfig:"SWEEP_BATCH" default:"100"`
}

// Load reads configuration from environment variables and returns a Config.
// A .env file in the working directory is read first when present; variables
// already set in the environment win over it.
// Returns an error listing any required variables that are not set.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: reading .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.CORSOrigins = trimAll(cfg.CORSOrigins)

	var missing []string
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	if cfg.MaxBodyBytes <= 0 {
		return Config{}, errors.New("MAX_BODY_BYTES must be positive")
	}
	if cfg.GeoTimeout <= 0 {
		return Config{}, errors.New("GEO_TIMEOUT must be positive")
	}
	if cfg.GeoRecomputeBudget <= 0 {
		return Config{}, errors.New("GEO_RECOMPUTE_BUDGET must be positive")
	}
	return cfg, nil
}

// QuotePolicy returns the quote limits configured for this deployment.
func (c Config) QuotePolicy() domain.QuotePolicy {
	return domain.QuotePolicy{MaxAmount: c.QuoteMaxAmount, MaxNotesLength: c.QuoteMaxNotes}
}

// trimAll trims each entry, ignoring empty ones.
func trimAll(in []string) []string {
	var out []string
	for _, part := range in {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
