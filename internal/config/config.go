// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/ingest.
package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Sink drivers.
const (
	DriverSheets   = "sheets"
	DriverPostgres = "postgres"
)

// Configuration errors. Both are wrapped with the variable at fault.
var (
	ErrMissing   = errors.New("missing configuration")
	ErrMalformed = errors.New("malformed configuration")
)

// --------------------------------------------------------------------------
// Config struct, populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Sink target
	SheetID      string `env:"SHEET_ID"`
	SheetName    string `env:"SHEET_NAME" envDefault:"Sheet1"`
	SharedSecret string `env:"SHARED_SECRET"`
	SinkDriver   string `env:"SINK_DRIVER" envDefault:"sheets"`

	// Service account key, in preference order
	ServiceAccountJSON   string `env:"GOOGLE_SA_JSON"`
	ServiceAccountB64    string `env:"GOOGLE_SA_JSON_B64"`
	ServiceAccountFile   string `env:"GOOGLE_SA_FILE"`
	ApplicationCredsFile string `env:"GOOGLE_APPLICATION_CREDENTIALS"`

	// Database (SINK_DRIVER=postgres)
	DatabaseURL    string        `env:"DATABASE_URL"`
	DBPoolMinConns int           `env:"DB_POOL_MIN_CONNS" envDefault:"1"`
	DBPoolMaxConns int           `env:"DB_POOL_MAX_CONNS" envDefault:"5"`
	DBPoolMaxLife  time.Duration `env:"DB_POOL_MAX_LIFE" envDefault:"30m"`

	// API server
	APIHost      string `env:"API_HOST" envDefault:"0.0.0.0"`
	APIPort      int    `env:"PORT" envDefault:"8080"`
	Environment  string `env:"ENVIRONMENT" envDefault:"development"`
	Debug        bool   `env:"DEBUG" envDefault:"false"`
	MaxBodyBytes int64  `env:"MAX_BODY_BYTES" envDefault:"1048576"`

	// Honour X-Forwarded-For / X-Real-IP only behind a trusted proxy
	TrustProxy bool `env:"TRUST_PROXY" envDefault:"false"`

	// CORS
	CORSAllowOrigins []string `env:"CORS_ALLOW_ORIGINS" envSeparator:"," envDefault:"*"`

	// Rate limiting
	RateLimitEnabled  bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"120"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.SheetID = strings.TrimSpace(cfg.SheetID)
	if cfg.SheetID == "" {
		return nil, fmt.Errorf("%w: SHEET_ID must be set", ErrMissing)
	}

	switch cfg.SinkDriver {
	case DriverSheets:
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("%w: DATABASE_URL is required when SINK_DRIVER=postgres", ErrMissing)
		}
	default:
		return nil, fmt.Errorf("%w: SINK_DRIVER must be %q or %q, got %q",
			ErrMalformed, DriverSheets, DriverPostgres, cfg.SinkDriver)
	}

	if cfg.RateLimitEnabled && (cfg.RateLimitRequests < 1 || cfg.RateLimitWindow <= 0) {
		return nil, fmt.Errorf("%w: RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive", ErrMalformed)
	}

	return cfg, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ServiceAccountKey returns the service account key JSON. Sources are
// tried in order: GOOGLE_SA_JSON, GOOGLE_SA_JSON_B64, GOOGLE_SA_FILE,
// GOOGLE_APPLICATION_CREDENTIALS. Only the first one set is used.
func (c *Config) ServiceAccountKey() ([]byte, error) {
	var (
		key    []byte
		source string
	)
	switch {
	case strings.TrimSpace(c.ServiceAccountJSON) != "":
		key, source = []byte(c.ServiceAccountJSON), "GOOGLE_SA_JSON"

	case strings.TrimSpace(c.ServiceAccountB64) != "":
		source = "GOOGLE_SA_JSON_B64"
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(c.ServiceAccountB64))
		if err != nil {
			return nil, fmt.Errorf("%w: %s is not valid base64: %v", ErrMalformed, source, err)
		}
		key = decoded

	case c.ServiceAccountFile != "" || c.ApplicationCredsFile != "":
		path := c.ServiceAccountFile
		source = "GOOGLE_SA_FILE"
		if path == "" {
			path, source = c.ApplicationCredsFile, "GOOGLE_APPLICATION_CREDENTIALS"
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: read %s: %v", ErrMissing, source, path, err)
		}
		key = data

	default:
		return nil, fmt.Errorf("%w: one of GOOGLE_SA_JSON, GOOGLE_SA_JSON_B64, GOOGLE_SA_FILE or GOOGLE_APPLICATION_CREDENTIALS must be set", ErrMissing)
	}

	if !json.Valid(key) {
		return nil, fmt.Errorf("%w: %s is not valid JSON", ErrMalformed, source)
	}
	return key, nil
}
