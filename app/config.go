// Package app holds process-level configuration and logger construction.
package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/palmapsd/production-ledger/ledger"
)

// envPrefix is prepended to every variable: LEDGER_ADDR, LEDGER_DB_PATH, ...
const envPrefix = "ledger"

// Config holds runtime configuration for the application.
type Config struct {
	Env          string        `envconfig:"ENV" default:"development"`
	Addr         string        `envconfig:"ADDR" default:":8080"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout  time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`

	DBPath   string `envconfig:"DB_PATH" default:"ledger.db"`
	Timezone string `envconfig:"TIMEZONE" default:"UTC"`

	// RebucketOnDateEdit moves edited productions to the period of their new date.
	RebucketOnDateEdit bool `envconfig:"REBUCKET_ON_DATE_EDIT" default:"false"`

	// ReconcileInterval is how often period totals are re-checked; 0 disables.
	ReconcileInterval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"1h"`

	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"12h"`

	RedisAddr string        `envconfig:"REDIS_ADDR"`
	CacheTTL  time.Duration `envconfig:"CACHE_TTL" default:"10m"`

	CORSOrigins         []string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173"`
	ExportRatePerMinute int      `envconfig:"EXPORT_RATE_PER_MINUTE" default:"10"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, errors.New("jwt secret must be provided")
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	if cfg.ExportRatePerMinute <= 0 {
		return nil, fmt.Errorf("export rate must be positive, got %d", cfg.ExportRatePerMinute)
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.Env == "production"
}

// Location resolves Timezone. "Today" for the edit-lock rule is evaluated here.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// LedgerOptions maps configuration onto service toggles.
func (c *Config) LedgerOptions() ledger.Options {
	return ledger.Options{RebucketOnDateEdit: c.RebucketOnDateEdit}
}
