package app

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("LEDGER_JWT_SECRET", "s3cret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "ledger.db", cfg.DBPath)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
	assert.Equal(t, 10, cfg.ExportRatePerMinute)
	assert.Equal(t, time.Hour, cfg.ReconcileInterval)
	assert.False(t, cfg.IsProduction())
	assert.False(t, cfg.LedgerOptions().RebucketOnDateEdit)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("LEDGER_JWT_SECRET", "s3cret")
	t.Setenv("LEDGER_ENV", "production")
	t.Setenv("LEDGER_REBUCKET_ON_DATE_EDIT", "true")
	t.Setenv("LEDGER_CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("LEDGER_CACHE_TTL", "30s")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.LedgerOptions().RebucketOnDateEdit)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
}

func TestLoadConfig_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{"LEDGER_JWT_SECRET": ""}},
		{"blank secret", map[string]string{"LEDGER_JWT_SECRET": "   "}},
		{"bad timezone", map[string]string{"LEDGER_JWT_SECRET": "x", "LEDGER_TIMEZONE": "Mars/Olympus"}},
		{"zero export rate", map[string]string{"LEDGER_JWT_SECRET": "x", "LEDGER_EXPORT_RATE_PER_MINUTE": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&Config{Env: "test", LogLevel: "warn", LogFormat: "json"}, &buf)

	log.Info().Msg("dropped")
	log.Warn().Str("period_id", "per-1").Msg("kept")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "per-1", entry["period_id"])
	assert.Equal(t, "production-ledger", entry["service"])
	assert.Equal(t, "test", entry["env"])
}

func TestNewLogger_BadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&Config{LogLevel: "loud", LogFormat: "console"}, &buf)

	log.Debug().Msg("hidden")
	log.Info().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
