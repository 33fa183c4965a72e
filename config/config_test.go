package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "folio.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 3, cfg.Agent.MaxReadRounds)
	assert.Equal(t, 2, cfg.Agent.MaxClarificationRounds)
	assert.Equal(t, 15*time.Minute, time.Duration(cfg.Quotes.CacheTTL))
	assert.Equal(t, "localhost:4280", cfg.Server.Addr())
}

func TestLoadFromFiles_NoFiles(t *testing.T) {
	cfg, err := LoadFromFiles()
	require.NoError(t, err)
	assert.Equal(t, NewDefaultConfig().Store, cfg.Store)
}

func TestLoadFromFiles_ValidTOML(t *testing.T) {
	path := writeFile(t, `
[store]
driver = "postgres"
dsn = "postgres://folio@localhost/folio?sslmode=disable"

[agent]
max_read_rounds = 5

[quotes]
redis_addr = "localhost:6379"
cache_ttl = "1h"

[events]
brokers = ["localhost:9092"]

[logging]
level = "debug"
format = "json"
`)
	cfg, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 5, cfg.Agent.MaxReadRounds)
	assert.Equal(t, 2, cfg.Agent.MaxClarificationRounds, "untouched values keep their default")
	assert.Equal(t, time.Hour, time.Duration(cfg.Quotes.CacheTTL))
	assert.Equal(t, []string{"localhost:9092"}, cfg.Events.Brokers)
	assert.Equal(t, "folio.writes", cfg.Events.Topic)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromFiles_LaterFilesWin(t *testing.T) {
	first := writeFile(t, "[server]\nport = 9000\nhost = \"0.0.0.0\"\n")
	second := writeFile(t, "[server]\nport = 9001\n")
	cfg, err := LoadFromFiles(first, "", second)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9001", cfg.Server.Addr())
}

func TestLoadFromFiles_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"malformed", "[store\n", "failed to parse config file"},
		{"bad driver", "[store]\ndriver = \"mysql\"\n", "invalid store.driver"},
		{"bad duration", "[quotes]\ncache_ttl = \"soon\"\n", "failed to parse config file"},
		{"bad format", "[logging]\nformat = \"xml\"\n", "invalid logging.format"},
		{"topic", "[events]\nbrokers = [\"b:9092\"]\ntopic = \"\"\n", "events.topic is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFiles(writeFile(t, tt.content))
			assert.ErrorContains(t, err, tt.want)
		})
	}

	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestEnvOverrides(t *testing.T) {
	path := writeFile(t, "[store]\ndsn = \"from-file.db\"\n")
	t.Setenv("FOLIO_STORE_DSN", "from-env.db")
	t.Setenv("FOLIO_SERVER_PORT", "8080")
	t.Setenv("FOLIO_EVENTS_BROKERS", "a:9092, b:9092,")
	t.Setenv("FOLIO_QUOTES_CACHE_TTL", "30s")
	t.Setenv("FOLIO_REASONING_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "gemini-key")

	cfg, err := LoadFromFiles(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.Store.DSN)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Events.Brokers)
	assert.Equal(t, 30*time.Second, time.Duration(cfg.Quotes.CacheTTL))
	assert.Equal(t, "gemini-key", cfg.Reasoning.APIKey)

	t.Setenv("FOLIO_AGENT_MAX_READ_ROUNDS", "three")
	_, err = LoadFromFiles(path)
	assert.ErrorContains(t, err, "FOLIO_AGENT_MAX_READ_ROUNDS")
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := NewDefaultConfig()
	ApplyFlagOverrides(cfg, "", "other.db")
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "other.db", cfg.Store.DSN)
}

func TestNewLogger(t *testing.T) {
	logger, err := LoggingConfig{Level: "warn", Format: "json"}.NewLogger()
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	_, err = LoggingConfig{Level: "loud", Format: "json"}.NewLogger()
	assert.ErrorContains(t, err, "invalid logging.level")
}
