// Package config loads the folio configuration.
//
// Values come, in increasing priority, from the defaults, the TOML files, the FOLIO_*
// environment variables and finally the command line flags.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration.
type Config struct {
	Store     StoreConfig     `toml:"store"`
	Reasoning ReasoningConfig `toml:"reasoning"`
	Agent     AgentConfig     `toml:"agent"`
	Quotes    QuotesConfig    `toml:"quotes"`
	Events    EventsConfig    `toml:"events"`
	Server    ServerConfig    `toml:"server"`
	Logging   LoggingConfig   `toml:"logging"`
}

// StoreConfig selects the portfolio database.
type StoreConfig struct {
	Driver string `toml:"driver"` // sqlite or postgres
	DSN    string `toml:"dsn"`
}

// ReasoningConfig configures the reasoning service.
type ReasoningConfig struct {
	Model  string `toml:"model"`
	APIKey string `toml:"api_key"`
}

// AgentConfig bounds the command loop.
type AgentConfig struct {
	MaxReadRounds          int `toml:"max_read_rounds"`
	MaxClarificationRounds int `toml:"max_clarification_rounds"`
}

// QuotesConfig configures the price provider. An empty RedisAddr disables the shared cache.
type QuotesConfig struct {
	BaseURL   string   `toml:"base_url"`
	APIKey    string   `toml:"api_key"`
	RedisAddr string   `toml:"redis_addr"`
	CacheTTL  Duration `toml:"cache_ttl"`
}

// EventsConfig configures the publication of applied writes. No brokers, no events.
type EventsConfig struct {
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // json or console
}

// Duration is a time.Duration written as a string in TOML ("15m").
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnvOverrides applies FOLIO_* environment variable overrides to config.
func applyEnvOverrides(config *Config) error {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v := os.Getenv(name)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
		*dst = n
		return nil
	}

	str("FOLIO_STORE_DRIVER", &config.Store.Driver)
	str("FOLIO_STORE_DSN", &config.Store.DSN)
	str("FOLIO_REASONING_MODEL", &config.Reasoning.Model)
	str("FOLIO_REASONING_API_KEY", &config.Reasoning.APIKey)
	if config.Reasoning.APIKey == "" {
		// the genai client reads it anyway, keep it visible in the config.
		str("GEMINI_API_KEY", &config.Reasoning.APIKey)
	}
	str("FOLIO_QUOTES_BASE_URL", &config.Quotes.BaseURL)
	str("FOLIO_QUOTES_API_KEY", &config.Quotes.APIKey)
	str("FOLIO_QUOTES_REDIS_ADDR", &config.Quotes.RedisAddr)
	if v := os.Getenv("FOLIO_QUOTES_CACHE_TTL"); v != "" {
		if err := config.Quotes.CacheTTL.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("invalid FOLIO_QUOTES_CACHE_TTL %q: %w", v, err)
		}
	}
	if v := os.Getenv("FOLIO_EVENTS_BROKERS"); v != "" {
		config.Events.Brokers = splitList(v)
	}
	str("FOLIO_EVENTS_TOPIC", &config.Events.Topic)
	str("FOLIO_SERVER_HOST", &config.Server.Host)
	str("FOLIO_LOG_LEVEL", &config.Logging.Level)
	str("FOLIO_LOG_FORMAT", &config.Logging.Format)

	for name, dst := range map[string]*int{
		"FOLIO_SERVER_PORT":                    &config.Server.Port,
		"FOLIO_AGENT_MAX_READ_ROUNDS":          &config.Agent.MaxReadRounds,
		"FOLIO_AGENT_MAX_CLARIFICATION_ROUNDS": &config.Agent.MaxClarificationRounds,
	} {
		if err := num(name, dst); err != nil {
			return err
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// ApplyFlagOverrides applies command-line flag overrides to config.
func ApplyFlagOverrides(config *Config, driver, dsn string) {
	if driver != "" {
		config.Store.Driver = driver
	}
	if dsn != "" {
		config.Store.DSN = dsn
	}
}

// Validate checks values that would only fail later, deep in a command.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid store.driver %q: want sqlite or postgres", c.Store.Driver)
	}
	if c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required")
	}
	if c.Agent.MaxReadRounds < 0 {
		return fmt.Errorf("invalid agent.max_read_rounds %d", c.Agent.MaxReadRounds)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging.format %q: want json or console", c.Logging.Format)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if len(c.Events.Brokers) > 0 && c.Events.Topic == "" {
		return fmt.Errorf("events.topic is required when brokers are set")
	}
	return nil
}
