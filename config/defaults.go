package config

import "time"

// NewDefaultConfig creates a configuration with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    "folio.db",
		},
		Reasoning: ReasoningConfig{
			Model: "gemini-2.5-pro",
		},
		Agent: AgentConfig{
			MaxReadRounds:          3,
			MaxClarificationRounds: 2,
		},
		Quotes: QuotesConfig{
			BaseURL:  "https://eodhd.com/api",
			CacheTTL: Duration(15 * time.Minute),
		},
		Events: EventsConfig{
			Topic: "folio.writes",
		},
		Server: ServerConfig{
			Port: 4280,
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
