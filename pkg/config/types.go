package config

// Config represents the persistent mindlink configuration stored as config.toml.
// The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	API         APIConfig         `toml:"api"`
	Gateway     GatewayConfig     `toml:"gateway"`
	EventStream EventStreamConfig `toml:"event_stream"`
}

// StorageConfig holds persistence settings. Provider is "sqlite", "postgres",
// or "inmemory". PostgresDSN is only consulted when provider is "postgres".
type StorageConfig struct {
	Provider    string `toml:"provider,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// GatewayConfig holds language model gateway settings. Target is the base URL
// of the AI hub; Model selects the chat-completion model route.
type GatewayConfig struct {
	Target         string `toml:"target,omitempty"`
	Model          string `toml:"model,omitempty"`
	ThinkingEffort string `toml:"thinking_effort,omitempty"`
	MaxTokens      int    `toml:"max_tokens,omitempty"`
	TimeoutSeconds int    `toml:"timeout_seconds,omitempty"`
}

// EventStreamConfig holds timeline event publishing settings. When Enabled is
// false the nop publisher is used.
type EventStreamConfig struct {
	Enabled bool     `toml:"enabled,omitempty"`
	Brokers []string `toml:"brokers,omitempty"`
	Topic   string   `toml:"topic,omitempty"`
}
