package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found in configDir), and binds environment variables with the
// MINDLINK_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound by the command)
//  2. Environment variables (MINDLINK_API_LISTEN, MINDLINK_GATEWAY_TARGET, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	if configDir != "" {
		v.AddConfigPath(configDir)
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("MINDLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	def := NewDefaultConfig()

	v.SetDefault("storage.provider", def.Storage.Provider)
	v.SetDefault("storage.sqlite_path", def.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", def.Storage.PostgresDSN)
	v.SetDefault("api.listen", def.API.Listen)
	v.SetDefault("gateway.target", def.Gateway.Target)
	v.SetDefault("gateway.model", def.Gateway.Model)
	v.SetDefault("gateway.thinking_effort", def.Gateway.ThinkingEffort)
	v.SetDefault("gateway.max_tokens", def.Gateway.MaxTokens)
	v.SetDefault("gateway.timeout_seconds", def.Gateway.TimeoutSeconds)
	v.SetDefault("event_stream.enabled", def.EventStream.Enabled)
	v.SetDefault("event_stream.brokers", def.EventStream.Brokers)
	v.SetDefault("event_stream.topic", def.EventStream.Topic)
}

// FromViper materializes a Config from a viper instance.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Provider:    v.GetString("storage.provider"),
			SQLitePath:  v.GetString("storage.sqlite_path"),
			PostgresDSN: v.GetString("storage.postgres_dsn"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Gateway: GatewayConfig{
			Target:         v.GetString("gateway.target"),
			Model:          v.GetString("gateway.model"),
			ThinkingEffort: v.GetString("gateway.thinking_effort"),
			MaxTokens:      v.GetInt("gateway.max_tokens"),
			TimeoutSeconds: v.GetInt("gateway.timeout_seconds"),
		},
		EventStream: EventStreamConfig{
			Enabled: v.GetBool("event_stream.enabled"),
			Brokers: v.GetStringSlice("event_stream.brokers"),
			Topic:   v.GetString("event_stream.topic"),
		},
	}
}
