package config

// CurrentV is the current config schema version.
const CurrentV = 1

const (
	defaultStorageProvider = "sqlite"
	defaultSQLitePath      = "mindlink.db"

	defaultAPIListen = ":8090"

	defaultGatewayTarget  = "http://localhost:8000"
	defaultGatewayModel   = "google_gemini_3_flash"
	defaultThinkingEffort = "medium"
	defaultMaxTokens      = 4096
	defaultTimeoutSeconds = 120

	defaultEventTopic = "mindlink.timeline"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Provider:   defaultStorageProvider,
			SQLitePath: defaultSQLitePath,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Gateway: GatewayConfig{
			Target:         defaultGatewayTarget,
			Model:          defaultGatewayModel,
			ThinkingEffort: defaultThinkingEffort,
			MaxTokens:      defaultMaxTokens,
			TimeoutSeconds: defaultTimeoutSeconds,
		},
		EventStream: EventStreamConfig{
			Enabled: false,
			Topic:   defaultEventTopic,
		},
	}
}
