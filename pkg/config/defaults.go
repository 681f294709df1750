package config

const (
	defaultBaseURL = "https://api.serenitystar.ai"

	defaultStorageDriver = StorageSQLite
	defaultBridgeListen  = "127.0.0.1:7878"

	defaultEventsProvider = EventsNone
	defaultKafkaTopic     = "serenity.turns"

	defaultWordWrap = 100
)

// Replay log drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Turn event providers.
const (
	EventsNone  = "none"
	EventsKafka = "kafka"
)

// StorageDrivers returns the recognized storage.driver values.
func StorageDrivers() []string {
	return []string{StorageMemory, StorageSQLite, StoragePostgres}
}

// EventProviders returns the recognized events.provider values.
func EventProviders() []string {
	return []string{EventsNone, EventsKafka}
}

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values. Agent codes have no
// default; setup picks them.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		API: APIConfig{
			BaseURL: defaultBaseURL,
		},
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		Bridge: BridgeConfig{
			Listen: defaultBridgeListen,
		},
		Events: EventsConfig{
			Provider:   defaultEventsProvider,
			KafkaTopic: defaultKafkaTopic,
		},
		Render: RenderConfig{
			WordWrap: defaultWordWrap,
		},
	}
}
