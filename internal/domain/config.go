package domain

import "time"

// Config holds the complete Verdict configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Evaluation settings
	Engine EngineConfig `json:"engine"`
	Model  ModelConfig  `json:"model"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// EngineConfig holds evaluation pipeline settings.
type EngineConfig struct {
	// BatchWidth bounds concurrent evaluations in a batch request.
	BatchWidth int `json:"batchWidth"`

	// Result cache settings.
	CacheTTL        time.Duration `json:"cacheTTL"`
	CacheMaxEntries int           `json:"cacheMaxEntries"`
}

// ModelConfig holds settings for the optional remote model source.
// When disabled, every evaluation runs on the local rule tables.
type ModelConfig struct {
	Enabled     bool   `json:"enabled"`
	URL         string `json:"url"`
	Model       string `json:"model"`
	TimeoutSecs int    `json:"timeoutSecs"`

	// MaxInFlight bounds concurrent remote calls.
	MaxInFlight int `json:"maxInFlight"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./verdict.db",
		},
		Cache: CacheConfig{
			Type:       "memory",
			MaxEntries: 10000,
			TTL:        5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Engine: EngineConfig{
			BatchWidth:      5,
			CacheTTL:        5 * time.Minute,
			CacheMaxEntries: 10000,
		},
		Model: ModelConfig{
			Enabled:     false,
			URL:         "http://localhost:11434/api/generate",
			Model:       "qwen2.5:3b-instruct",
			TimeoutSecs: 60,
			MaxInFlight: 3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "verdict",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "verdict",
	}
	cfg.Cache = CacheConfig{
		Type:      "redis",
		RedisAddr: "localhost:6379",
		TTL:       5 * time.Minute,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
