package domain

import "time"

// Config holds the complete Kestrel configuration.
type Config struct {
	Server ServerConfig `json:"server"`

	// Tier determines which backing services are used.
	Tier Tier `json:"tier"`

	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	Scoring ScoringConfig `json:"scoring"`
	Geocode GeocodeConfig `json:"geocode"`
	Report  ReportConfig  `json:"report"`

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

// ScoringConfig holds tunables for the peer-comparison analyzers. The core
// rule thresholds (120-bands, drop factors, level bands) are fixed business
// constants and deliberately not configurable.
type ScoringConfig struct {
	// MinCleanNeighbors is the minimum clean-neighbor count before a
	// building median is considered meaningful. Default 8; the relaxed
	// regional variant uses 4.
	MinCleanNeighbors int `json:"minCleanNeighbors"`

	// MinCleanNeighborsWeather is the relaxed floor for the
	// weather-normalized analyzer.
	MinCleanNeighborsWeather int `json:"minCleanNeighborsWeather"`
}

// GeocodeConfig holds reverse-geocoding client settings.
type GeocodeConfig struct {
	BaseURL string `json:"baseUrl"`
	// RequestsPerSecond throttles outgoing lookups; the upstream service
	// enforces roughly 1 req/s.
	RequestsPerSecond float64 `json:"requestsPerSecond"`
	TimeoutSecs       int     `json:"timeoutSecs"`
}

// ReportConfig holds the external text-generation service settings.
type ReportConfig struct {
	BaseURL     string `json:"baseUrl"`
	APIKey      string `json:"apiKey"`
	TimeoutSecs int    `json:"timeoutSecs"`
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
	ExporterType string `json:"exporterType"`
	Endpoint     string `json:"endpoint"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs on SQLite + channels + local LRU.
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL + NATS + Redis.
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for the Community tier.
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
			SQLitePath: "./kestrel.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Scoring: ScoringConfig{
			MinCleanNeighbors:        8,
			MinCleanNeighborsWeather: 4,
		},
		Geocode: GeocodeConfig{
			BaseURL:           "https://nominatim.openstreetmap.org",
			RequestsPerSecond: 1,
			TimeoutSecs:       10,
		},
		Report: ReportConfig{
			TimeoutSecs: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
		},
	}
}

// ProConfig returns a configuration for the Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "kestrel",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
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
