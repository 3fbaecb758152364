package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Store     StoreConfig     `mapstructure:"store"`
	Events    EventsConfig    `mapstructure:"events"`
	Detection DetectionConfig `mapstructure:"detection"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Host string `mapstructure:"host"` // Bind address (e.g., 0.0.0.0 for all interfaces)
	Port int    `mapstructure:"port"` // HTTP server port
}

// CatalogConfig selects and configures the dataset catalog backend
type CatalogConfig struct {
	Type        string        `mapstructure:"type"`         // Catalog backend: memory (default), etcd
	Endpoints   []string      `mapstructure:"endpoints"`    // etcd endpoints
	DialTimeout time.Duration `mapstructure:"dial_timeout"` // etcd dial timeout
	Username    string        `mapstructure:"username"`     // Optional etcd authentication
	Password    string        `mapstructure:"password"`     // Optional etcd authentication
	Namespace   string        `mapstructure:"namespace"`    // Key prefix for catalog entries
}

// StoreConfig configures the dataset snapshot store
type StoreConfig struct {
	DataDir     string `mapstructure:"data_dir"`    // Directory for dataset snapshots
	Compression string `mapstructure:"compression"` // Snapshot compression: snappy (default), none
	MaxCached   int    `mapstructure:"max_cached"`  // Max decoded datasets kept in memory (0 disables caching)
}

// EventsConfig configures outlier event publishing
type EventsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`  // Enable event publishing
	Type     string `mapstructure:"type"`     // Backend: nats (default), redis, kafka, memory
	URL      string `mapstructure:"url"`      // Broker URL (e.g., nats://localhost:4222, redis://localhost:6379)
	Username string `mapstructure:"username"` // Optional authentication
	Password string `mapstructure:"password"` // Optional authentication
	Subject  string `mapstructure:"subject"`  // Subject/topic for outlier events

	// Redis-specific options
	RedisDB       int    `mapstructure:"redis_db"`       // Redis database number (default: 0)
	RedisStream   string `mapstructure:"redis_stream"`   // Redis stream prefix (default: "driftwatch")
	RedisGroup    string `mapstructure:"redis_group"`    // Redis consumer group (default: "driftwatch-group")
	RedisConsumer string `mapstructure:"redis_consumer"` // Redis consumer name (default: hostname)

	// Kafka-specific options
	KafkaBrokers []string `mapstructure:"kafka_brokers"`  // Kafka broker addresses
	KafkaGroupID string   `mapstructure:"kafka_group_id"` // Kafka consumer group ID
}

// DetectionConfig represents default detection parameters.
// Request-level parameters override these per call.
type DetectionConfig struct {
	Column       string  `mapstructure:"column"`        // Feature column to analyze (default: "target")
	Method       string  `mapstructure:"method"`        // Detector name (default: "density")
	WindowSize   int     `mapstructure:"window_size"`   // Sliding window size
	DistanceCoef float64 `mapstructure:"distance_coef"` // Threshold = distance_coef * population std
	NNeighbors   int     `mapstructure:"n_neighbors"`   // Min close neighbors for a normal point
	GapPolicy    string  `mapstructure:"gap_policy"`    // Missing-value handling: compact (default), fail
	Workers      int     `mapstructure:"workers"`       // Concurrent segment workers (1 = sequential)
}

// AuthConfig controls API key authentication
type AuthConfig struct {
	Enabled bool     `mapstructure:"enabled"`  // Enable/disable API key authentication
	APIKeys []string `mapstructure:"api_keys"` // List of valid API keys
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, file path
}

// GetServerAddress returns the host:port the HTTP server binds
func (c *Config) GetServerAddress() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// Validate checks every section and reports the first problem
func (c *Config) Validate() error {
	sections := []struct {
		name  string
		check func() error
	}{
		{"server", c.Server.Validate},
		{"catalog", c.Catalog.Validate},
		{"store", c.Store.Validate},
		{"events", c.Events.Validate},
		{"detection", c.Detection.Validate},
		{"logging", c.Logging.Validate},
	}

	for _, s := range sections {
		if err := s.check(); err != nil {
			return fmt.Errorf("%s config: %w", s.name, err)
		}
	}
	return nil
}

func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}

func (c *CatalogConfig) Validate() error {
	switch c.Type {
	case "memory":
	case "etcd":
		if len(c.Endpoints) == 0 {
			return fmt.Errorf("catalog.endpoints is required for etcd catalog")
		}
		if c.DialTimeout <= 0 {
			return fmt.Errorf("catalog.dial_timeout must be positive")
		}
	default:
		return fmt.Errorf("catalog.type must be 'memory' or 'etcd'")
	}
	return nil
}

func (c *StoreConfig) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Compression != "snappy" && c.Compression != "none" {
		return fmt.Errorf("store.compression must be 'snappy' or 'none'")
	}
	if c.MaxCached < 0 {
		return fmt.Errorf("store.max_cached cannot be negative")
	}
	return nil
}

// Validate skips backend checks while publishing is disabled, so a config
// with events stubbed out stays loadable.
func (c *EventsConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	switch c.Type {
	case "nats", "redis", "memory":
	case "kafka":
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("events.kafka_brokers is required for kafka")
		}
	default:
		return fmt.Errorf("events.type must be one of: nats, redis, kafka, memory")
	}

	if c.Subject == "" {
		return fmt.Errorf("events.subject is required")
	}
	return nil
}

func (c *DetectionConfig) Validate() error {
	if c.Column == "" {
		return fmt.Errorf("detection.column is required")
	}
	if c.WindowSize < 1 {
		return fmt.Errorf("detection.window_size must be positive")
	}
	if c.DistanceCoef <= 0 {
		return fmt.Errorf("detection.distance_coef must be positive")
	}
	if c.NNeighbors < 1 {
		return fmt.Errorf("detection.n_neighbors must be at least 1")
	}
	if c.GapPolicy != "compact" && c.GapPolicy != "fail" {
		return fmt.Errorf("detection.gap_policy must be 'compact' or 'fail'")
	}
	if c.Workers < 1 {
		return fmt.Errorf("detection.workers must be at least 1")
	}
	return nil
}

func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	switch c.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}
	return nil
}
