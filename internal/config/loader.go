package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load reads configuration from path, or from the default search
// locations when path is empty. Values resolve in priority order:
// config file, DRIFTWATCH_* environment variables, built-in defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	applyDefaults(v)

	v.SetEnvPrefix("DRIFTWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, dir := range []string{".", "./configs", "./config", "/etc/driftwatch"} {
			v.AddConfigPath(dir)
		}
	}

	// A file missing from the search path is fine, defaults and
	// environment cover everything. An explicit path must exist.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// applyDefaults registers the built-in defaults. Keys mirror the
// mapstructure tags on Config.
func applyDefaults(v *viper.Viper) {
	for key, value := range map[string]interface{}{
		"server.host": "0.0.0.0",
		"server.port": 8080,

		"catalog.type":         "memory",
		"catalog.endpoints":    []string{"http://localhost:2379"},
		"catalog.dial_timeout": "5s",
		"catalog.namespace":    "/driftwatch",

		"store.data_dir":    "./data",
		"store.compression": "snappy",
		"store.max_cached":  32,

		"events.enabled":      false,
		"events.type":         "nats",
		"events.url":          "nats://localhost:4222",
		"events.subject":      "driftwatch.outliers",
		"events.redis_stream": "driftwatch",
		"events.redis_group":  "driftwatch-group",

		"detection.column":        "target",
		"detection.method":        "density",
		"detection.window_size":   15,
		"detection.distance_coef": 3.0,
		"detection.n_neighbors":   3,
		"detection.gap_policy":    "compact",
		"detection.workers":       1,

		"logging.level":       "info",
		"logging.format":      "json",
		"logging.output_path": "stdout",
	} {
		v.SetDefault(key, value)
	}
}

// DefaultConfig returns the built-in defaults without consulting files
// or the environment.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Catalog: CatalogConfig{
			Type:        "memory",
			Endpoints:   []string{"http://localhost:2379"},
			DialTimeout: 5 * time.Second,
			Namespace:   "/driftwatch",
		},
		Store: StoreConfig{
			DataDir:     "./data",
			Compression: "snappy",
			MaxCached:   32,
		},
		Events: EventsConfig{
			Type:        "nats",
			URL:         "nats://localhost:4222",
			Subject:     "driftwatch.outliers",
			RedisStream: "driftwatch",
			RedisGroup:  "driftwatch-group",
		},
		Detection: DetectionConfig{
			Column:       "target",
			Method:       "density",
			WindowSize:   15,
			DistanceCoef: 3.0,
			NNeighbors:   3,
			GapPolicy:    "compact",
			Workers:      1,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stdout",
		},
	}
}
