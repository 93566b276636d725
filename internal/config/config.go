package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
// Values come from defaults, an optional config.yaml and the environment,
// in increasing order of precedence.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Store
	DatabaseDriver string // postgres | sqlite
	DatabaseURL    string
	DatabaseLog    bool
	NameUniqueness string // owner | global

	// Cache
	RedisURL string // empty selects the in-process cache
	CacheTTL time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Observability
	OTLPEndpoint string

	// Identity provider
	JWTSecret     string
	JWTIssuer     string
	WebhookSecret string
}

var defaults = map[string]any{
	"port":                        8080,
	"log_level":                   "info",
	"database_driver":             "sqlite",
	"database_url":                "file:tracker.db?_foreign_keys=on",
	"database_log":                false,
	"name_uniqueness":             "owner",
	"redis_url":                   "",
	"cache_ttl":                   10 * time.Minute,
	"max_retries":                 2,
	"initial_backoff":             50 * time.Millisecond,
	"max_concurrency":             64,
	"otel_exporter_otlp_endpoint": "",
	"jwt_secret":                  "tracker-dev-secret-change-me",
	"jwt_issuer":                  "",
	"webhook_secret":              "",
}

// Load reads configuration. path names a config file; when empty an optional
// config.yaml in the working directory is used if present.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	// PORT, DATABASE_URL, ... override file values.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		Port:     v.GetInt("port"),
		LogLevel: v.GetString("log_level"),

		DatabaseDriver: strings.ToLower(v.GetString("database_driver")),
		DatabaseURL:    v.GetString("database_url"),
		DatabaseLog:    v.GetBool("database_log"),
		NameUniqueness: strings.ToLower(v.GetString("name_uniqueness")),

		RedisURL: v.GetString("redis_url"),
		CacheTTL: v.GetDuration("cache_ttl"),

		MaxRetries:     v.GetInt("max_retries"),
		InitialBackoff: v.GetDuration("initial_backoff"),
		MaxConcurrency: v.GetInt("max_concurrency"),

		OTLPEndpoint: v.GetString("otel_exporter_otlp_endpoint"),

		JWTSecret:     v.GetString("jwt_secret"),
		JWTIssuer:     v.GetString("jwt_issuer"),
		WebhookSecret: v.GetString("webhook_secret"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	switch c.NameUniqueness {
	case "owner", "global":
	default:
		return fmt.Errorf("config: NAME_UNIQUENESS must be owner or global, got %q", c.NameUniqueness)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("config: CACHE_TTL must be positive")
	}
	return nil
}
