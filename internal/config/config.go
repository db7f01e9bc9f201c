// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Apify    ApifyConfig    `mapstructure:"apify"`
	Traffic  TrafficConfig  `mapstructure:"traffic"`
	DB       DBConfig       `mapstructure:"db"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeoutSec  int `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSec int `mapstructure:"write_timeout_seconds"`
	ShutdownGrace   int `mapstructure:"shutdown_grace_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// PipelineConfig governs run defaults and retry behavior.
type PipelineConfig struct {
	DefaultMaxAds     int `mapstructure:"default_max_ads"`
	DefaultTimeoutSec int `mapstructure:"default_timeout_seconds"`
	RetryMaxAttempts  int `mapstructure:"retry_max_attempts"`
	RetryInitialMs    int `mapstructure:"retry_initial_ms"`
	RetryMaxBackoffMs int `mapstructure:"retry_max_backoff_ms"`
}

// ApifyConfig holds Apify platform credentials and actor selection.
type ApifyConfig struct {
	Token           string `mapstructure:"token"`
	ActorID         string `mapstructure:"actor_id"`
	CountryCode     string `mapstructure:"country_code"`
	PollIntervalSec int    `mapstructure:"poll_interval_seconds"`
}

// TrafficConfig holds the traffic-data proxy credentials.
type TrafficConfig struct {
	ScraperAPIKey string `mapstructure:"scraperapi_key"`
}

// DBConfig controls access to the relational database. An empty DSN selects
// the in-memory store.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MARKETINTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_seconds", 30)
	v.SetDefault("server.write_timeout_seconds", 0)
	v.SetDefault("server.shutdown_grace_seconds", 10)
	v.SetDefault("pipeline.default_max_ads", 50)
	v.SetDefault("pipeline.default_timeout_seconds", 900)
	v.SetDefault("pipeline.retry_max_attempts", 2)
	v.SetDefault("pipeline.retry_initial_ms", 1000)
	v.SetDefault("pipeline.retry_max_backoff_ms", 60000)
	v.SetDefault("apify.country_code", "US")
	v.SetDefault("apify.poll_interval_seconds", 15)
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 2)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Pipeline.DefaultMaxAds <= 0 {
		return fmt.Errorf("pipeline.default_max_ads must be > 0")
	}
	if c.Pipeline.DefaultTimeoutSec <= 0 {
		return fmt.Errorf("pipeline.default_timeout_seconds must be > 0")
	}
	if c.Pipeline.RetryMaxAttempts < 0 {
		return fmt.Errorf("pipeline.retry_max_attempts must be >= 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.DB.DSN != "" && c.DB.MaxConns <= 0 {
		return fmt.Errorf("db.max_conns must be > 0")
	}
	return nil
}

// RetryInitialDelay converts the millisecond knob into a duration.
func (c PipelineConfig) RetryInitialDelay() time.Duration {
	return time.Duration(c.RetryInitialMs) * time.Millisecond
}

// RetryMaxBackoff converts the millisecond knob into a duration.
func (c PipelineConfig) RetryMaxBackoff() time.Duration {
	return time.Duration(c.RetryMaxBackoffMs) * time.Millisecond
}

// PollInterval converts the seconds knob into a duration.
func (c ApifyConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}
