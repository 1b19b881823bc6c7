// Package config loads the beacon CLI configuration from defaults, an
// optional YAML file and BEACON_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/asungur/beacon"
	"github.com/spf13/viper"
)

type Config struct {
	APIKey     string           `mapstructure:"api_key"`
	OrgName    string           `mapstructure:"org_name"`
	AppVersion string           `mapstructure:"app_version"`
	BaseURL    string           `mapstructure:"base_url"`
	DeviceTag  string           `mapstructure:"device_tag"`
	Namespace  string           `mapstructure:"namespace"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Delivery   DeliveryConfig   `mapstructure:"delivery"`
	AutoEvents AutoEventsConfig `mapstructure:"auto_events"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type StorageConfig struct {
	Backend  string `mapstructure:"backend"` // "badger" (default), "sqlite", "redis" or "memory"
	Path     string `mapstructure:"path"`    // badger directory or sqlite file
	RedisURL string `mapstructure:"redis_url"`
}

type DeliveryConfig struct {
	BatchSize      int           `mapstructure:"batch_size"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	MaxRetryDelay  time.Duration `mapstructure:"max_retry_delay"`
	HTTPTimeout    time.Duration `mapstructure:"http_timeout"`
}

type AutoEventsConfig struct {
	Disabled         bool          `mapstructure:"disabled"`
	DAUCheckInterval time.Duration `mapstructure:"dau_check_interval"`
	DAUWindow        time.Duration `mapstructure:"dau_window"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("api_key", "")
	v.SetDefault("org_name", "")
	v.SetDefault("app_version", "")
	v.SetDefault("base_url", beacon.DefaultBaseURL)
	v.SetDefault("device_tag", "")
	v.SetDefault("namespace", beacon.DefaultNamespace)
	v.SetDefault("storage.backend", "badger")
	v.SetDefault("storage.path", ".beacon")
	v.SetDefault("storage.redis_url", "redis://localhost:6379/0")
	v.SetDefault("delivery.batch_size", beacon.DefaultBatchSize)
	v.SetDefault("delivery.retry_base_delay", "1s")
	v.SetDefault("delivery.max_retry_delay", "0s")
	v.SetDefault("delivery.http_timeout", "30s")
	v.SetDefault("auto_events.disabled", false)
	v.SetDefault("auto_events.dau_check_interval", "12h")
	v.SetDefault("auto_events.dau_window", "24h")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("beacon")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment variables override, e.g. BEACON_STORAGE_BACKEND
	v.SetEnvPrefix("BEACON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Client converts the file settings into a beacon.Config. Storage,
// logging and metrics are wired by the caller.
func (c *Config) Client() beacon.Config {
	return beacon.Config{
		APIKey:            c.APIKey,
		OrgName:           c.OrgName,
		AppVersion:        c.AppVersion,
		BaseURL:           c.BaseURL,
		DeviceTag:         c.DeviceTag,
		Namespace:         c.Namespace,
		BatchSize:         c.Delivery.BatchSize,
		RetryBaseDelay:    c.Delivery.RetryBaseDelay,
		MaxRetryDelay:     c.Delivery.MaxRetryDelay,
		HTTPTimeout:       c.Delivery.HTTPTimeout,
		DisableAutoEvents: c.AutoEvents.Disabled,
		DAUCheckInterval:  c.AutoEvents.DAUCheckInterval,
		DAUWindow:         c.AutoEvents.DAUWindow,
	}
}
