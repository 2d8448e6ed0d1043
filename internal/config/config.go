// Package config loads application configuration from
// ~/.config/biliview/config.yaml with BILIVIEW_* environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	CacheDir  string          `mapstructure:"cache_dir"`
	API       APIConfig       `mapstructure:"api"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Image     ImageConfig     `mapstructure:"image"`
	Videoshot VideoshotConfig `mapstructure:"videoshot"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// APIConfig points at the upstream player API and the local image proxy.
type APIConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	ProxyPrefix string `mapstructure:"proxy_prefix"`
}

// CacheConfig holds maintenance knobs for the durable cache.
type CacheConfig struct {
	MaxImageEntries     int           `mapstructure:"max_image_entries"`
	MaxDataEntries      int           `mapstructure:"max_data_entries"`
	MaintenanceDelay    time.Duration `mapstructure:"maintenance_delay"`
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval"`
}

// ImageConfig holds image fetch settings.
type ImageConfig struct {
	PreloadConcurrency int     `mapstructure:"preload_concurrency"`
	FetchRate          float64 `mapstructure:"fetch_rate"` // requests/sec, 0 = unlimited
	FetchBurst         int     `mapstructure:"fetch_burst"`
}

// VideoshotConfig holds snapshot fetch settings.
type VideoshotConfig struct {
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
	InitialSheetLimit int           `mapstructure:"initial_sheet_limit"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "biliview")
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "biliview")
}

// Load reads configuration, applying defaults for everything unset. A
// missing config file is fine; a malformed one is not.
func Load() (*Config, error) {
	cfg := &Config{}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(defaultConfigPath())

	viper.SetDefault("cache_dir", defaultCacheDir())
	viper.SetDefault("api.base_url", "https://api.bilibili.com")
	viper.SetDefault("api.proxy_prefix", "/img-proxy")
	viper.SetDefault("cache.max_image_entries", 2000)
	viper.SetDefault("cache.max_data_entries", 500)
	viper.SetDefault("cache.maintenance_delay", 5*time.Second)
	viper.SetDefault("cache.maintenance_interval", time.Hour)
	viper.SetDefault("image.preload_concurrency", 4)
	viper.SetDefault("image.fetch_rate", 0)
	viper.SetDefault("image.fetch_burst", 8)
	viper.SetDefault("videoshot.max_retries", 3)
	viper.SetDefault("videoshot.retry_delay", 2*time.Second)
	viper.SetDefault("videoshot.initial_sheet_limit", 3)
	viper.SetDefault("logging.file", "~/.local/share/biliview/biliview.log")
	viper.SetDefault("logging.level", "info")

	viper.SetEnvPrefix("BILIVIEW")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}
