// Package config loads a linkspace environment's configuration from a YAML
// file plus environment variable overrides.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"linkspace/internal/utils"
)

// Config is the unified configuration for a linkspace environment.
type Config struct {
	Store struct {
		Dir             string `mapstructure:"dir" json:"dir"`
		SnapshotEntries int    `mapstructure:"snapshot_entries" json:"snapshot_entries"`
	} `mapstructure:"store" json:"store"`

	Notify struct {
		Transport      string `mapstructure:"transport" json:"transport"` // "multicast" or "inotify"
		MulticastAddr  string `mapstructure:"multicast_addr" json:"multicast_addr"`
		MulticastIface string `mapstructure:"multicast_iface" json:"multicast_iface"`
	} `mapstructure:"notify" json:"notify"`

	Dispatch struct {
		QueueSize int `mapstructure:"queue_size" json:"queue_size"`
	} `mapstructure:"dispatch" json:"dispatch"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`

	Metrics struct {
		Enabled    bool   `mapstructure:"enabled" json:"enabled"`
		ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
	} `mapstructure:"metrics" json:"metrics"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

func setDefaults() {
	viper.SetDefault("store.dir", "./linkspace.env")
	viper.SetDefault("store.snapshot_entries", 10_000)
	viper.SetDefault("notify.transport", "multicast")
	viper.SetDefault("notify.multicast_addr", "239.0.0.17:17171")
	viper.SetDefault("dispatch.queue_size", 256)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.listen_addr", ":9117")
}

// Load reads "default.yaml" from the config search paths, merges an optional
// per-environment override file named after env, and applies LINKSPACE_*
// environment variable overrides. The resulting configuration is stored in
// AppConfig and returned. If env is empty, only defaults and any default.yaml
// on the search path apply.
func Load(env string) (*Config, error) {
	setDefaults()
	viper.SetConfigName("default")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, utils.Wrap(err, "load config")
		}
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.SetEnvPrefix("LINKSPACE")
	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the LINKSPACE_ENV environment
// variable to select an override file ("" loads defaults only).
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("LINKSPACE_ENV", ""))
}
