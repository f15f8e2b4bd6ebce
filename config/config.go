// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"github.com/stratastor/logger"
	"gopkg.in/yaml.v3"

	"github.com/stratastor/dropboxd/internal/constants"
)

var (
	instance   *Config
	once       sync.Once
	configPath string
)

// Config is the daemon-wide configuration tree. Dropbox-local settings
// are a separate YAML document (pkg/dropbox.Settings) merged on top of
// this at transaction-config time.
type Config struct {
	Server struct {
		LogLevel  string `mapstructure:"logLevel"`
		Daemonize bool   `mapstructure:"daemonize"`
	} `mapstructure:"server"`

	Search struct {
		Paths           []string `mapstructure:"paths"`
		MaxDirectoryDepth int    `mapstructure:"maxDirectoryDepth"`
		ConfigFileGlob  string   `mapstructure:"configFileGlob"`
	} `mapstructure:"search"`

	Check struct {
		DropboxesEvery    string `mapstructure:"dropboxesEvery"`
		PackagesEvery     string `mapstructure:"packagesEvery"`
		TransactionsEvery string `mapstructure:"transactionsEvery"`
	} `mapstructure:"check"`

	Threads struct {
		NumUpdateThreads    int `mapstructure:"numUpdateThreads"`
		NumOperationThreads int `mapstructure:"numOperationThreads"`
	} `mapstructure:"threads"`

	DB struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"db"`

	Authentication struct {
		PrivilegedGroup string `mapstructure:"privilegedGroup"`
		CacheTTL        string `mapstructure:"cacheTTL"`
	} `mapstructure:"authentication"`

	Logger struct {
		LogLevel     string `mapstructure:"logLevel"`
		EnableSentry bool   `mapstructure:"enableSentry"`
		SentryDSN    string `mapstructure:"sentryDSN"`
	} `mapstructure:"logger"`

	Graphite struct {
		Enabled bool   `mapstructure:"enabled"`
		Host    string `mapstructure:"host"`
		Port    int    `mapstructure:"port"`
	} `mapstructure:"graphite"`

	Environment string `mapstructure:"environment"`
}

// LoadConfig loads daemon configuration with the precedence: explicit path >
// DROPBOXD_CONFIG env var > system config path. Guarded by sync.Once so
// repeated calls are cheap and stable for tests.
func LoadConfig(configFilePath string) *Config {
	once.Do(func() {
		l, err := logger.NewTag(logger.Config{LogLevel: "info"}, "config")
		if err != nil {
			fmt.Printf("failed to create logger: %v\n", err)
			os.Exit(1)
		}

		viper.Reset()
		viper.SetConfigType("yaml")

		systemConfigPath := filepath.Join(GetConfigDir(), constants.ConfigFileName)
		switch {
		case configFilePath != "":
			configPath = configFilePath
		case os.Getenv("DROPBOXD_CONFIG") != "":
			configPath = os.Getenv("DROPBOXD_CONFIG")
		default:
			configPath = systemConfigPath
		}

		if abs, err := filepath.Abs(configPath); err == nil {
			configPath = abs
		}
		viper.SetConfigFile(configPath)

		viper.SetDefault("environment", "dev")
		viper.SetDefault("server.logLevel", "info")
		viper.SetDefault("server.daemonize", false)
		viper.SetDefault("search.paths", []string{"/srv/dropboxes"})
		viper.SetDefault("search.maxDirectoryDepth", 4)
		viper.SetDefault("search.configFileGlob", constants.DropboxConfigFile)
		viper.SetDefault("check.dropboxesEvery", constants.DefaultCheckDropboxesEvery)
		viper.SetDefault("check.packagesEvery", constants.DefaultCheckPackagesEvery)
		viper.SetDefault("check.transactionsEvery", constants.DefaultCheckTransactionsEvery)
		viper.SetDefault("threads.numUpdateThreads", 4)
		viper.SetDefault("threads.numOperationThreads", 4)
		viper.SetDefault("db.url", filepath.Join(GetDBDir(), "dropboxd.sqlite"))
		viper.SetDefault("authentication.privilegedGroup", "dropbox-operators")
		viper.SetDefault("authentication.cacheTTL", constants.DefaultAuthCacheTTL)
		viper.SetDefault("logger.logLevel", "info")
		viper.SetDefault("logger.enableSentry", false)
		viper.SetDefault("graphite.enabled", false)
		viper.SetDefault("graphite.port", 2004)

		viper.AutomaticEnv()
		viper.SetEnvPrefix("DROPBOXD")
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

		err = viper.ReadInConfig()
		if err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				l.Info("config file not found, writing defaults", "path", systemConfigPath)
				if mkErr := os.MkdirAll(GetConfigDir(), 0755); mkErr != nil {
					l.Error("failed to create config directory", "err", mkErr)
				}
				var cfg Config
				_ = viper.Unmarshal(&cfg)
				instance = &cfg
				configPath = systemConfigPath
				if saveErr := SaveConfig(systemConfigPath); saveErr != nil {
					l.Error("failed to save default configuration", "err", saveErr)
				}
			} else {
				l.Error("error reading config file", "err", err)
				var cfg Config
				_ = viper.Unmarshal(&cfg)
				instance = &cfg
			}
		} else {
			l.Info("config file loaded", "path", viper.ConfigFileUsed())
			configPath = viper.ConfigFileUsed()
			var cfg Config
			if err := viper.Unmarshal(&cfg); err != nil {
				l.Error("failed to parse configuration", "err", err)
			} else {
				instance = &cfg
			}
		}
	})

	return instance
}

// SaveConfig persists the current configuration to path (or a sensible
// default rooted at GetConfigDir when path is empty).
func SaveConfig(path string) error {
	if path == "" {
		path = filepath.Join(GetConfigDir(), constants.ConfigFileName)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	out, err := yaml.Marshal(instance)
	if err != nil {
		return fmt.Errorf("failed to serialize configuration: %w", err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	configPath = path
	return nil
}

// GetLoadedConfigPath returns the path the active configuration was read from.
func GetLoadedConfigPath() string { return configPath }

// GetConfig returns the process-wide configuration, loading defaults on
// first use.
func GetConfig() *Config {
	if instance == nil {
		return LoadConfig("")
	}
	return instance
}

// NewLoggerConfig builds a logger.Config from the daemon configuration.
func NewLoggerConfig(cfg *Config) logger.Config {
	if cfg == nil {
		return logger.Config{LogLevel: "info"}
	}
	return logger.Config{
		LogLevel:     cfg.Logger.LogLevel,
		EnableSentry: cfg.Logger.EnableSentry,
		SentryDSN:    cfg.Logger.SentryDSN,
	}
}
