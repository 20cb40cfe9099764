// Package config loads the CLI configuration from file, environment and
// defaults, in that order of increasing precedence handled by viper.
package config

import (
	"github.com/spf13/viper"

	lederrors "accounting-ledger-service/pkg/errors"
	"accounting-ledger-service/pkg/logger"
)

// Config is the full runtime configuration of the ledger CLI.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig selects and parameterizes the storage backend.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `mapstructure:"driver"`
	// DSN is the file path for sqlite or the connection string for postgres.
	DSN string `mapstructure:"dsn"`
}

// LogConfig mirrors the logger package's settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers the configuration defaults with viper.
func SetDefaults() {
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.dsn", "ledger.db")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
}

// Load materializes the configuration from viper's current state.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, lederrors.ConfigurationError("config", err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the rest of the program cannot act on.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "sqlite3", "postgres", "postgresql":
	default:
		return lederrors.ConfigurationError("database.driver", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return lederrors.ConfigurationError("database.dsn", "")
	}

	loggerConfig := c.LoggerConfig()
	if err := loggerConfig.Validate(); err != nil {
		return err
	}
	return nil
}

// LoggerConfig translates the log section for the logger package.
func (c *Config) LoggerConfig() *logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = logger.Level(c.Log.Level)
	cfg.Format = logger.Format(c.Log.Format)
	return cfg
}
