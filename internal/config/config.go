// Package config loads application settings from defaults, an optional
// config file and MYTODO_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"mytodo/internal/persistence"
)

// Config holds all application configuration.
type Config struct {
	Storage StorageConfig `mapstructure:"storage" validate:"required"`
	Log     LogConfig     `mapstructure:"log" validate:"required"`
	Server  ServerConfig  `mapstructure:"server" validate:"required"`
}

// StorageConfig locates the durable task slot.
type StorageConfig struct {
	Path string `mapstructure:"path" validate:"required"`
	Key  string `mapstructure:"key" validate:"required"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=trace debug info warn warning error fatal panic"`
}

// ServerConfig is used by the serve command only.
type ServerConfig struct {
	Host string `mapstructure:"host" validate:"required"`
	Port int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.path", "./data/mytodo.db")
	v.SetDefault("storage.key", persistence.DefaultKey)
	v.SetDefault("log.level", "info")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
}

// Load reads configuration. If configFile is empty, only defaults and
// environment variables are used.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MYTODO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
