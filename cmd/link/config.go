package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// appConfig is the CLI's resolved configuration, layered from defaults,
// an optional config file, environment variables (LINK_*), and flags, in
// that increasing order of precedence.
type appConfig struct {
	DevicePath   string `mapstructure:"device_path"`
	KeyFile      string `mapstructure:"key_file"`
	Timeout      int    `mapstructure:"timeout_seconds"`
	OutputFormat string `mapstructure:"output"`
}

// loadConfig reads the CLI's layered configuration using viper, following
// the same SetDefault/AddConfigPath/AutomaticEnv sequence used elsewhere in
// the pack for tool configuration.
func loadConfig() (*appConfig, error) {
	viper.SetConfigName("link-config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.link")
	viper.AddConfigPath("/etc/link")

	viper.SetDefault("device_path", "")
	viper.SetDefault("key_file", "")
	viper.SetDefault("timeout_seconds", 10)
	viper.SetDefault("output", "text")

	viper.SetEnvPrefix("LINK")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg appConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

func levelFromVerbosity(verbose, quiet bool) zerolog.Level {
	switch {
	case quiet:
		return zerolog.ErrorLevel
	case verbose:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}
