package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/joeshaw/envdecode"
)

// Config is read from the environment.
type Config struct {
	// Lang selects the message language. ENV: KIM_LANG
	Lang string `env:"KIM_LANG,default=en"`
	// LogLevel is one of debug, info, warn, error. ENV: KIM_LOG_LEVEL
	LogLevel string `env:"KIM_LOG_LEVEL,default=warn"`
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if cfg.Lang == "" {
		cfg.Lang = "en"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "warn"
	}
	return cfg, nil
}

func (c Config) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: KIM_LOG_LEVEL: %w", err)
	}
	return l, nil
}
