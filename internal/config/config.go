// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration.
type Config struct {
	Port           string     `env:"PORT" envDefault:"8080"`
	GRPCEnabled    bool       `env:"GRPC_ENABLED" envDefault:"true"`
	GRPCPort       string     `env:"GRPC_PORT" envDefault:"9090"`
	DBPath         string     `env:"DB_PATH" envDefault:"./data/trivia.db"`
	CommandPrefix  string     `env:"COMMAND_PREFIX" envDefault:"!trivia"`
	LogLevel       slog.Level `env:"LOG_LEVEL" envDefault:"info"`
	AllowedOrigins []string   `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.CommandPrefix = strings.TrimSpace(cfg.CommandPrefix)
	for i, origin := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if err := validatePort("PORT", c.Port); err != nil {
		return err
	}
	if c.GRPCEnabled {
		if err := validatePort("GRPC_PORT", c.GRPCPort); err != nil {
			return err
		}
		if c.GRPCPort == c.Port {
			return fmt.Errorf("GRPC_PORT must differ from PORT")
		}
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.CommandPrefix == "" {
		return fmt.Errorf("COMMAND_PREFIX cannot be empty")
	}
	if strings.ContainsAny(c.CommandPrefix, " \t\n") {
		return fmt.Errorf("COMMAND_PREFIX cannot contain whitespace")
	}
	return nil
}

func validatePort(name, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("%s must be a port number, got %q", name, value)
	}
	return nil
}
