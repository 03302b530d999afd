package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rhuss/twinbot/pkg/relay"
)

// WriteTimeoutMargin is the time server.write_timeout must leave on top of
// simulation.timeout for matching the reply and writing the response.
const WriteTimeoutMargin = 5 * time.Second

// Validate checks the configuration for required fields and valid values.
// All problems are reported together, each with a descriptive field path.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be > 0, got %d", c.Server.MaxBodySize))
	}

	if len(c.Chatbot.Corpus) == 0 && (c.Chatbot.TrainOnStart || c.Chatbot.Retrain) {
		errs = append(errs, fmt.Errorf("chatbot.corpus is required when training at startup"))
	}
	if c.Chatbot.MinConfidence < 0 || c.Chatbot.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("chatbot.min_confidence must be within [0, 1], got %g", c.Chatbot.MinConfidence))
	}

	switch c.Storage.Type {
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			errs = append(errs, fmt.Errorf("storage.sqlite.path is required when storage.type is \"sqlite\""))
		}
	case "postgres":
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"sqlite\", \"postgres\", or \"memory\", got %q", c.Storage.Type))
	}

	if strings.TrimSpace(c.Simulation.Command) == "" {
		errs = append(errs, fmt.Errorf("simulation.command is required"))
	}
	if c.Simulation.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("simulation.timeout must be > 0, got %s", c.Simulation.Timeout))
	}
	// A zero write timeout means no limit.
	if wt := c.Server.WriteTimeout; wt > 0 && c.Simulation.Timeout > 0 && wt < c.Simulation.Timeout+WriteTimeoutMargin {
		errs = append(errs, fmt.Errorf("server.write_timeout (%s) must exceed simulation.timeout (%s) by at least %s",
			wt, c.Simulation.Timeout, WriteTimeoutMargin))
	}
	if c.Simulation.MaxOutputBytes <= 0 {
		errs = append(errs, fmt.Errorf("simulation.max_output_bytes must be > 0, got %d", c.Simulation.MaxOutputBytes))
	}
	if c.Simulation.MaxConcurrent < 0 {
		errs = append(errs, fmt.Errorf("simulation.max_concurrent must be >= 0, got %d", c.Simulation.MaxConcurrent))
	}
	if _, err := relay.ParseFailureMode(c.Simulation.FailureMode); err != nil {
		errs = append(errs, fmt.Errorf("simulation.failure_mode: %w", err))
	}

	switch c.Auth.Type {
	case "none":
	case "apikey":
		if len(c.Auth.APIKeys) == 0 {
			errs = append(errs, fmt.Errorf("auth.api_keys is required when auth.type is \"apikey\""))
		}
		for i, k := range c.Auth.APIKeys {
			if k.Key == "" && k.KeyFile == "" {
				errs = append(errs, fmt.Errorf("auth.api_keys[%d]: key or key_file is required", i))
			}
			if k.Subject == "" {
				errs = append(errs, fmt.Errorf("auth.api_keys[%d].subject is required", i))
			}
		}
	case "jwt":
		if c.Auth.JWT.JWKSURL == "" {
			errs = append(errs, fmt.Errorf("auth.jwt.jwks_url is required when auth.type is \"jwt\""))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"apikey\", or \"jwt\", got %q", c.Auth.Type))
	}

	if c.Auth.RateLimit.DefaultRPM < 0 {
		errs = append(errs, fmt.Errorf("auth.rate_limit.default_rpm must be >= 0, got %d", c.Auth.RateLimit.DefaultRPM))
	}
	for name, tier := range c.Auth.RateLimit.Tiers {
		if tier.RequestsPerMinute < 0 || tier.Burst < 0 {
			errs = append(errs, fmt.Errorf("auth.rate_limit.tiers.%s: limits must be >= 0", name))
		}
	}

	if c.Observability.Metrics.Enabled && !strings.HasPrefix(c.Observability.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("observability.metrics.path must start with \"/\", got %q", c.Observability.Metrics.Path))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// Warnings reports settings that are valid but likely to cut off work in
// progress.
func (c *Config) Warnings() []string {
	var warnings []string
	if st := c.Server.ShutdownTimeout; st > 0 && st < c.Simulation.Timeout {
		warnings = append(warnings, fmt.Sprintf(
			"server.shutdown_timeout (%s) is shorter than simulation.timeout (%s); queries in flight at shutdown may be cut off",
			st, c.Simulation.Timeout))
	}
	return warnings
}
