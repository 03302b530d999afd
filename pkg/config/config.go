// Package config provides unified configuration loading for twinbot.
//
// Configuration is loaded from a layered set of sources: built-in defaults,
// a YAML or TOML config file, environment variable overrides, and _file
// secret references. The resulting Config struct is validated before use.
package config

import (
	"time"

	"github.com/rhuss/twinbot/pkg/corpus"
	"github.com/rhuss/twinbot/pkg/simulation"
	"github.com/rhuss/twinbot/pkg/storage/sqlite"
)

// Config is the top-level configuration for twinbot.
type Config struct {
	Server        ServerConfig        `yaml:"server" toml:"server"`
	Chatbot       ChatbotConfig       `yaml:"chatbot" toml:"chatbot"`
	Storage       StorageConfig       `yaml:"storage" toml:"storage"`
	Simulation    SimulationConfig    `yaml:"simulation" toml:"simulation"`
	Auth          AuthConfig          `yaml:"auth" toml:"auth"`
	Observability ObservabilityConfig `yaml:"observability" toml:"observability"`
	Logging       LoggingConfig       `yaml:"logging" toml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host" toml:"host"`
	Port            int           `yaml:"port" toml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" toml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
	MaxBodySize     int64         `yaml:"max_body_size" toml:"max_body_size"`
	Compress        bool          `yaml:"compress" toml:"compress"`
}

// ChatbotConfig holds the conversational matcher settings.
type ChatbotConfig struct {
	Name            string   `yaml:"name" toml:"name"`
	Corpus          []string `yaml:"corpus" toml:"corpus"`
	DefaultResponse string   `yaml:"default_response" toml:"default_response"`
	MinConfidence   float64  `yaml:"min_confidence" toml:"min_confidence"`

	// TrainOnStart trains an empty store from Corpus at startup.
	TrainOnStart bool `yaml:"train_on_start" toml:"train_on_start"`

	// Retrain clears and retrains the store at startup even when it
	// already holds statements.
	Retrain bool `yaml:"retrain" toml:"retrain"`
}

// StorageConfig holds statement store settings.
type StorageConfig struct {
	Type     string         `yaml:"type" toml:"type"` // "sqlite", "postgres" or "memory"
	SQLite   SQLiteConfig   `yaml:"sqlite" toml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres" toml:"postgres"`
}

// SQLiteConfig holds SQLite settings.
type SQLiteConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn" toml:"dsn"`
	DSNFile         string        `yaml:"dsn_file" toml:"dsn_file"`
	MaxConns        int32         `yaml:"max_conns" toml:"max_conns"`
	MinConns        int32         `yaml:"min_conns" toml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" toml:"max_conn_lifetime"`
	MigrateOnStart  bool          `yaml:"migrate_on_start" toml:"migrate_on_start"`
}

// SimulationConfig describes the external simulation process.
type SimulationConfig struct {
	Name           string        `yaml:"name" toml:"name"`
	Command        string        `yaml:"command" toml:"command"`
	Args           []string      `yaml:"args" toml:"args"`
	Dir            string        `yaml:"dir" toml:"dir"`
	Env            []string      `yaml:"env" toml:"env"`
	Timeout        time.Duration `yaml:"timeout" toml:"timeout"`
	MaxOutputBytes int64         `yaml:"max_output_bytes" toml:"max_output_bytes"`
	MaxConcurrent  int64         `yaml:"max_concurrent" toml:"max_concurrent"`

	// FailureMode is "marker" (embed an error object, respond 200) or
	// "error" (respond 502).
	FailureMode string `yaml:"failure_mode" toml:"failure_mode"`
}

// AuthConfig holds authentication and rate limiting settings.
type AuthConfig struct {
	Type      string          `yaml:"type" toml:"type"` // "none", "apikey" or "jwt"
	APIKeys   []APIKeyConfig  `yaml:"api_keys" toml:"api_keys"`
	JWT       JWTConfig       `yaml:"jwt" toml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
}

// APIKeyConfig holds a single API key entry.
type APIKeyConfig struct {
	Key         string   `yaml:"key" toml:"key" json:"key"`
	KeyFile     string   `yaml:"key_file" toml:"key_file" json:"key_file"`
	Subject     string   `yaml:"subject" toml:"subject" json:"subject"`
	ServiceTier string   `yaml:"service_tier" toml:"service_tier" json:"service_tier"`
	Scopes      []string `yaml:"scopes" toml:"scopes" json:"scopes"`
}

// JWTConfig holds JWT authentication settings.
type JWTConfig struct {
	Issuer        string        `yaml:"issuer" toml:"issuer"`
	Audience      string        `yaml:"audience" toml:"audience"`
	JWKSURL       string        `yaml:"jwks_url" toml:"jwks_url"`
	UserClaim     string        `yaml:"user_claim" toml:"user_claim"`
	TierClaim     string        `yaml:"tier_claim" toml:"tier_claim"`
	ScopesClaim   string        `yaml:"scopes_claim" toml:"scopes_claim"`
	RequiredScope string        `yaml:"required_scope" toml:"required_scope"`
	Leeway        time.Duration `yaml:"leeway" toml:"leeway"`
	CacheTTL      time.Duration `yaml:"cache_ttl" toml:"cache_ttl"`
}

// RateLimitConfig holds per-tier rate limits. A zero DefaultRPM with no
// tiers disables rate limiting.
type RateLimitConfig struct {
	DefaultRPM int                   `yaml:"default_rpm" toml:"default_rpm"`
	Tiers      map[string]TierConfig `yaml:"tiers" toml:"tiers"`
}

// TierConfig holds the limit for one service tier.
type TierConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" toml:"requests_per_minute"`
	Burst             int `yaml:"burst" toml:"burst"`
}

// ObservabilityConfig holds observability settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`   // TRACE, DEBUG, INFO, WARN, ERROR
	Debug  string `yaml:"debug" toml:"debug"`   // comma-separated debug categories
	Format string `yaml:"format" toml:"format"` // "text" or "json"
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	sim := simulation.DefaultConfig()
	return Config{
		Server: ServerConfig{
			Port:            5000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    90 * time.Second,
			ShutdownTimeout: 70 * time.Second,
			MaxBodySize:     1 << 20,
		},
		Chatbot: ChatbotConfig{
			Name:         "DigitalTwinBot",
			Corpus:       []string{corpus.Builtin},
			TrainOnStart: true,
		},
		Storage: StorageConfig{
			Type: "sqlite",
			SQLite: SQLiteConfig{
				Path: sqlite.DefaultPath,
			},
			Postgres: PostgresConfig{
				MaxConns: 10,
				MinConns: 1,
			},
		},
		Simulation: SimulationConfig{
			Name:           sim.Name,
			Command:        sim.Command,
			Timeout:        sim.Timeout,
			MaxOutputBytes: sim.MaxOutputBytes,
			FailureMode:    "marker",
		},
		Auth: AuthConfig{
			Type: "none",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}
