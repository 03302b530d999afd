package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/rhuss/twinbot/pkg/simulation"
)

// searchPath is consulted, in order, when neither an explicit path nor
// TWINBOT_CONFIG names a config file.
var searchPath = []string{"config.yaml", "config.toml", "/etc/twinbot/config.yaml"}

// Load builds the configuration in layers, each overriding the last:
// defaults, the config file, TWINBOT_* variables, then *_file secret
// references. The result is validated.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if path := findConfigFile(configPath); path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}
	if err := resolveSecrets(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}
	defaultSimulationArgs(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

// defaultSimulationArgs supplies the default arguments only when the
// default command is kept, so that replacing the command does not inherit
// its flags.
func defaultSimulationArgs(cfg *Config) {
	d := simulation.DefaultConfig()
	if cfg.Simulation.Args == nil && cfg.Simulation.Command == d.Command {
		cfg.Simulation.Args = d.Args
	}
}

// findConfigFile returns "" when there is no config file, which is not an
// error: defaults plus environment are a complete configuration.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv("TWINBOT_CONFIG"); p != "" {
		return p
	}
	for _, p := range searchPath {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// decodeFile overlays the file onto cfg. The extension picks the format;
// TOML files may not contain keys the Config does not know.
func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(filepath.Ext(path), ".toml") {
		return yaml.Unmarshal(data, cfg)
	}
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return err
	}
	if extra := md.Undecoded(); len(extra) > 0 {
		return fmt.Errorf("unknown keys: %v", extra)
	}
	return nil
}

// envBinding maps one environment variable onto the config.
type envBinding struct {
	name  string
	apply func(cfg *Config, value string) error
}

var envBindings = []envBinding{
	{"TWINBOT_PORT", intVar(func(c *Config) *int { return &c.Server.Port })},
	{"TWINBOT_STORAGE", stringVar(func(c *Config) *string { return &c.Storage.Type })},
	{"TWINBOT_SQLITE_PATH", stringVar(func(c *Config) *string { return &c.Storage.SQLite.Path })},
	{"TWINBOT_POSTGRES_DSN", stringVar(func(c *Config) *string { return &c.Storage.Postgres.DSN })},
	{"TWINBOT_SIM_COMMAND", stringVar(func(c *Config) *string { return &c.Simulation.Command })},
	// JSON so that arguments may contain spaces.
	{"TWINBOT_SIM_ARGS", jsonVar(func(c *Config) *[]string { return &c.Simulation.Args })},
	{"TWINBOT_SIM_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Simulation.Timeout })},
	{"TWINBOT_SIM_FAILURE_MODE", stringVar(func(c *Config) *string { return &c.Simulation.FailureMode })},
	{"TWINBOT_CORPUS", func(c *Config, v string) error { c.Chatbot.Corpus = splitList(v); return nil }},
	{"TWINBOT_DEFAULT_RESPONSE", stringVar(func(c *Config) *string { return &c.Chatbot.DefaultResponse })},
	{"TWINBOT_AUTH_TYPE", stringVar(func(c *Config) *string { return &c.Auth.Type })},
	{"TWINBOT_API_KEYS", jsonVar(func(c *Config) *[]APIKeyConfig { return &c.Auth.APIKeys })},
}

// applyEnv applies every set, non-empty binding. All malformed values are
// reported together.
func applyEnv(cfg *Config) error {
	var errs []error
	for _, b := range envBindings {
		v := os.Getenv(b.name)
		if v == "" {
			continue
		}
		if err := b.apply(cfg, v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.name, err))
		}
	}
	return errors.Join(errs...)
}

func stringVar(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

func intVar(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err == nil {
			*field(c) = n
		}
		return err
	}
}

func durationVar(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err == nil {
			*field(c) = d
		}
		return err
	}
}

func jsonVar[T any](field func(*Config) *T) func(*Config, string) error {
	return func(c *Config, v string) error {
		var out T
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return err
		}
		*field(c) = out
		return nil
	}
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// resolveSecrets fills each value that is empty from its *_file
// companion. An explicit value wins over the file.
func resolveSecrets(cfg *Config) error {
	pg := &cfg.Storage.Postgres
	if err := fromFile(&pg.DSN, pg.DSNFile, "storage.postgres.dsn_file"); err != nil {
		return err
	}
	for i := range cfg.Auth.APIKeys {
		k := &cfg.Auth.APIKeys[i]
		if err := fromFile(&k.Key, k.KeyFile, fmt.Sprintf("auth.api_keys[%d].key_file", i)); err != nil {
			return err
		}
	}
	return nil
}

func fromFile(dst *string, path, field string) error {
	if path == "" || *dst != "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*dst = strings.TrimSpace(string(data))
	return nil
}
