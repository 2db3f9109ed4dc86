// Package config holds process settings for the conversion service.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is read from an optional YAML file, then overridden by environment variables.
type Config struct {
	DatabaseURL     string        `yaml:"database_url,omitempty"`
	Port            string        `yaml:"port,omitempty"`
	RulesetDir      string        `yaml:"ruleset_dir,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes,omitempty"`
}

// Defaults returns the settings used when nothing is configured
func Defaults() Config {
	return Config{
		Port:            "8080",
		ShutdownTimeout: 30 * time.Second,
		MaxBodyBytes:    32 << 20,
	}
}

// Load reads a Config from a YAML file on top of Defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by caller
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// FromEnv builds the Config from CSVETL_CONFIG (a YAML file) and the
// DATABASE_URL, PORT, RULESET_DIR, SHUTDOWN_TIMEOUT and MAX_BODY_BYTES variables.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := Defaults()
	if path := getenv("CSVETL_CONFIG"); path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	if v := getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := getenv("RULESET_DIR"); v != "" {
		cfg.RulesetDir = v
	}
	if v := getenv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
		}
		cfg.ShutdownTimeout = d
	}
	if v := getenv("MAX_BODY_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_BODY_BYTES: %w", err)
		}
		cfg.MaxBodyBytes = n
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WithDotEnv layers the variables of a dotenv file under getenv: a variable
// set in the process environment wins. A missing file is not an error.
func WithDotEnv(path string, getenv func(string) string) (func(string) string, error) {
	values, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return getenv, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return func(key string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return values[key]
	}, nil
}

// Validate checks the configuration for valid values.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("max body bytes must be positive")
	}
	return nil
}

// Addr is the listen address for the HTTP server
func (c *Config) Addr() string {
	return ":" + c.Port
}
