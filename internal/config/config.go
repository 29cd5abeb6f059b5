// Package config loads the server configuration from a YAML file, a .env
// file and GOPOOL_* environment variables, in that order of precedence
// (later sources win).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/jzx17/gopool/pkg/worker"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration.
type Config struct {
	// Addr is the TCP address the file server listens on
	Addr string `yaml:"addr"`

	// Workers is the fixed pool size
	Workers int `yaml:"workers"`

	// DocRoot is the directory holding hello.html and 404.html
	DocRoot string `yaml:"doc_root"`

	// SleepDelay is how long the /sleep route stalls its worker
	SleepDelay time.Duration `yaml:"sleep_delay"`

	// MaxConnections stops the accept loop after this many connections; 0 means unbounded
	MaxConnections int `yaml:"max_connections"`

	// MetricsAddr enables the prometheus endpoint when non-empty
	MetricsAddr string `yaml:"metrics_addr"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// PanicPolicy is "recover" or "terminate"
	PanicPolicy string `yaml:"panic_policy"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Addr:        "127.0.0.1:7878",
		Workers:     5,
		DocRoot:     "www",
		SleepDelay:  5 * time.Second,
		LogLevel:    "info",
		LogFormat:   "text",
		PanicPolicy: "recover",
	}
}

// Load builds a Config from defaults, the optional YAML file at path, an
// optional .env file in the working directory and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := LoadYAML(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadYAML loads configuration from a YAML file
func LoadYAML(path string, target interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read YAML file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are skipped; variables already set are kept.
func LoadDotEnv(files ...string) error {
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}

	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from GOPOOL_* environment variables
func (c *Config) ApplyEnv() error {
	c.Addr = getEnv("GOPOOL_ADDR", c.Addr)
	c.DocRoot = getEnv("GOPOOL_DOC_ROOT", c.DocRoot)
	c.MetricsAddr = getEnv("GOPOOL_METRICS_ADDR", c.MetricsAddr)
	c.LogLevel = getEnv("GOPOOL_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("GOPOOL_LOG_FORMAT", c.LogFormat)
	c.PanicPolicy = getEnv("GOPOOL_PANIC_POLICY", c.PanicPolicy)

	var err error
	if c.Workers, err = getEnvInt("GOPOOL_WORKERS", c.Workers); err != nil {
		return err
	}
	if c.MaxConnections, err = getEnvInt("GOPOOL_MAX_CONNECTIONS", c.MaxConnections); err != nil {
		return err
	}
	if v := os.Getenv("GOPOOL_SLEEP_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid GOPOOL_SLEEP_DELAY %q: %w", v, err)
		}
		c.SleepDelay = d
	}
	return nil
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.MaxConnections < 0 {
		errs = append(errs, fmt.Errorf("max_connections must not be negative, got %d", c.MaxConnections))
	}
	if c.SleepDelay < 0 {
		errs = append(errs, fmt.Errorf("sleep_delay must not be negative, got %v", c.SleepDelay))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}
	if _, err := worker.ParsePanicPolicy(c.PanicPolicy); err != nil {
		errs = append(errs, fmt.Errorf("panic_policy: %w", err))
	}

	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
