// Package config loads stride's runtime configuration: defaults, then an
// optional YAML file, then STRIDE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Source kinds understood by source.New.
const (
	SourceSimulated     = "simulated"
	SourceCounterFile   = "counter"
	SourceSinceMidnight = "daily"
)

// SourceConfig selects and tunes the step source.
type SourceConfig struct {
	Kind    string `yaml:"kind"`
	Path    string `yaml:"path"`
	Cadence int    `yaml:"cadence"` // simulated: max steps per read
	Seed    int64  `yaml:"seed"`
}

// Config holds application configuration.
type Config struct {
	DBPath           string        `yaml:"db_path"`
	LogLevel         string        `yaml:"log_level"`
	ControlAddress   string        `yaml:"control_address"`
	Source           SourceConfig  `yaml:"source"`
	SampleInterval   time.Duration `yaml:"sample_interval"`
	DayCheckDelay    time.Duration `yaml:"day_check_delay"`
	DayCheckInterval time.Duration `yaml:"day_check_interval"`
	PersistThreshold int64         `yaml:"persist_threshold"`
	NotifyEverySteps int64         `yaml:"notify_every_steps"`
	NotifyInterval   time.Duration `yaml:"notify_interval"`
}

// DefaultConfig returns default configuration values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:       "info",
		ControlAddress: "127.0.0.1:7420",
		Source: SourceConfig{
			Kind:    SourceSimulated,
			Cadence: 30,
			Seed:    1,
		},
		SampleInterval:   10 * time.Second,
		DayCheckDelay:    time.Minute,
		DayCheckInterval: 5 * time.Minute,
		PersistThreshold: 10,
		NotifyEverySteps: 100,
		NotifyInterval:   5 * time.Minute,
	}
}

// DefaultPath returns <user config dir>/stride/config.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("user config dir: %w", err)
	}
	return filepath.Join(dir, "stride", "config.yaml"), nil
}

// Load builds a Config from defaults, the YAML file at path (a missing file
// is not an error) and the environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.DBPath = getEnv("STRIDE_DB_PATH", c.DBPath)
	c.LogLevel = getEnv("STRIDE_LOG_LEVEL", c.LogLevel)
	c.ControlAddress = getEnv("STRIDE_CONTROL_ADDRESS", c.ControlAddress)
	c.Source.Kind = getEnv("STRIDE_SOURCE_KIND", c.Source.Kind)
	c.Source.Path = getEnv("STRIDE_SOURCE_PATH", c.Source.Path)
	c.Source.Cadence = getIntEnv("STRIDE_SOURCE_CADENCE", c.Source.Cadence)
	c.Source.Seed = getInt64Env("STRIDE_SOURCE_SEED", c.Source.Seed)
	c.SampleInterval = getDurationEnv("STRIDE_SAMPLE_INTERVAL", c.SampleInterval)
	c.DayCheckDelay = getDurationEnv("STRIDE_DAY_CHECK_DELAY", c.DayCheckDelay)
	c.DayCheckInterval = getDurationEnv("STRIDE_DAY_CHECK_INTERVAL", c.DayCheckInterval)
	c.PersistThreshold = getInt64Env("STRIDE_PERSIST_THRESHOLD", c.PersistThreshold)
	c.NotifyEverySteps = getInt64Env("STRIDE_NOTIFY_EVERY_STEPS", c.NotifyEverySteps)
	c.NotifyInterval = getDurationEnv("STRIDE_NOTIFY_INTERVAL", c.NotifyInterval)
}

// Validate rejects values the daemon cannot run with.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.Source.Kind {
	case SourceSimulated:
	case SourceCounterFile, SourceSinceMidnight:
		if c.Source.Path == "" {
			return fmt.Errorf("source kind %q requires source.path", c.Source.Kind)
		}
	default:
		return fmt.Errorf("unknown source kind %q", c.Source.Kind)
	}
	if c.SampleInterval <= 0 {
		return fmt.Errorf("sample_interval must be positive, got %s", c.SampleInterval)
	}
	if c.DayCheckDelay <= 0 || c.DayCheckInterval <= 0 {
		return errors.New("day check delay and interval must be positive")
	}
	return nil
}

// ParseLevel accepts debug, info, warn and error.
func ParseLevel(s string) (logrus.Level, error) {
	switch s {
	case "debug":
		return logrus.DebugLevel, nil
	case "info", "":
		return logrus.InfoLevel, nil
	case "warn":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	default:
		return logrus.InfoLevel, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", s)
	}
}

// NewLogger creates a configured logger instance.
func (c *Config) NewLogger() *logrus.Logger {
	level, _ := ParseLevel(c.LogLevel)
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getInt64Env(key string, fallback int64) int64 {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
