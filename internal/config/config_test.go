package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, SourceSimulated, cfg.Source.Kind)
	assert.Equal(t, time.Minute, cfg.DayCheckDelay)
	assert.Equal(t, 5*time.Minute, cfg.DayCheckInterval)
	assert.Equal(t, int64(10), cfg.PersistThreshold)
	assert.Equal(t, int64(100), cfg.NotifyEverySteps)
	assert.Equal(t, 5*time.Minute, cfg.NotifyInterval)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
db_path: /tmp/steps.db
log_level: debug
source:
  kind: counter
  path: /sys/class/pedometer/steps
sample_interval: 30s
day_check_interval: 2m
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/steps.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, SourceCounterFile, cfg.Source.Kind)
	assert.Equal(t, "/sys/class/pedometer/steps", cfg.Source.Path)
	assert.Equal(t, 30*time.Second, cfg.SampleInterval)
	assert.Equal(t, 2*time.Minute, cfg.DayCheckInterval)
	// untouched fields keep defaults
	assert.Equal(t, time.Minute, cfg.DayCheckDelay)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0o644))

	t.Setenv("STRIDE_LOG_LEVEL", "error")
	t.Setenv("STRIDE_PERSIST_THRESHOLD", "25")
	t.Setenv("STRIDE_SAMPLE_INTERVAL", "not-a-duration")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, int64(25), cfg.PersistThreshold)
	assert.Equal(t, 10*time.Second, cfg.SampleInterval, "bad env value falls back")
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "source: [unclosed"},
		{"bad level", "log_level: loud"},
		{"unknown source", "source:\n  kind: gps"},
		{"counter without path", "source:\n  kind: counter"},
		{"zero interval", "sample_interval: 0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		level string
		want  logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"info", logrus.InfoLevel},
		{"warn", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.level}
			logger := cfg.NewLogger()

			assert.Equal(t, tt.want, logger.GetLevel())
			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			require.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}

func TestDefaultPath(t *testing.T) {
	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", filepath.Base(path))
	assert.Equal(t, "stride", filepath.Base(filepath.Dir(path)))
}
