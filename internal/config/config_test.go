package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("RETAILSIGHT_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Server.RequestTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 3, cfg.Analytics.DefaultClusters)
	assert.Equal(t, 30, cfg.Analytics.DefaultPeriods)
	assert.Equal(t, 60, cfg.Analytics.DefaultChurnThreshold)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RETAILSIGHT_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("RETAILSIGHT_SERVER_PORT", "9090")
	t.Setenv("RETAILSIGHT_LOGGING_LEVEL", "debug")
	t.Setenv("RETAILSIGHT_ANALYTICS_DEFAULT_PERIODS", "14")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 14, cfg.Analytics.DefaultPeriods)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 8888
logging:
  level: warn
uploads:
  dir: /tmp/uploads
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))
	t.Setenv("RETAILSIGHT_CONFIG_FILE", configPath)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "/tmp/uploads", cfg.Uploads.Dir)
	// env defaults still fill fields the file omits
	assert.Equal(t, 3, cfg.Analytics.DefaultClusters)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "invalid log level"},
		{"bad clusters", func(c *Config) { c.Analytics.DefaultClusters = 0 }, "clusters"},
		{"bad periods", func(c *Config) { c.Analytics.DefaultPeriods = -1 }, "periods"},
		{"bad threshold", func(c *Config) { c.Analytics.DefaultChurnThreshold = 0 }, "churn threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("RETAILSIGHT_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
			cfg, err := Load()
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
