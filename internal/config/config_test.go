package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Automation.MatchTimeout)
	assert.Equal(t, 10, cfg.Automation.DefaultPageSize)
	assert.Equal(t, 1000, cfg.Automation.MaxPageSize)
	assert.Equal(t, "taskboard:automation", cfg.Automation.NotifyChannel)
	assert.False(t, cfg.Redis.Enabled)
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Name: "tb"}
	dsn := d.DSN()
	assert.Contains(t, dsn, "host=db")
	assert.Contains(t, dsn, "port=5433")
	assert.Contains(t, dsn, "sslmode=disable")
	assert.Contains(t, dsn, "TimeZone=UTC")
}

func TestLoad_OverlaysYAML(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	yml := `
server:
  port: 9090
automation:
  match_timeout: 2s
  max_page_size: 50
  dry_run: true
security:
  rate_limiting:
    enabled: true
    endpoints:
      - prefix: /api/automation
        requests_per_minute: 30
        burst: 5
`
	viper.SetConfigType("yaml")
	require.NoError(t, viper.ReadConfig(strings.NewReader(yml)))

	cfg := Load()
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 2*time.Second, cfg.Automation.MatchTimeout)
	assert.Equal(t, 50, cfg.Automation.MaxPageSize)
	assert.Equal(t, 10, cfg.Automation.DefaultPageSize)
	assert.True(t, cfg.Automation.DryRun)
	require.Len(t, cfg.Security.RateLimiting.Endpoints, 1)
	assert.Equal(t, "/api/automation", cfg.Security.RateLimiting.Endpoints[0].Prefix)
	assert.Equal(t, 30, cfg.Security.RateLimiting.Endpoints[0].RequestsPerMinute)
}

func TestConfigureLogger(t *testing.T) {
	l := logrus.New()
	require.NoError(t, ConfigureLogger(l, LogConfig{Level: "debug", Format: "text", Output: "stdout"}))
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
	_, ok := l.Formatter.(*logrus.TextFormatter)
	assert.True(t, ok)

	require.NoError(t, ConfigureLogger(l, LogConfig{Level: "nope"}))
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
	_, ok = l.Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok)
}

func TestConfigureLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	l := logrus.New()
	require.NoError(t, ConfigureLogger(l, LogConfig{Level: "info", Output: "file", FilePath: path, MaxSize: 1}))
	l.Info("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(data, []byte(`"msg":"hello"`)))
}
