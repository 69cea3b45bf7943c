package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Temp dir so no config.yaml or .env is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "https://pub.orcid.org/v3.0", cfg.ORCID.BaseURL)
	assert.Equal(t, "https://api.openalex.org", cfg.OpenAlex.BaseURL)
	assert.Equal(t, 200, cfg.OpenAlex.PerPage)
	assert.Equal(t, 1000, cfg.Pace.DelayMS)
	assert.Equal(t, 168, cfg.Cache.TTLHours)
	assert.Equal(t, 1, cfg.Ingest.Concurrency)
	assert.Equal(t, "weights.yaml", cfg.Scoring.WeightsPath)
	assert.Equal(t, "profiles/", cfg.Export.Prefix)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  database_url: postgres://localhost/scholar
log:
  level: debug
  format: console
server:
  port: 9090
ingest:
  concurrency: 4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/scholar", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Ingest.Concurrency)
	// Defaults still apply for unset values
	assert.Equal(t, 1000, cfg.Pace.DelayMS)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
pace:
  delay_ms: 250
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("SCHOLAR_LOG_LEVEL", "warn")
	t.Setenv("SCHOLAR_PACE_DELAY_MS", "50")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 50, cfg.Pace.DelayMS)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("SCHOLAR_STORE_DATABASE_URL", "")
	require.NoError(t, os.Unsetenv("SCHOLAR_STORE_DATABASE_URL"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("SCHOLAR_STORE_DATABASE_URL=postgres://dotenv/scholar\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("SCHOLAR_STORE_DATABASE_URL") }) //nolint:errcheck

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://dotenv/scholar", cfg.Store.DatabaseURL)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	cfg.Ingest.Concurrency = 2
	cfg.Server.Port = 8080

	err := cfg.Validate("ingest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	assert.NoError(t, cfg.Validate("weights"))

	cfg.Store.DatabaseURL = "postgres://localhost/scholar"
	assert.NoError(t, cfg.Validate("ingest"))
	assert.NoError(t, cfg.Validate("serve"))

	cfg.Server.Port = 0
	cfg.Ingest.Concurrency = 0
	assert.ErrorContains(t, cfg.Validate("serve"), "server.port")
	assert.ErrorContains(t, cfg.Validate("ingest"), "ingest.concurrency")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
