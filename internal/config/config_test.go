package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(old) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Augment.Enabled)
	assert.Equal(t, "medium", cfg.Augment.MinConfidence)
	assert.Equal(t, 30, cfg.Augment.CacheTTLDays)
	assert.Equal(t, 100, cfg.Augment.DailyCallLimit)
	assert.Equal(t, 10, cfg.Augment.MaxBatchSize)
	assert.Equal(t, 20, cfg.FactsAPI.TimeoutSecs)
	assert.Equal(t, 3, cfg.Resilience.RetryMaxAttempts)
	assert.Equal(t, 500, cfg.Resilience.RetryBackoffMs)
	assert.Equal(t, 5, cfg.Resilience.BreakerFailureThreshold)
	assert.Equal(t, 30, cfg.Resilience.BreakerResetSecs)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_FromFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
augment:
  enabled: true
  min_confidence: high
  daily_call_limit: 25
factsapi:
  key: pplx-test-123
store:
  driver: postgres
  database_url: postgres://localhost/fundfacts
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Augment.Enabled)
	assert.Equal(t, "high", cfg.Augment.MinConfidence)
	assert.Equal(t, 25, cfg.Augment.DailyCallLimit)
	assert.Equal(t, "postgres", cfg.Store.Driver)
}

func TestLoad_EnabledRequiresKey(t *testing.T) {
	dir := chdirTemp(t)

	yaml := "augment:\n  enabled: true\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "factsapi.key is required")
}

func TestLoad_RejectsBadConfidence(t *testing.T) {
	dir := chdirTemp(t)

	yaml := "augment:\n  min_confidence: low\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_confidence")
}

func TestInitLogger_BadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	require.Error(t, err)
}
