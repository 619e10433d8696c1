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
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "USD", cfg.Pipeline.BaseCurrency)
	assert.Equal(t, "GBP", cfg.Pipeline.TargetCurrency)
	assert.Equal(t, "bank_assets", cfg.Pipeline.FilePrefix)
	assert.Equal(t, 30, cfg.Pipeline.RetentionDays)
	assert.Equal(t, 10*time.Second, cfg.Pipeline.LockTimeout)
	assert.Equal(t, "data", cfg.Paths.DataDir)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("BANKFX_PIPELINE_TARGET_CURRENCY", "EUR")
	t.Setenv("BANKFX_PIPELINE_RETENTION_DAYS", "7")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "EUR", cfg.Pipeline.TargetCurrency)
	assert.Equal(t, 7, cfg.Pipeline.RetentionDays)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `pipeline:
  base_currency: EUR
  target_currency: JPY
  file_prefix: bank_assets
  retention_days: 14
paths:
  data_dir: /tmp/bankfx-data
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0644))

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, "EUR", cfg.Pipeline.BaseCurrency)
	assert.Equal(t, "JPY", cfg.Pipeline.TargetCurrency)
	assert.Equal(t, 14, cfg.Pipeline.RetentionDays)
	assert.Equal(t, "/tmp/bankfx-data", cfg.Paths.DataDir)
}

func TestLoad_EnvBeatsFileBeatsDefaults(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `pipeline:
  base_currency: EUR
  retention_days: 14
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0644))
	t.Setenv("BANKFX_PIPELINE_RETENTION_DAYS", "3")

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Pipeline.RetentionDays, "env overrides file")
	assert.Equal(t, "EUR", cfg.Pipeline.BaseCurrency, "file overrides defaults")
	assert.Equal(t, "bank_assets", cfg.Pipeline.FilePrefix, "defaults survive unset keys")
}

func TestLoad_RejectsSameCurrencyPair(t *testing.T) {
	t.Setenv("BANKFX_PIPELINE_TARGET_CURRENCY", "USD")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}

func TestLoad_RejectsInvalidCurrency(t *testing.T) {
	t.Setenv("BANKFX_PIPELINE_TARGET_CURRENCY", "POUND")

	_, err := Load("")
	require.Error(t, err)
}

func TestNewPaths(t *testing.T) {
	paths, err := NewPaths(PathsConfig{DataDir: "/tmp/bankfx", LogsDir: "/tmp/bankfx-logs"})
	require.NoError(t, err)

	assert.Equal(t, "/tmp/bankfx", paths.DataDir)
	assert.Equal(t, filepath.Join("/tmp/bankfx", "raw", "exchange_rates"), paths.ExchangeRatesDir)
	assert.Equal(t, filepath.Join("/tmp/bankfx", "outputs"), paths.OutputsDir)
	assert.Equal(t, filepath.Join("/tmp/bankfx", "outputs", "x.csv"), paths.GetOutputPath("x.csv"))
}

func TestPaths_EnsureDirectories(t *testing.T) {
	base := t.TempDir()
	paths, err := NewPaths(PathsConfig{
		DataDir: filepath.Join(base, "data"),
		LogsDir: filepath.Join(base, "logs"),
	})
	require.NoError(t, err)

	require.NoError(t, paths.EnsureDirectories())

	for _, dir := range []string{paths.BanksDir, paths.ExchangeRatesDir, paths.OutputsDir, paths.LogsDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
