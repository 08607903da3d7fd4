package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"twelve_data", "finnhub", "alpha_vantage"}, cfg.Providers.Order)
	assert.Equal(t, "0 0 */2 * * *", cfg.Schedule.RefreshCron)
	assert.Equal(t, "0 0 2 * * *", cfg.Schedule.SweepCron)
	assert.Equal(t, "0 0 3 * * 0", cfg.Schedule.RetentionCron)
	assert.Equal(t, "data/marketvault.db", cfg.Database.SQLitePath)
	assert.Equal(t, 5, cfg.FailureThreshold)
	assert.Equal(t, 2, cfg.FetchDelaySeconds)
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
providers:
  order: [finnhub, twelve_data]
  finnhub_key: from-yaml
redis:
  addr: redis:6379
priority_symbols: [AAPL, SAP.DE]
cache_ttl_seconds:
  quote: 60
`), 0o644))

	t.Setenv("FINNHUB_API_KEY", "from-env")
	t.Setenv("PRIORITY_SYMBOLS", "msft, nvda")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"finnhub", "twelve_data"}, cfg.Providers.Order)
	assert.Equal(t, "from-env", cfg.Providers.FinnhubKey, "env wins over yaml")
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{"MSFT", "NVDA"}, cfg.PrioritySymbols)
	assert.Equal(t, 60, cfg.CacheTTLSeconds["quote"])
}

func TestValidateRequiresAProviderKey(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())

	cfg.Providers.AlphaVantageKey = "key"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.Providers.TwelveDataKey = "key"
	cfg.Providers.Order = []string{"yahoo"}
	assert.Error(t, cfg.Validate())
}
