package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Empty(t, cfg.GoldAPI.APIKey, "a missing key is a valid state")
	require.Equal(t, 60, cfg.Poll.QuoteIntervalSec)
	require.Equal(t, 300, cfg.Poll.CityIntervalSec)
}

func TestLoad_JSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server": {"port": "9090"},
		"goldapi": {"api_key": "from-file", "max_requests_per_minute": 10},
		"history": {"apply_city_variance": true}
	}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Server.Port)
	require.Equal(t, "from-file", cfg.GoldAPI.APIKey)
	require.Equal(t, 10, cfg.GoldAPI.MaxRequestsPerMinute)
	require.True(t, cfg.History.ApplyCityVariance)
	require.Equal(t, 10, cfg.Server.RequestTimeoutSec, "unset fields keep defaults")
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cache:
  ttl_sec: 30
  redis_url: redis://localhost:6379/0
poll:
  currency: usd
  city: Mumbai
trend:
  gold: change
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 30, cfg.Cache.TTLSeconds)
	require.Equal(t, "redis://localhost:6379/0", cfg.Cache.RedisURL)
	require.Equal(t, "Mumbai", cfg.Poll.City)
	require.Equal(t, "change", cfg.Trend.Gold)
	require.Equal(t, "change", cfg.Trend.Silver)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("NEXT_PUBLIC_GOLD_API_KEY", "public")
	t.Setenv("GOLD_API_KEY", "secret")
	t.Setenv("PORT", "7000")
	t.Setenv("QUOTE_CACHE_TTL_SEC", "0")
	t.Setenv("GOLDAPI_BURST", "0")
	t.Setenv("QUOTE_POLL_SEC", "not-a-number")
	t.Setenv("HISTORY_APPLY_CITY_VARIANCE", "yes")
	t.Setenv("GOLDAPI_WAIT_FOR_TOKEN", "1")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "secret", cfg.GoldAPI.APIKey)
	require.Equal(t, "7000", cfg.Server.Port)
	require.Equal(t, 0, cfg.Cache.TTLSeconds)
	require.Equal(t, 1, cfg.GoldAPI.Burst, "burst below 1 is ignored")
	require.Equal(t, 60, cfg.Poll.QuoteIntervalSec)
	require.True(t, cfg.History.ApplyCityVariance)
	require.True(t, cfg.GoldAPI.WaitForToken)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LOG_LEVEL=debug\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("LOG_LEVEL") })

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"server":`), 0o600))
	_, err := Load(bad)
	require.ErrorContains(t, err, "parse config")

	t.Setenv("POLL_CITY", "Atlantis")
	_, err = Load("")
	require.ErrorContains(t, err, "poll.city")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("does-not-exist.json")
	require.NoError(t, err)
	require.Equal(t, Default().Server.Port, cfg.Server.Port)
}
