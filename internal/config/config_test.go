package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
general:
  TICK_SIZE: 0.015625
  MAX_EQUITY_DD_USD_LIMIT: 1500
trading:
  mode: dry_run
  symbol: ZN
config_horaire:
  path: optimizer.json
data:
  kind: csv
  path: data/zn_5m.csv
features:
  names: [norm_dist_to_vwap, atr]
`

func write(t *testing.T, dir, name, body string) string {
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadMergesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(write(t, dir, "config.yaml", sample), "")
	require.NoError(t, err)

	assert.Equal(t, 0.015625, cfg.General.TickSize)
	assert.Equal(t, 31.25, cfg.General.TickValue, "default kept")
	require.NotNil(t, cfg.General.MaxDrawdownUSD)
	assert.Equal(t, 1500.0, *cfg.General.MaxDrawdownUSD)
	assert.Equal(t, "ZN", cfg.Trading.Symbol)
	assert.Equal(t, "MARKET", cfg.Trading.OrderType)
	assert.Equal(t, []string{"norm_dist_to_vwap", "atr"}, cfg.Features.Names)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout())
	assert.Equal(t, time.Second, cfg.Data.PollInterval())
	assert.Equal(t, "state/checkpoint.json", cfg.State.Checkpoint)
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()
	env := map[string]string{
		"MODE":            "prod",
		"SYMBOL":          "ZB",
		"ACCOUNT_ID":      "ACC-9",
		"BROKER_BASE_URL": "https://broker.example/api",
		"CHECKPOINT_PATH": "/tmp/cp.json",
		"TICK_VALUE":      "15.625",
	}
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))
	assert.Equal(t, "prod", cfg.Trading.Mode)
	assert.Equal(t, "ZB", cfg.Trading.Symbol)
	assert.Equal(t, "ACC-9", cfg.API.AccountID)
	assert.Equal(t, "/tmp/cp.json", cfg.State.Checkpoint)
	assert.Equal(t, 15.625, cfg.General.TickValue)

	env["TICK_SIZE"] = "abc"
	assert.Error(t, cfg.ApplyEnv(func(k string) string { return env[k] }))
}

func TestLoadEnvFileDoesNotOverrideProcessEnv(t *testing.T) {
	dir := t.TempDir()
	cfgPath := write(t, dir, "config.yaml", sample)
	envPath := write(t, dir, ".env", "SYMBOL=FROM_FILE\n")
	t.Setenv("SYMBOL", "FROM_PROCESS")

	cfg, err := Load(cfgPath, envPath)
	require.NoError(t, err)
	assert.Equal(t, "FROM_PROCESS", cfg.Trading.Symbol)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.General.TickSize = 0
	cfg.Trading.Mode = "prod"
	cfg.Data.Kind = "ws"
	cfg.API.BackoffMaxMS = 10

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		"general.TICK_SIZE failed gt",
		"trading.symbol failed required",
		"config_horaire.path failed required",
		"data.url failed required_if",
		"api.backoff_max_ms failed gtefield",
		"api.base_url is required in prod mode",
		"api.account_id is required in prod mode",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
