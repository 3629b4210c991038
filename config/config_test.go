package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macdlab/model"
	"macdlab/optimize"
	"macdlab/signal"
)

func TestParseRunConfigDefaults(t *testing.T) {
	cfg, err := ParseRunConfig([]byte("symbols: [SPY]\n"))
	require.NoError(t, err)
	assert.Equal(t, model.DefaultParameters, cfg.Params)
	assert.Equal(t, signal.CumulativeClip, cfg.Backtest.Policy)
	assert.Equal(t, 0.001, cfg.Backtest.TransactionCost)
	assert.Equal(t, 252, cfg.WalkForward.OptimizationWindow)
	assert.Equal(t, 63, cfg.WalkForward.TestWindow)
	assert.Equal(t, []string{"SPY"}, cfg.Portfolio.Symbols)
	assert.Equal(t, optimize.OverlaySpace(), cfg.Portfolio.Optimize.Space)
	assert.Equal(t, optimize.DefaultSpace(), cfg.WalkForward.Optimize.Space)
}

func TestParseRunConfigOverrides(t *testing.T) {
	raw := `
data:
  dir: /srv/prices
  start: 2020-01-01
  end: 2024-01-01
symbols: [" SPY", QQQ, SPY, ""]
strategy:
  fast: 8
  slow: 21
  signal: 5
  policy: stateful_crossover
  transaction_cost: 0
optimize:
  method: grid
  max_evaluations: 0
  timeout: 2m
  space:
    fast: {min: 5, max: 10}
    slow: {min: 20, max: 30}
    signal: {min: 5, max: 9}
walkforward:
  optimization_window: 126
  test_window: 21
  warmup: true
portfolio:
  max_drawdown: 0.10
  rebalance_every_days: 1
  reoptimize: false
  filters:
    trend: {window: 50, band: 0.01}
`
	cfg, err := ParseRunConfig([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "/srv/prices", cfg.DataDir)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), cfg.Start)
	assert.Equal(t, []string{"SPY", "QQQ"}, cfg.Symbols)
	assert.Equal(t, model.ParameterSet{Fast: 8, Slow: 21, Signal: 5}, cfg.Params)
	assert.Equal(t, signal.StatefulCrossover, cfg.Backtest.Policy)
	assert.Equal(t, 0.0, cfg.Backtest.TransactionCost)
	assert.Equal(t, optimize.Grid, cfg.Optimize.Method)
	assert.Equal(t, 2*time.Minute, cfg.Optimize.Timeout)
	assert.Equal(t, 10, cfg.Optimize.Space.Fast.Max)
	assert.Equal(t, cfg.Params, cfg.Optimize.Initial)
	assert.Equal(t, cfg.Optimize, cfg.WalkForward.Optimize)
	assert.True(t, cfg.WalkForward.Warmup)
	assert.Equal(t, 126, cfg.WalkForward.OptimizationWindow)
	assert.Equal(t, 0.10, cfg.Portfolio.MaxDrawdown)
	assert.Equal(t, 1, cfg.Portfolio.RebalanceEvery)
	assert.False(t, cfg.Portfolio.Reoptimize)
	require.NotNil(t, cfg.Portfolio.Filters.Trend)
	assert.Equal(t, 50, cfg.Portfolio.Filters.Trend.Window)
	assert.Nil(t, cfg.Portfolio.Filters.Volatility)
	assert.Equal(t, 0.0, cfg.Portfolio.TransactionCost)
}

func TestParseRunConfigRejects(t *testing.T) {
	cases := map[string]string{
		"fast >= slow":   "strategy: {fast: 30, slow: 20}",
		"bad policy":     "strategy: {policy: martingale}",
		"bad method":     "optimize: {method: annealing}",
		"bad timeout":    "optimize: {timeout: soon}",
		"bad bounds":     "optimize: {space: {fast: {min: 10, max: 5}, slow: {min: 20, max: 30}, signal: {min: 5, max: 9}}}",
		"negative cost":  "strategy: {transaction_cost: -0.1}",
		"end before":     "data: {start: 2024-01-01, end: 2023-01-01}",
		"bad date":       "data: {start: yesterday}",
		"capacity":       "portfolio: {min_history: 300}",
		"drawdown":       "portfolio: {max_drawdown: 1.5}",
		"not yaml":       "symbols: [",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRunConfig([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestLoadRunConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backtest.yaml")
	require.NoError(t, os.WriteFile(path, []byte("symbols: [XLK]\n"), 0o644))
	cfg, err := LoadRunConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"XLK"}, cfg.Symbols)

	_, err = LoadRunConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "macdlab.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\nkafka:\n  topic: weights\n"), 0o644))
	t.Setenv("MACDLAB_LOGGING_LEVEL", "debug")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "weights", cfg.Kafka.Topic)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "weights", cfg.Kafka.Broker().Topic)
}

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MACDLAB_DATA_DIR=/from/env\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("MACDLAB_DATA_DIR") })

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.Data.Dir)
}
