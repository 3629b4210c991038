package portfolio

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"macdlab/model"
	"macdlab/optimize"
	"macdlab/signal"
)

// Config of the overlay. Cadences are in calendar days.
type Config struct {
	Symbols []string `yaml:"symbols" json:"symbols" validate:"dive,required"`

	MaxPositionSize    float64 `yaml:"max_position_size" json:"max_position_size" validate:"gt=0,lte=1"`
	MaxDrawdown        float64 `yaml:"max_drawdown" json:"max_drawdown" validate:"gt=0,lt=1"`
	BaseVol            float64 `yaml:"base_vol" json:"base_vol" validate:"gt=0"`
	VolFloor           float64 `yaml:"vol_floor" json:"vol_floor" validate:"gt=0"`
	CapMultiplier      float64 `yaml:"cap_multiplier" json:"cap_multiplier" validate:"gt=0"`
	VolatilityWindow   int     `yaml:"volatility_window" json:"volatility_window" validate:"gt=1"`
	RebalanceThreshold float64 `yaml:"rebalance_threshold" json:"rebalance_threshold" validate:"gte=0"`
	RebalanceEvery     int     `yaml:"rebalance_every_days" json:"rebalance_every_days" validate:"gte=0"`
	OptimizeEvery      int     `yaml:"optimize_every_days" json:"optimize_every_days" validate:"gte=0"`
	MinHistory         int     `yaml:"min_history" json:"min_history" validate:"gt=0"`
	HistoryCapacity    int     `yaml:"history_capacity" json:"history_capacity" validate:"gtefield=MinHistory"`
	TransactionCost    float64 `yaml:"transaction_cost" json:"transaction_cost" validate:"gte=0"`
	// Reoptimize disables in-flight parameter search when false.
	Reoptimize bool `yaml:"reoptimize" json:"reoptimize"`
	// Workers bounds the per-symbol phase; <= 0 means one goroutine per symbol.
	Workers int `yaml:"workers" json:"workers"`

	InitialParams model.ParameterSet `yaml:"initial_params" json:"initial_params"`
	Filters       Filters            `yaml:"filters" json:"filters"`
	Optimize      optimize.Options   `yaml:"optimize" json:"optimize"`
	Logger        *zap.Logger        `yaml:"-" json:"-" validate:"-"`
}

// Filters configures the confirmation pipeline; a nil entry disables that
// stage.
type Filters struct {
	Volatility *signal.VolatilityFilter `yaml:"volatility" json:"volatility"`
	Trend      *signal.TrendFilter      `yaml:"trend" json:"trend"`
	Oscillator *signal.OscillatorFilter `yaml:"oscillator" json:"oscillator"`
}

func DefaultFilters() Filters {
	return Filters{
		Volatility: &signal.VolatilityFilter{Window: 20, Threshold: 0.30, Dampen: 0.5},
		Trend:      &signal.TrendFilter{Window: 20, Band: 0.02},
		Oscillator: &signal.OscillatorFilter{Period: 14, Overbought: 70, Oversold: 30},
	}
}

// Pipeline orders the enabled filters volatility, trend, oscillator.
func (f Filters) Pipeline() signal.Pipeline {
	var p signal.Pipeline
	if f.Volatility != nil {
		p = append(p, *f.Volatility)
	}
	if f.Trend != nil {
		p = append(p, *f.Trend)
	}
	if f.Oscillator != nil {
		p = append(p, *f.Oscillator)
	}
	return p
}

func DefaultConfig(symbols ...string) Config {
	opt := optimize.DefaultOptions()
	opt.Space = optimize.OverlaySpace()
	opt.MaxEvaluations = 200
	opt.Timeout = 5 * time.Second
	return Config{
		Symbols:            symbols,
		MaxPositionSize:    0.125,
		MaxDrawdown:        0.15,
		BaseVol:            0.15,
		VolFloor:           0.05,
		CapMultiplier:      2.0,
		VolatilityWindow:   20,
		RebalanceThreshold: 0.01,
		RebalanceEvery:     5,
		OptimizeEvery:      21,
		MinHistory:         63,
		HistoryCapacity:    252,
		TransactionCost:    0.001,
		Reoptimize:         true,
		InitialParams:      model.DefaultParameters,
		Filters:            DefaultFilters(),
		Optimize:           opt,
	}
}

func (c Config) validate() error {
	if len(c.Symbols) == 0 {
		return errors.New("portfolio: no symbols")
	}
	seen := make(map[string]bool, len(c.Symbols))
	for _, s := range c.Symbols {
		if seen[s] {
			return errors.New("portfolio: duplicate symbol " + s)
		}
		seen[s] = true
	}
	if c.MaxPositionSize <= 0 || c.VolFloor <= 0 || c.BaseVol <= 0 || c.CapMultiplier <= 0 {
		return errors.New("portfolio: sizing constants must be positive")
	}
	if c.HistoryCapacity < 2 {
		return errors.New("portfolio: history capacity must be at least 2")
	}
	return c.InitialParams.Validate()
}

func days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }
