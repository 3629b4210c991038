// Package config loads run files (YAML) and the daemon configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"macdlab/backtest"
	"macdlab/model"
	"macdlab/optimize"
	"macdlab/portfolio"
	"macdlab/signal"
	"macdlab/walkforward"
)

// YAMLConfig is the on-disk shape of a run file. Zero values mean "use the
// default".
type YAMLConfig struct {
	Data struct {
		Dir      string `yaml:"dir"`
		Encoding string `yaml:"encoding"`
		Start    string `yaml:"start"`
		End      string `yaml:"end"`
	} `yaml:"data"`

	Symbols []string `yaml:"symbols"`

	Strategy struct {
		Fast            int      `yaml:"fast"`
		Slow            int      `yaml:"slow"`
		Signal          int      `yaml:"signal"`
		Policy          string   `yaml:"policy"`
		TransactionCost *float64 `yaml:"transaction_cost"`
	} `yaml:"strategy"`

	Optimize struct {
		Method         string          `yaml:"method"`
		MaxEvaluations *int            `yaml:"max_evaluations"`
		Timeout        string          `yaml:"timeout"`
		Space          *optimize.Space `yaml:"space"`
	} `yaml:"optimize"`

	WalkForward struct {
		OptimizationWindow int   `yaml:"optimization_window"`
		TestWindow         int   `yaml:"test_window"`
		Workers            int   `yaml:"workers"`
		Warmup             *bool `yaml:"warmup"`
	} `yaml:"walkforward"`

	Portfolio struct {
		MaxPositionSize    float64            `yaml:"max_position_size"`
		MaxDrawdown        float64            `yaml:"max_drawdown"`
		BaseVol            float64            `yaml:"base_vol"`
		VolFloor           float64            `yaml:"vol_floor"`
		CapMultiplier      float64            `yaml:"cap_multiplier"`
		VolatilityWindow   int                `yaml:"volatility_window"`
		RebalanceThreshold *float64           `yaml:"rebalance_threshold"`
		RebalanceEvery     *int               `yaml:"rebalance_every_days"`
		OptimizeEvery      *int               `yaml:"optimize_every_days"`
		MinHistory         int                `yaml:"min_history"`
		HistoryCapacity    int                `yaml:"history_capacity"`
		Reoptimize         *bool              `yaml:"reoptimize"`
		Workers            int                `yaml:"workers"`
		Filters            *portfolio.Filters `yaml:"filters"`
		Space              *optimize.Space    `yaml:"space"`
		InitialCash        float64            `yaml:"initial_cash"`
	} `yaml:"portfolio"`
}

// RunConfig is a fully defaulted run description shared by every command.
type RunConfig struct {
	DataDir      string
	DataEncoding string
	Start        time.Time
	End          time.Time
	Symbols      []string `validate:"dive,required"`
	InitialCash  float64  `validate:"gte=0"`

	Params      model.ParameterSet
	Backtest    backtest.Options
	Optimize    optimize.Options
	WalkForward walkforward.Config
	Portfolio   portfolio.Config
}

func DefaultRunConfig() RunConfig {
	return RunConfig{
		DataDir:     "data",
		InitialCash: 100_000,
		Params:      model.DefaultParameters,
		Backtest:    backtest.DefaultOptions(),
		Optimize:    optimize.DefaultOptions(),
		WalkForward: walkforward.DefaultConfig(),
		Portfolio:   portfolio.DefaultConfig(),
	}
}

func LoadRunConfig(path string) (RunConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("read config: %w", err)
	}
	return ParseRunConfig(raw)
}

// ParseRunConfig overlays a YAML run file on DefaultRunConfig and validates
// the result.
func ParseRunConfig(raw []byte) (RunConfig, error) {
	var yc YAMLConfig
	if err := yaml.Unmarshal(raw, &yc); err != nil {
		return RunConfig{}, fmt.Errorf("parse yaml: %w", err)
	}

	cfg := DefaultRunConfig()

	if yc.Data.Dir != "" {
		cfg.DataDir = yc.Data.Dir
	}
	cfg.DataEncoding = yc.Data.Encoding
	if yc.Data.Start != "" {
		t, err := time.ParseInLocation("2006-01-02", yc.Data.Start, time.UTC)
		if err != nil {
			return RunConfig{}, fmt.Errorf("invalid data.start: %w", err)
		}
		cfg.Start = t
	}
	if yc.Data.End != "" {
		t, err := time.ParseInLocation("2006-01-02", yc.Data.End, time.UTC)
		if err != nil {
			return RunConfig{}, fmt.Errorf("invalid data.end: %w", err)
		}
		cfg.End = t
	}
	cfg.Symbols = NormalizeSymbols(yc.Symbols)

	st := yc.Strategy
	if st.Fast > 0 {
		cfg.Params.Fast = st.Fast
	}
	if st.Slow > 0 {
		cfg.Params.Slow = st.Slow
	}
	if st.Signal > 0 {
		cfg.Params.Signal = st.Signal
	}
	if st.Policy != "" {
		cfg.Backtest.Policy = signal.PolicyKind(st.Policy)
	}
	if st.TransactionCost != nil {
		cfg.Backtest.TransactionCost = *st.TransactionCost
	}

	op := yc.Optimize
	if op.Method != "" {
		cfg.Optimize.Method = optimize.Method(op.Method)
	}
	if op.MaxEvaluations != nil {
		cfg.Optimize.MaxEvaluations = *op.MaxEvaluations
	}
	if op.Timeout != "" {
		d, err := time.ParseDuration(op.Timeout)
		if err != nil {
			return RunConfig{}, fmt.Errorf("invalid optimize.timeout: %w", err)
		}
		cfg.Optimize.Timeout = d
	}
	if op.Space != nil {
		cfg.Optimize.Space = *op.Space
	}

	wf := yc.WalkForward
	if wf.OptimizationWindow > 0 {
		cfg.WalkForward.OptimizationWindow = wf.OptimizationWindow
	}
	if wf.TestWindow > 0 {
		cfg.WalkForward.TestWindow = wf.TestWindow
	}
	if wf.Workers > 0 {
		cfg.WalkForward.Workers = wf.Workers
	}
	if wf.Warmup != nil {
		cfg.WalkForward.Warmup = *wf.Warmup
	}

	overlayPortfolio(&cfg, yc)
	cfg.Sync()

	if err := cfg.Validate(); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}

func overlayPortfolio(cfg *RunConfig, yc YAMLConfig) {
	pf := yc.Portfolio
	p := &cfg.Portfolio
	if pf.MaxPositionSize > 0 {
		p.MaxPositionSize = pf.MaxPositionSize
	}
	if pf.MaxDrawdown > 0 {
		p.MaxDrawdown = pf.MaxDrawdown
	}
	if pf.BaseVol > 0 {
		p.BaseVol = pf.BaseVol
	}
	if pf.VolFloor > 0 {
		p.VolFloor = pf.VolFloor
	}
	if pf.CapMultiplier > 0 {
		p.CapMultiplier = pf.CapMultiplier
	}
	if pf.VolatilityWindow > 0 {
		p.VolatilityWindow = pf.VolatilityWindow
	}
	if pf.RebalanceThreshold != nil {
		p.RebalanceThreshold = *pf.RebalanceThreshold
	}
	if pf.RebalanceEvery != nil {
		p.RebalanceEvery = *pf.RebalanceEvery
	}
	if pf.OptimizeEvery != nil {
		p.OptimizeEvery = *pf.OptimizeEvery
	}
	if pf.MinHistory > 0 {
		p.MinHistory = pf.MinHistory
	}
	if pf.HistoryCapacity > 0 {
		p.HistoryCapacity = pf.HistoryCapacity
	}
	if pf.Reoptimize != nil {
		p.Reoptimize = *pf.Reoptimize
	}
	if pf.Workers > 0 {
		p.Workers = pf.Workers
	}
	if pf.Filters != nil {
		p.Filters = *pf.Filters
	}
	if pf.Space != nil {
		p.Optimize.Space = *pf.Space
	}
	if pf.InitialCash > 0 {
		cfg.InitialCash = pf.InitialCash
	}
}

// Sync copies the shared settings (symbols, parameters, costs and the
// optimiser options) into the per-engine configs. Call it after changing RunConfig
// fields directly.
func (c *RunConfig) Sync() {
	c.Optimize.Initial = c.Params
	c.WalkForward.Backtest = c.Backtest
	c.WalkForward.Optimize = c.Optimize
	c.Portfolio.Symbols = c.Symbols
	c.Portfolio.InitialParams = c.Params
	c.Portfolio.TransactionCost = c.Backtest.TransactionCost
}

var validate = validator.New()

// Validate checks struct constraints and cross-field rules.
func (c RunConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Params.Validate(); err != nil {
		return err
	}
	if _, err := signal.ParsePolicy(string(c.Backtest.Policy)); err != nil {
		return err
	}
	switch c.Optimize.Method {
	case optimize.Pattern, optimize.Grid:
	default:
		return fmt.Errorf("unknown optimize.method %q", c.Optimize.Method)
	}
	if c.Backtest.TransactionCost < 0 {
		return fmt.Errorf("strategy.transaction_cost must be >= 0")
	}
	if !c.Start.IsZero() && !c.End.IsZero() && c.End.Before(c.Start) {
		return fmt.Errorf("data.end %s is before data.start %s",
			c.End.Format("2006-01-02"), c.Start.Format("2006-01-02"))
	}
	return nil
}

// NormalizeSymbols trims, drops empties and de-duplicates, keeping order.
func NormalizeSymbols(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
