// Package walkforward re-optimises MACD periods on rolling windows and
// scores each choice on the data that follows it.
package walkforward

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"macdlab/backtest"
	"macdlab/model"
	"macdlab/optimize"
)

var ErrTooShort = errors.New("series shorter than one window")

// Window holds half-open index ranges into the series.
type Window struct {
	OptStart  int `json:"opt_start"`
	OptEnd    int `json:"opt_end"`
	TestStart int `json:"test_start"`
	TestEnd   int `json:"test_end"`
}

// Windows tiles n points into optimise/test pairs. Windows start at 0 and
// advance by testLen; a window is emitted while at least optLen+testLen
// points remain.
func Windows(n, optLen, testLen int) []Window {
	if optLen <= 0 || testLen <= 0 {
		return nil
	}
	var out []Window
	for start := 0; n-start >= optLen+testLen; start += testLen {
		out = append(out, Window{
			OptStart:  start,
			OptEnd:    start + optLen,
			TestStart: start + optLen,
			TestEnd:   start + optLen + testLen,
		})
	}
	return out
}

type Config struct {
	OptimizationWindow int `yaml:"optimization_window" json:"optimization_window" validate:"gt=0"`
	TestWindow         int `yaml:"test_window" json:"test_window" validate:"gt=0"`
	// Workers bounds concurrent windows; <= 0 uses GOMAXPROCS.
	Workers int `yaml:"workers" json:"workers"`
	// Warmup computes test-window indicators over the preceding optimisation
	// window as well, scoring only the test rows.
	Warmup   bool             `yaml:"warmup" json:"warmup"`
	Optimize optimize.Options `yaml:"optimize" json:"optimize"`
	Backtest backtest.Options `yaml:"backtest" json:"backtest"`
	Logger   *zap.Logger      `yaml:"-" json:"-" validate:"-"`
}

func DefaultConfig() Config {
	return Config{
		OptimizationWindow: 252,
		TestWindow:         63,
		Optimize:           optimize.DefaultOptions(),
		Backtest:           backtest.DefaultOptions(),
	}
}

// Result is the out-of-sample record of one window.
type Result struct {
	Window            Window             `json:"window"`
	WindowStart       time.Time          `json:"window_start"`
	WindowEnd         time.Time          `json:"window_end"`
	Params            model.ParameterSet `json:"params"`
	InSampleSharpe    float64            `json:"in_sample_sharpe"`
	OutOfSampleReturn float64            `json:"out_of_sample_return"`
	OutOfSampleSharpe float64            `json:"out_of_sample_sharpe"`
	Trades            int                `json:"trades"`
	Fallback          bool               `json:"fallback"`
	FallbackReason    string             `json:"fallback_reason,omitempty"`
}

// Run evaluates every window of s. Windows are independent and run
// concurrently; results keep window order.
func Run(ctx context.Context, s model.PriceSeries, cfg Config) ([]Result, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	windows := Windows(s.Len(), cfg.OptimizationWindow, cfg.TestWindow)
	if len(windows) == 0 {
		return nil, fmt.Errorf("%s: %d points for a %d+%d window: %w",
			s.Symbol, s.Len(), cfg.OptimizationWindow, cfg.TestWindow, ErrTooShort)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, len(windows))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, w := range windows {
		g.Go(func() error {
			r, err := runWindow(ctx, s, w, cfg, logger)
			if err != nil {
				return fmt.Errorf("window %d [%d,%d): %w", i, w.TestStart, w.TestEnd, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func runWindow(ctx context.Context, s model.PriceSeries, w Window, cfg Config, logger *zap.Logger) (Result, error) {
	opts := cfg.Optimize
	opts.Logger = logger.With(zap.Int("test_start", w.TestStart))
	opt, err := optimize.Series(ctx, s.Slice(w.OptStart, w.OptEnd), cfg.Backtest, opts)
	if err != nil {
		return Result{}, err
	}

	from, evalStart := 0, w.TestStart
	if cfg.Warmup {
		from, evalStart = w.TestStart-w.OptStart, w.OptStart
	}
	bt := cfg.Backtest
	bt.OmitPoints = false
	res, err := backtest.Run(s.Slice(evalStart, w.TestEnd), opt.Params, bt)
	if err != nil {
		return Result{}, err
	}
	m := backtest.MetricsFrom(res, from)

	out := Result{
		Window:            w,
		WindowStart:       s.Points[w.TestStart].Time,
		WindowEnd:         s.Points[w.TestEnd-1].Time,
		Params:            opt.Params,
		InSampleSharpe:    opt.Sharpe,
		OutOfSampleReturn: m.TotalReturn,
		OutOfSampleSharpe: m.SharpeRatio,
		Trades:            m.Trades,
		Fallback:          opt.Fallback,
		FallbackReason:    opt.Reason,
	}
	logger.Debug("walk-forward window",
		zap.Time("start", out.WindowStart),
		zap.Stringer("params", out.Params),
		zap.Float64("oos_sharpe", out.OutOfSampleSharpe),
		zap.Bool("fallback", out.Fallback))
	return out, nil
}

// Summary aggregates window results.
type Summary struct {
	Windows          int     `json:"windows"`
	MeanSharpe       float64 `json:"mean_out_of_sample_sharpe"`
	MeanReturn       float64 `json:"mean_out_of_sample_return"`
	PositiveFraction float64 `json:"positive_fraction"`
	Fallbacks        int     `json:"fallbacks"`
	CompoundedReturn float64 `json:"compounded_return"`
}

func Summarize(results []Result) Summary {
	s := Summary{Windows: len(results)}
	if len(results) == 0 {
		return s
	}
	eq := 1.0
	positive := 0
	for _, r := range results {
		s.MeanSharpe += r.OutOfSampleSharpe
		s.MeanReturn += r.OutOfSampleReturn
		if r.OutOfSampleReturn > 0 {
			positive++
		}
		if r.Fallback {
			s.Fallbacks++
		}
		eq *= 1 + r.OutOfSampleReturn
	}
	n := float64(len(results))
	s.MeanSharpe /= n
	s.MeanReturn /= n
	s.PositiveFraction = float64(positive) / n
	s.CompoundedReturn = eq - 1
	return s
}
