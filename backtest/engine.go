package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"go.uber.org/zap"

	"macdlab/feed"
	"macdlab/indicator"
	"macdlab/model"
	"macdlab/signal"
)

// Run backtests one series with fixed parameters.
func Run(s model.PriceSeries, p model.ParameterSet, opts Options) (Result, error) {
	policy, err := opts.policy()
	if err != nil {
		return Result{}, err
	}
	if err := s.Validate(); err != nil {
		return Result{}, err
	}
	frame, err := indicator.Compute(s, p)
	if err != nil {
		return Result{}, err
	}

	closes := s.Closes()
	sig := signal.Generate(frame, policy)
	strat := StrategyReturns(closes, sig.Positions, opts.TransactionCost)
	mkt := MarketReturns(closes)

	m := ComputeMetrics(Defined(strat), Defined(mkt))
	m.Trades = sig.Changes()
	for i := 1; i < len(sig.Positions); i++ {
		m.TotalCost += opts.TransactionCost * math.Abs(sig.Positions[i]-sig.Positions[i-1])
	}

	res := Result{
		Symbol:          s.Symbol,
		Params:          p,
		Policy:          policy.Kind(),
		TransactionCost: opts.TransactionCost,
		Metrics:         m,
	}
	if opts.OmitPoints {
		return res, nil
	}

	equity := Cumulative(strat)
	res.Points = make([]Point, len(closes))
	for i, fp := range frame {
		pt := Point{
			Time:      fp.Time,
			Close:     closes[i],
			MACD:      fp.MACD,
			Signal:    fp.Signal,
			Histogram: fp.Histogram,
			Ready:     fp.Ready,
			Trigger:   sig.Triggers[i],
			Position:  sig.Positions[i],
			Equity:    equity[i],
		}
		if !math.IsNaN(strat[i]) {
			r := strat[i]
			pt.Return = &r
		}
		res.Points[i] = pt
	}
	return res, nil
}

// Job describes a multi-symbol backtest.
type Job struct {
	Symbols []string
	Start   time.Time
	End     time.Time
	Params  model.ParameterSet
	Options Options
}

// Runner loads series from a feed and backtests each symbol.
type Runner struct {
	provider feed.Provider
	logger   *zap.Logger
}

func NewRunner(provider feed.Provider, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{provider: provider, logger: logger}
}

// Run never fails for a single symbol; load or run errors are reported on
// that symbol's Result.
func (r *Runner) Run(ctx context.Context, job Job) ([]Result, error) {
	if len(job.Symbols) == 0 {
		return nil, fmt.Errorf("no symbols configured")
	}

	var out []Result
	for _, sym := range job.Symbols {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		s, err := r.provider.Load(ctx, sym, job.Start, job.End)
		if err != nil {
			r.logger.Warn("load failed", zap.String("symbol", sym), zap.Error(err))
			out = append(out, Result{Symbol: sym, Params: job.Params, Errors: []string{err.Error()}})
			continue
		}
		res, err := Run(s, job.Params, job.Options)
		if err != nil {
			out = append(out, Result{Symbol: sym, Params: job.Params, Errors: []string{err.Error()}})
			continue
		}
		r.logger.Info("backtest done",
			zap.String("symbol", sym),
			zap.Stringer("params", job.Params),
			zap.Float64("sharpe", res.Metrics.SharpeRatio),
			zap.Float64("total_return", res.Metrics.TotalReturn))
		out = append(out, res)
	}
	return out, nil
}

func WriteResultsJSON(w io.Writer, results []Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
