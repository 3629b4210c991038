package portfolio

import (
	"context"
	"time"

	"go.uber.org/zap"

	"macdlab/backtest"
	"macdlab/indicator"
	"macdlab/internal/ring"
	"macdlab/model"
	"macdlab/optimize"
	"macdlab/signal"
)

// AssetState is owned by its symbol. Only the goroutine handling that
// symbol during a tick writes to it.
type AssetState struct {
	Symbol  string
	Prices  *ring.Buffer[model.PricePoint]
	Returns *ring.Buffer[float64]
	Params  model.ParameterSet

	// acc is the position policy's running state.
	acc float64
	// RawSignal is the policy position before filters; Signal after.
	RawSignal float64
	Signal    float64
	// Weight is the last weight sent to the sink.
	Weight float64

	LastOptimized time.Time
	Optimizations int
	lastReturn    float64
	updated       bool
}

func newAssetState(symbol string, cfg Config) *AssetState {
	return &AssetState{
		Symbol:  symbol,
		Prices:  ring.New[model.PricePoint](cfg.HistoryCapacity),
		Returns: ring.New[float64](cfg.HistoryCapacity),
		Params:  cfg.InitialParams,
	}
}

// push appends a close and its return against the previous close.
func (a *AssetState) push(t time.Time, close float64) {
	a.lastReturn, a.updated = 0, true
	if prev, ok := a.Prices.Last(); ok && prev.Close > 0 {
		a.lastReturn = close/prev.Close - 1
		a.Returns.Push(a.lastReturn)
	}
	a.Prices.Push(model.PricePoint{Time: t, Close: close})
}

func (a *AssetState) series() model.PriceSeries {
	return model.PriceSeries{Symbol: a.Symbol, Points: a.Prices.Slice()}
}

func (a *AssetState) closes() []float64 {
	pts := a.Prices.Slice()
	out := make([]float64, len(pts))
	for i, p := range pts {
		out[i] = p.Close
	}
	return out
}

// maybeReoptimize replaces Params when the cadence has elapsed, enough
// history is buffered and the search succeeds. Fallback results keep the
// current parameters.
func (a *AssetState) maybeReoptimize(ctx context.Context, now time.Time, cfg Config, logger *zap.Logger) bool {
	if !cfg.Reoptimize || a.Prices.Len() < cfg.MinHistory || now.Sub(a.LastOptimized) < days(cfg.OptimizeEvery) {
		return false
	}
	a.LastOptimized = now

	opts := cfg.Optimize
	opts.Initial = a.Params
	opts.Logger = logger
	bt := backtest.Options{Policy: signal.StatefulCrossover, TransactionCost: cfg.TransactionCost}
	res, err := optimize.Series(ctx, a.series(), bt, opts)
	if err != nil {
		logger.Warn("reoptimisation failed", zap.Error(err))
		return false
	}
	if res.Fallback {
		return false
	}
	if res.Params != a.Params {
		logger.Info("parameters reoptimised",
			zap.Stringer("from", a.Params),
			zap.Stringer("to", res.Params),
			zap.Float64("sharpe", res.Sharpe))
	}
	a.Params = res.Params
	a.Optimizations++
	return true
}

// step advances the policy on the latest crossover and applies filters.
func (a *AssetState) step(policy signal.Policy, filters signal.Pipeline) error {
	trigger := signal.None
	if a.Prices.Len() >= a.Params.Slow {
		f, err := indicator.ComputeCloses(a.closes(), a.Params)
		if err != nil {
			return err
		}
		trigger = signal.Last(f)
	}
	a.acc, a.RawSignal = policy.Step(a.acc, trigger)
	a.Signal = filters.Apply(a.RawSignal, signal.FilterInput{
		Prices:  a.closes(),
		Returns: a.Returns.Slice(),
	})
	return nil
}

// volatility is the annualized population stdev of the trailing window, or
// false when the window is not full.
func (a *AssetState) volatility(window int) (float64, bool) {
	if a.Returns.Len() < window {
		return 0, false
	}
	return indicator.AnnualizedVolatility(a.Returns.Tail(window)), true
}
