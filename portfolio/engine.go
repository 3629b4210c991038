// Package portfolio runs MACD signals for several symbols and turns them
// into risk-limited target weights.
package portfolio

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"macdlab/broker"
	"macdlab/signal"
)

// Tick carries the closes observed at one timestamp. Symbols missing from
// Closes keep their state and weight.
type Tick struct {
	Time   time.Time
	Closes map[string]float64
}

// Decision describes what one tick did.
type Decision struct {
	Time            time.Time             `json:"time"`
	PortfolioReturn float64               `json:"portfolio_return"`
	Equity          float64               `json:"equity"`
	Drawdown        float64               `json:"drawdown"`
	Rebalanced      bool                  `json:"rebalanced"`
	BreakerTripped  bool                  `json:"breaker_tripped"`
	Reoptimized     []string              `json:"reoptimized,omitempty"`
	Targets         []broker.TargetWeight `json:"targets,omitempty"`
	Turnover        float64               `json:"turnover"`
}

type Engine struct {
	cfg     Config
	runID   uuid.UUID
	policy  signal.Policy
	filters signal.Pipeline
	sink    broker.Sink
	logger  *zap.Logger

	assets  []*AssetState
	tracker *DrawdownTracker
	equity  float64

	started       bool
	lastRebalance time.Time
}

// NewEngine validates cfg. A nil sink discards targets.
func NewEngine(cfg Config, sink broker.Sink) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		cfg:     cfg,
		runID:   uuid.New(),
		policy:  signal.MustPolicy(signal.StatefulCrossover),
		filters: cfg.Filters.Pipeline(),
		sink:    sink,
		tracker: NewDrawdownTracker(1),
		equity:  1,
	}
	e.logger = logger.With(zap.String("run_id", e.runID.String()))
	for _, s := range cfg.Symbols {
		e.assets = append(e.assets, newAssetState(s, cfg))
	}
	return e, nil
}

func (e *Engine) RunID() uuid.UUID { return e.runID }

func (e *Engine) Equity() float64 { return e.equity }

func (e *Engine) Tracker() *DrawdownTracker { return e.tracker }

// Assets returns the per-symbol state in configuration order. Callers must
// not mutate it while a tick is running.
func (e *Engine) Assets() []*AssetState { return e.assets }

// Weights returns the current executed weights.
func (e *Engine) Weights() map[string]float64 {
	out := make(map[string]float64, len(e.assets))
	for _, a := range e.assets {
		out[a.Symbol] = a.Weight
	}
	return out
}

// OnTick ingests one timestamp: mark to market with the weights held since
// the last tick, update every symbol's signal in parallel, then on rebalance
// ticks size, apply the drawdown breaker and publish the weight changes.
func (e *Engine) OnTick(ctx context.Context, tick Tick) (Decision, error) {
	if !e.started {
		e.started = true
		for _, a := range e.assets {
			a.LastOptimized = tick.Time
		}
	}

	var pr float64
	for _, a := range e.assets {
		a.updated = false
		c, ok := tick.Closes[a.Symbol]
		if !ok || c <= 0 || math.IsNaN(c) || math.IsInf(c, 0) {
			continue
		}
		a.push(tick.Time, c)
		pr += a.Weight * a.lastReturn
	}
	e.equity *= 1 + pr
	dd := e.tracker.Update(e.equity)

	d := Decision{Time: tick.Time, PortfolioReturn: pr, Drawdown: dd}

	reopt := make([]bool, len(e.assets))
	g, gctx := errgroup.WithContext(ctx)
	if e.cfg.Workers > 0 {
		g.SetLimit(e.cfg.Workers)
	}
	for i, a := range e.assets {
		if !a.updated {
			continue
		}
		g.Go(func() error {
			reopt[i] = a.maybeReoptimize(gctx, tick.Time, e.cfg, e.logger.With(zap.String("symbol", a.Symbol)))
			if err := a.step(e.policy, e.filters); err != nil {
				return fmt.Errorf("%s: %w", a.Symbol, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return d, err
	}
	for i, ok := range reopt {
		if ok {
			d.Reoptimized = append(d.Reoptimized, e.assets[i].Symbol)
		}
	}

	if e.dueForRebalance(tick.Time) {
		if err := e.rebalance(ctx, tick.Time, &d); err != nil {
			return d, err
		}
	}
	d.Equity = e.equity
	d.Drawdown = e.tracker.Drawdown()
	return d, nil
}

func (e *Engine) dueForRebalance(now time.Time) bool {
	return e.lastRebalance.IsZero() || now.Sub(e.lastRebalance) >= days(e.cfg.RebalanceEvery)
}

// rebalance runs after every symbol has been updated: size, then the
// drawdown breaker, then the threshold. Longs closed by the breaker bypass
// the threshold.
func (e *Engine) rebalance(ctx context.Context, now time.Time, d *Decision) error {
	targets := make([]float64, len(e.assets))
	for i, a := range e.assets {
		if a.Signal == 0 {
			continue
		}
		size := e.cfg.MaxPositionSize
		if vol, ok := a.volatility(e.cfg.VolatilityWindow); ok {
			size = e.cfg.PositionSize(vol)
		}
		targets[i] = a.Signal * size
	}

	forced := make([]bool, len(e.assets))
	if e.tracker.Drawdown() > e.cfg.MaxDrawdown {
		d.BreakerTripped = true
		for i, a := range e.assets {
			if targets[i] > 0 || (a.Weight > 0 && targets[i] == 0) {
				targets[i] = 0
				forced[i] = true
			}
		}
		e.logger.Warn("drawdown breaker tripped",
			zap.Time("time", now),
			zap.Float64("drawdown", e.tracker.Drawdown()),
			zap.Float64("limit", e.cfg.MaxDrawdown))
	}

	var out []broker.TargetWeight
	var turnover float64
	changed := make([]bool, len(e.assets))
	for i, a := range e.assets {
		delta := targets[i] - a.Weight
		if delta == 0 || (!forced[i] && math.Abs(delta) <= e.cfg.RebalanceThreshold) {
			continue
		}
		changed[i] = true
		turnover += math.Abs(delta)
		out = append(out, broker.TargetWeight{
			RunID:    e.runID,
			Symbol:   a.Symbol,
			Time:     now,
			Weight:   decimal.NewFromFloat(targets[i]).Round(6),
			Previous: decimal.NewFromFloat(a.Weight).Round(6),
			Params:   a.Params,
		})
	}

	if len(out) > 0 && e.sink != nil {
		if err := e.sink.Publish(ctx, out); err != nil {
			return fmt.Errorf("publish targets: %w", err)
		}
	}
	for i, a := range e.assets {
		if changed[i] {
			a.Weight = targets[i]
		}
	}

	e.equity *= 1 - e.cfg.TransactionCost*turnover
	e.tracker.Update(e.equity)
	e.lastRebalance = now
	d.Rebalanced = true
	d.Targets = out
	d.Turnover = turnover
	return nil
}
