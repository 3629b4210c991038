package portfolio

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"macdlab/backtest"
	"macdlab/broker"
	"macdlab/model"
)

// AssetSummary is the end-of-run state of one symbol.
type AssetSummary struct {
	Symbol        string             `json:"symbol"`
	Params        model.ParameterSet `json:"params"`
	Weight        float64            `json:"weight"`
	Signal        float64            `json:"signal"`
	Optimizations int                `json:"optimizations"`
}

type EquityPoint struct {
	Time     time.Time `json:"time"`
	Equity   float64   `json:"equity"`
	Drawdown float64   `json:"drawdown"`
}

type SimulationResult struct {
	RunID        string           `json:"run_id"`
	Ticks        int              `json:"ticks"`
	Rebalances   int              `json:"rebalances"`
	Orders       int              `json:"orders"`
	BreakerTrips int              `json:"breaker_trips"`
	Reoptimized  int              `json:"reoptimized"`
	Metrics      backtest.Metrics `json:"metrics"`
	Exposure     float64          `json:"exposure"`
	MaxDrawdown  float64          `json:"max_drawdown"`
	Assets       []AssetSummary   `json:"assets"`
	Equity       []EquityPoint    `json:"equity"`
}

// Align returns the timestamps present in every series, in order.
func Align(series map[string]model.PriceSeries, symbols []string) ([]Tick, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols")
	}
	count := make(map[time.Time]int)
	closes := make(map[time.Time]map[string]float64)
	for _, sym := range symbols {
		s, ok := series[sym]
		if !ok {
			return nil, fmt.Errorf("no series for %s", sym)
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		for _, p := range s.Points {
			t := p.Time.UTC()
			count[t]++
			if closes[t] == nil {
				closes[t] = make(map[string]float64, len(symbols))
			}
			closes[t][sym] = p.Close
		}
	}
	var ticks []Tick
	for t, n := range count {
		if n == len(symbols) {
			ticks = append(ticks, Tick{Time: t, Closes: closes[t]})
		}
	}
	sort.Slice(ticks, func(i, j int) bool { return ticks[i].Time.Before(ticks[j].Time) })
	if len(ticks) == 0 {
		return nil, fmt.Errorf("series share no timestamps")
	}
	return ticks, nil
}

// Simulate replays aligned history through a fresh engine. The benchmark
// for beta and market return is the equal-weighted basket.
func Simulate(ctx context.Context, series map[string]model.PriceSeries, cfg Config, sink broker.Sink) (SimulationResult, error) {
	ticks, err := Align(series, cfg.Symbols)
	if err != nil {
		return SimulationResult{}, err
	}
	eng, err := NewEngine(cfg, sink)
	if err != nil {
		return SimulationResult{}, err
	}

	res := SimulationResult{RunID: eng.RunID().String(), Ticks: len(ticks)}
	var strat, bench []float64
	var prev map[string]float64
	for i, tick := range ticks {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		before := eng.Equity()
		d, err := eng.OnTick(ctx, tick)
		if err != nil {
			return res, fmt.Errorf("tick %s: %w", tick.Time.Format("2006-01-02"), err)
		}
		if i > 0 {
			strat = append(strat, d.Equity/before-1)
			var b float64
			for _, sym := range cfg.Symbols {
				b += tick.Closes[sym]/prev[sym] - 1
			}
			bench = append(bench, b/float64(len(cfg.Symbols)))
		}
		prev = tick.Closes
		if d.Rebalanced {
			res.Rebalances++
		}
		if d.BreakerTripped {
			res.BreakerTrips++
		}
		res.Orders += len(d.Targets)
		res.Reoptimized += len(d.Reoptimized)
		res.Equity = append(res.Equity, EquityPoint{Time: tick.Time, Equity: d.Equity, Drawdown: d.Drawdown})
	}

	res.Metrics = backtest.ComputeMetrics(strat, bench)
	res.Metrics.Trades = res.Orders
	res.MaxDrawdown = eng.Tracker().MaxDrawdown()
	for _, a := range eng.Assets() {
		res.Exposure += math.Abs(a.Weight)
		res.Assets = append(res.Assets, AssetSummary{
			Symbol:        a.Symbol,
			Params:        a.Params,
			Weight:        a.Weight,
			Signal:        a.Signal,
			Optimizations: a.Optimizations,
		})
	}
	return res, nil
}
