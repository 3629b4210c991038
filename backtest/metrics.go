package backtest

import (
	"math"

	"macdlab/indicator"
)

// MarketReturns returns simple close-to-close returns aligned to closes;
// index 0 is NaN.
func MarketReturns(closes []float64) []float64 {
	out := make([]float64, len(closes))
	if len(out) == 0 {
		return out
	}
	out[0] = math.NaN()
	for i := 1; i < len(closes); i++ {
		out[i] = closes[i]/closes[i-1] - 1
	}
	return out
}

// StrategyReturns applies the position held over the previous period to this
// period's market return, less cost on the position change:
//
//	r[i] = pos[i-1]*mkt[i] - cost*|pos[i]-pos[i-1]|
//
// Index 0 is NaN. The same-period position is never applied to its own return.
func StrategyReturns(closes, positions []float64, cost float64) []float64 {
	n := min(len(closes), len(positions))
	mkt := MarketReturns(closes[:n])
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	out[0] = math.NaN()
	for i := 1; i < n; i++ {
		out[i] = positions[i-1]*mkt[i] - cost*math.Abs(positions[i]-positions[i-1])
	}
	return out
}

// Defined drops NaN entries.
func Defined(r []float64) []float64 {
	out := make([]float64, 0, len(r))
	for _, v := range r {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Cumulative compounds r from a starting equity of 1.0. NaNs leave equity
// unchanged.
func Cumulative(r []float64) []float64 {
	out := make([]float64, len(r))
	eq := 1.0
	for i, v := range r {
		if !math.IsNaN(v) {
			eq *= 1 + v
		}
		out[i] = eq
	}
	return out
}

// MaxDrawdown is the worst peak-to-trough move of the compounded curve,
// including the starting equity of 1.0. Result is <= 0.
func MaxDrawdown(r []float64) float64 {
	peak, eq, dd := 1.0, 1.0, 0.0
	for _, v := range r {
		if math.IsNaN(v) {
			continue
		}
		eq *= 1 + v
		if eq > peak {
			peak = eq
		}
		if d := eq/peak - 1; d < dd {
			dd = d
		}
	}
	return dd
}

// ComputeMetrics summarises defined strategy returns against defined market
// returns of the same length. Empty input yields zero metrics.
func ComputeMetrics(strategy, market []float64) Metrics {
	n := len(strategy)
	if n == 0 {
		return Metrics{}
	}

	total := compound(strategy)
	annual := -1.0
	if 1+total > 0 {
		annual = math.Pow(1+total, float64(indicator.TradingDays)/float64(n)) - 1
	}
	vol := indicator.StdDev(strategy, 1) * math.Sqrt(indicator.TradingDays)
	sharpe := 0.0
	if vol > 0 {
		sharpe = annual / vol
	}

	wins := 0
	for _, v := range strategy {
		if v > 0 {
			wins++
		}
	}

	return Metrics{
		TotalReturn:  total,
		MarketReturn: compound(market),
		AnnualReturn: annual,
		Volatility:   vol,
		SharpeRatio:  sharpe,
		MaxDrawdown:  MaxDrawdown(strategy),
		WinRate:      float64(wins) / float64(n),
		Beta:         beta(strategy, market),
		Observations: n,
	}
}

func compound(r []float64) float64 {
	eq := 1.0
	for _, v := range r {
		eq *= 1 + v
	}
	return eq - 1
}

func beta(strategy, market []float64) float64 {
	n := min(len(strategy), len(market))
	if n < 2 {
		return 0
	}
	s, m := strategy[:n], market[:n]
	ms, mm := indicator.Mean(s), indicator.Mean(m)
	var cov, v float64
	for i := 0; i < n; i++ {
		cov += (s[i] - ms) * (m[i] - mm)
		v += (m[i] - mm) * (m[i] - mm)
	}
	if v == 0 {
		return 0
	}
	return cov / v
}

// MetricsFrom recomputes the metrics of res counting only rows at index
// from and later. res must carry its Points.
func MetricsFrom(res Result, from int) Metrics {
	if from < 0 {
		from = 0
	}
	if from >= len(res.Points) {
		return Metrics{}
	}
	var strat, mkt []float64
	var trades int
	var cost float64
	for i := from; i < len(res.Points); i++ {
		pt := res.Points[i]
		if i > 0 {
			prev := res.Points[i-1]
			if pt.Return != nil {
				if pt.Position != prev.Position {
					trades++
				}
				strat = append(strat, *pt.Return)
				mkt = append(mkt, pt.Close/prev.Close-1)
				cost += math.Abs(pt.Position - prev.Position)
			}
		}
	}
	m := ComputeMetrics(strat, mkt)
	m.Trades = trades
	m.TotalCost = cost * res.TransactionCost
	return m
}
