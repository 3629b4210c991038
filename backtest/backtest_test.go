package backtest

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macdlab/feed"
	"macdlab/model"
	"macdlab/signal"
)

func series(sym string, closes []float64) model.PriceSeries {
	start := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	s := model.PriceSeries{Symbol: sym}
	for i, c := range closes {
		s.Points = append(s.Points, model.PricePoint{Time: start.AddDate(0, 0, i), Close: c})
	}
	return s
}

func TestStrategyReturnsUsesPriorPosition(t *testing.T) {
	closes := []float64{100, 110, 99}
	positions := []float64{1, 1, 0}
	r := StrategyReturns(closes, positions, 0.01)
	assert.True(t, math.IsNaN(r[0]))
	assert.InDelta(t, 0.10, r[1], 1e-12)
	// held long into the drop, then paid to exit
	assert.InDelta(t, -0.10-0.01, r[2], 1e-12)
}

func TestStrategyReturnsNoCostWithoutChange(t *testing.T) {
	closes := []float64{100, 101, 102, 103}
	r := StrategyReturns(closes, []float64{-1, -1, -1, -1}, 0.5)
	mkt := MarketReturns(closes)
	for i := 1; i < len(closes); i++ {
		assert.InDelta(t, -mkt[i], r[i], 1e-15)
	}
}

func TestNoLookAhead(t *testing.T) {
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 100 + 5*math.Sin(float64(i)/5)
	}
	base, err := Run(series("X", closes), model.ParameterSet{Fast: 3, Slow: 8, Signal: 3}, DefaultOptions())
	require.NoError(t, err)

	bumped := append([]float64(nil), closes...)
	bumped[len(bumped)-1] *= 1.5
	alt, err := Run(series("X", bumped), model.ParameterSet{Fast: 3, Slow: 8, Signal: 3}, DefaultOptions())
	require.NoError(t, err)

	for i := 0; i < len(closes)-1; i++ {
		assert.Equal(t, base.Points[i].Position, alt.Points[i].Position, "position %d", i)
		assert.Equal(t, base.Points[i].Return, alt.Points[i].Return, "return %d", i)
	}
}

func TestComputeMetricsEmpty(t *testing.T) {
	assert.Equal(t, Metrics{}, ComputeMetrics(nil, nil))
}

func TestComputeMetricsValues(t *testing.T) {
	strat := []float64{0.01, -0.02, 0.03, 0}
	m := ComputeMetrics(strat, []float64{0.01, 0.01, 0.01, 0.01})

	total := 1.01*0.98*1.03 - 1
	assert.InDelta(t, total, m.TotalReturn, 1e-12)
	assert.InDelta(t, math.Pow(1+total, 252.0/4)-1, m.AnnualReturn, 1e-9)
	assert.InDelta(t, m.AnnualReturn/m.Volatility, m.SharpeRatio, 1e-12)
	assert.InDelta(t, 0.25, m.WinRate, 1e-12)
	assert.InDelta(t, math.Pow(1.01, 4)-1, m.MarketReturn, 1e-12)
	assert.Equal(t, 0.0, m.Beta, "constant market has zero variance")
	assert.Equal(t, 4, m.Observations)
}

func TestMaxDrawdownIncludesStartingEquity(t *testing.T) {
	assert.InDelta(t, -0.2, MaxDrawdown([]float64{-0.2, 0.1}), 1e-12)
	assert.InDelta(t, -0.5, MaxDrawdown([]float64{0.1, -0.5}), 1e-12)
	assert.Equal(t, 0.0, MaxDrawdown([]float64{0.1, 0.1}))
}

func TestBeta(t *testing.T) {
	mkt := []float64{0.01, -0.02, 0.015, 0.003}
	strat := make([]float64, len(mkt))
	for i, v := range mkt {
		strat[i] = 2 * v
	}
	assert.InDelta(t, 2.0, ComputeMetrics(strat, mkt).Beta, 1e-12)
	assert.Equal(t, 0.0, ComputeMetrics(strat[:1], mkt[:1]).Beta)
}

func TestRunFlatSeries(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 50
	}
	res, err := Run(series("FLAT", closes), model.DefaultParameters, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Metrics.TotalReturn)
	assert.Equal(t, 0.0, res.Metrics.SharpeRatio)
	assert.Equal(t, 0, res.Metrics.Trades)
	assert.Nil(t, res.Points[0].Return)
	assert.Equal(t, 1.0, res.Points[59].Equity)
}

func TestRunUptrend(t *testing.T) {
	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	res, err := Run(series("UP", closes), model.DefaultParameters, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, signal.Bullish, res.Points[25].Trigger)
	assert.Equal(t, 1, res.Metrics.Trades)
	assert.InDelta(t, DefaultTransactionCost, res.Metrics.TotalCost, 1e-15)
	assert.Greater(t, res.Metrics.TotalReturn, 0.0)
	assert.Greater(t, res.Metrics.MarketReturn, res.Metrics.TotalReturn)
}

func TestRunRejectsBadInput(t *testing.T) {
	_, err := Run(series("X", []float64{1, 2, 3}), model.ParameterSet{Fast: 9, Slow: 9, Signal: 3}, DefaultOptions())
	assert.ErrorIs(t, err, model.ErrInvalidParameters)

	_, err = Run(model.PriceSeries{Symbol: "E"}, model.DefaultParameters, DefaultOptions())
	assert.ErrorIs(t, err, model.ErrEmptySeries)

	_, err = Run(series("X", []float64{1, 2}), model.DefaultParameters, Options{Policy: "nope"})
	assert.Error(t, err)
}

func TestRunnerReportsPerSymbolErrors(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 10 + float64(i%7)
	}
	r := NewRunner(feed.NewMemoryProvider(series("A", closes)), nil)
	out, err := r.Run(context.Background(), Job{
		Symbols: []string{"A", "MISSING"},
		Params:  model.ParameterSet{Fast: 3, Slow: 10, Signal: 4},
		Options: DefaultOptions(),
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Empty(t, out[0].Errors)
	assert.NotEmpty(t, out[1].Errors)

	var buf bytes.Buffer
	require.NoError(t, WriteResultsJSON(&buf, out))
	var decoded []Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "MISSING", decoded[1].Symbol)

	_, err = r.Run(context.Background(), Job{})
	assert.Error(t, err)
}
