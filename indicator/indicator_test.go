package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macdlab/model"
)

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestEMAConstantSeries(t *testing.T) {
	for _, p := range []int{1, 2, 9, 26, 50} {
		ema := EMA(constant(200, 42.5), p)
		require.Len(t, ema, 200)
		assert.InDelta(t, 42.5, ema[len(ema)-1], 1e-12, "period %d", p)
	}
}

func TestEMASeedAndRecursion(t *testing.T) {
	x := []float64{10, 20, 30}
	ema := EMA(x, 3) // alpha = 0.5
	assert.Equal(t, []float64{10, 15, 22.5}, ema)
	assert.Nil(t, EMA(x, 0))
}

func TestSMAWarmup(t *testing.T) {
	sma := SMA([]float64{1, 2, 3, 4}, 2)
	assert.True(t, math.IsNaN(sma[0]))
	assert.Equal(t, []float64{1.5, 2.5, 3.5}, sma[1:])
}

func TestRSIBounds(t *testing.T) {
	up := make([]float64, 30)
	for i := range up {
		up[i] = float64(100 + i)
	}
	rsi := RSI(up, 14)
	require.NotNil(t, rsi)
	assert.True(t, math.IsNaN(rsi[13]))
	assert.Equal(t, 100.0, rsi[29])

	flat := RSI(constant(30, 5), 14)
	assert.Equal(t, 50.0, flat[29])

	assert.Nil(t, RSI(up[:10], 14))
}

func TestStdDevAndVolatility(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	assert.InDelta(t, math.Sqrt(1.25), StdDev(x, 0), 1e-12)
	assert.InDelta(t, math.Sqrt(5.0/3.0), StdDev(x, 1), 1e-12)
	assert.Equal(t, 0.0, StdDev([]float64{1}, 1))
	assert.Equal(t, 0.0, AnnualizedVolatility(nil))
	assert.Equal(t, []float64{0.1}, Returns([]float64{100, 110}))
}

func TestComputeNotReadyForShortSeries(t *testing.T) {
	f, err := ComputeCloses(constant(10, 100), model.ParameterSet{Fast: 12, Slow: 26, Signal: 9})
	require.NoError(t, err)
	require.Len(t, f, 10)
	for _, p := range f {
		assert.False(t, p.Ready)
		assert.Zero(t, p.MACD)
	}
	assert.False(t, f.Ready())
}

func TestComputeReadiness(t *testing.T) {
	p := model.ParameterSet{Fast: 3, Slow: 5, Signal: 2}
	closes := make([]float64, 10)
	for i := range closes {
		closes[i] = float64(100 + i)
	}
	f, err := ComputeCloses(closes, p)
	require.NoError(t, err)
	assert.False(t, f[3].Ready)
	assert.True(t, f[4].Ready)
	assert.Greater(t, f[9].MACD, 0.0)
	assert.InDelta(t, f[9].MACD-f[9].Signal, f[9].Histogram, 1e-15)
}

func TestComputeRejectsInvalidParameters(t *testing.T) {
	_, err := ComputeCloses(constant(50, 1), model.ParameterSet{Fast: 26, Slow: 12, Signal: 9})
	assert.ErrorIs(t, err, model.ErrInvalidParameters)
}

func TestComputeDeterministic(t *testing.T) {
	day := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	s := model.PriceSeries{Symbol: "SPY"}
	for i := 0; i < 120; i++ {
		s.Points = append(s.Points, model.PricePoint{
			Time:  day.AddDate(0, 0, i),
			Close: 100 + 10*math.Sin(float64(i)/7),
		})
	}
	a, err := Compute(s, model.DefaultParameters)
	require.NoError(t, err)
	b, err := Compute(s, model.DefaultParameters)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, day, a[0].Time)
}
