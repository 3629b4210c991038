package signal

import (
	"math"

	"macdlab/indicator"
)

// FilterInput is the trailing history a filter may look at. Prices and Returns
// are oldest first; the last price is the current one.
type FilterInput struct {
	Prices  []float64
	Returns []float64
}

// Filter adjusts a raw signal in [-1, 1].
type Filter interface {
	Name() string
	Apply(sig float64, in FilterInput) float64
}

// VolatilityFilter dampens the signal when trailing annualized volatility is high.
type VolatilityFilter struct {
	Window    int     `yaml:"window" json:"window"`
	Threshold float64 `yaml:"threshold" json:"threshold"`
	Dampen    float64 `yaml:"dampen" json:"dampen"`
}

func (VolatilityFilter) Name() string { return "volatility" }

func (f VolatilityFilter) Apply(sig float64, in FilterInput) float64 {
	if f.Window <= 0 || len(in.Returns) < f.Window {
		return sig
	}
	vol := indicator.AnnualizedVolatility(in.Returns[len(in.Returns)-f.Window:])
	if vol > f.Threshold {
		return sig * f.Dampen
	}
	return sig
}

// TrendFilter suppresses signals that fight the moving-average trend.
type TrendFilter struct {
	Window int     `yaml:"window" json:"window"`
	Band   float64 `yaml:"band" json:"band"`
}

func (TrendFilter) Name() string { return "trend" }

func (f TrendFilter) Apply(sig float64, in FilterInput) float64 {
	if f.Window <= 0 || len(in.Prices) < f.Window {
		return sig
	}
	price := in.Prices[len(in.Prices)-1]
	sma := indicator.Mean(in.Prices[len(in.Prices)-f.Window:])
	if sig > 0 && price < sma*(1-f.Band) {
		return 0
	}
	if sig < 0 && price > sma*(1+f.Band) {
		return 0
	}
	return sig
}

// OscillatorFilter suppresses buys when RSI is overbought and sells when oversold.
type OscillatorFilter struct {
	Period     int     `yaml:"period" json:"period"`
	Overbought float64 `yaml:"overbought" json:"overbought"`
	Oversold   float64 `yaml:"oversold" json:"oversold"`
}

func (OscillatorFilter) Name() string { return "oscillator" }

func (f OscillatorFilter) Apply(sig float64, in FilterInput) float64 {
	rsi := indicator.RSI(in.Prices, f.Period)
	if len(rsi) == 0 {
		return sig
	}
	cur := rsi[len(rsi)-1]
	if math.IsNaN(cur) {
		return sig
	}
	if sig > 0 && cur > f.Overbought {
		return 0
	}
	if sig < 0 && cur < f.Oversold {
		return 0
	}
	return sig
}

// Pipeline applies filters in order.
type Pipeline []Filter

// DefaultPipeline is volatility, then trend, then oscillator.
func DefaultPipeline() Pipeline {
	return Pipeline{
		VolatilityFilter{Window: 20, Threshold: 0.30, Dampen: 0.5},
		TrendFilter{Window: 20, Band: 0.02},
		OscillatorFilter{Period: 14, Overbought: 70, Oversold: 30},
	}
}

func (p Pipeline) Apply(sig float64, in FilterInput) float64 {
	for _, f := range p {
		if sig == 0 {
			return 0
		}
		sig = f.Apply(sig, in)
	}
	return sig
}
