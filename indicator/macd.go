package indicator

import (
	"time"

	"macdlab/model"
)

// Point is one MACD observation. When Ready is false the numeric fields are
// zero and must not be traded on.
type Point struct {
	Time      time.Time `json:"time"`
	MACD      float64   `json:"macd"`
	Signal    float64   `json:"signal"`
	Histogram float64   `json:"histogram"`
	Ready     bool      `json:"ready"`
}

type Frame []Point

// Compute derives the MACD frame for a price series.
func Compute(s model.PriceSeries, p model.ParameterSet) (Frame, error) {
	f, err := ComputeCloses(s.Closes(), p)
	if err != nil {
		return nil, err
	}
	for i := range f {
		f[i].Time = s.Points[i].Time
	}
	return f, nil
}

// ComputeCloses derives MACD = EMA(fast) - EMA(slow), Signal = EMA(signal) of
// the MACD line and Histogram = MACD - Signal. A point is ready once Slow
// observations are available.
func ComputeCloses(closes []float64, p model.ParameterSet) (Frame, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	fast := EMA(closes, p.Fast)
	slow := EMA(closes, p.Slow)
	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = fast[i] - slow[i]
	}
	sig := EMA(line, p.Signal)

	out := make(Frame, len(closes))
	for i := range closes {
		if i < p.Slow-1 {
			continue
		}
		out[i] = Point{
			MACD:      line[i],
			Signal:    sig[i],
			Histogram: line[i] - sig[i],
			Ready:     true,
		}
	}
	return out, nil
}

// Ready reports whether at least one point is tradable.
func (f Frame) Ready() bool {
	return len(f) > 0 && f[len(f)-1].Ready
}
