package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var ErrEmptySeries = errors.New("empty price series")

// PricePoint is one close observation.
type PricePoint struct {
	Time  time.Time `json:"time"`
	Close float64   `json:"close"`
}

// PriceSeries is a time-ordered close series for one symbol. Callers treat
// Points as read-only once a run has started; Slice shares the backing array.
type PriceSeries struct {
	Symbol string       `json:"symbol"`
	Points []PricePoint `json:"points"`
}

func (s PriceSeries) Len() int { return len(s.Points) }

func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Close
	}
	return out
}

func (s PriceSeries) Times() []time.Time {
	out := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Time
	}
	return out
}

// Slice returns the half-open range [i, j).
func (s PriceSeries) Slice(i, j int) PriceSeries {
	if i < 0 {
		i = 0
	}
	if j > len(s.Points) {
		j = len(s.Points)
	}
	if i > j {
		i = j
	}
	return PriceSeries{Symbol: s.Symbol, Points: s.Points[i:j:j]}
}

// Validate checks the ingestion invariants: non-empty, strictly increasing
// timestamps, finite positive closes.
func (s PriceSeries) Validate() error {
	if len(s.Points) == 0 {
		return fmt.Errorf("%s: %w", s.Symbol, ErrEmptySeries)
	}
	for i, p := range s.Points {
		if math.IsNaN(p.Close) || math.IsInf(p.Close, 0) || p.Close <= 0 {
			return fmt.Errorf("%s: invalid close %v at %s", s.Symbol, p.Close, p.Time.Format("2006-01-02"))
		}
		if i > 0 && !p.Time.After(s.Points[i-1].Time) {
			return fmt.Errorf("%s: timestamps not strictly increasing at index %d (%s after %s)",
				s.Symbol, i, p.Time.Format(time.RFC3339), s.Points[i-1].Time.Format(time.RFC3339))
		}
	}
	return nil
}
