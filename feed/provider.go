// Package feed loads daily close series for the engines.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"macdlab/model"
)

// ErrNoData means the source had nothing for the symbol and range. It is
// terminal; callers should not retry.
var ErrNoData = errors.New("no data")

// Provider returns a validated, time-ordered series. Zero start/end mean
// unbounded.
type Provider interface {
	Load(ctx context.Context, symbol string, start, end time.Time) (model.PriceSeries, error)
}

// MemoryProvider serves series held in memory.
type MemoryProvider struct {
	mu     sync.RWMutex
	series map[string]model.PriceSeries
}

func NewMemoryProvider(series ...model.PriceSeries) *MemoryProvider {
	m := &MemoryProvider{series: make(map[string]model.PriceSeries, len(series))}
	for _, s := range series {
		m.Put(s)
	}
	return m
}

func (m *MemoryProvider) Put(s model.PriceSeries) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series[s.Symbol] = s
}

func (m *MemoryProvider) Symbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.series))
	for k := range m.series {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (m *MemoryProvider) Load(ctx context.Context, symbol string, start, end time.Time) (model.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return model.PriceSeries{}, err
	}
	m.mu.RLock()
	s, ok := m.series[symbol]
	m.mu.RUnlock()
	if !ok {
		return model.PriceSeries{}, fmt.Errorf("%s: %w", symbol, ErrNoData)
	}
	return window(s, start, end)
}

// window trims s to [start, end] and validates the result.
func window(s model.PriceSeries, start, end time.Time) (model.PriceSeries, error) {
	pts := make([]model.PricePoint, 0, len(s.Points))
	for _, p := range s.Points {
		if !start.IsZero() && p.Time.Before(start) {
			continue
		}
		if !end.IsZero() && p.Time.After(end) {
			continue
		}
		pts = append(pts, p)
	}
	if len(pts) == 0 {
		return model.PriceSeries{}, fmt.Errorf("%s: %w", s.Symbol, ErrNoData)
	}
	out := model.PriceSeries{Symbol: s.Symbol, Points: pts}
	if err := out.Validate(); err != nil {
		return model.PriceSeries{}, err
	}
	return out, nil
}
