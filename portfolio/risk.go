package portfolio

import "math"

// PositionSize scales MaxPositionSize by inverse volatility:
//
//	min(max, max * min(baseVol / max(vol, floor), cap))
//
// The result never exceeds MaxPositionSize.
func (c Config) PositionSize(assetVol float64) float64 {
	adj := math.Min(c.BaseVol/math.Max(assetVol, c.VolFloor), c.CapMultiplier)
	return math.Min(c.MaxPositionSize, c.MaxPositionSize*adj)
}

// DrawdownTracker follows portfolio value against its running peak. It has
// a single writer, the engine's tick loop.
type DrawdownTracker struct {
	peak     float64
	current  float64
	drawdown float64
	max      float64
}

func NewDrawdownTracker(initial float64) *DrawdownTracker {
	return &DrawdownTracker{peak: initial, current: initial}
}

// Update records a new portfolio value and returns the drawdown from peak
// as a positive fraction.
func (d *DrawdownTracker) Update(value float64) float64 {
	d.current = value
	if value > d.peak {
		d.peak = value
	}
	if d.peak > 0 {
		d.drawdown = (d.peak - value) / d.peak
	}
	if d.drawdown > d.max {
		d.max = d.drawdown
	}
	return d.drawdown
}

func (d *DrawdownTracker) Peak() float64 { return d.peak }
func (d *DrawdownTracker) Current() float64 { return d.current }
func (d *DrawdownTracker) Drawdown() float64 { return d.drawdown }
func (d *DrawdownTracker) MaxDrawdown() float64 { return d.max }
