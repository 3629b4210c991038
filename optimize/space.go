package optimize

import (
	"fmt"
	"math"

	"macdlab/model"
)

// Bounds is an inclusive integer range.
type Bounds struct {
	Min int `yaml:"min" json:"min" validate:"gte=1"`
	Max int `yaml:"max" json:"max" validate:"gtefield=Min"`
}

func (b Bounds) width() float64 { return float64(b.Max - b.Min) }

func (b Bounds) clamp(v float64) float64 {
	return math.Max(float64(b.Min), math.Min(float64(b.Max), v))
}

// Space is the search box for (fast, slow, signal).
type Space struct {
	Fast   Bounds `yaml:"fast" json:"fast"`
	Slow   Bounds `yaml:"slow" json:"slow"`
	Signal Bounds `yaml:"signal" json:"signal"`
}

// DefaultSpace is used by single-asset optimisation and walk-forward.
func DefaultSpace() Space {
	return Space{Fast: Bounds{5, 20}, Slow: Bounds{20, 50}, Signal: Bounds{5, 15}}
}

// OverlaySpace is the narrower box used for in-flight re-optimisation.
func OverlaySpace() Space {
	return Space{Fast: Bounds{8, 20}, Slow: Bounds{20, 40}, Signal: Bounds{6, 15}}
}

func (s Space) Validate() error {
	for _, b := range []struct {
		name string
		b    Bounds
	}{{"fast", s.Fast}, {"slow", s.Slow}, {"signal", s.Signal}} {
		if b.b.Min < 1 || b.b.Max < b.b.Min {
			return fmt.Errorf("invalid %s bounds [%d, %d]", b.name, b.b.Min, b.b.Max)
		}
	}
	return nil
}

func (s Space) dims() [3]Bounds { return [3]Bounds{s.Fast, s.Slow, s.Signal} }

// Size is the number of integer points in the box.
func (s Space) Size() int {
	n := 1
	for _, b := range s.dims() {
		n *= b.Max - b.Min + 1
	}
	return n
}

type point [3]float64

func fromParams(p model.ParameterSet) point {
	return point{float64(p.Fast), float64(p.Slow), float64(p.Signal)}
}

// params truncates the continuous point to integer periods.
func (x point) params() model.ParameterSet {
	return model.ParameterSet{
		Fast:   int(math.Floor(x[0])),
		Slow:   int(math.Floor(x[1])),
		Signal: int(math.Floor(x[2])),
	}
}
