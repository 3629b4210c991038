package signal

import "macdlab/indicator"

// Series is the per-point output of the generator.
type Series struct {
	Positions []float64
	Triggers  []Trigger
}

// Generate runs policy over the crossovers of f. Positions before the first
// ready point are zero.
func Generate(f indicator.Frame, policy Policy) Series {
	triggers := Crossovers(f)
	positions := make([]float64, len(f))
	var acc float64
	for i, t := range triggers {
		acc, positions[i] = policy.Step(acc, t)
	}
	return Series{Positions: positions, Triggers: triggers}
}

// Changes counts position changes.
func (s Series) Changes() int {
	n := 0
	for i := 1; i < len(s.Positions); i++ {
		if s.Positions[i] != s.Positions[i-1] {
			n++
		}
	}
	if len(s.Positions) > 0 && s.Positions[0] != 0 {
		n++
	}
	return n
}
