package signal

import "macdlab/indicator"

// Trigger is a crossover event: +1 bullish, -1 bearish, 0 none.
type Trigger int

const (
	Bearish Trigger = -1
	None    Trigger = 0
	Bullish Trigger = 1
)

func (t Trigger) String() string {
	switch t {
	case Bullish:
		return "buy"
	case Bearish:
		return "sell"
	}
	return ""
}

// Crossovers marks the points where the MACD line crosses its signal line.
// Not-ready points never trigger. The relation before the first ready point
// counts as neutral, so a regime already in place at warmup fires once.
func Crossovers(f indicator.Frame) []Trigger {
	out := make([]Trigger, len(f))
	prev := 0
	for i, p := range f {
		if !p.Ready {
			continue
		}
		cur := relation(p)
		switch {
		case cur > 0 && prev <= 0:
			out[i] = Bullish
		case cur < 0 && prev >= 0:
			out[i] = Bearish
		}
		prev = cur
	}
	return out
}

// Last returns the trigger at the final point of f, looking only at the last
// two points.
func Last(f indicator.Frame) Trigger {
	n := len(f)
	if n == 0 || !f[n-1].Ready {
		return None
	}
	prev := 0
	if n > 1 && f[n-2].Ready {
		prev = relation(f[n-2])
	}
	cur := relation(f[n-1])
	switch {
	case cur > 0 && prev <= 0:
		return Bullish
	case cur < 0 && prev >= 0:
		return Bearish
	}
	return None
}

func relation(p indicator.Point) int {
	switch {
	case p.MACD > p.Signal:
		return 1
	case p.MACD < p.Signal:
		return -1
	}
	return 0
}
