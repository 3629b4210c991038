package signal

import "fmt"

type PolicyKind string

const (
	CumulativeClip    PolicyKind = "cumulative_clip"
	StatefulCrossover PolicyKind = "stateful_crossover"
)

// Policy turns a trigger stream into a position in [-1, 1]. acc is the
// policy's running state, carried by the caller between steps.
type Policy interface {
	Kind() PolicyKind
	Step(acc float64, t Trigger) (next float64, position float64)
}

// ParsePolicy resolves a configured policy name. Empty selects cumulative_clip.
func ParsePolicy(name string) (Policy, error) {
	switch PolicyKind(name) {
	case "", CumulativeClip:
		return cumulativeClip{}, nil
	case StatefulCrossover:
		return statefulCrossover{}, nil
	}
	return nil, fmt.Errorf("unknown position policy %q", name)
}

// MustPolicy is ParsePolicy for known kinds.
func MustPolicy(k PolicyKind) Policy {
	p, err := ParsePolicy(string(k))
	if err != nil {
		panic(err)
	}
	return p
}

// cumulativeClip keeps the unclipped running sum of triggers; the position is
// that sum clipped to [-1, 1].
type cumulativeClip struct{}

func (cumulativeClip) Kind() PolicyKind { return CumulativeClip }

func (cumulativeClip) Step(acc float64, t Trigger) (float64, float64) {
	acc += float64(t)
	return acc, clip(acc)
}

// statefulCrossover goes to the trigger's direction and holds otherwise.
type statefulCrossover struct{}

func (statefulCrossover) Kind() PolicyKind { return StatefulCrossover }

func (statefulCrossover) Step(acc float64, t Trigger) (float64, float64) {
	if t != None {
		acc = float64(t)
	}
	return acc, acc
}

func clip(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
