// Package optimize searches MACD periods for the best Sharpe ratio.
package optimize

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"macdlab/backtest"
	"macdlab/model"
)

type Method string

const (
	Pattern Method = "pattern"
	Grid    Method = "grid"
)

// Options configure a search. A zero MaxEvaluations or Timeout means no
// limit of that kind.
type Options struct {
	Method         Method             `yaml:"method" json:"method"`
	Space          Space              `yaml:"space" json:"space"`
	Initial        model.ParameterSet `yaml:"initial" json:"initial"`
	MaxEvaluations int                `yaml:"max_evaluations" json:"max_evaluations"`
	Timeout        time.Duration      `yaml:"timeout" json:"timeout"`
	Logger         *zap.Logger        `yaml:"-" json:"-" validate:"-"`
}

func DefaultOptions() Options {
	return Options{
		Method:         Pattern,
		Space:          DefaultSpace(),
		Initial:        model.DefaultParameters,
		MaxEvaluations: 500,
		Timeout:        30 * time.Second,
	}
}

// Result is the outcome of a search. When Fallback is set, Params is the
// initial guess and Reason says why the search result was discarded.
type Result struct {
	Params      model.ParameterSet `json:"params"`
	Score       float64            `json:"score"`
	Sharpe      float64            `json:"sharpe"`
	Evaluations int                `json:"evaluations"`
	Converged   bool               `json:"converged"`
	Fallback    bool               `json:"fallback"`
	Reason      string             `json:"reason,omitempty"`
}

// Series optimises against a backtest of s.
func Series(ctx context.Context, s model.PriceSeries, bt backtest.Options, opts Options) (Result, error) {
	if err := s.Validate(); err != nil {
		return Result{}, err
	}
	return Run(ctx, SharpePipeline(s, bt), opts)
}

// Run searches the space with the configured method. Search failures are
// not errors: they produce a fallback Result. Only invalid options error.
func Run(ctx context.Context, pipeline Pipeline, opts Options) (Result, error) {
	if err := opts.Space.Validate(); err != nil {
		return Result{}, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	ev := NewEvaluator(pipeline)
	var (
		best      model.ParameterSet
		score     float64
		converged bool
	)
	switch opts.Method {
	case "", Pattern:
		best, score, converged = patternSearch(ctx, ev, opts)
	case Grid:
		best, score, converged = gridSearch(ctx, ev, opts)
	default:
		return Result{}, fmt.Errorf("unknown optimisation method %q", opts.Method)
	}

	res := Result{Params: best, Score: score, Evaluations: ev.Evaluations(), Converged: converged}
	switch {
	case math.IsInf(score, 1):
		res.Reason = "no feasible candidate"
		if err := ev.LastError(); err != nil {
			res.Reason += ": " + err.Error()
		}
	case !converged && ctx.Err() != nil:
		res.Reason = "search interrupted: " + ctx.Err().Error()
	case !converged:
		res.Reason = fmt.Sprintf("evaluation budget of %d exhausted", opts.MaxEvaluations)
	}
	if res.Reason != "" {
		res.Fallback = true
		res.Params = opts.Initial
		res.Score = fallbackScore(ev, opts)
		res.Evaluations = ev.Evaluations()
		logger.Warn("optimisation fell back to initial parameters",
			zap.Stringer("initial", opts.Initial),
			zap.String("reason", res.Reason),
			zap.Int("evaluations", res.Evaluations))
	} else {
		logger.Debug("optimisation converged",
			zap.Stringer("params", res.Params),
			zap.Float64("score", res.Score),
			zap.Int("evaluations", res.Evaluations))
	}
	if !math.IsInf(res.Score, 0) {
		res.Sharpe = -res.Score
	}
	return res, nil
}

// fallbackScore scores Initial only while the budget allows it. Initial
// outside the space is never visited by the search, so it may be uncached.
func fallbackScore(ev *Evaluator, opts Options) float64 {
	if s, ok := ev.cached(opts.Initial); ok {
		return s
	}
	if ev.spent(opts.MaxEvaluations) {
		return math.Inf(1)
	}
	return ev.Score(opts.Initial)
}

// patternSearch is a bounded compass search over the continuous box. Each
// sweep tries ±step along every axis and accepts the first improvement;
// a sweep without improvement halves all steps. It converges once the
// largest step drops below half a period.
func patternSearch(ctx context.Context, ev *Evaluator, opts Options) (model.ParameterSet, float64, bool) {
	dims := opts.Space.dims()
	var x point
	var step [3]float64
	init := fromParams(opts.Initial)
	for k, b := range dims {
		x[k] = b.clamp(init[k])
		step[k] = math.Max(b.width()/4, 1)
	}
	best := ev.Score(x.params())

	for {
		if ev.exhausted(ctx, opts.MaxEvaluations) {
			return x.params(), best, false
		}
		improved := false
		for k, b := range dims {
			for _, dir := range [2]float64{1, -1} {
				y := x
				y[k] = b.clamp(x[k] + dir*step[k])
				if y == x {
					continue
				}
				if ev.exhausted(ctx, opts.MaxEvaluations) {
					return x.params(), best, false
				}
				if s := ev.Score(y.params()); s < best {
					x, best, improved = y, s, true
					break
				}
			}
		}
		if improved {
			continue
		}
		largest := 0.0
		for k := range step {
			step[k] /= 2
			largest = math.Max(largest, step[k])
		}
		if largest < 0.5 {
			return x.params(), best, true
		}
	}
}

// gridSearch scores every integer point. Ties keep the lexicographically
// smallest (fast, slow, signal).
func gridSearch(ctx context.Context, ev *Evaluator, opts Options) (model.ParameterSet, float64, bool) {
	sp := opts.Space
	best := model.ParameterSet{}
	bestScore := math.Inf(1)
	for f := sp.Fast.Min; f <= sp.Fast.Max; f++ {
		for s := sp.Slow.Min; s <= sp.Slow.Max; s++ {
			for g := sp.Signal.Min; g <= sp.Signal.Max; g++ {
				p := model.ParameterSet{Fast: f, Slow: s, Signal: g}
				if p.Validate() != nil {
					continue
				}
				if ev.exhausted(ctx, opts.MaxEvaluations) {
					return best, bestScore, false
				}
				if sc := ev.Score(p); sc < bestScore {
					best, bestScore = p, sc
				}
			}
		}
	}
	return best, bestScore, true
}
