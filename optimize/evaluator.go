package optimize

import (
	"context"
	"errors"
	"fmt"
	"math"

	"macdlab/backtest"
	"macdlab/model"
)

// ErrDegenerate marks a candidate whose strategy has zero volatility.
var ErrDegenerate = errors.New("degenerate candidate: zero volatility")

// Pipeline scores a feasible parameter set with its Sharpe ratio.
type Pipeline func(model.ParameterSet) (float64, error)

// SharpePipeline backtests s under each candidate.
func SharpePipeline(s model.PriceSeries, opts backtest.Options) Pipeline {
	opts.OmitPoints = true
	return func(p model.ParameterSet) (float64, error) {
		res, err := backtest.Run(s, p, opts)
		if err != nil {
			return 0, err
		}
		if res.Metrics.Volatility == 0 {
			return 0, ErrDegenerate
		}
		return res.Metrics.SharpeRatio, nil
	}
}

// Evaluator memoises candidate scores. Score is the negated Sharpe, so lower
// is better; rejected candidates score +Inf. Not safe for concurrent use.
type Evaluator struct {
	pipeline Pipeline
	cache    map[model.ParameterSet]float64
	calls    int
	lastErr  error
}

func NewEvaluator(p Pipeline) *Evaluator {
	return &Evaluator{pipeline: p, cache: make(map[model.ParameterSet]float64)}
}

// Score returns the cached or freshly computed score. Infeasible sets are
// rejected without running the pipeline.
func (e *Evaluator) Score(p model.ParameterSet) float64 {
	if p.Validate() != nil {
		return math.Inf(1)
	}
	if s, ok := e.cache[p]; ok {
		return s
	}
	e.calls++
	sharpe, err := e.run(p)
	score := math.Inf(1)
	if err != nil {
		e.lastErr = err
	} else if !math.IsNaN(sharpe) && !math.IsInf(sharpe, 0) {
		score = -sharpe
	}
	e.cache[p] = score
	return score
}

func (e *Evaluator) run(p model.ParameterSet) (sharpe float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic for %s: %v", p, r)
		}
	}()
	return e.pipeline(p)
}

// cached returns a score computed earlier without running the pipeline.
func (e *Evaluator) cached(p model.ParameterSet) (float64, bool) {
	s, ok := e.cache[p]
	return s, ok
}

// Evaluations counts pipeline invocations.
func (e *Evaluator) Evaluations() int { return e.calls }

// LastError is the most recent pipeline failure, if any.
func (e *Evaluator) LastError() error { return e.lastErr }

// exhausted reports whether the context is done or the budget has run out.
func (e *Evaluator) exhausted(ctx context.Context, max int) bool {
	return ctx.Err() != nil || e.spent(max)
}

func (e *Evaluator) spent(max int) bool { return max > 0 && e.calls >= max }
