package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"macdlab/backtest"
	"macdlab/feed"
	"macdlab/model"
	"macdlab/optimize"
	"macdlab/signal"
	"macdlab/walkforward"
)

const maxSearchTimeout = 2 * time.Minute

// SeriesRequest selects the prices to work on: either inline points or a
// symbol resolved through the provider, optionally trimmed to [start, end].
type SeriesRequest struct {
	Symbol string             `json:"symbol"`
	Prices []model.PricePoint `json:"prices"`
	Start  string             `json:"start"`
	End    string             `json:"end"`
}

type StrategyRequest struct {
	Params          *model.ParameterSet `json:"params"`
	Policy          string              `json:"policy"`
	TransactionCost *float64            `json:"transaction_cost" binding:"omitempty,gte=0"`
}

type BacktestRequest struct {
	SeriesRequest
	StrategyRequest
	OmitPoints bool `json:"omit_points"`
}

type SearchRequest struct {
	Method         string          `json:"method"`
	Space          *optimize.Space `json:"space"`
	MaxEvaluations *int            `json:"max_evaluations" binding:"omitempty,gte=0"`
	Timeout        string          `json:"timeout"`
}

type OptimizeRequest struct {
	SeriesRequest
	StrategyRequest
	SearchRequest
}

type WalkForwardRequest struct {
	SeriesRequest
	StrategyRequest
	SearchRequest
	OptimizationWindow int  `json:"optimization_window" binding:"omitempty,gt=0"`
	TestWindow         int  `json:"test_window" binding:"omitempty,gt=0"`
	Warmup             bool `json:"warmup"`
}

// OptimizeResponse reports the search outcome next to a backtest of the
// initial and the chosen parameters over the same series.
type OptimizeResponse struct {
	Params      model.ParameterSet `json:"params"`
	Sharpe      float64            `json:"sharpe"`
	Evaluations int                `json:"evaluations"`
	Converged   bool               `json:"converged"`
	Fallback    bool               `json:"fallback"`
	Reason      string             `json:"reason,omitempty"`
	Baseline    backtest.Metrics   `json:"baseline"`
	Tuned       backtest.Metrics   `json:"tuned"`
}

type WalkForwardResponse struct {
	Windows []walkforward.Result `json:"windows"`
	Summary walkforward.Summary  `json:"summary"`
}

// requestError carries the HTTP status for a rejected request.
type requestError struct {
	status int
	err    error
}

func (e *requestError) Error() string { return e.err.Error() }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, err: fmt.Errorf(format, args...)}
}

// Handler serves the analysis endpoints.
type Handler struct {
	provider  feed.Provider
	maxPoints int
	logger    *zap.Logger
}

func NewHandler(provider feed.Provider, maxPoints int, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{provider: provider, maxPoints: maxPoints, logger: logger}
}

// Backtest runs one fixed-parameter backtest.
func (h *Handler) Backtest(c *gin.Context) {
	var req BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, badRequest("invalid request: %v", err))
		return
	}
	s, err := h.series(c.Request.Context(), req.SeriesRequest)
	if err != nil {
		h.fail(c, err)
		return
	}
	params, opts, err := req.StrategyRequest.resolve()
	if err != nil {
		h.fail(c, err)
		return
	}
	opts.OmitPoints = req.OmitPoints

	res, err := backtest.Run(s, params, opts)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": res})
}

// Optimize searches parameters and backtests the result against the initial guess.
func (h *Handler) Optimize(c *gin.Context) {
	var req OptimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, badRequest("invalid request: %v", err))
		return
	}
	s, err := h.series(c.Request.Context(), req.SeriesRequest)
	if err != nil {
		h.fail(c, err)
		return
	}
	params, bt, err := req.StrategyRequest.resolve()
	if err != nil {
		h.fail(c, err)
		return
	}
	opts, err := req.SearchRequest.resolve(params, h.logger)
	if err != nil {
		h.fail(c, err)
		return
	}

	res, err := optimize.Series(c.Request.Context(), s, bt, opts)
	if err != nil {
		h.fail(c, err)
		return
	}
	bt.OmitPoints = true
	base, err := backtest.Run(s, params, bt)
	if err != nil {
		h.fail(c, err)
		return
	}
	tuned, err := backtest.Run(s, res.Params, bt)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 0, "data": OptimizeResponse{
		Params:      res.Params,
		Sharpe:      res.Sharpe,
		Evaluations: res.Evaluations,
		Converged:   res.Converged,
		Fallback:    res.Fallback,
		Reason:      res.Reason,
		Baseline:    base.Metrics,
		Tuned:       tuned.Metrics,
	}})
}

// WalkForward runs rolling optimisation with out-of-sample evaluation.
func (h *Handler) WalkForward(c *gin.Context) {
	var req WalkForwardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, badRequest("invalid request: %v", err))
		return
	}
	s, err := h.series(c.Request.Context(), req.SeriesRequest)
	if err != nil {
		h.fail(c, err)
		return
	}
	params, bt, err := req.StrategyRequest.resolve()
	if err != nil {
		h.fail(c, err)
		return
	}
	opts, err := req.SearchRequest.resolve(params, h.logger)
	if err != nil {
		h.fail(c, err)
		return
	}

	cfg := walkforward.DefaultConfig()
	if req.OptimizationWindow > 0 {
		cfg.OptimizationWindow = req.OptimizationWindow
	}
	if req.TestWindow > 0 {
		cfg.TestWindow = req.TestWindow
	}
	cfg.Warmup = req.Warmup
	cfg.Optimize = opts
	cfg.Backtest = bt
	cfg.Logger = h.logger

	results, err := walkforward.Run(c.Request.Context(), s, cfg)
	if err != nil {
		h.fail(c, err)
		return
	}
	if results == nil {
		results = []walkforward.Result{}
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": WalkForwardResponse{
		Windows: results,
		Summary: walkforward.Summarize(results),
	}})
}

// series resolves the request's prices.
func (h *Handler) series(ctx context.Context, req SeriesRequest) (model.PriceSeries, error) {
	start, err := parseDate(req.Start)
	if err != nil {
		return model.PriceSeries{}, badRequest("invalid start: %v", err)
	}
	end, err := parseDate(req.End)
	if err != nil {
		return model.PriceSeries{}, badRequest("invalid end: %v", err)
	}

	switch {
	case len(req.Prices) > 0:
		if h.maxPoints > 0 && len(req.Prices) > h.maxPoints {
			return model.PriceSeries{}, &requestError{
				status: http.StatusRequestEntityTooLarge,
				err:    fmt.Errorf("%d price points exceed the limit of %d", len(req.Prices), h.maxPoints),
			}
		}
		symbol := req.Symbol
		if symbol == "" {
			symbol = "inline"
		}
		mem := feed.NewMemoryProvider(model.PriceSeries{Symbol: symbol, Points: req.Prices})
		s, err := mem.Load(ctx, symbol, start, end)
		if err != nil {
			return model.PriceSeries{}, &requestError{status: http.StatusBadRequest, err: err}
		}
		return s, nil
	case req.Symbol != "":
		if h.provider == nil {
			return model.PriceSeries{}, badRequest("no data source configured; send prices inline")
		}
		s, err := h.provider.Load(ctx, req.Symbol, start, end)
		if err != nil {
			if errors.Is(err, feed.ErrNoData) {
				return model.PriceSeries{}, &requestError{status: http.StatusNotFound, err: err}
			}
			return model.PriceSeries{}, err
		}
		return s, nil
	default:
		return model.PriceSeries{}, badRequest("either symbol or prices is required")
	}
}

func (r StrategyRequest) resolve() (model.ParameterSet, backtest.Options, error) {
	params := model.DefaultParameters
	if r.Params != nil {
		params = *r.Params
	}
	if err := params.Validate(); err != nil {
		return params, backtest.Options{}, &requestError{status: http.StatusBadRequest, err: err}
	}
	opts := backtest.DefaultOptions()
	if r.Policy != "" {
		policy, err := signal.ParsePolicy(r.Policy)
		if err != nil {
			return params, opts, &requestError{status: http.StatusBadRequest, err: err}
		}
		opts.Policy = policy.Kind()
	}
	if r.TransactionCost != nil {
		opts.TransactionCost = *r.TransactionCost
	}
	return params, opts, nil
}

func (r SearchRequest) resolve(initial model.ParameterSet, logger *zap.Logger) (optimize.Options, error) {
	opts := optimize.DefaultOptions()
	opts.Initial = initial
	opts.Logger = logger
	switch optimize.Method(r.Method) {
	case "":
	case optimize.Pattern, optimize.Grid:
		opts.Method = optimize.Method(r.Method)
	default:
		return opts, badRequest("unknown method %q", r.Method)
	}
	if r.Space != nil {
		if err := r.Space.Validate(); err != nil {
			return opts, &requestError{status: http.StatusBadRequest, err: err}
		}
		opts.Space = *r.Space
	}
	if r.MaxEvaluations != nil {
		opts.MaxEvaluations = *r.MaxEvaluations
	}
	if r.Timeout != "" {
		d, err := time.ParseDuration(r.Timeout)
		if err != nil || d <= 0 {
			return opts, badRequest("invalid timeout %q", r.Timeout)
		}
		opts.Timeout = d
	}
	if opts.Timeout <= 0 || opts.Timeout > maxSearchTimeout {
		opts.Timeout = maxSearchTimeout
	}
	return opts, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		status = reqErr.status
	case errors.Is(err, model.ErrInvalidParameters), errors.Is(err, model.ErrEmptySeries):
		status = http.StatusBadRequest
	case errors.Is(err, walkforward.ErrTooShort):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
