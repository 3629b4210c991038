package api

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macdlab/backtest"
	"macdlab/config"
	"macdlab/feed"
	"macdlab/model"
)

func prices(n int) []model.PricePoint {
	start := time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)
	out := make([]model.PricePoint, n)
	for i := range out {
		c := 50 + 5*math.Sin(float64(i)/8) + 2*math.Sin(float64(i)/2.7) + 0.04*float64(i)
		out[i] = model.PricePoint{Time: start.AddDate(0, 0, i), Close: c}
	}
	return out
}

func testServer(t *testing.T, mutate func(*config.ServerConfig)) *Server {
	t.Helper()
	cfg := config.ServerConfig{Port: 0, MaxPoints: 500}
	if mutate != nil {
		mutate(&cfg)
	}
	provider := feed.NewMemoryProvider(model.PriceSeries{Symbol: "SPY", Points: prices(200)})
	return NewServer(cfg, provider, nil)
}

func post(t *testing.T, s *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := testServer(t, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestBacktestInline(t *testing.T) {
	s := testServer(t, nil)
	w := post(t, s, "/api/backtest", map[string]any{
		"prices": prices(120),
		"params": model.ParameterSet{Fast: 5, Slow: 20, Signal: 5},
		"policy": "stateful_crossover",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Code int             `json:"code"`
		Data backtest.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "inline", resp.Data.Symbol)
	assert.Equal(t, 5, resp.Data.Params.Fast)
	assert.Len(t, resp.Data.Points, 120)
	assert.Nil(t, resp.Data.Points[0].Return)
	assert.Equal(t, 119, resp.Data.Metrics.Observations)
}

func TestBacktestFromProvider(t *testing.T) {
	s := testServer(t, nil)
	w := post(t, s, "/api/backtest", map[string]any{
		"symbol":      "SPY",
		"start":       "2021-02-01",
		"omit_points": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data backtest.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "SPY", resp.Data.Symbol)
	assert.Empty(t, resp.Data.Points)
	assert.Equal(t, model.DefaultParameters, resp.Data.Params)
	assert.Equal(t, 200-28-1, resp.Data.Metrics.Observations)
}

func TestBacktestRejects(t *testing.T) {
	s := testServer(t, nil)

	cases := []struct {
		name string
		body map[string]any
		code int
	}{
		{"no data", map[string]any{}, http.StatusBadRequest},
		{"unknown symbol", map[string]any{"symbol": "QQQ"}, http.StatusNotFound},
		{"too many points", map[string]any{"prices": prices(501)}, http.StatusRequestEntityTooLarge},
		{"bad params", map[string]any{"prices": prices(60), "params": map[string]int{"fast": 26, "slow": 12, "signal": 9}}, http.StatusBadRequest},
		{"bad policy", map[string]any{"prices": prices(60), "policy": "martingale"}, http.StatusBadRequest},
		{"negative cost", map[string]any{"prices": prices(60), "transaction_cost": -0.1}, http.StatusBadRequest},
		{"bad date", map[string]any{"symbol": "SPY", "start": "01/02/2021"}, http.StatusBadRequest},
		{"empty window", map[string]any{"symbol": "SPY", "start": "2030-01-01"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := post(t, s, "/api/backtest", tc.body)
			assert.Equal(t, tc.code, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestOptimize(t *testing.T) {
	s := testServer(t, nil)
	w := post(t, s, "/api/optimize", map[string]any{
		"symbol": "SPY",
		"method": "grid",
		"space": map[string]any{
			"fast":   map[string]int{"min": 4, "max": 6},
			"slow":   map[string]int{"min": 15, "max": 17},
			"signal": map[string]int{"min": 3, "max": 4},
		},
		"params":  model.ParameterSet{Fast: 5, Slow: 16, Signal: 3},
		"timeout": "10s",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data OptimizeResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	p := resp.Data.Params
	assert.True(t, p.Fast >= 4 && p.Fast <= 6, "fast %d", p.Fast)
	assert.True(t, p.Slow >= 15 && p.Slow <= 17, "slow %d", p.Slow)
	assert.True(t, p.Signal >= 3 && p.Signal <= 4, "signal %d", p.Signal)
	assert.Equal(t, 18, resp.Data.Evaluations)
	assert.False(t, resp.Data.Fallback)
	assert.GreaterOrEqual(t, resp.Data.Tuned.SharpeRatio, resp.Data.Baseline.SharpeRatio)
}

func TestOptimizeRejects(t *testing.T) {
	s := testServer(t, nil)
	for name, body := range map[string]map[string]any{
		"method":  {"symbol": "SPY", "method": "annealing"},
		"space":   {"symbol": "SPY", "space": map[string]any{"fast": map[string]int{"min": 9, "max": 3}}},
		"timeout": {"symbol": "SPY", "timeout": "soon"},
	} {
		w := post(t, s, "/api/optimize", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
	}
}

func TestWalkForward(t *testing.T) {
	s := testServer(t, nil)
	body := map[string]any{
		"symbol":              "SPY",
		"method":              "grid",
		"optimization_window": 80,
		"test_window":         40,
		"space": map[string]any{
			"fast":   map[string]int{"min": 4, "max": 5},
			"slow":   map[string]int{"min": 12, "max": 14},
			"signal": map[string]int{"min": 3, "max": 3},
		},
		"params": model.ParameterSet{Fast: 4, Slow: 12, Signal: 3},
	}
	w := post(t, s, "/api/walkforward", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data WalkForwardResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	// 200 points fit windows starting at 0, 40 and 80.
	require.Len(t, resp.Data.Windows, 3)
	assert.Equal(t, 3, resp.Data.Summary.Windows)
	assert.Equal(t, 80, resp.Data.Windows[0].Window.TestStart)

	body["optimization_window"] = 300
	w = post(t, s, "/api/walkforward", body)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
}

func TestRateLimit(t *testing.T) {
	s := testServer(t, func(c *config.ServerConfig) {
		c.RateLimit = 0.001
		c.Burst = 1
	})
	first := post(t, s, "/api/backtest", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, first.Code)

	second := post(t, s, "/api/backtest", map[string]any{})
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
