package backtest

import (
	"time"

	"macdlab/model"
	"macdlab/signal"
)

// Metrics summarises one strategy return stream. Every ratio is a fraction,
// not a percentage.
type Metrics struct {
	TotalReturn  float64 `json:"total_return"`
	MarketReturn float64 `json:"market_return"`
	AnnualReturn float64 `json:"annual_return"`
	Volatility   float64 `json:"volatility"`
	SharpeRatio  float64 `json:"sharpe_ratio"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	WinRate      float64 `json:"win_rate"`
	Beta         float64 `json:"beta"`
	Trades       int     `json:"trades"`
	TotalCost    float64 `json:"total_cost"`
	Observations int     `json:"observations"`
}

// Point is one row of a backtest. Return is nil for the first row, which has
// no prior position.
type Point struct {
	Time      time.Time      `json:"time"`
	Close     float64        `json:"close"`
	MACD      float64        `json:"macd"`
	Signal    float64        `json:"signal"`
	Histogram float64        `json:"histogram"`
	Ready     bool           `json:"ready"`
	Trigger   signal.Trigger `json:"trigger"`
	Position  float64        `json:"position"`
	Return    *float64       `json:"return,omitempty"`
	Equity    float64        `json:"equity"`
}

type Result struct {
	Symbol          string             `json:"symbol"`
	Params          model.ParameterSet `json:"params"`
	Policy          signal.PolicyKind  `json:"policy"`
	TransactionCost float64            `json:"transaction_cost"`
	Metrics         Metrics            `json:"metrics"`
	Points          []Point            `json:"points,omitempty"`
	Errors          []string           `json:"errors,omitempty"`
}
