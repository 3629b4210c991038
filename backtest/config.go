package backtest

import (
	"fmt"

	"macdlab/signal"
)

const DefaultTransactionCost = 0.001

// Options control how positions become returns.
type Options struct {
	Policy          signal.PolicyKind `yaml:"policy" json:"policy"`
	TransactionCost float64           `yaml:"transaction_cost" json:"transaction_cost"`
	// OmitPoints drops per-point rows from the Result.
	OmitPoints bool `yaml:"-" json:"-"`
}

func DefaultOptions() Options {
	return Options{
		Policy:          signal.CumulativeClip,
		TransactionCost: DefaultTransactionCost,
	}
}

func (o Options) policy() (signal.Policy, error) {
	if o.TransactionCost < 0 {
		return nil, fmt.Errorf("transaction cost must be >= 0, got %v", o.TransactionCost)
	}
	return signal.ParsePolicy(string(o.Policy))
}
