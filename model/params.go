package model

import (
	"errors"
	"fmt"
)

var ErrInvalidParameters = errors.New("invalid parameter set")

// ParameterSet holds the three MACD periods.
type ParameterSet struct {
	Fast   int `json:"fast" yaml:"fast"`
	Slow   int `json:"slow" yaml:"slow"`
	Signal int `json:"signal" yaml:"signal"`
}

var DefaultParameters = ParameterSet{Fast: 12, Slow: 26, Signal: 9}

// ParamError reports why a ParameterSet was rejected.
type ParamError struct {
	Params ParameterSet
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%v %s: %s", ErrInvalidParameters, e.Params, e.Reason)
}

func (e *ParamError) Unwrap() error { return ErrInvalidParameters }

func (p ParameterSet) Validate() error {
	switch {
	case p.Fast < 1 || p.Slow < 1 || p.Signal < 1:
		return &ParamError{Params: p, Reason: "periods must be >= 1"}
	case p.Fast >= p.Slow:
		return &ParamError{Params: p, Reason: "fast period must be less than slow period"}
	}
	return nil
}

func (p ParameterSet) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.Fast, p.Slow, p.Signal)
}
