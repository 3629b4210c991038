// Package broker carries target portfolio weights out of the overlay. It
// never computes share counts; execution belongs to the consumer.
package broker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"macdlab/model"
)

// TargetWeight is the desired fraction of portfolio value for one symbol.
type TargetWeight struct {
	RunID    uuid.UUID          `json:"run_id"`
	Symbol   string             `json:"symbol"`
	Time     time.Time          `json:"time"`
	Weight   decimal.Decimal    `json:"weight"`
	Previous decimal.Decimal    `json:"previous"`
	Params   model.ParameterSet `json:"params"`
}

// Sink receives the weight changes of one rebalance.
type Sink interface {
	Publish(ctx context.Context, targets []TargetWeight) error
}

// LogSink writes targets to a zap logger.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Publish(_ context.Context, targets []TargetWeight) error {
	for _, t := range targets {
		s.Logger.Info("target weight",
			zap.String("run_id", t.RunID.String()),
			zap.String("symbol", t.Symbol),
			zap.Time("time", t.Time),
			zap.String("weight", t.Weight.StringFixed(4)),
			zap.String("previous", t.Previous.StringFixed(4)),
			zap.Stringer("params", t.Params))
	}
	return nil
}

// MemorySink records every published target.
type MemorySink struct {
	mu      sync.Mutex
	targets []TargetWeight
	batches int
}

func (s *MemorySink) Publish(_ context.Context, targets []TargetWeight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets = append(s.targets, targets...)
	s.batches++
	return nil
}

func (s *MemorySink) Targets() []TargetWeight {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TargetWeight(nil), s.targets...)
}

func (s *MemorySink) Batches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batches
}

// Multi fans a batch out to several sinks, stopping at the first error.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, targets []TargetWeight) error {
	for _, s := range m {
		if err := s.Publish(ctx, targets); err != nil {
			return err
		}
	}
	return nil
}
