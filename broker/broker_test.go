package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"macdlab/model"
)

type fakeWriter struct {
	failures int
	calls    int
	written  []kafka.Message
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.calls++
	if w.calls <= w.failures {
		return errors.New("leader not available")
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func sample() []TargetWeight {
	run := uuid.New()
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return []TargetWeight{
		{RunID: run, Symbol: "SPY", Time: at, Weight: decimal.RequireFromString("0.125"), Params: model.DefaultParameters},
		{RunID: run, Symbol: "XLE", Time: at, Weight: decimal.Zero, Previous: decimal.RequireFromString("-0.0625")},
	}
}

func TestKafkaSinkRetries(t *testing.T) {
	w := &fakeWriter{failures: 2}
	s := NewKafkaSinkWithWriter(w, KafkaConfig{Topic: "weights", MaxRetries: 3, RetryWait: time.Millisecond}, nil)

	require.NoError(t, s.Publish(context.Background(), sample()))
	assert.Equal(t, 3, w.calls)
	require.Len(t, w.written, 2)
	assert.Equal(t, "SPY", string(w.written[0].Key))

	var got TargetWeight
	require.NoError(t, json.Unmarshal(w.written[1].Value, &got))
	assert.Equal(t, "XLE", got.Symbol)
	assert.True(t, got.Previous.Equal(decimal.RequireFromString("-0.0625")))

	require.NoError(t, s.Close())
	assert.True(t, w.closed)
}

func TestKafkaSinkGivesUp(t *testing.T) {
	w := &fakeWriter{failures: 10}
	s := NewKafkaSinkWithWriter(w, KafkaConfig{Topic: "weights", MaxRetries: 1, RetryWait: time.Millisecond}, nil)
	err := s.Publish(context.Background(), sample())
	require.Error(t, err)
	assert.Equal(t, 2, w.calls)
	assert.Empty(t, w.written)
}

func TestKafkaSinkEmptyBatch(t *testing.T) {
	w := &fakeWriter{}
	s := NewKafkaSinkWithWriter(w, KafkaConfig{Topic: "weights"}, nil)
	require.NoError(t, s.Publish(context.Background(), nil))
	assert.Zero(t, w.calls)
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	require.NoError(t, LogSink{Logger: zap.New(core)}.Publish(context.Background(), sample()))
	require.Equal(t, 2, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "target weight", entry.Message)
	assert.Equal(t, "0.1250", entry.ContextMap()["weight"])
}

func TestMemoryAndMulti(t *testing.T) {
	a, b := &MemorySink{}, &MemorySink{}
	require.NoError(t, Multi{a, b}.Publish(context.Background(), sample()))
	assert.Len(t, a.Targets(), 2)
	assert.Equal(t, 1, b.Batches())
}
