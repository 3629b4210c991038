package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the subset of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaConfig struct {
	Brokers    []string      `yaml:"brokers" mapstructure:"brokers"`
	Topic      string        `yaml:"topic" mapstructure:"topic"`
	ClientID   string        `yaml:"client_id" mapstructure:"client_id"`
	MaxRetries uint64        `yaml:"max_retries" mapstructure:"max_retries"`
	RetryWait  time.Duration `yaml:"retry_wait" mapstructure:"retry_wait"`
}

// KafkaSink publishes one JSON message per target, keyed by symbol so a
// symbol's weights stay ordered within a partition.
type KafkaSink struct {
	writer     MessageWriter
	topic      string
	maxRetries uint64
	retryWait  time.Duration
	logger     *zap.Logger
}

func NewKafkaSink(cfg KafkaConfig, logger *zap.Logger) *KafkaSink {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Transport: &kafka.Transport{
			ClientID: cfg.ClientID,
		},
	}
	return NewKafkaSinkWithWriter(w, cfg, logger)
}

func NewKafkaSinkWithWriter(w MessageWriter, cfg KafkaConfig, logger *zap.Logger) *KafkaSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 100 * time.Millisecond
	}
	return &KafkaSink{
		writer:     w,
		topic:      cfg.Topic,
		maxRetries: cfg.MaxRetries,
		retryWait:  cfg.RetryWait,
		logger:     logger,
	}
}

func (s *KafkaSink) Publish(ctx context.Context, targets []TargetWeight) error {
	if len(targets) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(targets))
	for _, t := range targets {
		value, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshal target %s: %w", t.Symbol, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(t.Symbol),
			Value: value,
			Headers: []kafka.Header{
				{Key: "run_id", Value: []byte(t.RunID.String())},
			},
			Time: t.Time,
		})
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.retryWait
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, s.maxRetries), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := s.writer.WriteMessages(ctx, msgs...)
		if err != nil {
			s.logger.Warn("kafka publish failed",
				zap.String("topic", s.topic),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		return err
	}, policy)
	if err != nil {
		return fmt.Errorf("publish %d targets to %s: %w", len(msgs), s.topic, err)
	}
	s.logger.Debug("targets published", zap.String("topic", s.topic), zap.Int("count", len(msgs)))
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
