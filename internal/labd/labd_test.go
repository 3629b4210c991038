package labd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"macdlab/config"
)

func TestRunStopsOnCancel(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	cfg := &config.AppConfig{
		Server: config.ServerConfig{Port: 0, ReadTimeout: time.Second, WriteTimeout: time.Second},
		Data:   config.DataConfig{Dir: t.TempDir()},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, zap.New(core)) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
	assert.Equal(t, 1, logs.FilterMessage("shutting down").Len())
	assert.Equal(t, 1, logs.FilterMessage("stopped").Len())
}

func TestRunRejectsNilConfig(t *testing.T) {
	assert.Error(t, Run(context.Background(), nil, nil))
}
