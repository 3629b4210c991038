// Package labd runs the macdlab HTTP daemon.
package labd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"macdlab/api"
	"macdlab/config"
	"macdlab/feed"
)

const shutdownTimeout = 5 * time.Second

// Run serves the API until ctx is cancelled or the process receives
// SIGINT/SIGTERM, then shuts down gracefully.
func Run(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	provider := feed.NewCSVProvider(cfg.Data.Dir, logger)
	provider.Encoding = cfg.Data.Encoding
	server := api.NewServer(cfg.Server, provider, logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	logger.Info("macdlab daemon started",
		zap.String("addr", server.Addr()),
		zap.String("data_dir", cfg.Data.Dir),
		zap.Float64("rate_limit", cfg.Server.RateLimit))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	err := <-errCh
	logger.Info("stopped")
	return err
}
