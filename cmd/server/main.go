// Command server is the entry point for the arbitrage decision and
// execution core: it loads configuration, wires the ingestor, the
// triangular/cash-and-carry scanners, the regime-aware decision service
// and the paper/live OMS, then blocks until an interrupt signal arrives.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aristath/inarbit/internal/config"
	"github.com/aristath/inarbit/internal/di"
	"github.com/aristath/inarbit/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true})
	log.Info().Str("exchange", cfg.Exchange).Msg("starting inarbit core")

	ctx, cancel := context.WithCancel(context.Background())

	container, err := di.Wire(ctx, cfg, log)
	if err != nil {
		cancel()
		log.Fatal().Err(err).Msg("failed to wire dependencies")
	}

	log.Info().Msg("ingestor, scanners and decision service running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()
	container.Close()
	log.Info().Msg("shutdown complete")
}
