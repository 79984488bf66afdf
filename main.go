package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"venue-indexer/bootstrap"
	"venue-indexer/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bootstrap.Run(ctx); err != nil {
		logger.Logger.Error("venue-indexer stopped", "err", err)
		stop()
		os.Exit(1)
	}
}
