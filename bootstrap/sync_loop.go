package bootstrap

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"venue-indexer/config"
	"venue-indexer/logger"
	"venue-indexer/usecase"
)

// indexSyncer is the part of the sync use case the background loop drives.
type indexSyncer interface {
	Initialize(ctx context.Context) (usecase.SyncReport, error)
	FullSync(ctx context.Context) (usecase.SyncReport, error)
}

// newRetryBackoff creates an exponential backoff policy for sync retries.
func newRetryBackoff(initial time.Duration) *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initial
	bo.MaxInterval = 5 * time.Minute
	bo.Multiplier = 2
	return bo
}

// initializeIndex creates the indices and runs the first full sync, retrying
// with exponential backoff until it succeeds or the retry budget runs out.
func initializeIndex(ctx context.Context, s indexSyncer, cfg config.IndexerConfig) (usecase.SyncReport, error) {
	return backoff.Retry(ctx,
		func() (usecase.SyncReport, error) {
			return s.Initialize(ctx)
		},
		backoff.WithBackOff(newRetryBackoff(cfg.RetryDelay)),
		backoff.WithMaxTries(cfg.MaxRetries),
		backoff.WithMaxElapsedTime(cfg.InitTimeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Logger.Error("index initialization failed, retrying", "err", err, "retry_in", next)
		}),
	)
}

// runIndexLoop initializes the index, then re-runs a full sync every
// ResyncInterval. A failed resync is retried with backoff instead of waiting
// for the next interval.
func runIndexLoop(ctx context.Context, s indexSyncer, cfg config.IndexerConfig) {
	defer func() {
		if r := recover(); r != nil {
			logger.Logger.Error("index loop panic", "err", r)
		}
	}()

	report, err := initializeIndex(ctx, s, cfg)
	if err != nil {
		if ctx.Err() == nil {
			logger.Logger.Error("index initialization gave up", "err", err)
		}
		return
	}
	logger.Logger.Info("index initialized",
		"run_id", report.RunID,
		"venues", report.Venues,
		"artists", report.Artists,
		"events", report.Events,
		"duration", report.Duration,
	)

	if cfg.ResyncInterval <= 0 {
		logger.Logger.Info("periodic resync disabled")
		return
	}

	bo := newRetryBackoff(cfg.RetryDelay)
	wait := cfg.ResyncInterval
	for {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}

		report, err := s.FullSync(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			wait = bo.NextBackOff()
			logger.Logger.Error("resync failed, retrying", "err", err, "run_id", report.RunID, "retry_in", wait)
			continue
		}

		bo.Reset()
		wait = cfg.ResyncInterval
		logger.Logger.Info("resync completed",
			"run_id", report.RunID,
			"venues", report.Venues,
			"artists", report.Artists,
			"events", report.Events,
		)
	}
}
