package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"venue-indexer/config"
	"venue-indexer/consumer"
	"venue-indexer/driver"
	"venue-indexer/gateway"
	"venue-indexer/logger"
	"venue-indexer/optimizer"
	"venue-indexer/rest"
	"venue-indexer/usecase"
	appOtel "venue-indexer/utils/otel"
	"venue-indexer/validation"
)

// App holds all components of the venue-indexer service.
type App struct {
	httpServer      *http.Server
	dbDriver        *driver.DatabaseDriver
	closeSearch     func()
	redisConsumer   *consumer.Consumer
	otelShutdown    appOtel.ShutdownFunc
	shutdownTimeout time.Duration
}

// Run initializes all components and starts the service.
// It blocks until ctx is cancelled, then performs graceful shutdown.
func Run(ctx context.Context) error {
	// ── OpenTelemetry ──
	otelCfg := appOtel.ConfigFromEnv()
	otelShutdown, err := appOtel.InitProvider(ctx, otelCfg)
	if err != nil {
		fmt.Printf("Failed to initialize OpenTelemetry: %v\n", err)
		otelCfg.Enabled = false
		otelShutdown = func(context.Context) error { return nil }
	}

	// ── Logger ──
	logger.Setup(logger.OptionsFromEnv(otelCfg.ServiceName, otelCfg.Enabled))
	logger.Logger.Info("Starting venue-indexer",
		"service", otelCfg.ServiceName,
		"otel_enabled", otelCfg.Enabled,
	)

	// ── Load config ──
	appCfg, err := config.Load()
	if err != nil {
		logger.Logger.Error("Failed to load config", "err", err)
		return err
	}

	// ── Drivers (infrastructure layer) ──
	dbDriver, err := initDatabaseDriver(ctx, appCfg.Database)
	if err != nil {
		logger.Logger.Error("Failed to initialize database driver", "err", err)
		return err
	}

	searchBackend, closeSearch, err := initSearchBackend(appCfg)
	if err != nil {
		logger.Logger.Error("Failed to initialize search backend", "err", err)
		dbDriver.Close()
		return err
	}

	// ── Gateways (anti-corruption layer) ──
	venueRepo := gateway.NewVenueRepositoryGateway(dbDriver)
	artistRepo := gateway.NewArtistRepositoryGateway(dbDriver)
	eventRepo := gateway.NewEventRepositoryGateway(dbDriver)
	searchEngine := gateway.NewSearchEngineGateway(
		searchBackend,
		optimizer.New(optimizer.DefaultOptions()),
		gateway.NewIndexNames(appCfg.Search.IndexPrefix),
	)

	// ── Use cases (application layer) ──
	metrics := appOtel.Metrics
	syncUsecase := usecase.NewIndexSyncUsecase(venueRepo, artistRepo, eventRepo, searchEngine, metrics).
		WithPageSize(appCfg.Indexer.PageSize)
	searchUsecase := usecase.NewSearchUsecase(searchEngine, metrics)
	ingestUsecase := usecase.NewIngestValidationUsecase(validation.NewService(validation.Config{
		EventThreshold:  appCfg.Dedup.EventThreshold,
		VenueThreshold:  appCfg.Dedup.VenueThreshold,
		ArtistThreshold: appCfg.Dedup.ArtistThreshold,
		FuzzyMatching:   appCfg.Dedup.FuzzyMatching,
	}))

	// ── Redis Streams Consumer ──
	consumerCfg := consumer.ConfigFromEnv()
	eventHandler := consumer.NewIndexEventHandler(syncUsecase, logger.Logger)
	redisConsumer, err := consumer.NewConsumer(consumerCfg, eventHandler, logger.Logger)
	if err != nil {
		logger.Logger.Error("Failed to create Redis Streams consumer", "err", err)
		redisConsumer = nil
	} else if err := redisConsumer.Start(ctx); err != nil {
		logger.Logger.Error("Failed to start Redis Streams consumer", "err", err)
	}

	// ── Initial sync and periodic resync ──
	go runIndexLoop(ctx, syncUsecase, appCfg.Indexer)

	// ── Servers ──
	app := &App{
		httpServer:      newHTTPServer(rest.NewHandler(searchUsecase, syncUsecase, ingestUsecase), appCfg.HTTP, otelCfg.Enabled),
		dbDriver:        dbDriver,
		closeSearch:     closeSearch,
		redisConsumer:   redisConsumer,
		otelShutdown:    otelShutdown,
		shutdownTimeout: appCfg.HTTP.ShutdownTimeout,
	}

	go func() {
		logger.Logger.Info("http listen", "addr", appCfg.HTTP.Addr)
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Logger.Error("http", "err", err)
		}
	}()

	// ── Wait for shutdown signal ──
	<-ctx.Done()
	app.shutdown()
	return nil
}

// shutdown performs graceful shutdown of all components.
func (a *App) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error("http shutdown error", "err", err)
	}
	if a.redisConsumer != nil {
		a.redisConsumer.Stop()
	}
	if a.closeSearch != nil {
		a.closeSearch()
	}
	if a.dbDriver != nil {
		a.dbDriver.Close()
	}

	otelCtx, otelCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer otelCancel()
	if err := a.otelShutdown(otelCtx); err != nil {
		fmt.Printf("Failed to shutdown OpenTelemetry: %v\n", err)
	}
}
