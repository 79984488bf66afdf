package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"venue-indexer/config"
	"venue-indexer/driver"
	"venue-indexer/logger"
)

// initDatabaseDriver opens the catalog database pool.
func initDatabaseDriver(ctx context.Context, cfg config.DatabaseConfig) (*driver.DatabaseDriver, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout())
	defer cancel()

	dbDriver, err := driver.NewDatabaseDriverFromURL(connectCtx, cfg.BuildPostgresURL())
	if err != nil {
		return nil, fmt.Errorf("database init: %w", err)
	}
	return dbDriver, nil
}

// initSearchBackend builds the configured backend behind a circuit breaker and,
// when Redis is configured, a result cache. The returned close func releases
// the cache client.
func initSearchBackend(cfg *config.Config) (driver.SearchBackend, func(), error) {
	var backend driver.SearchBackend
	switch cfg.Search.Backend {
	case config.BackendMeilisearch:
		logger.Logger.Info("Using Meilisearch backend", "host", cfg.Meilisearch.Host)
		backend = driver.NewMeilisearchDriver(
			driver.NewMeilisearchClient(cfg.Meilisearch.Host, cfg.Meilisearch.APIKey),
		)
	default:
		logger.Logger.Info("Using Elasticsearch backend", "urls", cfg.Elasticsearch.URLs)
		es, err := driver.NewElasticsearchDriver(driver.ElasticsearchConfig{
			Addresses: cfg.Elasticsearch.URLs,
			Username:  cfg.Elasticsearch.Username,
			Password:  cfg.Elasticsearch.Password,
			APIKey:    cfg.Elasticsearch.APIKey,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("elasticsearch init: %w", err)
		}
		backend = es
	}

	backend = driver.NewBreakerDriver(backend, driver.DefaultBreakerSettings())

	if cfg.Redis.URL == "" {
		logger.Logger.Info("Search cache disabled")
		return backend, func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("redis init: %w", err)
	}
	rdb := redis.NewClient(opts)
	logger.Logger.Info("Search cache enabled", "addr", opts.Addr)

	return driver.NewCacheDriver(backend, rdb), func() { _ = rdb.Close() }, nil
}
