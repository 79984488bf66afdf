package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	BackendElasticsearch = "elasticsearch"
	BackendMeilisearch   = "meilisearch"
)

type Config struct {
	Database      DatabaseConfig
	Search        SearchConfig
	Elasticsearch ElasticsearchConfig
	Meilisearch   MeilisearchConfig
	Redis         RedisConfig
	Dedup         DedupConfig
	Indexer       IndexerConfig
	HTTP          HTTPConfig
}

type DatabaseConfig struct {
	Host     string `validate:"required"`
	Port     string `validate:"required,numeric"`
	Name     string `validate:"required"`
	User     string `validate:"required"`
	Password string `validate:"required"`
	Timeout  time.Duration
	MaxConns int `validate:"gte=1,lte=200"`
	SSL      SSLConfig
}

type SearchConfig struct {
	Backend     string `validate:"oneof=elasticsearch meilisearch"`
	IndexPrefix string `validate:"omitempty,max=64"`
}

type ElasticsearchConfig struct {
	URLs     []string `validate:"dive,url"`
	Username string
	Password string
	APIKey   string
	Enabled  bool
}

type MeilisearchConfig struct {
	Host    string `validate:"omitempty,url"`
	APIKey  string
	Timeout time.Duration
	Enabled bool
}

// RedisConfig backs the search cache. An empty URL disables caching.
type RedisConfig struct {
	URL string `validate:"omitempty,url"`
}

type DedupConfig struct {
	EventThreshold  float64 `validate:"gt=0,lte=1"`
	VenueThreshold  float64 `validate:"gt=0,lte=1"`
	ArtistThreshold float64 `validate:"gt=0,lte=1"`
	FuzzyMatching   bool
}

type IndexerConfig struct {
	PageSize       int `validate:"gt=0,lte=1000"`
	ResyncInterval time.Duration
	RetryDelay     time.Duration
	MaxRetries     uint
	InitTimeout    time.Duration
}

type HTTPConfig struct {
	Addr              string `validate:"required"`
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Load reads the configuration from the environment. Secrets may be given as
// <KEY>_FILE pointing at a mounted file. A missing required variable panics.
func Load() (*Config, error) {
	dbConfig := NewDatabaseConfigFromEnv()
	dbConfig.Host = getEnvRequired("DB_HOST")
	dbConfig.Port = getEnvRequired("DB_PORT")
	dbConfig.Name = getEnvRequired("DB_NAME")
	dbConfig.User = getEnvRequired("VENUE_INDEXER_DB_USER")
	dbConfig.Password = getEnvRequired("VENUE_INDEXER_DB_PASSWORD")

	if err := dbConfig.ValidateSSLConfig(); err != nil {
		slog.Error("Invalid SSL configuration", "error", err)
		return nil, fmt.Errorf("SSL configuration error: %w", err)
	}

	backend := strings.ToLower(getEnvOrDefault("SEARCH_BACKEND", BackendElasticsearch))

	cfg := &Config{
		Database: *dbConfig,
		Search: SearchConfig{
			Backend:     backend,
			IndexPrefix: getEnvOrDefault("INDEX_PREFIX", ""),
		},
		Elasticsearch: ElasticsearchConfig{
			URLs:     splitList(backendEnv(backend, BackendElasticsearch, "ELASTICSEARCH_URLS")),
			Username: getEnvOrDefault("ELASTICSEARCH_USERNAME", ""),
			Password: getEnvOrDefault("ELASTICSEARCH_PASSWORD", ""),
			APIKey:   getEnvOrDefault("ELASTICSEARCH_API_KEY", ""),
			Enabled:  backend == BackendElasticsearch,
		},
		Meilisearch: MeilisearchConfig{
			Host:    backendEnv(backend, BackendMeilisearch, "MEILISEARCH_HOST"),
			APIKey:  getEnvOrDefault("MEILISEARCH_API_KEY", ""),
			Timeout: MeiliTimeout,
			Enabled: backend == BackendMeilisearch,
		},
		Redis: RedisConfig{
			URL: getEnvOrDefault("REDIS_URL", ""),
		},
		Dedup: DedupConfig{
			EventThreshold:  floatEnv("DEDUP_EVENT_THRESHOLD", 0.8),
			VenueThreshold:  floatEnv("DEDUP_VENUE_THRESHOLD", 0.9),
			ArtistThreshold: floatEnv("DEDUP_ARTIST_THRESHOLD", 0.85),
			FuzzyMatching:   boolEnv("FUZZY_MATCHING", true),
		},
		Indexer: IndexerConfig{
			PageSize:       SyncPageSize,
			ResyncInterval: ResyncInterval,
			RetryDelay:     RetryInterval,
			MaxRetries:     5,
			InitTimeout:    InitTimeout,
		},
		HTTP: HTTPConfig{
			Addr:              HTTPAddr,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   ShutdownTimeout,
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	slog.Info("Configuration loaded",
		"db_host", cfg.Database.Host,
		"db_sslmode", cfg.Database.SSL.Mode,
		"search_backend", cfg.Search.Backend,
		"index_prefix", cfg.Search.IndexPrefix,
		"cache_enabled", cfg.Redis.URL != "",
	)

	return cfg, nil
}

// backendEnv is required when backend is the selected one and optional
// otherwise.
func backendEnv(selected, backend, key string) string {
	if selected == backend {
		return getEnvRequired(key)
	}
	return getEnvOrDefault(key, "")
}

func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// readSecretFile returns the trimmed content of the file named by key_FILE.
func readSecretFile(key string) (string, bool) {
	path := os.Getenv(key + "_FILE")
	if path == "" {
		return "", false
	}
	content, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("failed to read secret file", "key", key, "error", err)
		return "", false
	}
	return strings.TrimSpace(string(content)), true
}

func getEnvRequired(key string) string {
	if v, ok := readSecretFile(key); ok {
		return v
	}

	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return value
}

func getEnvOrDefault(key, defaultValue string) string {
	if v, ok := readSecretFile(key); ok {
		return v
	}

	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func floatEnv(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func boolEnv(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}
