package config

import (
	"os"
	"strconv"
	"time"
)

const (
	// ApplicationName tags the indexer's database sessions.
	ApplicationName = "venue-indexer"
	DBMaxConns      = 10
)

// Service constants with env var override support.
var (
	SyncPageSize    = intEnv("SYNC_PAGE_SIZE", 100)
	ResyncInterval  = durationEnv("RESYNC_INTERVAL", 30*time.Minute)
	RetryInterval   = durationEnv("RETRY_INTERVAL", 5*time.Second)
	InitTimeout     = durationEnv("INIT_TIMEOUT", 10*time.Minute)
	HTTPAddr        = stringEnv("HTTP_ADDR", ":9300")
	ShutdownTimeout = durationEnv("SHUTDOWN_TIMEOUT", 15*time.Second)
	DBTimeout       = durationEnv("DB_TIMEOUT", 10*time.Second)
	MeiliTimeout    = durationEnv("MEILI_TIMEOUT", 15*time.Second)
)

func stringEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func intEnv(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func durationEnv(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
