package otel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func TestConfigFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		for _, key := range []string{
			"OTEL_SERVICE_NAME", "OTEL_ENABLED", "OTEL_TRACE_SAMPLE_RATIO",
			"OTEL_METRIC_EXPORT_INTERVAL", "SEARCH_BACKEND", "INDEX_PREFIX",
		} {
			t.Setenv(key, "")
		}

		cfg := ConfigFromEnv()
		assert.Equal(t, "venue-indexer", cfg.ServiceName)
		assert.True(t, cfg.Enabled)
		assert.Equal(t, 0.1, cfg.SampleRatio)
		assert.Equal(t, 15*time.Second, cfg.MetricInterval)
		assert.Equal(t, "elasticsearch", cfg.SearchBackend)
		assert.Empty(t, cfg.IndexPrefix)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("OTEL_ENABLED", "false")
		t.Setenv("OTEL_TRACE_SAMPLE_RATIO", "1")
		t.Setenv("OTEL_METRIC_EXPORT_INTERVAL", "2500")
		t.Setenv("SEARCH_BACKEND", "Meilisearch")
		t.Setenv("INDEX_PREFIX", "staging")

		cfg := ConfigFromEnv()
		assert.False(t, cfg.Enabled)
		assert.Equal(t, 1.0, cfg.SampleRatio)
		assert.Equal(t, 2500*time.Millisecond, cfg.MetricInterval)
		assert.Equal(t, "meilisearch", cfg.SearchBackend)
		assert.Equal(t, "staging", cfg.IndexPrefix)
	})

	t.Run("out of range values fall back", func(t *testing.T) {
		t.Setenv("OTEL_ENABLED", "maybe")
		t.Setenv("OTEL_TRACE_SAMPLE_RATIO", "1.5")
		t.Setenv("OTEL_METRIC_EXPORT_INTERVAL", "-1")

		cfg := ConfigFromEnv()
		assert.True(t, cfg.Enabled)
		assert.Equal(t, 0.1, cfg.SampleRatio)
		assert.Equal(t, 15*time.Second, cfg.MetricInterval)
	})
}

func TestSignalURL(t *testing.T) {
	assert.Equal(t, "http://collector:4318/v1/traces", signalURL("http://collector:4318", "traces"))
	assert.Equal(t, "https://otel.example.com/v1/metrics", signalURL("https://otel.example.com/", "metrics"))
}

func TestNewResource(t *testing.T) {
	res, err := newResource(context.Background(), Config{
		ServiceName:   "venue-indexer",
		SearchBackend: "meilisearch",
		IndexPrefix:   "staging",
	})
	require.NoError(t, err)

	set := res.Set()
	name, ok := set.Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, "venue-indexer", name.AsString())

	backend, ok := set.Value(SearchBackendKey)
	require.True(t, ok)
	assert.Equal(t, "meilisearch", backend.AsString())

	prefix, ok := set.Value(IndexPrefixKey)
	require.True(t, ok)
	assert.Equal(t, "staging", prefix.AsString())
}

func TestNewResource_NoPrefix(t *testing.T) {
	res, err := newResource(context.Background(), Config{ServiceName: "venue-indexer", SearchBackend: "elasticsearch"})
	require.NoError(t, err)

	_, ok := res.Set().Value(IndexPrefixKey)
	assert.False(t, ok)
}

func TestInitProvider_Disabled(t *testing.T) {
	shutdown, err := InitProvider(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestProviders_ShutdownWithNothingStarted(t *testing.T) {
	assert.NoError(t, (&providers{}).shutdown(context.Background()))
}
