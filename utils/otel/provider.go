package otel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Resource attributes that tell indexer deployments apart when several share
// a collector.
const (
	SearchBackendKey = attribute.Key("venue_indexer.search.backend")
	IndexPrefixKey   = attribute.Key("venue_indexer.index.prefix")
)

type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is the OTLP/HTTP base URL. An http:// scheme exports without
	// TLS.
	Endpoint       string
	Enabled        bool
	SampleRatio    float64
	MetricInterval time.Duration
	SearchBackend  string
	IndexPrefix    string
}

// ConfigFromEnv reads the OTEL_* variables plus SEARCH_BACKEND and
// INDEX_PREFIX, which only label the exported signals here.
func ConfigFromEnv() Config {
	return Config{
		ServiceName:    envOr("OTEL_SERVICE_NAME", "venue-indexer"),
		ServiceVersion: envOr("SERVICE_VERSION", "0.0.0"),
		Environment:    envOr("DEPLOYMENT_ENV", "development"),
		Endpoint:       envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
		Enabled:        boolEnv("OTEL_ENABLED", true),
		SampleRatio:    ratioEnv("OTEL_TRACE_SAMPLE_RATIO", 0.1),
		MetricInterval: millisEnv("OTEL_METRIC_EXPORT_INTERVAL", 15*time.Second),
		SearchBackend:  strings.ToLower(envOr("SEARCH_BACKEND", "elasticsearch")),
		IndexPrefix:    os.Getenv("INDEX_PREFIX"),
	}
}

type ShutdownFunc func(context.Context) error

// providers are the SDK providers InitProvider installed globally.
type providers struct {
	traces  *sdktrace.TracerProvider
	logs    *sdklog.LoggerProvider
	metrics *sdkmetric.MeterProvider
}

func (p *providers) shutdown(ctx context.Context) error {
	var errs []error
	if p.traces != nil {
		errs = append(errs, p.traces.Shutdown(ctx))
	}
	if p.logs != nil {
		errs = append(errs, p.logs.Shutdown(ctx))
	}
	if p.metrics != nil {
		errs = append(errs, p.metrics.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// InitProvider installs trace, log and meter providers exporting over
// OTLP/HTTP and registers the indexer instruments. On failure the providers
// already started are shut down again.
func InitProvider(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	p := &providers{}
	fail := func(step string, err error) (ShutdownFunc, error) {
		_ = p.shutdown(ctx)
		return nil, fmt.Errorf("failed to init %s: %w", step, err)
	}

	traceExporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(signalURL(cfg.Endpoint, "traces")))
	if err != nil {
		return fail("trace exporter", err)
	}
	p.traces = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)

	logExporter, err := otlploghttp.New(ctx, otlploghttp.WithEndpointURL(signalURL(cfg.Endpoint, "logs")))
	if err != nil {
		return fail("log exporter", err)
	}
	p.logs = sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		sdklog.WithResource(res),
	)

	metricExporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(signalURL(cfg.Endpoint, "metrics")))
	if err != nil {
		return fail("metric exporter", err)
	}
	p.metrics = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(cfg.MetricInterval))),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(p.traces)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	global.SetLoggerProvider(p.logs)
	otel.SetMeterProvider(p.metrics)

	if err := InitMetrics(); err != nil {
		return fail("metrics", err)
	}
	return p.shutdown, nil
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
		SearchBackendKey.String(cfg.SearchBackend),
	}
	if cfg.IndexPrefix != "" {
		attrs = append(attrs, IndexPrefixKey.String(cfg.IndexPrefix))
	}
	return resource.New(ctx, resource.WithAttributes(attrs...), resource.WithHost())
}

// signalURL appends the OTLP signal path to the collector base URL.
func signalURL(base, signal string) string {
	return strings.TrimRight(base, "/") + "/v1/" + signal
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func boolEnv(key string, def bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return def
}

// ratioEnv ignores values outside [0, 1].
func ratioEnv(key string, def float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || f < 0 || f > 1 {
		return def
	}
	return f
}

func millisEnv(key string, def time.Duration) time.Duration {
	ms, err := strconv.Atoi(os.Getenv(key))
	if err != nil || ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
