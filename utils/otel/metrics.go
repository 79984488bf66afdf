package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the process wide instruments once InitMetrics has run.
var Metrics *IndexerMetrics

// IndexerMetrics contains all metric instruments.
type IndexerMetrics struct {
	IndexedTotal   metric.Int64Counter
	DeletedTotal   metric.Int64Counter
	ErrorsTotal    metric.Int64Counter
	SyncDuration   metric.Float64Histogram
	SearchDuration metric.Float64Histogram
}

// InitMetrics registers the instruments on the global meter provider.
func InitMetrics() error {
	m, err := NewMetrics(otel.Meter("venue-indexer"))
	if err != nil {
		return err
	}
	Metrics = m
	return nil
}

func NewMetrics(meter metric.Meter) (*IndexerMetrics, error) {
	indexedTotal, err := meter.Int64Counter("venue_indexer_indexed_total",
		metric.WithDescription("Total number of documents written to the search index"),
	)
	if err != nil {
		return nil, err
	}

	deletedTotal, err := meter.Int64Counter("venue_indexer_deleted_total",
		metric.WithDescription("Total number of documents removed from the search index"),
	)
	if err != nil {
		return nil, err
	}

	errorsTotal, err := meter.Int64Counter("venue_indexer_errors_total",
		metric.WithDescription("Total number of errors"),
	)
	if err != nil {
		return nil, err
	}

	syncDuration, err := meter.Float64Histogram("venue_indexer_sync_duration_seconds",
		metric.WithDescription("Entity sync duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	searchDuration, err := meter.Float64Histogram("venue_indexer_search_duration_seconds",
		metric.WithDescription("Search request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &IndexerMetrics{
		IndexedTotal:   indexedTotal,
		DeletedTotal:   deletedTotal,
		ErrorsTotal:    errorsTotal,
		SyncDuration:   syncDuration,
		SearchDuration: searchDuration,
	}, nil
}

// The helpers below are safe on a nil receiver so callers need not check
// whether telemetry is enabled.

func (m *IndexerMetrics) RecordIndexed(ctx context.Context, entity string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.IndexedTotal.Add(ctx, int64(n), metric.WithAttributes(attribute.String("entity_type", entity)))
}

func (m *IndexerMetrics) RecordDeleted(ctx context.Context, entity string) {
	if m == nil {
		return
	}
	m.DeletedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("entity_type", entity)))
}

func (m *IndexerMetrics) RecordError(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
}

func (m *IndexerMetrics) RecordSync(ctx context.Context, entity string, d time.Duration) {
	if m == nil {
		return
	}
	m.SyncDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("entity_type", entity)))
}

func (m *IndexerMetrics) RecordSearch(ctx context.Context, kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.SearchDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("search_kind", kind)))
}
