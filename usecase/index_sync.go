package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"venue-indexer/domain"
	"venue-indexer/logger"
	"venue-indexer/port"
	appOtel "venue-indexer/utils/otel"
)

// DefaultSyncPageSize is the number of rows read and bulk written at a time.
const DefaultSyncPageSize = 100

// SyncReport counts the documents written by a full sync.
type SyncReport struct {
	RunID    string        `json:"run_id"`
	Venues   int           `json:"venues"`
	Artists  int           `json:"artists"`
	Events   int           `json:"events"`
	Duration time.Duration `json:"duration_ns"`
}

// IndexSyncUsecase keeps the search index in step with the system of record.
type IndexSyncUsecase struct {
	venues   port.VenueRepository
	artists  port.ArtistRepository
	events   port.EventRepository
	index    port.SearchIndex
	metrics  *appOtel.IndexerMetrics
	pageSize int
}

func NewIndexSyncUsecase(
	venues port.VenueRepository,
	artists port.ArtistRepository,
	events port.EventRepository,
	index port.SearchIndex,
	metrics *appOtel.IndexerMetrics,
) *IndexSyncUsecase {
	return &IndexSyncUsecase{
		venues:   venues,
		artists:  artists,
		events:   events,
		index:    index,
		metrics:  metrics,
		pageSize: DefaultSyncPageSize,
	}
}

// WithPageSize overrides the sync page size. Values below 1 are ignored.
func (u *IndexSyncUsecase) WithPageSize(n int) *IndexSyncUsecase {
	if n > 0 {
		u.pageSize = n
	}
	return u
}

// Initialize creates missing indices and then runs a full sync.
func (u *IndexSyncUsecase) Initialize(ctx context.Context) (SyncReport, error) {
	if err := u.index.EnsureIndices(ctx); err != nil {
		u.metrics.RecordError(ctx, "EnsureIndices")
		return SyncReport{}, err
	}
	return u.FullSync(ctx)
}

// FullSync syncs the three entity kinds concurrently and refreshes the indices.
// A failing kind does not stop the others; their errors are joined.
func (u *IndexSyncUsecase) FullSync(ctx context.Context) (SyncReport, error) {
	report := SyncReport{RunID: uuid.NewString()}
	ctx = logger.WithSyncRunID(ctx, report.RunID)
	log := logger.GlobalContext.WithContext(ctx)
	start := time.Now()

	log.Info("full sync started")

	var venueErr, artistErr, eventErr error
	// errgroup.Group without a context: one failing kind must not cancel the others.
	var eg errgroup.Group
	eg.Go(func() error {
		report.Venues, venueErr = u.SyncAllVenues(ctx)
		return venueErr
	})
	eg.Go(func() error {
		report.Artists, artistErr = u.SyncAllArtists(ctx)
		return artistErr
	})
	eg.Go(func() error {
		report.Events, eventErr = u.SyncAllEvents(ctx)
		return eventErr
	})
	_ = eg.Wait()

	err := errors.Join(venueErr, artistErr, eventErr)
	if refreshErr := u.index.RefreshIndices(ctx); refreshErr != nil {
		u.metrics.RecordError(ctx, "RefreshIndices")
		err = errors.Join(err, refreshErr)
	}

	report.Duration = time.Since(start)
	if err != nil {
		log.Error("full sync finished with errors",
			"venues", report.Venues,
			"artists", report.Artists,
			"events", report.Events,
			"error", err)
		return report, err
	}

	log.Info("full sync completed",
		"venues", report.Venues,
		"artists", report.Artists,
		"events", report.Events,
		"duration_ms", report.Duration.Milliseconds())
	return report, nil
}

func (u *IndexSyncUsecase) SyncAllVenues(ctx context.Context) (int, error) {
	return syncAll(ctx, u, domain.EntityVenue, u.venues.FindAll, func(v *domain.Venue) domain.Document {
		return domain.NewVenueDocument(v)
	})
}

func (u *IndexSyncUsecase) SyncAllArtists(ctx context.Context) (int, error) {
	return syncAll(ctx, u, domain.EntityArtist, u.artists.FindAll, func(a *domain.Artist) domain.Document {
		return domain.NewArtistDocument(a)
	})
}

func (u *IndexSyncUsecase) SyncAllEvents(ctx context.Context) (int, error) {
	return syncAll(ctx, u, domain.EntityEvent, u.events.FindAll, func(e *domain.Event) domain.Document {
		return domain.NewEventDocument(e)
	})
}

// syncAll pages through fetch until a short page and writes each page with a
// single bulk call. The next page is not read before the bulk write returns.
func syncAll[T any](
	ctx context.Context,
	u *IndexSyncUsecase,
	entity domain.EntityType,
	fetch func(context.Context, domain.Page) (domain.PageResult[T], error),
	transform func(*T) domain.Document,
) (int, error) {
	op := "sync_" + string(entity)
	ctx = logger.WithOperation(ctx, op)
	start := time.Now()
	indexed := 0

	for page := 1; ; page++ {
		result, err := fetch(ctx, domain.Page{Page: page, Limit: u.pageSize})
		if err != nil {
			u.metrics.RecordError(ctx, op)
			return indexed, fmt.Errorf("sync %s page %d: %w", entity, page, err)
		}

		ops := make([]domain.BulkOperation, 0, len(result.Data))
		for i := range result.Data {
			ops = append(ops, domain.IndexOperation(transform(&result.Data[i])))
		}
		if len(ops) > 0 {
			if err := u.index.BulkIndex(ctx, ops); err != nil {
				u.metrics.RecordError(ctx, op)
				return indexed, fmt.Errorf("sync %s page %d: %w", entity, page, err)
			}
			indexed += len(ops)
			u.metrics.RecordIndexed(ctx, string(entity), len(ops))
		}

		if len(result.Data) < u.pageSize {
			break
		}
	}

	u.metrics.RecordSync(ctx, string(entity), time.Since(start))
	logger.GlobalContext.WithContext(ctx).Info("entity sync completed",
		"entity_type", string(entity),
		"indexed", indexed)
	return indexed, nil
}

// IndexVenue re-indexes one venue. A missing venue or one without a city is
// skipped without error.
func (u *IndexSyncUsecase) IndexVenue(ctx context.Context, id int64) error {
	ctx = logger.WithEntity(ctx, string(domain.EntityVenue), domain.FormatID(id))
	venue, err := u.venues.FindByID(ctx, id)
	if err != nil {
		u.metrics.RecordError(ctx, "IndexVenue")
		return err
	}
	if venue == nil || venue.City == nil {
		logger.GlobalContext.WithContext(ctx).Warn("venue not indexed: venue or city not found")
		return nil
	}
	return u.indexOne(ctx, "IndexVenue", domain.NewVenueDocument(venue))
}

// IndexArtist re-indexes one artist. A missing artist is skipped.
func (u *IndexSyncUsecase) IndexArtist(ctx context.Context, id int64) error {
	ctx = logger.WithEntity(ctx, string(domain.EntityArtist), domain.FormatID(id))
	artist, err := u.artists.FindByID(ctx, id)
	if err != nil {
		u.metrics.RecordError(ctx, "IndexArtist")
		return err
	}
	if artist == nil {
		logger.GlobalContext.WithContext(ctx).Warn("artist not indexed: artist not found")
		return nil
	}
	return u.indexOne(ctx, "IndexArtist", domain.NewArtistDocument(artist))
}

// IndexEvent re-indexes one event. A missing event or one without a venue is
// skipped.
func (u *IndexSyncUsecase) IndexEvent(ctx context.Context, id int64) error {
	ctx = logger.WithEntity(ctx, string(domain.EntityEvent), domain.FormatID(id))
	event, err := u.events.FindByID(ctx, id)
	if err != nil {
		u.metrics.RecordError(ctx, "IndexEvent")
		return err
	}
	if event == nil || event.Venue == nil {
		logger.GlobalContext.WithContext(ctx).Warn("event not indexed: event or venue not found")
		return nil
	}
	return u.indexOne(ctx, "IndexEvent", domain.NewEventDocument(event))
}

func (u *IndexSyncUsecase) indexOne(ctx context.Context, op string, doc domain.Document) error {
	if err := u.index.IndexDocument(ctx, doc); err != nil {
		u.metrics.RecordError(ctx, op)
		return err
	}
	u.metrics.RecordIndexed(ctx, string(doc.EntityType()), 1)
	logger.GlobalContext.WithContext(ctx).Info("document indexed")
	return nil
}

// RemoveFromIndex deletes the document of entity id from its index.
func (u *IndexSyncUsecase) RemoveFromIndex(ctx context.Context, entity domain.EntityType, id int64) error {
	ctx = logger.WithEntity(ctx, string(entity), domain.FormatID(id))
	if err := u.index.DeleteDocument(ctx, entity, domain.FormatID(id)); err != nil {
		u.metrics.RecordError(ctx, "RemoveFromIndex")
		return err
	}
	u.metrics.RecordDeleted(ctx, string(entity))
	logger.GlobalContext.WithContext(ctx).Info("document removed from index")
	return nil
}

func (u *IndexSyncUsecase) HealthCheck(ctx context.Context) domain.HealthStatus {
	if u.index.HealthCheck(ctx) {
		return domain.HealthStatus{Healthy: true, Message: "search index is healthy"}
	}
	return domain.HealthStatus{Healthy: false, Message: "search index is unreachable"}
}
