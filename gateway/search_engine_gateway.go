package gateway

import (
	"context"
	"encoding/json"
	"time"

	"venue-indexer/domain"
	"venue-indexer/driver"
	"venue-indexer/logger"
	"venue-indexer/optimizer"
	"venue-indexer/query"

	"golang.org/x/sync/errgroup"
)

type SearchDriver interface {
	IndexExists(ctx context.Context, index string) (bool, error)
	CreateIndex(ctx context.Context, index string, body map[string]any) error
	IndexDocument(ctx context.Context, index, id string, doc any) error
	Bulk(ctx context.Context, items []driver.BulkItem) error
	DeleteDocument(ctx context.Context, index, id string) error
	Search(ctx context.Context, index string, req query.Request) (*driver.SearchResponse, error)
	Refresh(ctx context.Context, indices ...string) error
	Ping(ctx context.Context) error
}

const (
	suggestionCacheTTL = 5 * time.Minute
	upcomingCacheTTL   = time.Minute
)

var suggestFields = map[domain.EntityType]string{
	domain.EntityVenue:  query.VenueSuggestField,
	domain.EntityArtist: query.ArtistSuggestField,
	domain.EntityEvent:  query.EventSuggestField,
}

type SearchEngineGateway struct {
	driver    SearchDriver
	optimizer *optimizer.Optimizer
	indices   IndexNames
	now       func() time.Time
}

func NewSearchEngineGateway(driver SearchDriver, opt *optimizer.Optimizer, indices IndexNames) *SearchEngineGateway {
	return &SearchEngineGateway{
		driver:    driver,
		optimizer: opt,
		indices:   indices,
		now:       time.Now,
	}
}

// WithClock replaces the time source used for relative date windows.
func (g *SearchEngineGateway) WithClock(now func() time.Time) *SearchEngineGateway {
	g.now = now
	return g
}

// EnsureIndices creates every missing index with its fixed schema. Existing
// indices are left untouched.
func (g *SearchEngineGateway) EnsureIndices(ctx context.Context) error {
	for _, entity := range domain.EntityTypes {
		index := g.indices[entity]
		exists, err := g.driver.IndexExists(ctx, index)
		if err != nil {
			return &domain.SearchEngineError{Op: "EnsureIndices", Index: index, Err: err}
		}
		if exists {
			continue
		}
		if err := g.driver.CreateIndex(ctx, index, IndexBody(entity)); err != nil {
			return &domain.SearchEngineError{Op: "EnsureIndices", Index: index, Err: err}
		}
		logger.Logger.Info("search index created", "index", index, "entity_type", string(entity))
	}
	return nil
}

// IndexDocument upserts doc by id, replacing any previous version.
func (g *SearchEngineGateway) IndexDocument(ctx context.Context, doc domain.Document) error {
	index := g.indices[doc.EntityType()]
	if err := g.driver.IndexDocument(ctx, index, doc.DocumentID(), doc); err != nil {
		return &domain.SearchEngineError{
			Op:         "IndexDocument",
			Index:      index,
			DocumentID: doc.DocumentID(),
			Err:        err,
		}
	}
	return nil
}

func (g *SearchEngineGateway) BulkIndex(ctx context.Context, ops []domain.BulkOperation) error {
	if len(ops) == 0 {
		return nil
	}

	items := make([]driver.BulkItem, len(ops))
	for i, op := range ops {
		items[i] = driver.BulkItem{
			Action: string(op.Action),
			Index:  g.indices[op.Entity],
			ID:     op.ID,
		}
		if op.Action == domain.BulkIndex {
			items[i].Document = op.Document
		}
	}

	if err := g.driver.Bulk(ctx, items); err != nil {
		return &domain.SearchEngineError{Op: "BulkIndex", Index: items[0].Index, Err: err}
	}
	return nil
}

func (g *SearchEngineGateway) DeleteDocument(ctx context.Context, entity domain.EntityType, id string) error {
	index := g.indices[entity]
	if err := g.driver.DeleteDocument(ctx, index, id); err != nil {
		return &domain.SearchEngineError{Op: "DeleteDocument", Index: index, DocumentID: id, Err: err}
	}
	return nil
}

// RefreshIndices makes every write so far visible to searches.
func (g *SearchEngineGateway) RefreshIndices(ctx context.Context) error {
	if err := g.driver.Refresh(ctx, g.indices.All()...); err != nil {
		return &domain.SearchEngineError{Op: "RefreshIndices", Err: err}
	}
	return nil
}

// HealthCheck never fails; any backend error reads as unhealthy.
func (g *SearchEngineGateway) HealthCheck(ctx context.Context) bool {
	if err := g.driver.Ping(ctx); err != nil {
		logger.Logger.Warn("search backend health check failed", "error", err)
		return false
	}
	return true
}

// execute optimizes req, runs it against the entity's index and decodes the
// hits into T.
func execute[T any](ctx context.Context, g *SearchEngineGateway, op string, entity domain.EntityType, req query.Request) (domain.SearchResult[T], error) {
	index := g.indices[entity]
	resp, err := g.driver.Search(ctx, index, g.optimizer.Optimize(req))
	if err != nil {
		return domain.SearchResult[T]{}, &domain.SearchEngineError{Op: op, Index: index, Err: err}
	}

	result := domain.SearchResult[T]{
		Total: resp.Total,
		Hits:  make([]domain.Hit[T], 0, len(resp.Hits)),
	}
	for _, h := range resp.Hits {
		var doc T
		if err := json.Unmarshal(h.Source, &doc); err != nil {
			return domain.SearchResult[T]{}, &domain.SearchEngineError{Op: op, Index: index, DocumentID: h.ID, Err: err}
		}
		hit := domain.Hit[T]{ID: h.ID, Score: h.Score, Document: doc}
		if d, ok := h.Fields[optimizer.DistanceField]; ok {
			hit.DistanceKm = &d
		}
		result.Hits = append(result.Hits, hit)
	}
	return result, nil
}

// SearchAll runs the text query against all three indices concurrently. Only
// page, limit and genres apply across entity kinds; events filter genres
// through their nested artists.
func (g *SearchEngineGateway) SearchAll(ctx context.Context, text string, params domain.SearchParams) (domain.CategorizedResults, error) {
	shared := domain.SearchParams{
		Page:   params.Page,
		Limit:  params.Limit,
		Genres: params.Genres,
	}

	var out domain.CategorizedResults
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		out.Venues, err = g.SearchVenues(ctx, text, shared)
		return err
	})
	eg.Go(func() error {
		var err error
		out.Artists, err = g.SearchArtists(ctx, text, shared)
		return err
	})
	eg.Go(func() error {
		var err error
		out.Events, err = g.SearchEvents(ctx, text, shared)
		return err
	})
	if err := eg.Wait(); err != nil {
		return domain.CategorizedResults{}, err
	}

	out.Total = out.Venues.Total + out.Artists.Total + out.Events.Total
	return out, nil
}

func (g *SearchEngineGateway) SearchVenues(ctx context.Context, text string, params domain.SearchParams) (domain.SearchResult[domain.VenueDocument], error) {
	return execute[domain.VenueDocument](ctx, g, "SearchVenues", domain.EntityVenue, query.BuildVenueSearch(text, params))
}

func (g *SearchEngineGateway) SearchArtists(ctx context.Context, text string, params domain.SearchParams) (domain.SearchResult[domain.ArtistDocument], error) {
	return execute[domain.ArtistDocument](ctx, g, "SearchArtists", domain.EntityArtist, query.BuildArtistSearch(text, params))
}

func (g *SearchEngineGateway) SearchEvents(ctx context.Context, text string, params domain.SearchParams) (domain.SearchResult[domain.EventDocument], error) {
	return execute[domain.EventDocument](ctx, g, "SearchEvents", domain.EntityEvent, query.BuildEventSearch(text, params))
}

// SearchNearbyVenues ranks venues inside the radius by proximity, then by
// prosper rank, and reports each hit's distance.
func (g *SearchEngineGateway) SearchNearbyVenues(ctx context.Context, params domain.NearbyParams) (domain.SearchResult[domain.VenueDocument], error) {
	var base query.Query
	if capacity := query.IntRangeFilter("capacity", params.CapacityMin, nil); capacity != nil {
		base = query.Bool{Filter: []query.Query{capacity}}
	}

	req := g.optimizer.BuildGeoQuery(optimizer.GeoQueryParams{
		Base:            base,
		Field:           "location",
		Point:           domain.GeoPoint{Lat: params.Lat, Lon: params.Lon},
		RadiusKm:        params.RadiusKm,
		IncludeDistance: true,
		RankField:       "prosper_rank",
		Page:            params.Page,
		Limit:           params.Limit,
	})
	return execute[domain.VenueDocument](ctx, g, "SearchNearbyVenues", domain.EntityVenue, req)
}

// GetUpcomingEvents lists events from now to now+days_ahead by start time.
// The window start is truncated to the minute so repeated calls share a cache
// entry.
func (g *SearchEngineGateway) GetUpcomingEvents(ctx context.Context, params domain.UpcomingParams) (domain.SearchResult[domain.EventDocument], error) {
	now := g.now().UTC().Truncate(time.Minute)
	req := g.optimizer.WithCache(query.BuildUpcomingEvents(params, now), "upcoming", upcomingCacheTTL)
	return execute[domain.EventDocument](ctx, g, "GetUpcomingEvents", domain.EntityEvent, req)
}

// GetSuggestions returns up to ten completions for prefix. Without an entity
// kind all indices are asked and duplicates are dropped, keeping first seen
// order.
func (g *SearchEngineGateway) GetSuggestions(ctx context.Context, prefix string, entity *domain.EntityType) ([]string, error) {
	if prefix == "" {
		return []string{}, nil
	}

	entities := domain.EntityTypes
	if entity != nil {
		entities = []domain.EntityType{*entity}
	}

	seen := map[string]bool{}
	out := make([]string, 0, domain.MaxSuggestions)
	for _, e := range entities {
		index := g.indices[e]
		req := query.BuildSuggestion(prefix, suggestFields[e], domain.MaxSuggestions)
		req = g.optimizer.WithCache(req, "suggest", suggestionCacheTTL)

		resp, err := g.driver.Search(ctx, index, req)
		if err != nil {
			return nil, &domain.SearchEngineError{Op: "GetSuggestions", Index: index, Err: err}
		}
		for _, s := range resp.Suggestions[req.Suggest[0].Name] {
			if seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
			if len(out) == domain.MaxSuggestions {
				return out, nil
			}
		}
	}
	return out, nil
}
