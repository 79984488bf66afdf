package port

import (
	"context"

	"venue-indexer/domain"
)

// SearchIndex is the write and lifecycle side of the search index.
type SearchIndex interface {
	EnsureIndices(ctx context.Context) error
	IndexDocument(ctx context.Context, doc domain.Document) error
	BulkIndex(ctx context.Context, ops []domain.BulkOperation) error
	DeleteDocument(ctx context.Context, entity domain.EntityType, id string) error
	RefreshIndices(ctx context.Context) error
	HealthCheck(ctx context.Context) bool
}

// SearchEngine is the read side of the search index.
type SearchEngine interface {
	SearchAll(ctx context.Context, text string, params domain.SearchParams) (domain.CategorizedResults, error)
	SearchVenues(ctx context.Context, text string, params domain.SearchParams) (domain.SearchResult[domain.VenueDocument], error)
	SearchArtists(ctx context.Context, text string, params domain.SearchParams) (domain.SearchResult[domain.ArtistDocument], error)
	SearchEvents(ctx context.Context, text string, params domain.SearchParams) (domain.SearchResult[domain.EventDocument], error)
	SearchNearbyVenues(ctx context.Context, params domain.NearbyParams) (domain.SearchResult[domain.VenueDocument], error)
	GetSuggestions(ctx context.Context, prefix string, entity *domain.EntityType) ([]string, error)
	GetUpcomingEvents(ctx context.Context, params domain.UpcomingParams) (domain.SearchResult[domain.EventDocument], error)
}
