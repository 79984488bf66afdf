package port

import (
	"context"

	"venue-indexer/domain"
)

// VenueRepository reads venues from the system of record. FindByID loads the
// city and returns nil when the venue does not exist.
type VenueRepository interface {
	FindAll(ctx context.Context, page domain.Page) (domain.PageResult[domain.Venue], error)
	FindByID(ctx context.Context, id int64) (*domain.Venue, error)
}

type ArtistRepository interface {
	FindAll(ctx context.Context, page domain.Page) (domain.PageResult[domain.Artist], error)
	FindByID(ctx context.Context, id int64) (*domain.Artist, error)
}

// EventRepository reads events with their venue, the venue's city and the
// performing artists.
type EventRepository interface {
	FindAll(ctx context.Context, page domain.Page) (domain.PageResult[domain.Event], error)
	FindByID(ctx context.Context, id int64) (*domain.Event, error)
}

type CityRepository interface {
	FindByID(ctx context.Context, id int64) (*domain.City, error)
}
