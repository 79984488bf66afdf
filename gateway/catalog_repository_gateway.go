package gateway

import (
	"context"

	"venue-indexer/domain"
	"venue-indexer/driver"
)

// CatalogDriver reads the venue catalog tables.
type CatalogDriver interface {
	GetVenues(ctx context.Context, limit, offset int) ([]driver.VenueRow, error)
	CountVenues(ctx context.Context) (int, error)
	GetVenueByID(ctx context.Context, id int64) (*driver.VenueRow, error)
	GetArtists(ctx context.Context, limit, offset int) ([]driver.ArtistRow, error)
	CountArtists(ctx context.Context) (int, error)
	GetArtistByID(ctx context.Context, id int64) (*driver.ArtistRow, error)
	GetEvents(ctx context.Context, limit, offset int) ([]driver.EventRow, error)
	CountEvents(ctx context.Context) (int, error)
	GetEventByID(ctx context.Context, id int64) (*driver.EventRow, error)
	GetCityByID(ctx context.Context, id int64) (*driver.CityRow, error)
}

// findPage reads one page of rows plus the table total and converts the rows.
func findPage[R, T any](
	ctx context.Context,
	op string,
	page domain.Page,
	fetch func(ctx context.Context, limit, offset int) ([]R, error),
	count func(ctx context.Context) (int, error),
	convert func(*R) T,
) (domain.PageResult[T], error) {
	rows, err := fetch(ctx, page.Limit, page.Offset())
	if err != nil {
		return domain.PageResult[T]{}, &domain.RepositoryError{Op: op, Err: err.Error()}
	}
	total, err := count(ctx)
	if err != nil {
		return domain.PageResult[T]{}, &domain.RepositoryError{Op: op, Err: err.Error()}
	}

	data := make([]T, 0, len(rows))
	for i := range rows {
		data = append(data, convert(&rows[i]))
	}
	return domain.PageResult[T]{Data: data, Total: total}, nil
}

type VenueRepositoryGateway struct {
	driver CatalogDriver
}

func NewVenueRepositoryGateway(driver CatalogDriver) *VenueRepositoryGateway {
	return &VenueRepositoryGateway{driver: driver}
}

func (g *VenueRepositoryGateway) FindAll(ctx context.Context, page domain.Page) (domain.PageResult[domain.Venue], error) {
	return findPage(ctx, "VenueRepository.FindAll", page, g.driver.GetVenues, g.driver.CountVenues, convertVenue)
}

// FindByID returns nil when the venue does not exist.
func (g *VenueRepositoryGateway) FindByID(ctx context.Context, id int64) (*domain.Venue, error) {
	row, err := g.driver.GetVenueByID(ctx, id)
	if err != nil {
		return nil, &domain.RepositoryError{Op: "VenueRepository.FindByID", Err: err.Error()}
	}
	if row == nil {
		return nil, nil
	}
	venue := convertVenue(row)
	return &venue, nil
}

type ArtistRepositoryGateway struct {
	driver CatalogDriver
}

func NewArtistRepositoryGateway(driver CatalogDriver) *ArtistRepositoryGateway {
	return &ArtistRepositoryGateway{driver: driver}
}

func (g *ArtistRepositoryGateway) FindAll(ctx context.Context, page domain.Page) (domain.PageResult[domain.Artist], error) {
	return findPage(ctx, "ArtistRepository.FindAll", page, g.driver.GetArtists, g.driver.CountArtists, convertArtist)
}

func (g *ArtistRepositoryGateway) FindByID(ctx context.Context, id int64) (*domain.Artist, error) {
	row, err := g.driver.GetArtistByID(ctx, id)
	if err != nil {
		return nil, &domain.RepositoryError{Op: "ArtistRepository.FindByID", Err: err.Error()}
	}
	if row == nil {
		return nil, nil
	}
	artist := convertArtist(row)
	return &artist, nil
}

type EventRepositoryGateway struct {
	driver CatalogDriver
}

func NewEventRepositoryGateway(driver CatalogDriver) *EventRepositoryGateway {
	return &EventRepositoryGateway{driver: driver}
}

func (g *EventRepositoryGateway) FindAll(ctx context.Context, page domain.Page) (domain.PageResult[domain.Event], error) {
	return findPage(ctx, "EventRepository.FindAll", page, g.driver.GetEvents, g.driver.CountEvents, convertEvent)
}

func (g *EventRepositoryGateway) FindByID(ctx context.Context, id int64) (*domain.Event, error) {
	row, err := g.driver.GetEventByID(ctx, id)
	if err != nil {
		return nil, &domain.RepositoryError{Op: "EventRepository.FindByID", Err: err.Error()}
	}
	if row == nil {
		return nil, nil
	}
	event := convertEvent(row)
	return &event, nil
}

type CityRepositoryGateway struct {
	driver CatalogDriver
}

func NewCityRepositoryGateway(driver CatalogDriver) *CityRepositoryGateway {
	return &CityRepositoryGateway{driver: driver}
}

func (g *CityRepositoryGateway) FindByID(ctx context.Context, id int64) (*domain.City, error) {
	row, err := g.driver.GetCityByID(ctx, id)
	if err != nil {
		return nil, &domain.RepositoryError{Op: "CityRepository.FindByID", Err: err.Error()}
	}
	return convertCity(row), nil
}

func convertPoint(lat, lon *float64) *domain.GeoPoint {
	if lat == nil || lon == nil {
		return nil
	}
	return &domain.GeoPoint{Lat: *lat, Lon: *lon}
}

func convertCity(row *driver.CityRow) *domain.City {
	if row == nil {
		return nil
	}
	return &domain.City{
		ID:            row.ID,
		Name:          row.Name,
		StateProvince: row.StateProvince,
		Country:       row.Country,
		Location:      convertPoint(row.Lat, row.Lon),
	}
}

func convertVenue(row *driver.VenueRow) domain.Venue {
	v := domain.Venue{
		ID:        row.ID,
		Name:      row.Name,
		Address:   derefString(row.Address),
		Location:  convertPoint(row.Lat, row.Lon),
		Website:   derefString(row.Website),
		Genres:    row.Genres,
		CreatedAt: row.CreatedAt,
		City:      convertCity(row.City),
	}
	if row.CityID != nil {
		v.CityID = *row.CityID
	}
	if row.Capacity != nil {
		c := int(*row.Capacity)
		v.Capacity = &c
	}
	if row.ProsperRank != nil {
		v.ProsperRank = int(*row.ProsperRank)
	}
	if v.Genres == nil {
		v.Genres = []string{}
	}
	return v
}

func convertArtist(row *driver.ArtistRow) domain.Artist {
	a := domain.Artist{
		ID:         row.ID,
		Name:       row.Name,
		Genres:     row.Genres,
		PhotoURL:   derefString(row.PhotoURL),
		ProfileBio: derefString(row.ProfileBio),
		CreatedAt:  row.CreatedAt,
	}
	if a.Genres == nil {
		a.Genres = []string{}
	}
	return a
}

func convertEvent(row *driver.EventRow) domain.Event {
	e := domain.Event{
		ID:            row.ID,
		Title:         row.Title,
		Description:   derefString(row.Description),
		EventDatetime: row.EventDatetime,
		TicketURL:     derefString(row.TicketURL),
		ExternalID:    derefString(row.ExternalID),
		CreatedAt:     row.CreatedAt,
		Artists:       make([]domain.Artist, 0, len(row.Artists)),
	}
	if row.VenueID != nil {
		e.VenueID = *row.VenueID
	}
	if row.Venue != nil {
		venue := convertVenue(row.Venue)
		e.Venue = &venue
	}
	for i := range row.Artists {
		e.Artists = append(e.Artists, convertArtist(&row.Artists[i]))
	}
	return e
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
