package driver

import (
	"context"
	"errors"
	"time"

	"venue-indexer/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxIface is the subset of *pgxpool.Pool the driver uses.
type PgxIface interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

type DatabaseDriver struct {
	pool PgxIface
}

func NewDatabaseDriver(pool PgxIface) *DatabaseDriver {
	return &DatabaseDriver{
		pool: pool,
	}
}

// NewDatabaseDriverFromURL connects a pool to dbURL and verifies it.
func NewDatabaseDriverFromURL(ctx context.Context, dbURL string) (*DatabaseDriver, error) {
	pool, err := initDatabasePool(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	return &DatabaseDriver{
		pool: pool,
	}, nil
}

// initDatabasePool initializes the database connection pool
func initDatabasePool(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, wrapError(ctx, "initDatabasePool", "failed to parse database URL", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, wrapError(ctx, "initDatabasePool", "failed to create database pool", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, wrapError(ctx, "initDatabasePool", "failed to ping database", err)
	}

	logger.Logger.Info("Database connected successfully")
	return pool, nil
}

// Close closes the database connection pool
func (d *DatabaseDriver) Close() {
	if d.pool != nil {
		d.pool.Close()
	}
}

func (d *DatabaseDriver) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

const venueColumns = `
	v.id, v.city_id, v.name, v.address,
	ST_Y(v.coordinates), ST_X(v.coordinates),
	v.capacity, v.website, v.prosper_rank,
	COALESCE((
		SELECT array_agg(DISTINCT g ORDER BY g)
		FROM events e
		JOIN event_artists ea ON ea.event_id = e.id
		JOIN artists a ON a.id = ea.artist_id
		CROSS JOIN LATERAL unnest(a.genres) AS g
		WHERE e.venue_id = v.id
	), '{}') AS genres,
	v.created_at,
	c.id, c.name, c.state_province, c.country,
	ST_Y(c.coordinates), ST_X(c.coordinates)`

const (
	selectVenuesPage = `SELECT` + venueColumns + `
	FROM venues v
	LEFT JOIN cities c ON c.id = v.city_id
	ORDER BY v.id
	LIMIT $1 OFFSET $2`

	selectVenueByID = `SELECT` + venueColumns + `
	FROM venues v
	LEFT JOIN cities c ON c.id = v.city_id
	WHERE v.id = $1`

	countVenues = `SELECT COUNT(*) FROM venues`

	selectArtistsPage = `
	SELECT a.id, a.name, COALESCE(a.genres, '{}'), a.photo_url, a.profile_bio, a.created_at
	FROM artists a
	ORDER BY a.id
	LIMIT $1 OFFSET $2`

	selectArtistByID = `
	SELECT a.id, a.name, COALESCE(a.genres, '{}'), a.photo_url, a.profile_bio, a.created_at
	FROM artists a
	WHERE a.id = $1`

	countArtists = `SELECT COUNT(*) FROM artists`

	eventColumns = `
	e.id, e.venue_id, e.title, e.description, e.event_datetime,
	e.ticket_url, e.external_id, e.created_at,
	v.id, v.name, ST_Y(v.coordinates), ST_X(v.coordinates), v.capacity,
	c.id, c.name, c.state_province, c.country,
	ST_Y(c.coordinates), ST_X(c.coordinates)`

	selectEventsPage = `SELECT` + eventColumns + `
	FROM events e
	LEFT JOIN venues v ON v.id = e.venue_id
	LEFT JOIN cities c ON c.id = v.city_id
	ORDER BY e.id
	LIMIT $1 OFFSET $2`

	selectEventByID = `SELECT` + eventColumns + `
	FROM events e
	LEFT JOIN venues v ON v.id = e.venue_id
	LEFT JOIN cities c ON c.id = v.city_id
	WHERE e.id = $1`

	countEvents = `SELECT COUNT(*) FROM events`

	selectEventArtists = `
	SELECT ea.event_id, a.id, a.name, COALESCE(a.genres, '{}'), a.photo_url, a.profile_bio, a.created_at
	FROM event_artists ea
	JOIN artists a ON a.id = ea.artist_id
	WHERE ea.event_id = ANY($1)
	ORDER BY ea.event_id, a.id`

	selectCityByID = `
	SELECT c.id, c.name, c.state_province, c.country, ST_Y(c.coordinates), ST_X(c.coordinates)
	FROM cities c
	WHERE c.id = $1`
)

// nullableCity holds the LEFT JOINed city columns.
type nullableCity struct {
	id            *int64
	name          *string
	stateProvince *string
	country       *string
	lat, lon      *float64
}

func (c nullableCity) row() *CityRow {
	if c.id == nil {
		return nil
	}
	return &CityRow{
		ID:            *c.id,
		Name:          deref(c.name),
		StateProvince: deref(c.stateProvince),
		Country:       deref(c.country),
		Lat:           c.lat,
		Lon:           c.lon,
	}
}

func scanVenue(row pgx.Row) (*VenueRow, error) {
	var v VenueRow
	var createdAt *time.Time
	var city nullableCity

	err := row.Scan(
		&v.ID, &v.CityID, &v.Name, &v.Address,
		&v.Lat, &v.Lon,
		&v.Capacity, &v.Website, &v.ProsperRank,
		&v.Genres,
		&createdAt,
		&city.id, &city.name, &city.stateProvince, &city.country,
		&city.lat, &city.lon,
	)
	if err != nil {
		return nil, err
	}
	if createdAt != nil {
		v.CreatedAt = *createdAt
	}
	v.City = city.row()
	return &v, nil
}

func scanArtist(row pgx.Row, dest ...any) (*ArtistRow, error) {
	var a ArtistRow
	var createdAt *time.Time

	targets := append(dest, &a.ID, &a.Name, &a.Genres, &a.PhotoURL, &a.ProfileBio, &createdAt)
	if err := row.Scan(targets...); err != nil {
		return nil, err
	}
	if createdAt != nil {
		a.CreatedAt = *createdAt
	}
	return &a, nil
}

func scanEvent(row pgx.Row) (*EventRow, error) {
	var e EventRow
	var createdAt *time.Time
	var venueID *int64
	var venueName *string
	var venueLat, venueLon *float64
	var venueCapacity *int32
	var city nullableCity

	err := row.Scan(
		&e.ID, &e.VenueID, &e.Title, &e.Description, &e.EventDatetime,
		&e.TicketURL, &e.ExternalID, &createdAt,
		&venueID, &venueName, &venueLat, &venueLon, &venueCapacity,
		&city.id, &city.name, &city.stateProvince, &city.country,
		&city.lat, &city.lon,
	)
	if err != nil {
		return nil, err
	}
	if createdAt != nil {
		e.CreatedAt = *createdAt
	}
	if venueID != nil {
		e.Venue = &VenueRow{
			ID:       *venueID,
			CityID:   city.id,
			Name:     deref(venueName),
			Lat:      venueLat,
			Lon:      venueLon,
			Capacity: venueCapacity,
			City:     city.row(),
		}
	}
	return &e, nil
}

func (d *DatabaseDriver) count(ctx context.Context, query string) (int, error) {
	var count int
	if err := d.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (d *DatabaseDriver) GetVenues(ctx context.Context, limit, offset int) ([]VenueRow, error) {
	rows, err := d.pool.Query(ctx, selectVenuesPage, limit, offset)
	if err != nil {
		return nil, &DriverError{Op: "GetVenues", Err: err.Error(), Cause: err}
	}
	defer rows.Close()

	venues := make([]VenueRow, 0, limit)
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, &DriverError{Op: "GetVenues", Err: err.Error(), Cause: err}
		}
		venues = append(venues, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, &DriverError{Op: "GetVenues", Err: err.Error(), Cause: err}
	}
	return venues, nil
}

func (d *DatabaseDriver) CountVenues(ctx context.Context) (int, error) {
	n, err := d.count(ctx, countVenues)
	if err != nil {
		return 0, &DriverError{Op: "CountVenues", Err: err.Error(), Cause: err}
	}
	return n, nil
}

// GetVenueByID returns nil when no venue has the id.
func (d *DatabaseDriver) GetVenueByID(ctx context.Context, id int64) (*VenueRow, error) {
	v, err := scanVenue(d.pool.QueryRow(ctx, selectVenueByID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &DriverError{Op: "GetVenueByID", Err: err.Error(), Cause: err}
	}
	return v, nil
}

func (d *DatabaseDriver) GetArtists(ctx context.Context, limit, offset int) ([]ArtistRow, error) {
	rows, err := d.pool.Query(ctx, selectArtistsPage, limit, offset)
	if err != nil {
		return nil, &DriverError{Op: "GetArtists", Err: err.Error(), Cause: err}
	}
	defer rows.Close()

	artists := make([]ArtistRow, 0, limit)
	for rows.Next() {
		a, err := scanArtist(rows)
		if err != nil {
			return nil, &DriverError{Op: "GetArtists", Err: err.Error(), Cause: err}
		}
		artists = append(artists, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, &DriverError{Op: "GetArtists", Err: err.Error(), Cause: err}
	}
	return artists, nil
}

func (d *DatabaseDriver) CountArtists(ctx context.Context) (int, error) {
	n, err := d.count(ctx, countArtists)
	if err != nil {
		return 0, &DriverError{Op: "CountArtists", Err: err.Error(), Cause: err}
	}
	return n, nil
}

// GetArtistByID returns nil when no artist has the id.
func (d *DatabaseDriver) GetArtistByID(ctx context.Context, id int64) (*ArtistRow, error) {
	a, err := scanArtist(d.pool.QueryRow(ctx, selectArtistByID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &DriverError{Op: "GetArtistByID", Err: err.Error(), Cause: err}
	}
	return a, nil
}

// GetEvents returns a page of events with venue, city and artists attached.
func (d *DatabaseDriver) GetEvents(ctx context.Context, limit, offset int) ([]EventRow, error) {
	rows, err := d.pool.Query(ctx, selectEventsPage, limit, offset)
	if err != nil {
		return nil, &DriverError{Op: "GetEvents", Err: err.Error(), Cause: err}
	}

	events := make([]EventRow, 0, limit)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			rows.Close()
			return nil, &DriverError{Op: "GetEvents", Err: err.Error(), Cause: err}
		}
		events = append(events, *e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, &DriverError{Op: "GetEvents", Err: err.Error(), Cause: err}
	}

	if len(events) == 0 {
		return events, nil
	}

	ids := make([]int64, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	artists, err := d.GetEventArtists(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range events {
		events[i].Artists = artists[events[i].ID]
	}
	return events, nil
}

func (d *DatabaseDriver) CountEvents(ctx context.Context) (int, error) {
	n, err := d.count(ctx, countEvents)
	if err != nil {
		return 0, &DriverError{Op: "CountEvents", Err: err.Error(), Cause: err}
	}
	return n, nil
}

// GetEventByID returns nil when no event has the id.
func (d *DatabaseDriver) GetEventByID(ctx context.Context, id int64) (*EventRow, error) {
	e, err := scanEvent(d.pool.QueryRow(ctx, selectEventByID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &DriverError{Op: "GetEventByID", Err: err.Error(), Cause: err}
	}

	artists, err := d.GetEventArtists(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	e.Artists = artists[id]
	return e, nil
}

// GetEventArtists loads the performing artists of the given events keyed by
// event id.
func (d *DatabaseDriver) GetEventArtists(ctx context.Context, eventIDs []int64) (map[int64][]ArtistRow, error) {
	rows, err := d.pool.Query(ctx, selectEventArtists, eventIDs)
	if err != nil {
		return nil, &DriverError{Op: "GetEventArtists", Err: err.Error(), Cause: err}
	}
	defer rows.Close()

	out := make(map[int64][]ArtistRow, len(eventIDs))
	for rows.Next() {
		var eventID int64
		a, err := scanArtist(rows, &eventID)
		if err != nil {
			return nil, &DriverError{Op: "GetEventArtists", Err: err.Error(), Cause: err}
		}
		out[eventID] = append(out[eventID], *a)
	}
	if err := rows.Err(); err != nil {
		return nil, &DriverError{Op: "GetEventArtists", Err: err.Error(), Cause: err}
	}
	return out, nil
}

// GetCityByID returns nil when no city has the id.
func (d *DatabaseDriver) GetCityByID(ctx context.Context, id int64) (*CityRow, error) {
	var c CityRow
	err := d.pool.QueryRow(ctx, selectCityByID, id).Scan(&c.ID, &c.Name, &c.StateProvince, &c.Country, &c.Lat, &c.Lon)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &DriverError{Op: "GetCityByID", Err: err.Error(), Cause: err}
	}
	return &c, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
