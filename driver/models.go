package driver

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"venue-indexer/query"
)

// CityRow is a row of the cities table.
type CityRow struct {
	ID            int64
	Name          string
	StateProvince string
	Country       string
	Lat           *float64
	Lon           *float64
}

// VenueRow is a venue joined with its city. City columns are nil when the
// venue has no city.
type VenueRow struct {
	ID          int64
	CityID      *int64
	Name        string
	Address     *string
	Lat         *float64
	Lon         *float64
	Capacity    *int32
	Website     *string
	ProsperRank *int32
	Genres      []string
	CreatedAt   time.Time

	City *CityRow
}

type ArtistRow struct {
	ID         int64
	Name       string
	Genres     []string
	PhotoURL   *string
	ProfileBio *string
	CreatedAt  time.Time
}

// EventRow is an event joined with its venue and city. Artists are loaded by
// a second query.
type EventRow struct {
	ID            int64
	VenueID       *int64
	Title         string
	Description   *string
	EventDatetime time.Time
	TicketURL     *string
	ExternalID    *string
	CreatedAt     time.Time

	Venue   *VenueRow
	Artists []ArtistRow
}

// BulkItem is one line pair of a bulk request.
type BulkItem struct {
	Action   string
	Index    string
	ID       string
	Document any
}

// SearchHit is one raw match returned by a search backend.
type SearchHit struct {
	ID     string
	Score  float64
	Source json.RawMessage
	// Fields carries computed per hit values such as distance_km.
	Fields map[string]float64
}

// SearchResponse is the backend neutral result of a search call.
type SearchResponse struct {
	Total       int64
	Hits        []SearchHit
	Suggestions map[string][]string
}

// DriverError represents an error from the driver layer. Cause keeps the
// underlying error inspectable with errors.Is and errors.As.
type DriverError struct {
	Op    string
	Err   string
	Cause error
}

func (e *DriverError) Error() string {
	return e.Op + ": " + e.Err
}

func (e *DriverError) Unwrap() error {
	return e.Cause
}

// wrapError builds the DriverError for a failed backend call. When ctx is
// already done its error joins the cause, since some clients drop it.
func wrapError(ctx context.Context, op, msg string, err error) *DriverError {
	cause := err
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		cause = errors.Join(err, ctxErr)
	}
	if msg != "" {
		msg += ": "
	}
	return &DriverError{Op: op, Err: msg + err.Error(), Cause: cause}
}

// SearchBackend is the contract every search engine driver and decorator
// satisfies.
type SearchBackend interface {
	IndexExists(ctx context.Context, index string) (bool, error)
	CreateIndex(ctx context.Context, index string, body map[string]any) error
	IndexDocument(ctx context.Context, index, id string, doc any) error
	Bulk(ctx context.Context, items []BulkItem) error
	DeleteDocument(ctx context.Context, index, id string) error
	Search(ctx context.Context, index string, req query.Request) (*SearchResponse, error)
	Refresh(ctx context.Context, indices ...string) error
	Ping(ctx context.Context) error
}
