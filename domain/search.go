package domain

import "time"

const (
	DefaultPage      = 1
	DefaultLimit     = 20
	MaxLimit         = 100
	DefaultDaysAhead = 30
	MaxSuggestions   = 10
)

// SearchParams are the structural filters accepted next to the free text query.
type SearchParams struct {
	Page  int `json:"page" validate:"gte=0"`
	Limit int `json:"limit" validate:"gte=0"`

	Genres []string `json:"genres,omitempty" validate:"max=10,dive,max=100"`

	Lat      *float64 `json:"lat,omitempty" validate:"required_with=Lon,omitempty,gte=-90,lte=90"`
	Lon      *float64 `json:"lon,omitempty" validate:"required_with=Lat,omitempty,gte=-180,lte=180"`
	RadiusKm float64  `json:"radius_km,omitempty" validate:"gte=0,lte=500"`

	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	CapacityMin    *int     `json:"capacity_min,omitempty" validate:"omitempty,gte=0"`
	CapacityMax    *int     `json:"capacity_max,omitempty" validate:"omitempty,gte=0"`
	ProsperRankMin *int     `json:"prosper_rank_min,omitempty" validate:"omitempty,gte=0"`
	Regions        []string `json:"regions,omitempty" validate:"max=20"`
	Countries      []string `json:"countries,omitempty" validate:"max=20,dive,len=2"`

	HasBio     *bool `json:"has_bio,omitempty"`
	HasPhoto   *bool `json:"has_photo,omitempty"`
	HasTickets *bool `json:"has_tickets,omitempty"`

	VenueID  *int64 `json:"venue_id,omitempty"`
	ArtistID *int64 `json:"artist_id,omitempty"`
	CityID   *int64 `json:"city_id,omitempty"`

	SortBy  string `json:"sort_by,omitempty" validate:"omitempty,max=50"`
	SortDir string `json:"sort_dir,omitempty" validate:"omitempty,oneof=asc desc"`
}

// HasGeo reports whether a distance filter was requested.
func (p SearchParams) HasGeo() bool {
	return p.Lat != nil && p.Lon != nil && p.RadiusKm > 0
}

// PageOrDefault returns the requested page, at least 1.
func (p SearchParams) PageOrDefault() int {
	if p.Page < 1 {
		return DefaultPage
	}
	return p.Page
}

// LimitOrDefault returns the requested limit or the default when unset.
func (p SearchParams) LimitOrDefault() int {
	if p.Limit < 1 {
		return DefaultLimit
	}
	return p.Limit
}

// UpcomingParams selects events in a window starting now.
type UpcomingParams struct {
	VenueID   *int64 `json:"venue_id,omitempty"`
	ArtistID  *int64 `json:"artist_id,omitempty"`
	CityID    *int64 `json:"city_id,omitempty"`
	DaysAhead int    `json:"days_ahead" validate:"gte=0,lte=365"`
	Page      int    `json:"page" validate:"gte=0"`
	Limit     int    `json:"limit" validate:"gte=0"`
}

// Hit is one search match.
type Hit[T any] struct {
	ID         string   `json:"id"`
	Score      float64  `json:"score"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
	Document   T        `json:"document"`
}

// SearchResult is a page of matches plus the total match count.
type SearchResult[T any] struct {
	Total int64    `json:"total"`
	Hits  []Hit[T] `json:"hits"`
}

// CategorizedResults groups a cross-index search by entity kind.
type CategorizedResults struct {
	Venues  SearchResult[VenueDocument]  `json:"venues"`
	Artists SearchResult[ArtistDocument] `json:"artists"`
	Events  SearchResult[EventDocument]  `json:"events"`
	Total   int64                        `json:"total"`
}
