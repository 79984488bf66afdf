package rest

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"venue-indexer/domain"
)

// queryReader reads typed query parameters and keeps the first parse error.
type queryReader struct {
	values url.Values
	err    error
}

func newQueryReader(values url.Values) *queryReader {
	return &queryReader{values: values}
}

func (r *queryReader) fail(name, raw string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
}

func (r *queryReader) String(name string) string {
	return strings.TrimSpace(r.values.Get(name))
}

func (r *queryReader) Int(name string) int {
	raw := r.String(name)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		r.fail(name, raw, err)
	}
	return v
}

func (r *queryReader) IntPtr(name string) *int {
	if r.String(name) == "" {
		return nil
	}
	v := r.Int(name)
	return &v
}

func (r *queryReader) Int64Ptr(name string) *int64 {
	raw := r.String(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		r.fail(name, raw, err)
		return nil
	}
	return &v
}

func (r *queryReader) Float(name string) float64 {
	raw := r.String(name)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		r.fail(name, raw, err)
	}
	return v
}

func (r *queryReader) FloatPtr(name string) *float64 {
	if r.String(name) == "" {
		return nil
	}
	v := r.Float(name)
	return &v
}

func (r *queryReader) BoolPtr(name string) *bool {
	raw := r.String(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		r.fail(name, raw, err)
		return nil
	}
	return &v
}

// Time accepts RFC 3339 timestamps and plain dates.
func (r *queryReader) Time(name string) *time.Time {
	raw := r.String(name)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	r.fail(name, raw, fmt.Errorf("want RFC 3339 or YYYY-MM-DD"))
	return nil
}

// List merges repeated singular parameters with a comma separated plural one,
// e.g. genre=rock&genre=jazz or genres=rock,jazz.
func (r *queryReader) List(singular, plural string) []string {
	var out []string
	for _, v := range r.values[singular] {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	for _, raw := range r.values[plural] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func parseSearchParams(values url.Values) (domain.SearchParams, error) {
	r := newQueryReader(values)
	params := domain.SearchParams{
		Page:           r.Int("page"),
		Limit:          r.Int("limit"),
		Genres:         r.List("genre", "genres"),
		Lat:            r.FloatPtr("lat"),
		Lon:            r.FloatPtr("lon"),
		RadiusKm:       r.Float("radius_km"),
		StartDate:      r.Time("start_date"),
		EndDate:        r.Time("end_date"),
		CapacityMin:    r.IntPtr("capacity_min"),
		CapacityMax:    r.IntPtr("capacity_max"),
		ProsperRankMin: r.IntPtr("prosper_rank_min"),
		Regions:        r.List("region", "regions"),
		Countries:      r.List("country", "countries"),
		HasBio:         r.BoolPtr("has_bio"),
		HasPhoto:       r.BoolPtr("has_photo"),
		HasTickets:     r.BoolPtr("has_tickets"),
		VenueID:        r.Int64Ptr("venue_id"),
		ArtistID:       r.Int64Ptr("artist_id"),
		CityID:         r.Int64Ptr("city_id"),
		SortBy:         r.String("sort_by"),
		SortDir:        strings.ToLower(r.String("sort_dir")),
	}
	if params.Lat != nil && params.Lon != nil && params.RadiusKm == 0 {
		params.RadiusKm = defaultNearbyRadiusKm
	}
	return params, r.err
}

func parseNearbyParams(values url.Values) (domain.NearbyParams, error) {
	r := newQueryReader(values)
	if r.String("lat") == "" || r.String("lon") == "" {
		return domain.NearbyParams{}, fmt.Errorf("lat and lon are required")
	}
	params := domain.NearbyParams{
		Lat:         r.Float("lat"),
		Lon:         r.Float("lon"),
		RadiusKm:    r.Float("radius_km"),
		CapacityMin: r.IntPtr("capacity_min"),
		Page:        r.Int("page"),
		Limit:       r.Int("limit"),
	}
	if params.RadiusKm == 0 {
		params.RadiusKm = defaultNearbyRadiusKm
	}
	return params, r.err
}

func parseUpcomingParams(values url.Values) (domain.UpcomingParams, error) {
	r := newQueryReader(values)
	params := domain.UpcomingParams{
		VenueID:   r.Int64Ptr("venue_id"),
		ArtistID:  r.Int64Ptr("artist_id"),
		CityID:    r.Int64Ptr("city_id"),
		DaysAhead: r.Int("days_ahead"),
		Page:      r.Int("page"),
		Limit:     r.Int("limit"),
	}
	return params, r.err
}
