package query

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venue-indexer/domain"
)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }
func intp(v int) *int        { return &v }
func boolp(v bool) *bool     { return &v }

func TestPaginate(t *testing.T) {
	tests := []struct {
		name             string
		page, limit      int
		wantFrom, wantSz int
	}{
		{"second page", 2, 10, 10, 10},
		{"first page", 1, 20, 0, 20},
		{"limit capped", 1, 500, 0, 100},
		{"zero page defaults to first", 0, 10, 0, 10},
		{"zero limit uses default", 3, 0, 40, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, size := Paginate(tt.page, tt.limit)
			assert.Equal(t, tt.wantFrom, from)
			assert.Equal(t, tt.wantSz, size)
		})
	}
}

func TestText(t *testing.T) {
	assert.Equal(t, MatchAll{}, Text("   ", VenueTextFields))

	q, ok := Text("mohawk", VenueTextFields).(MultiMatch)
	require.True(t, ok)
	assert.Equal(t, "AUTO", q.Fuzziness)
	assert.Equal(t, VenueTextFields, q.Fields)
}

func TestOptionalFilters(t *testing.T) {
	assert.Nil(t, DateRangeFilter("event_datetime", nil, nil))
	assert.Nil(t, TermsFilter("genres", nil))
	assert.Nil(t, IntRangeFilter("capacity", nil, nil))
	assert.Nil(t, NestedFilter("artists", nil))

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r, ok := DateRangeFilter("event_datetime", &start, nil).(Range)
	require.True(t, ok)
	assert.Equal(t, "2025-01-01T00:00:00Z", r.Gte)
	assert.Nil(t, r.Lte)
}

func TestGeoFilterSource(t *testing.T) {
	src := GeoFilter("location", 30.5, -97.25, 10).Source()
	assert.Equal(t, map[string]any{"geo_distance": map[string]any{
		"distance": "10km",
		"location": map[string]any{"lat": 30.5, "lon": -97.25},
	}}, src)
}

func TestBuildSort(t *testing.T) {
	t.Run("nothing falls back to relevance", func(t *testing.T) {
		assert.Equal(t, []Sort{ScoreSort{Order: Desc}}, BuildSort(SortOptions{}))
	})

	t.Run("custom then geo then defaults", func(t *testing.T) {
		sorts := BuildSort(SortOptions{
			Field:     "capacity",
			Direction: Desc,
			Geo:       &GeoSortPoint{Field: "location", Point: domain.GeoPoint{Lat: 1, Lon: 2}},
			Defaults:  []Sort{FieldSort{Field: "prosper_rank", Order: Desc}},
		})
		require.Len(t, sorts, 3)
		assert.Equal(t, FieldSort{Field: "capacity", Order: Desc}, sorts[0])
		assert.IsType(t, GeoDistanceSort{}, sorts[1])
		assert.Equal(t, FieldSort{Field: "prosper_rank", Order: Desc}, sorts[2])
	})
}

func TestBuildVenueSearch(t *testing.T) {
	p := domain.SearchParams{
		Page:           2,
		Limit:          10,
		Genres:         []string{"jazz"},
		Lat:            f64(30.27),
		Lon:            f64(-97.74),
		RadiusKm:       5,
		CapacityMin:    intp(100),
		ProsperRankMin: intp(3),
		Countries:      []string{"US"},
	}

	req := BuildVenueSearch("mohawk", p)

	assert.Equal(t, 10, req.From)
	assert.Equal(t, 10, req.Size)
	b, ok := req.Query.(Bool)
	require.True(t, ok)
	assert.Len(t, b.Must, 1)
	assert.Len(t, b.Filter, 5)
	assert.IsType(t, GeoDistanceSort{}, req.Sort[0])
}

func TestBuildVenueSearch_NoFiltersIsBareText(t *testing.T) {
	req := BuildVenueSearch("", domain.SearchParams{})
	assert.Equal(t, MatchAll{}, req.Query)
	assert.Equal(t, 0, req.From)
	assert.Equal(t, domain.DefaultLimit, req.Size)
}

func TestBuildArtistSearch_PresenceFilters(t *testing.T) {
	req := BuildArtistSearch("", domain.SearchParams{HasBio: boolp(true), HasPhoto: boolp(false), SortBy: "name", SortDir: "desc"})

	b, ok := req.Query.(Bool)
	require.True(t, ok)
	assert.Empty(t, b.Must)
	assert.Contains(t, b.Filter, Query(Term{Field: "has_bio", Value: true}))
	assert.Contains(t, b.Filter, Query(Term{Field: "has_photo", Value: false}))
	assert.Equal(t, FieldSort{Field: "name", Order: Desc}, req.Sort[0])
}

func TestBuildEventSearch_GenreIsNested(t *testing.T) {
	req := BuildEventSearch("jazz night", domain.SearchParams{Genres: []string{"jazz"}, VenueID: i64(4)})

	b, ok := req.Query.(Bool)
	require.True(t, ok)
	require.Len(t, b.Filter, 2)
	nested, ok := b.Filter[0].(Nested)
	require.True(t, ok)
	assert.Equal(t, "artists", nested.Path)
	assert.Equal(t, Terms{Field: "artists.genres", Values: []any{"jazz"}}, nested.Query)
	assert.Equal(t, Term{Field: "venue.id", Value: int64(4)}, b.Filter[1])

	text, ok := b.Must[0].(Bool)
	require.True(t, ok)
	assert.Len(t, text.Should, 2)
}

func TestBuildUpcomingEvents(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	req := BuildUpcomingEvents(domain.UpcomingParams{CityID: i64(9)}, now)

	require.Equal(t, []Sort{FieldSort{Field: "event_datetime", Order: Asc}}, req.Sort)
	b, ok := req.Query.(Bool)
	require.True(t, ok)
	r, ok := b.Filter[0].(Range)
	require.True(t, ok)
	assert.Equal(t, "2025-05-01T12:00:00Z", r.Gte)
	assert.Equal(t, "2025-05-31T12:00:00Z", r.Lte)
	assert.Equal(t, Term{Field: "venue.city.id", Value: int64(9)}, b.Filter[1])
}

func TestBuildSuggestion(t *testing.T) {
	req := BuildSuggestion("moh", VenueSuggestField, 50)

	require.Len(t, req.Suggest, 1)
	assert.Equal(t, domain.MaxSuggestions, req.Suggest[0].Size)
	assert.True(t, req.Suggest[0].SkipDuplicates)
	assert.Equal(t, 0, req.Size)

	raw, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"from": 0, "size": 0, "_source": false,
		"suggest": {"suggestions": {"prefix": "moh", "completion": {"field": "name.suggest", "size": 10, "skip_duplicates": true}}}
	}`, string(raw))
}

func TestRequestBody(t *testing.T) {
	minScore := 0.1
	req := Request{
		Query:          Bool{Filter: []Query{Term{Field: "has_tickets", Value: true}}},
		Sort:           []Sort{FieldSort{Field: "name.keyword", Order: Asc}},
		Size:           5,
		TrackTotalHits: 10000,
		MinScore:       &minScore,
		Timeout:        5 * time.Second,
	}

	raw, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"from": 0, "size": 5, "track_total_hits": 10000, "min_score": 0.1, "timeout": "5s",
		"query": {"bool": {"filter": [{"term": {"has_tickets": true}}]}},
		"sort": [{"name.keyword": {"order": "asc"}}]
	}`, string(raw))
}

func TestRequestClone_Independent(t *testing.T) {
	orig := Request{
		Sort:         []Sort{FieldSort{Field: "name", Order: Asc}},
		Aggregations: map[string]Aggregation{"g": {Terms: &TermsAgg{Field: "genres", Size: 500}}},
		ScriptFields: map[string]Script{"d": {Source: "x", Params: map[string]any{"lat": 1.0}}},
	}

	c := orig.Clone()
	c.Sort[0] = FieldSort{Field: "name.keyword", Order: Asc}
	c.Aggregations["g"].Terms.Size = 10
	c.ScriptFields["d"].Params["lat"] = 2.0

	assert.Equal(t, FieldSort{Field: "name", Order: Asc}, orig.Sort[0])
	assert.Equal(t, 500, orig.Aggregations["g"].Terms.Size)
	assert.Equal(t, 1.0, orig.ScriptFields["d"].Params["lat"])
}

func TestWalk(t *testing.T) {
	q := Bool{
		Must:   []Query{MultiMatch{Query: "x"}},
		Filter: []Query{Nested{Path: "artists", Query: Term{Field: "artists.id", Value: 1}}},
	}
	var seen []string
	Walk(q, func(n Query) bool {
		switch n.(type) {
		case Bool:
			seen = append(seen, "bool")
		case MultiMatch:
			seen = append(seen, "multi_match")
		case Nested:
			seen = append(seen, "nested")
		case Term:
			seen = append(seen, "term")
		}
		return true
	})
	assert.Equal(t, []string{"bool", "multi_match", "nested", "term"}, seen)
}
