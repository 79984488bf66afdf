package optimizer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venue-indexer/domain"
	"venue-indexer/query"
)

func filtersOf(n int) []query.Query {
	out := make([]query.Query, n)
	for i := range out {
		out[i] = query.Term{Field: "genres", Value: i}
	}
	return out
}

func TestIsCacheable(t *testing.T) {
	o := New(DefaultOptions())

	tests := []struct {
		name string
		q    query.Query
		want bool
	}{
		{"match all", query.MatchAll{}, true},
		{"five filters", query.Bool{Filter: filtersOf(5)}, true},
		{"six filters", query.Bool{Filter: filtersOf(6)}, false},
		{
			"now in a range filter",
			query.Bool{Filter: []query.Query{query.Range{Field: "event_datetime", Gte: "now"}}},
			false,
		},
		{
			"now date math inside nested",
			query.Bool{Filter: []query.Query{query.Nested{Path: "artists", Query: query.Range{Field: "artists.since", Lt: "now-1y/d"}}}},
			false,
		},
		{
			"absolute dates",
			query.Bool{Filter: []query.Query{query.Range{Field: "event_datetime", Gte: "2025-01-01T00:00:00Z"}}},
			true,
		},
		{
			"random score",
			query.FunctionScore{Query: query.MatchAll{}, Functions: []query.ScoreFunction{query.RandomScore{}}},
			false,
		},
		{
			"six filters under function score",
			query.FunctionScore{Query: query.Bool{Filter: filtersOf(6)}, Functions: []query.ScoreFunction{query.FieldValueFactor{Field: "prosper_rank"}}},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, o.IsCacheable(query.Request{Query: tt.q}))
		})
	}
}

func TestOptimize(t *testing.T) {
	o := New(DefaultOptions())
	req := query.BuildVenueSearch("mohawk", domain.SearchParams{SortBy: "name", SortDir: "asc"})

	out := o.Optimize(req)

	assert.Equal(t, 10000, out.TrackTotalHits)
	require.NotNil(t, out.MinScore)
	assert.Equal(t, 0.1, *out.MinScore)
	require.NotNil(t, out.RequestCache)
	assert.True(t, *out.RequestCache)
	assert.Equal(t, 5*time.Second, out.Timeout)
	assert.Equal(t, "_local", out.Preference)
	assert.Equal(t, query.FieldSort{Field: "name.keyword", Order: query.Asc}, out.Sort[0])
}

func TestOptimize_DoesNotMutateInput(t *testing.T) {
	o := New(DefaultOptions())
	req := query.Request{
		Query: query.MatchAll{},
		Sort: []query.Sort{
			query.FieldSort{Field: "title", Order: query.Desc},
			query.GeoDistanceSort{Field: "location", Order: query.Asc, Unit: "km"},
		},
	}

	out := o.Optimize(req)

	assert.Equal(t, query.FieldSort{Field: "title", Order: query.Desc}, req.Sort[0])
	assert.False(t, req.Sort[1].(query.GeoDistanceSort).IgnoreUnmapped)
	assert.Nil(t, req.TrackTotalHits)
	assert.Nil(t, req.RequestCache)

	assert.Equal(t, query.FieldSort{Field: "title.keyword", Order: query.Desc}, out.Sort[0])
	assert.True(t, out.Sort[1].(query.GeoDistanceSort).IgnoreUnmapped)
}

func TestOptimize_NoMinScoreWithoutScoringClauses(t *testing.T) {
	o := New(DefaultOptions())
	out := o.Optimize(query.Request{Query: query.Bool{Filter: filtersOf(1)}})
	assert.Nil(t, out.MinScore)
}

func TestOptimize_RelativeTimeDisablesCache(t *testing.T) {
	o := New(DefaultOptions())
	out := o.Optimize(query.Request{Query: query.Bool{Filter: []query.Query{query.Range{Field: "event_datetime", Gte: "now"}}}})
	require.NotNil(t, out.RequestCache)
	assert.False(t, *out.RequestCache)
}

func TestWithCache(t *testing.T) {
	o := New(DefaultOptions())
	req := query.Request{Query: query.MatchAll{}}

	out := o.WithCache(req, "venues:popular", 10*time.Minute)

	assert.Equal(t, "venues:popular", out.CacheKey)
	assert.Equal(t, 10*time.Minute, out.CacheTTL)
	assert.True(t, *out.RequestCache)
	assert.Empty(t, req.CacheKey)
}

func TestOptimizeAggregations(t *testing.T) {
	o := New(DefaultOptions())
	aggs := map[string]query.Aggregation{
		"by_name": {Terms: &query.TermsAgg{Field: "name.keyword", Size: 1000}},
		"by_genre": {
			Terms: &query.TermsAgg{Field: "genres", Size: 1000},
			Aggs: map[string]query.Aggregation{
				"by_title": {Terms: &query.TermsAgg{Field: "title.keyword"}},
			},
		},
		"per_month": {DateHistogram: &query.DateHistogramAgg{Field: "event_datetime", Interval: "month"}},
		"per_6h":    {DateHistogram: &query.DateHistogramAgg{Field: "event_datetime", Interval: "6h"}},
	}

	out := o.OptimizeAggregations(aggs)

	assert.Equal(t, 100, out["by_name"].Terms.Size)
	assert.Equal(t, 300, out["by_name"].Terms.ShardSize)

	assert.Equal(t, 1000, out["by_genre"].Terms.Size, "genres is not high cardinality")
	assert.Equal(t, 3000, out["by_genre"].Terms.ShardSize)

	sub := out["by_genre"].Aggs["by_title"].Terms
	assert.Equal(t, 100, sub.Size)
	assert.Equal(t, 300, sub.ShardSize)

	assert.Equal(t, "month", out["per_month"].DateHistogram.CalendarInterval)
	assert.Empty(t, out["per_month"].DateHistogram.Interval)
	assert.Equal(t, "6h", out["per_6h"].DateHistogram.FixedInterval)

	assert.Equal(t, 1000, aggs["by_name"].Terms.Size, "input left untouched")
	assert.Equal(t, "month", aggs["per_month"].DateHistogram.Interval)
}

func TestBuildGeoQuery(t *testing.T) {
	o := New(DefaultOptions())
	point := domain.GeoPoint{Lat: 30.27, Lon: -97.74}

	req := o.BuildGeoQuery(GeoQueryParams{
		Field:           "location",
		Point:           point,
		RadiusKm:        25,
		IncludeDistance: true,
		RankField:       "prosper_rank",
		Limit:           10,
	})

	fs, ok := req.Query.(query.FunctionScore)
	require.True(t, ok)
	require.Len(t, fs.Functions, 1)
	g, ok := fs.Functions[0].(query.Gauss)
	require.True(t, ok)
	assert.Equal(t, "25km", g.Scale)

	inner, ok := fs.Query.(query.Bool)
	require.True(t, ok)
	assert.Equal(t, query.GeoDistance{Field: "location", Point: point, DistanceKm: 25}, inner.Filter[0])
	assert.Equal(t, query.MatchAll{}, inner.Must[0])

	require.Contains(t, req.ScriptFields, DistanceField)
	assert.Equal(t, query.FieldSort{Field: "prosper_rank", Order: query.Desc, Missing: "_last"}, req.Sort[1])
	assert.Equal(t, 10, req.Size)

	assert.True(t, o.IsCacheable(req))
}

func TestBuildGeoQuery_BaseFilters(t *testing.T) {
	o := New(DefaultOptions())
	minCapacity := 500
	geo := GeoQueryParams{
		Field:    "location",
		Point:    domain.GeoPoint{Lat: 30.27, Lon: -97.74},
		RadiusKm: 10,
		Limit:    20,
	}

	t.Run("filter-only base joins the filter context", func(t *testing.T) {
		p := geo
		p.Base = query.Bool{
			Filter:  []query.Query{query.IntRangeFilter("capacity", &minCapacity, nil)},
			MustNot: []query.Query{query.Term{Field: "genres", Value: "closed"}},
		}

		data, err := json.Marshal(o.Optimize(o.BuildGeoQuery(p)))
		require.NoError(t, err)

		var body struct {
			MinScore *float64 `json:"min_score"`
			Query    struct {
				FunctionScore struct {
					BoostMode string `json:"boost_mode"`
					Query     struct {
						Bool struct {
							Must    []map[string]any `json:"must"`
							Filter  []map[string]any `json:"filter"`
							MustNot []map[string]any `json:"must_not"`
						} `json:"bool"`
					} `json:"query"`
				} `json:"function_score"`
			} `json:"query"`
		}
		require.NoError(t, json.Unmarshal(data, &body))

		fs := body.Query.FunctionScore
		assert.Equal(t, "multiply", fs.BoostMode)
		require.Len(t, fs.Query.Bool.Must, 1)
		assert.Contains(t, fs.Query.Bool.Must[0], "match_all")

		require.Len(t, fs.Query.Bool.Filter, 2)
		assert.Contains(t, fs.Query.Bool.Filter[0], "geo_distance")
		assert.JSONEq(t, `{"range":{"capacity":{"gte":500}}}`, mustJSON(t, fs.Query.Bool.Filter[1]))
		require.Len(t, fs.Query.Bool.MustNot, 1)

		// The relevance floor is safe only because match_all keeps a
		// positive score to decay from.
		require.NotNil(t, body.MinScore)
		assert.Equal(t, 0.1, *body.MinScore)
	})

	t.Run("scoring base stays under must", func(t *testing.T) {
		p := geo
		text := query.MultiMatch{Query: "jazz", Fields: []string{"name"}}
		p.Base = query.Bool{Must: []query.Query{text}}

		req := o.BuildGeoQuery(p)
		inner, ok := req.Query.(query.FunctionScore).Query.(query.Bool)
		require.True(t, ok)
		require.Len(t, inner.Must, 1)
		assert.Equal(t, query.Bool{Must: []query.Query{text}}, inner.Must[0])
		assert.Len(t, inner.Filter, 1)
	})
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}
