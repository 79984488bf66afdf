// Package optimizer rewrites built search requests before execution. Every
// function works on a clone and leaves its input untouched.
package optimizer

import (
	"strings"
	"time"

	"venue-indexer/domain"
	"venue-indexer/query"
)

type Options struct {
	TrackTotalHitsUpTo  int
	MinScore            float64
	Timeout             time.Duration
	Preference          string
	MaxCacheableFilters int
	MaxTermsBucketSize  int
}

func DefaultOptions() Options {
	return Options{
		TrackTotalHitsUpTo:  10000,
		MinScore:            0.1,
		Timeout:             5 * time.Second,
		Preference:          "_local",
		MaxCacheableFilters: 5,
		MaxTermsBucketSize:  100,
	}
}

type Optimizer struct {
	opts Options
}

func New(opts Options) *Optimizer {
	return &Optimizer{opts: opts}
}

// exactSortFields are analyzed text fields with a keyword sub-field.
var exactSortFields = map[string]bool{
	"name":        true,
	"title":       true,
	"description": true,
}

// Optimize bounds hit counting, adds a relevance floor, sets the request cache
// flag, timeout and preference, and rewrites sorts onto sortable fields.
func (o *Optimizer) Optimize(req query.Request) query.Request {
	out := req.Clone()

	if out.TrackTotalHits == nil {
		out.TrackTotalHits = o.opts.TrackTotalHitsUpTo
	}

	if out.MinScore == nil && o.opts.MinScore > 0 && hasScoringClauses(out.Query) {
		v := o.opts.MinScore
		out.MinScore = &v
	}

	cacheable := o.IsCacheable(out)
	out.RequestCache = &cacheable

	if out.Timeout == 0 {
		out.Timeout = o.opts.Timeout
	}

	out.Sort = rewriteSorts(out.Sort)

	if out.Preference == "" {
		out.Preference = o.opts.Preference
	}

	if len(out.Aggregations) > 0 {
		out.Aggregations = o.OptimizeAggregations(out.Aggregations)
	}

	return out
}

// IsCacheable reports whether the request may use the shard request cache.
// Random scoring, relative time expressions and more than the configured
// number of filter clauses all rule it out.
func (o *Optimizer) IsCacheable(req query.Request) bool {
	if req.Query == nil {
		return true
	}
	if usesRandomScore(req.Query) || usesRelativeTime(req.Query) {
		return false
	}
	return filterClauseCount(req.Query) <= o.opts.MaxCacheableFilters
}

// WithCache tags the request with an application level cache key and TTL.
func (o *Optimizer) WithCache(req query.Request, key string, ttl time.Duration) query.Request {
	out := req.Clone()
	out.CacheKey = key
	out.CacheTTL = ttl
	cache := true
	out.RequestCache = &cache
	return out
}

func rewriteSorts(sorts []query.Sort) []query.Sort {
	if sorts == nil {
		return nil
	}
	out := make([]query.Sort, len(sorts))
	for i, s := range sorts {
		switch v := s.(type) {
		case query.FieldSort:
			if exactSortFields[v.Field] {
				v.Field += ".keyword"
			}
			out[i] = v
		case query.GeoDistanceSort:
			v.IgnoreUnmapped = true
			out[i] = v
		default:
			out[i] = s
		}
	}
	return out
}

func hasScoringClauses(q query.Query) bool {
	found := false
	query.Walk(q, func(n query.Query) bool {
		switch n.(type) {
		case query.MultiMatch, query.FunctionScore:
			found = true
			return false
		}
		return true
	})
	return found
}

func usesRandomScore(q query.Query) bool {
	found := false
	query.Walk(q, func(n query.Query) bool {
		fs, ok := n.(query.FunctionScore)
		if !ok {
			return true
		}
		for _, fn := range fs.Functions {
			if _, random := fn.(query.RandomScore); random {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

func usesRelativeTime(q query.Query) bool {
	found := false
	query.Walk(q, func(n query.Query) bool {
		switch v := n.(type) {
		case query.Range:
			for _, b := range v.Bounds() {
				if isRelativeTime(b) {
					found = true
				}
			}
		case query.FunctionScore:
			for _, fn := range v.Functions {
				if g, ok := fn.(query.Gauss); ok && isRelativeTime(g.Origin) {
					found = true
				}
			}
		}
		return !found
	})
	return found
}

func isRelativeTime(v any) bool {
	s, ok := v.(string)
	return ok && strings.HasPrefix(strings.TrimSpace(strings.ToLower(s)), "now")
}

// filterClauseCount counts the filter clauses of the top level bool query,
// looking through a function_score wrapper.
func filterClauseCount(q query.Query) int {
	if fs, ok := q.(query.FunctionScore); ok {
		q = fs.Query
	}
	b, ok := q.(query.Bool)
	if !ok {
		return 0
	}
	return len(b.Filter)
}

// GeoQueryParams describes a proximity search around a point.
type GeoQueryParams struct {
	Base            query.Query
	Field           string
	Point           domain.GeoPoint
	RadiusKm        float64
	Scale           string
	IncludeDistance bool
	RankField       string
	Page            int
	Limit           int
}

// DistanceField is the script field carrying the per hit distance in km.
const DistanceField = "distance_km"

// BuildGeoQuery filters to the radius, decays relevance with distance and
// breaks ties by RankField.
func (o *Optimizer) BuildGeoQuery(p GeoQueryParams) query.Request {
	scale := p.Scale
	if scale == "" {
		scale = query.GeoDistance{DistanceKm: p.RadiusKm}.Distance()
	}

	filtered := query.Bool{
		Must:   []query.Query{query.MatchAll{}},
		Filter: []query.Query{query.GeoFilter(p.Field, p.Point.Lat, p.Point.Lon, p.RadiusKm)},
	}
	switch b := p.Base.(type) {
	case nil:
	case query.Bool:
		if len(b.Must)+len(b.Should) == 0 {
			// A filter-only bool scores zero under must and the multiply
			// boost would keep every hit at zero.
			filtered.Filter = append(filtered.Filter, b.Filter...)
			filtered.MustNot = append(filtered.MustNot, b.MustNot...)
		} else {
			filtered.Must = []query.Query{b}
		}
	default:
		filtered.Must = []query.Query{b}
	}

	sorts := []query.Sort{query.ScoreSort{Order: query.Desc}}
	if p.RankField != "" {
		sorts = append(sorts, query.FieldSort{Field: p.RankField, Order: query.Desc, Missing: "_last"})
	}

	from, size := query.Paginate(p.Page, p.Limit)
	req := query.Request{
		Query: query.FunctionScore{
			Query: filtered,
			Functions: []query.ScoreFunction{query.Gauss{
				Field:  p.Field,
				Origin: map[string]any{"lat": p.Point.Lat, "lon": p.Point.Lon},
				Scale:  scale,
				Offset: "0km",
				Decay:  0.5,
			}},
			BoostMode: "multiply",
		},
		Sort: sorts,
		From: from,
		Size: size,
	}

	if p.IncludeDistance {
		req.ScriptFields = map[string]query.Script{
			DistanceField: {
				Source: "doc[params.field].size() == 0 ? null : doc[params.field].arcDistance(params.lat, params.lon) / 1000",
				Params: map[string]any{"field": p.Field, "lat": p.Point.Lat, "lon": p.Point.Lon},
			},
		}
	}
	return req
}
