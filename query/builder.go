package query

import (
	"strings"
	"time"

	"venue-indexer/domain"
)

const MaxPageSize = domain.MaxLimit

// Text builds a fuzzy multi field match. An empty query matches everything.
func Text(text string, fields []string) Query {
	text = strings.TrimSpace(text)
	if text == "" {
		return MatchAll{}
	}
	return MultiMatch{
		Query:     text,
		Fields:    fields,
		Type:      "best_fields",
		Fuzziness: "AUTO",
		Operator:  "or",
	}
}

func GeoFilter(field string, lat, lon, radiusKm float64) Query {
	return GeoDistance{
		Field:      field,
		Point:      domain.GeoPoint{Lat: lat, Lon: lon},
		DistanceKm: radiusKm,
	}
}

// DateRangeFilter returns nil when neither bound is set.
func DateRangeFilter(field string, from, to *time.Time) Query {
	if from == nil && to == nil {
		return nil
	}
	r := Range{Field: field}
	if from != nil {
		r.Gte = from.UTC().Format(time.RFC3339)
	}
	if to != nil {
		r.Lte = to.UTC().Format(time.RFC3339)
	}
	return r
}

// IntRangeFilter returns nil when neither bound is set.
func IntRangeFilter(field string, lo, hi *int) Query {
	if lo == nil && hi == nil {
		return nil
	}
	r := Range{Field: field}
	if lo != nil {
		r.Gte = *lo
	}
	if hi != nil {
		r.Lte = *hi
	}
	return r
}

// TermsFilter returns nil for an empty value list.
func TermsFilter(field string, values []string) Query {
	if len(values) == 0 {
		return nil
	}
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return Terms{Field: field, Values: vs}
}

func NestedFilter(path string, q Query) Query {
	if q == nil {
		return nil
	}
	return Nested{Path: path, Query: q}
}

// GeoSortPoint requests ordering by distance from a point.
type GeoSortPoint struct {
	Field string
	Point domain.GeoPoint
}

// SortOptions feeds BuildSort.
type SortOptions struct {
	Field     string
	Direction SortOrder
	Geo       *GeoSortPoint
	Defaults  []Sort
}

// BuildSort orders by the custom field, then by distance, then by the
// defaults. With none of them it sorts by relevance.
func BuildSort(opts SortOptions) []Sort {
	var sorts []Sort
	if opts.Field != "" {
		dir := opts.Direction
		if dir == "" {
			dir = Asc
		}
		sorts = append(sorts, FieldSort{Field: opts.Field, Order: dir})
	}
	if opts.Geo != nil {
		sorts = append(sorts, GeoDistanceSort{
			Field: opts.Geo.Field,
			Point: opts.Geo.Point,
			Order: Asc,
			Unit:  "km",
		})
	}
	sorts = append(sorts, opts.Defaults...)
	if len(sorts) == 0 {
		sorts = []Sort{ScoreSort{Order: Desc}}
	}
	return sorts
}

// Paginate converts a one-based page into an offset and a capped page size.
func Paginate(page, limit int) (from, size int) {
	if page < 1 {
		page = domain.DefaultPage
	}
	if limit < 1 {
		limit = domain.DefaultLimit
	}
	size = min(limit, MaxPageSize)
	return (page - 1) * limit, size
}

// filters collects non-nil filter clauses.
type filters []Query

func (f *filters) add(q Query) {
	if q != nil {
		*f = append(*f, q)
	}
}

// compose wraps the scoring query with the filter clauses.
func compose(scoring Query, fs filters) Query {
	if len(fs) == 0 {
		return scoring
	}
	b := Bool{Filter: fs}
	if _, all := scoring.(MatchAll); !all {
		b.Must = []Query{scoring}
	}
	return b
}
