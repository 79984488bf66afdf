package query

import (
	"encoding/json"
	"maps"
	"strconv"
	"time"

	"venue-indexer/domain"
)

type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// ParseSortOrder maps anything but "asc" to the fallback.
func ParseSortOrder(s string, fallback SortOrder) SortOrder {
	switch s {
	case "asc":
		return Asc
	case "desc":
		return Desc
	}
	return fallback
}

// Sort is one sort criterion.
type Sort interface {
	SortSource() map[string]any
}

type FieldSort struct {
	Field        string
	Order        SortOrder
	Missing      string
	UnmappedType string
}

func (s FieldSort) SortSource() map[string]any {
	body := map[string]any{"order": string(s.Order)}
	if s.Missing != "" {
		body["missing"] = s.Missing
	}
	if s.UnmappedType != "" {
		body["unmapped_type"] = s.UnmappedType
	}
	return map[string]any{s.Field: body}
}

type ScoreSort struct {
	Order SortOrder
}

func (s ScoreSort) SortSource() map[string]any {
	return map[string]any{"_score": map[string]any{"order": string(s.Order)}}
}

type GeoDistanceSort struct {
	Field          string
	Point          domain.GeoPoint
	Order          SortOrder
	Unit           string
	IgnoreUnmapped bool
}

func (s GeoDistanceSort) SortSource() map[string]any {
	body := map[string]any{
		s.Field: map[string]any{"lat": s.Point.Lat, "lon": s.Point.Lon},
		"order": string(s.Order),
		"unit":  s.Unit,
	}
	if s.IgnoreUnmapped {
		body["ignore_unmapped"] = true
	}
	return map[string]any{"_geo_distance": body}
}

// TermsAgg buckets documents by keyword value.
type TermsAgg struct {
	Field       string
	Size        int
	ShardSize   int
	MinDocCount int
}

// DateHistogramAgg buckets documents by time. Interval is the legacy form that
// the optimizer rewrites into CalendarInterval or FixedInterval.
type DateHistogramAgg struct {
	Field            string
	Interval         string
	CalendarInterval string
	FixedInterval    string
	Format           string
}

// MetricAgg is a single-value metric such as avg, min, max or sum.
type MetricAgg struct {
	Type  string
	Field string
}

// Aggregation holds exactly one of its kinds plus optional sub aggregations.
type Aggregation struct {
	Terms         *TermsAgg
	DateHistogram *DateHistogramAgg
	Metric        *MetricAgg
	Aggs          map[string]Aggregation
}

func (a Aggregation) Clone() Aggregation {
	out := Aggregation{}
	if a.Terms != nil {
		t := *a.Terms
		out.Terms = &t
	}
	if a.DateHistogram != nil {
		d := *a.DateHistogram
		out.DateHistogram = &d
	}
	if a.Metric != nil {
		m := *a.Metric
		out.Metric = &m
	}
	out.Aggs = CloneAggregations(a.Aggs)
	return out
}

func CloneAggregations(aggs map[string]Aggregation) map[string]Aggregation {
	if aggs == nil {
		return nil
	}
	out := make(map[string]Aggregation, len(aggs))
	for k, v := range aggs {
		out[k] = v.Clone()
	}
	return out
}

func (a Aggregation) Source() map[string]any {
	body := map[string]any{}
	switch {
	case a.Terms != nil:
		t := map[string]any{"field": a.Terms.Field}
		if a.Terms.Size > 0 {
			t["size"] = a.Terms.Size
		}
		if a.Terms.ShardSize > 0 {
			t["shard_size"] = a.Terms.ShardSize
		}
		if a.Terms.MinDocCount > 0 {
			t["min_doc_count"] = a.Terms.MinDocCount
		}
		body["terms"] = t
	case a.DateHistogram != nil:
		d := map[string]any{"field": a.DateHistogram.Field}
		if a.DateHistogram.Interval != "" {
			d["interval"] = a.DateHistogram.Interval
		}
		if a.DateHistogram.CalendarInterval != "" {
			d["calendar_interval"] = a.DateHistogram.CalendarInterval
		}
		if a.DateHistogram.FixedInterval != "" {
			d["fixed_interval"] = a.DateHistogram.FixedInterval
		}
		if a.DateHistogram.Format != "" {
			d["format"] = a.DateHistogram.Format
		}
		body["date_histogram"] = d
	case a.Metric != nil:
		body[a.Metric.Type] = map[string]any{"field": a.Metric.Field}
	}
	if len(a.Aggs) > 0 {
		body["aggs"] = aggregationsSource(a.Aggs)
	}
	return body
}

func aggregationsSource(aggs map[string]Aggregation) map[string]any {
	out := make(map[string]any, len(aggs))
	for name, a := range aggs {
		out[name] = a.Source()
	}
	return out
}

// Suggester is a completion suggester lookup.
type Suggester struct {
	Name           string
	Prefix         string
	Field          string
	Size           int
	SkipDuplicates bool
}

// Script is a painless script evaluated per hit.
type Script struct {
	Source string
	Params map[string]any
}

// Request is a complete search request. Values are copied with Clone before
// any modification.
type Request struct {
	Query          Query
	Sort           []Sort
	From           int
	Size           int
	TrackTotalHits any
	MinScore       *float64
	RequestCache   *bool
	Timeout        time.Duration
	Preference     string
	FetchSource    *bool
	Aggregations   map[string]Aggregation
	Suggest        []Suggester
	ScriptFields   map[string]Script

	// CacheKey and CacheTTL enable the application level result cache.
	CacheKey string
	CacheTTL time.Duration
}

// Clone returns a copy that shares no mutable state with r. Query trees are
// immutable and are shared.
func (r Request) Clone() Request {
	out := r
	if r.Sort != nil {
		out.Sort = append([]Sort(nil), r.Sort...)
	}
	if r.MinScore != nil {
		v := *r.MinScore
		out.MinScore = &v
	}
	if r.RequestCache != nil {
		v := *r.RequestCache
		out.RequestCache = &v
	}
	if r.FetchSource != nil {
		v := *r.FetchSource
		out.FetchSource = &v
	}
	out.Aggregations = CloneAggregations(r.Aggregations)
	if r.Suggest != nil {
		out.Suggest = append([]Suggester(nil), r.Suggest...)
	}
	if r.ScriptFields != nil {
		out.ScriptFields = make(map[string]Script, len(r.ScriptFields))
		for k, s := range r.ScriptFields {
			s.Params = maps.Clone(s.Params)
			out.ScriptFields[k] = s
		}
	}
	return out
}

// Body renders the request body in the Elasticsearch search DSL. Request
// cache and preference travel as URL parameters and are not part of it.
func (r Request) Body() map[string]any {
	body := map[string]any{
		"from": r.From,
		"size": r.Size,
	}
	if r.Query != nil {
		body["query"] = r.Query.Source()
	}
	if len(r.Sort) > 0 {
		sorts := make([]any, len(r.Sort))
		for i, s := range r.Sort {
			sorts[i] = s.SortSource()
		}
		body["sort"] = sorts
	}
	if r.TrackTotalHits != nil {
		body["track_total_hits"] = r.TrackTotalHits
	}
	if r.MinScore != nil {
		body["min_score"] = *r.MinScore
	}
	if r.Timeout > 0 {
		body["timeout"] = formatTimeout(r.Timeout)
	}
	if r.FetchSource != nil {
		body["_source"] = *r.FetchSource
	}
	if len(r.Aggregations) > 0 {
		body["aggs"] = aggregationsSource(r.Aggregations)
	}
	if len(r.Suggest) > 0 {
		suggest := map[string]any{}
		for _, s := range r.Suggest {
			suggest[s.Name] = map[string]any{
				"prefix": s.Prefix,
				"completion": map[string]any{
					"field":           s.Field,
					"size":            s.Size,
					"skip_duplicates": s.SkipDuplicates,
				},
			}
		}
		body["suggest"] = suggest
	}
	if len(r.ScriptFields) > 0 {
		fields := map[string]any{}
		for name, s := range r.ScriptFields {
			script := map[string]any{"source": s.Source, "lang": "painless"}
			if len(s.Params) > 0 {
				script["params"] = s.Params
			}
			fields[name] = map[string]any{"script": script}
		}
		body["script_fields"] = fields
		if r.FetchSource == nil {
			body["_source"] = true
		}
	}
	return body
}

func (r Request) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Body())
}

func formatTimeout(d time.Duration) string {
	if d%time.Second == 0 {
		return strconv.FormatInt(int64(d/time.Second), 10) + "s"
	}
	return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
}
