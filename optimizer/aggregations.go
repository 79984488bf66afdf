package optimizer

import (
	"strings"

	"venue-indexer/query"
)

var highCardinalityFields = map[string]bool{
	"id":          true,
	"title":       true,
	"name":        true,
	"description": true,
	"address":     true,
	"website":     true,
	"external_id": true,
}

var calendarIntervals = map[string]string{
	"1m": "minute", "minute": "minute",
	"1h": "hour", "hour": "hour",
	"1d": "day", "day": "day",
	"1w": "week", "week": "week",
	"1M": "month", "month": "month",
	"1q": "quarter", "quarter": "quarter",
	"1y": "year", "year": "year",
}

// defaultTermsSize is the backend default bucket count.
const defaultTermsSize = 10

// OptimizeAggregations caps bucket counts on high cardinality terms, widens
// shard sampling, and rewrites legacy date histogram intervals. Sub
// aggregations are handled recursively.
func (o *Optimizer) OptimizeAggregations(aggs map[string]query.Aggregation) map[string]query.Aggregation {
	out := query.CloneAggregations(aggs)
	for name, a := range out {
		if t := a.Terms; t != nil {
			if highCardinalityFields[baseField(t.Field)] && (t.Size == 0 || t.Size > o.opts.MaxTermsBucketSize) {
				t.Size = o.opts.MaxTermsBucketSize
			}
			size := t.Size
			if size == 0 {
				size = defaultTermsSize
			}
			if t.ShardSize < size*3 {
				t.ShardSize = size * 3
			}
		}
		if d := a.DateHistogram; d != nil && d.Interval != "" {
			if d.CalendarInterval == "" && d.FixedInterval == "" {
				if unit, ok := calendarIntervals[d.Interval]; ok {
					d.CalendarInterval = unit
				} else {
					d.FixedInterval = d.Interval
				}
			}
			d.Interval = ""
		}
		if len(a.Aggs) > 0 {
			a.Aggs = o.OptimizeAggregations(a.Aggs)
		}
		out[name] = a
	}
	return out
}

// baseField reduces venue.name and name.keyword to name.
func baseField(field string) string {
	field = strings.TrimSuffix(field, ".keyword")
	if i := strings.LastIndex(field, "."); i >= 0 {
		return field[i+1:]
	}
	return field
}
