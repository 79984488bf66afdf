// Package query holds typed search query fragments and the builders that
// compose them per entity kind. Fragments are immutable once built and are
// serialised to the backend DSL only at the driver boundary via Source.
package query

import (
	"fmt"

	"venue-indexer/domain"
)

// Query is one node of a query tree.
type Query interface {
	Source() map[string]any
}

// Children returns the direct sub-queries of q.
func Children(q Query) []Query {
	switch v := q.(type) {
	case Bool:
		out := make([]Query, 0, len(v.Must)+len(v.Should)+len(v.Filter)+len(v.MustNot))
		out = append(out, v.Must...)
		out = append(out, v.Should...)
		out = append(out, v.Filter...)
		out = append(out, v.MustNot...)
		return out
	case Nested:
		return []Query{v.Query}
	case FunctionScore:
		if v.Query == nil {
			return nil
		}
		return []Query{v.Query}
	}
	return nil
}

// Walk visits q and its descendants depth first until fn returns false.
func Walk(q Query, fn func(Query) bool) bool {
	if q == nil {
		return true
	}
	if !fn(q) {
		return false
	}
	for _, c := range Children(q) {
		if !Walk(c, fn) {
			return false
		}
	}
	return true
}

type MatchAll struct{}

func (MatchAll) Source() map[string]any {
	return map[string]any{"match_all": map[string]any{}}
}

// MultiMatch is a weighted full text match across several fields.
type MultiMatch struct {
	Query     string
	Fields    []string
	Type      string
	Fuzziness string
	Operator  string
}

func (m MultiMatch) Source() map[string]any {
	body := map[string]any{
		"query":  m.Query,
		"fields": append([]string(nil), m.Fields...),
	}
	if m.Type != "" {
		body["type"] = m.Type
	}
	if m.Fuzziness != "" {
		body["fuzziness"] = m.Fuzziness
	}
	if m.Operator != "" {
		body["operator"] = m.Operator
	}
	return map[string]any{"multi_match": body}
}

type Term struct {
	Field string
	Value any
}

func (t Term) Source() map[string]any {
	return map[string]any{"term": map[string]any{t.Field: t.Value}}
}

type Terms struct {
	Field  string
	Values []any
}

func (t Terms) Source() map[string]any {
	return map[string]any{"terms": map[string]any{t.Field: append([]any(nil), t.Values...)}}
}

// Range bounds are inclusive unless the exclusive variants are set.
// Bounds may be numbers or formatted date strings.
type Range struct {
	Field  string
	Gte    any
	Lte    any
	Gt     any
	Lt     any
	Format string
}

func (r Range) Bounds() []any {
	return []any{r.Gte, r.Lte, r.Gt, r.Lt}
}

func (r Range) Source() map[string]any {
	body := map[string]any{}
	if r.Gte != nil {
		body["gte"] = r.Gte
	}
	if r.Lte != nil {
		body["lte"] = r.Lte
	}
	if r.Gt != nil {
		body["gt"] = r.Gt
	}
	if r.Lt != nil {
		body["lt"] = r.Lt
	}
	if r.Format != "" {
		body["format"] = r.Format
	}
	return map[string]any{"range": map[string]any{r.Field: body}}
}

type Exists struct {
	Field string
}

func (e Exists) Source() map[string]any {
	return map[string]any{"exists": map[string]any{"field": e.Field}}
}

// GeoDistance keeps documents whose geo point lies within DistanceKm of Point.
type GeoDistance struct {
	Field      string
	Point      domain.GeoPoint
	DistanceKm float64
}

func (g GeoDistance) Distance() string {
	return fmt.Sprintf("%gkm", g.DistanceKm)
}

func (g GeoDistance) Source() map[string]any {
	return map[string]any{"geo_distance": map[string]any{
		"distance": g.Distance(),
		g.Field:    map[string]any{"lat": g.Point.Lat, "lon": g.Point.Lon},
	}}
}

// Nested evaluates Query against each object of the nested array at Path.
type Nested struct {
	Path      string
	Query     Query
	ScoreMode string
}

func (n Nested) Source() map[string]any {
	body := map[string]any{
		"path":  n.Path,
		"query": n.Query.Source(),
	}
	if n.ScoreMode != "" {
		body["score_mode"] = n.ScoreMode
	}
	return map[string]any{"nested": body}
}

type Bool struct {
	Must               []Query
	Should             []Query
	Filter             []Query
	MustNot            []Query
	MinimumShouldMatch int
}

// IsEmpty reports whether b has no clauses at all.
func (b Bool) IsEmpty() bool {
	return len(b.Must)+len(b.Should)+len(b.Filter)+len(b.MustNot) == 0
}

func (b Bool) Source() map[string]any {
	body := map[string]any{}
	put := func(key string, qs []Query) {
		if len(qs) == 0 {
			return
		}
		out := make([]any, len(qs))
		for i, q := range qs {
			out[i] = q.Source()
		}
		body[key] = out
	}
	put("must", b.Must)
	put("should", b.Should)
	put("filter", b.Filter)
	put("must_not", b.MustNot)
	if b.MinimumShouldMatch > 0 {
		body["minimum_should_match"] = b.MinimumShouldMatch
	}
	return map[string]any{"bool": body}
}

// ScoreFunction is one function of a function_score query.
type ScoreFunction interface {
	FunctionSource() map[string]any
}

// Gauss decays the score with distance from Origin.
type Gauss struct {
	Field  string
	Origin any
	Scale  string
	Offset string
	Decay  float64
	Weight float64
}

func (g Gauss) FunctionSource() map[string]any {
	params := map[string]any{"origin": g.Origin, "scale": g.Scale}
	if g.Offset != "" {
		params["offset"] = g.Offset
	}
	if g.Decay > 0 {
		params["decay"] = g.Decay
	}
	fn := map[string]any{"gauss": map[string]any{g.Field: params}}
	if g.Weight > 0 {
		fn["weight"] = g.Weight
	}
	return fn
}

// RandomScore shuffles results; a request using it is never cacheable.
type RandomScore struct {
	Seed  int64
	Field string
}

func (r RandomScore) FunctionSource() map[string]any {
	body := map[string]any{}
	if r.Field != "" {
		body["seed"] = r.Seed
		body["field"] = r.Field
	}
	return map[string]any{"random_score": body}
}

type FieldValueFactor struct {
	Field    string
	Factor   float64
	Modifier string
	Missing  float64
}

func (f FieldValueFactor) FunctionSource() map[string]any {
	body := map[string]any{"field": f.Field, "missing": f.Missing}
	if f.Factor > 0 {
		body["factor"] = f.Factor
	}
	if f.Modifier != "" {
		body["modifier"] = f.Modifier
	}
	return map[string]any{"field_value_factor": body}
}

type FunctionScore struct {
	Query     Query
	Functions []ScoreFunction
	ScoreMode string
	BoostMode string
}

func (f FunctionScore) Source() map[string]any {
	body := map[string]any{}
	if f.Query != nil {
		body["query"] = f.Query.Source()
	}
	fns := make([]any, len(f.Functions))
	for i, fn := range f.Functions {
		fns[i] = fn.FunctionSource()
	}
	body["functions"] = fns
	if f.ScoreMode != "" {
		body["score_mode"] = f.ScoreMode
	}
	if f.BoostMode != "" {
		body["boost_mode"] = f.BoostMode
	}
	return map[string]any{"function_score": body}
}
