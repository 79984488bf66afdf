package driver

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"venue-indexer/query"
)

// timestampSuffix names the unix seconds copy of a date field kept for
// numeric range filtering in Meilisearch.
const timestampSuffix = "_ts"

// meiliRequest is a query tree flattened into Meilisearch search parameters.
type meiliRequest struct {
	Text   string
	Filter string
	Sort   []string
}

// escapeMeilisearchValue escapes special characters in Meilisearch filter values.
func escapeMeilisearchValue(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	return value
}

func formatFilterValue(v any) string {
	switch x := v.(type) {
	case string:
		return fmt.Sprintf("\"%s\"", escapeMeilisearchValue(x))
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprintf("\"%s\"", escapeMeilisearchValue(fmt.Sprint(x)))
	}
}

// translateRequest renders req as Meilisearch text, filter and sort.
// Scoring functions are dropped; their inner query still filters.
func translateRequest(req query.Request) meiliRequest {
	out := meiliRequest{
		Text:   searchText(req.Query),
		Filter: translateFilter(req.Query),
	}
	for _, s := range req.Sort {
		if rule := translateSort(s); rule != "" {
			out.Sort = append(out.Sort, rule)
		}
	}
	return out
}

// searchText returns the first full text query found in q.
func searchText(q query.Query) string {
	var text string
	query.Walk(q, func(n query.Query) bool {
		if m, ok := n.(query.MultiMatch); ok {
			text = m.Query
			return false
		}
		return true
	})
	return text
}

// translateFilter returns the filter expression of q, or "" when q does not
// restrict the result set.
func translateFilter(q query.Query) string {
	switch v := q.(type) {
	case nil, query.MatchAll, query.MultiMatch:
		return ""
	case query.Term:
		return fmt.Sprintf("%s = %s", v.Field, formatFilterValue(v.Value))
	case query.Terms:
		if len(v.Values) == 0 {
			return ""
		}
		values := make([]string, len(v.Values))
		for i, value := range v.Values {
			values[i] = formatFilterValue(value)
		}
		return fmt.Sprintf("%s IN [%s]", v.Field, strings.Join(values, ", "))
	case query.Range:
		return translateRange(v)
	case query.Exists:
		return v.Field + " EXISTS"
	case query.GeoDistance:
		return fmt.Sprintf("_geoRadius(%s, %s, %s)",
			formatFilterValue(v.Point.Lat),
			formatFilterValue(v.Point.Lon),
			formatFilterValue(v.DistanceKm*1000))
	case query.Nested:
		return translateFilter(v.Query)
	case query.FunctionScore:
		return translateFilter(v.Query)
	case query.Bool:
		return translateBool(v)
	}
	return ""
}

func translateBool(b query.Bool) string {
	var parts []string
	for _, q := range append(append([]query.Query{}, b.Must...), b.Filter...) {
		if f := translateFilter(q); f != "" {
			parts = append(parts, group(f))
		}
	}

	var should []string
	for _, q := range b.Should {
		f := translateFilter(q)
		if f == "" {
			// A clause that matches on text alone satisfies the disjunction.
			should = nil
			break
		}
		should = append(should, group(f))
	}
	if len(should) > 0 {
		parts = append(parts, "("+strings.Join(should, " OR ")+")")
	}

	for _, q := range b.MustNot {
		if f := translateFilter(q); f != "" {
			parts = append(parts, "NOT "+group(f))
		}
	}
	return strings.Join(parts, " AND ")
}

func group(f string) string {
	if strings.Contains(f, " AND ") || strings.Contains(f, " OR ") {
		return "(" + f + ")"
	}
	return f
}

// translateRange compares date bounds against the unix seconds copy of the
// field and all other bounds against the field itself.
func translateRange(r query.Range) string {
	ops := []struct {
		op    string
		value any
	}{
		{">=", r.Gte},
		{"<=", r.Lte},
		{">", r.Gt},
		{"<", r.Lt},
	}

	var parts []string
	for _, o := range ops {
		if o.value == nil {
			continue
		}
		field := r.Field
		value := o.value
		if s, ok := o.value.(string); ok {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				field = r.Field + timestampSuffix
				value = t.Unix()
			}
		}
		parts = append(parts, fmt.Sprintf("%s %s %s", field, o.op, formatFilterValue(value)))
	}
	return strings.Join(parts, " AND ")
}

func translateSort(s query.Sort) string {
	switch v := s.(type) {
	case query.FieldSort:
		return strings.TrimSuffix(v.Field, ".keyword") + ":" + string(v.Order)
	case query.GeoDistanceSort:
		return fmt.Sprintf("_geoPoint(%s, %s):%s",
			formatFilterValue(v.Point.Lat),
			formatFilterValue(v.Point.Lon),
			v.Order)
	}
	return ""
}

// indexAttributes derives filterable and sortable attribute lists from an
// Elasticsearch style index body.
func indexAttributes(body map[string]any) (filterable, sortable []string) {
	mappings, _ := body["mappings"].(map[string]any)
	props, _ := mappings["properties"].(map[string]any)
	seen := map[*[]string]map[string]bool{
		&filterable: {},
		&sortable:   {},
	}
	add := func(list *[]string, name string) {
		if seen[list][name] {
			return
		}
		seen[list][name] = true
		*list = append(*list, name)
	}
	walkProperties("", props, func(name, typ string, hasKeyword bool) {
		switch typ {
		case "geo_point":
			add(&filterable, "_geo")
			add(&sortable, "_geo")
		case "date":
			add(&filterable, name+timestampSuffix)
			add(&sortable, name)
		case "keyword", "integer", "long", "float", "double", "boolean":
			add(&filterable, name)
			add(&sortable, name)
		case "text":
			if hasKeyword {
				add(&filterable, name)
				add(&sortable, name)
			}
		}
	})
	return filterable, sortable
}

func walkProperties(prefix string, props map[string]any, fn func(name, typ string, hasKeyword bool)) {
	for name, raw := range props {
		prop, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		full := name
		if prefix != "" {
			full = prefix + "." + name
		}
		if nested, ok := prop["properties"].(map[string]any); ok {
			walkProperties(full, nested, fn)
			continue
		}
		typ, _ := prop["type"].(string)
		fields, _ := prop["fields"].(map[string]any)
		_, hasKeyword := fields["keyword"]
		fn(full, typ, hasKeyword)
	}
}
