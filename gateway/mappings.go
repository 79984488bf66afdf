package gateway

import "venue-indexer/domain"

// IndexNames maps each entity kind to its index.
type IndexNames map[domain.EntityType]string

// NewIndexNames returns venues, artists and events with an optional prefix.
func NewIndexNames(prefix string) IndexNames {
	if prefix != "" {
		prefix += "_"
	}
	return IndexNames{
		domain.EntityVenue:  prefix + "venues",
		domain.EntityArtist: prefix + "artists",
		domain.EntityEvent:  prefix + "events",
	}
}

// All returns the index names in sync order.
func (n IndexNames) All() []string {
	out := make([]string, 0, len(domain.EntityTypes))
	for _, e := range domain.EntityTypes {
		out = append(out, n[e])
	}
	return out
}

type props = map[string]any

var (
	keywordField = props{"type": "keyword"}
	longField    = props{"type": "long"}
	integerField = props{"type": "integer"}
	booleanField = props{"type": "boolean"}
	dateField    = props{"type": "date"}
	geoField     = props{"type": "geo_point"}
	plainText    = props{"type": "text", "analyzer": "standard"}
)

// searchableText is a text field with exact, edge n-gram and completion
// sub-fields.
func searchableText() props {
	return props{
		"type":     "text",
		"analyzer": "standard",
		"fields": props{
			"keyword": props{"type": "keyword", "ignore_above": 256},
			"autocomplete": props{
				"type":            "text",
				"analyzer":        "autocomplete",
				"search_analyzer": "autocomplete_search",
			},
			"suggest": props{"type": "completion"},
		},
	}
}

// textWithKeyword is a text field that can also be filtered and sorted exactly.
func textWithKeyword() props {
	return props{
		"type":   "text",
		"fields": props{"keyword": props{"type": "keyword", "ignore_above": 256}},
	}
}

func cityProperties() props {
	return props{
		"properties": props{
			"id":             longField,
			"name":           textWithKeyword(),
			"state_province": keywordField,
			"country":        keywordField,
			"location":       geoField,
		},
	}
}

var indexSettings = props{
	"number_of_shards":   1,
	"number_of_replicas": 1,
	"analysis": props{
		"filter": props{
			"autocomplete_filter": props{
				"type":     "edge_ngram",
				"min_gram": 2,
				"max_gram": 20,
			},
		},
		"analyzer": props{
			"autocomplete": props{
				"type":      "custom",
				"tokenizer": "standard",
				"filter":    []string{"lowercase", "asciifolding", "autocomplete_filter"},
			},
			"autocomplete_search": props{
				"type":      "custom",
				"tokenizer": "standard",
				"filter":    []string{"lowercase", "asciifolding"},
			},
		},
	},
}

func venueMapping() props {
	return props{
		"dynamic": "strict",
		"properties": props{
			"id":           keywordField,
			"name":         searchableText(),
			"address":      plainText,
			"location":     geoField,
			"capacity":     integerField,
			"website":      keywordField,
			"prosper_rank": integerField,
			"genres":       keywordField,
			"city":         cityProperties(),
			"created_at":   dateField,
		},
	}
}

func artistMapping() props {
	return props{
		"dynamic": "strict",
		"properties": props{
			"id":          keywordField,
			"name":        searchableText(),
			"genres":      keywordField,
			"photo_url":   keywordField,
			"profile_bio": plainText,
			"has_bio":     booleanField,
			"has_photo":   booleanField,
			"created_at":  dateField,
		},
	}
}

func eventMapping() props {
	return props{
		"dynamic": "strict",
		"properties": props{
			"id":             keywordField,
			"title":          searchableText(),
			"description":    plainText,
			"event_datetime": dateField,
			"ticket_url":     keywordField,
			"has_tickets":    booleanField,
			"external_id":    keywordField,
			"venue": props{
				"properties": props{
					"id":       longField,
					"name":     textWithKeyword(),
					"location": geoField,
					"capacity": integerField,
					"city":     cityProperties(),
				},
			},
			"artists": props{
				"type": "nested",
				"properties": props{
					"id":     longField,
					"name":   textWithKeyword(),
					"genres": keywordField,
				},
			},
			"created_at": dateField,
		},
	}
}

// IndexBody returns the create-index body of entity: shared analysis settings
// plus the entity's field mappings.
func IndexBody(entity domain.EntityType) map[string]any {
	var mappings props
	switch entity {
	case domain.EntityVenue:
		mappings = venueMapping()
	case domain.EntityArtist:
		mappings = artistMapping()
	case domain.EntityEvent:
		mappings = eventMapping()
	default:
		return nil
	}
	return map[string]any{
		"settings": indexSettings,
		"mappings": mappings,
	}
}
