package validation

import (
	"regexp"
	"strings"

	"venue-indexer/domain"
)

var countryCodePattern = regexp.MustCompile(`^[A-Z]{2}$`)

func sourceRule() Rule {
	return Rule{
		Field:    "source",
		Required: true,
		Type:     TypeString,
		Custom: func(v any) bool {
			s, _ := v.(string)
			return domain.Source(s).Valid()
		},
		CustomMessage: "Field 'source' must be one of songkick, bandsintown, ticketmaster, scraper",
	}
}

func eventRules() []Rule {
	return []Rule{
		{Field: "id", Required: true, Type: TypeString},
		{Field: "title", Required: true, Type: TypeString, MinLength: 2, MaxLength: 200},
		{Field: "datetime", Required: true, Type: TypeDate},
		{Field: "venue_name", Required: true, Type: TypeString, MinLength: 2, MaxLength: 200},
		{
			Field:    "artists",
			Required: true,
			Type:     TypeArray,
			Custom: func(v any) bool {
				names, _ := v.([]string)
				for _, n := range names {
					if strings.TrimSpace(n) == "" {
						return false
					}
				}
				return true
			},
			CustomMessage: "Field 'artists' must not contain blank names",
		},
		{Field: "description", Type: TypeString, MaxLength: 5000},
		{Field: "ticket_url", Type: TypeURL},
		sourceRule(),
	}
}

func venueRules() []Rule {
	return []Rule{
		{Field: "id", Required: true, Type: TypeString},
		{Field: "name", Required: true, Type: TypeString, MinLength: 2, MaxLength: 200},
		{Field: "city", Required: true, Type: TypeString, MinLength: 2, MaxLength: 100},
		{Field: "address", Type: TypeString, MaxLength: 500},
		{Field: "country", Type: TypeString, Pattern: countryCodePattern},
		{
			Field: "latitude",
			Type:  TypeNumber,
			Custom: func(v any) bool {
				f, ok := toFloat(v)
				return ok && f >= -90 && f <= 90
			},
			CustomMessage: "Field 'latitude' must be between -90 and 90",
		},
		{
			Field: "longitude",
			Type:  TypeNumber,
			Custom: func(v any) bool {
				f, ok := toFloat(v)
				return ok && f >= -180 && f <= 180
			},
			CustomMessage: "Field 'longitude' must be between -180 and 180",
		},
		{
			Field: "capacity",
			Type:  TypeNumber,
			Custom: func(v any) bool {
				f, ok := toFloat(v)
				return ok && f > 0
			},
			CustomMessage: "Field 'capacity' must be positive",
		},
		{Field: "website", Type: TypeURL},
		sourceRule(),
	}
}

func artistRules() []Rule {
	return []Rule{
		{Field: "id", Required: true, Type: TypeString},
		{Field: "name", Required: true, Type: TypeString, MinLength: 1, MaxLength: 200},
		{Field: "genres", Type: TypeArray},
		{Field: "bio", Type: TypeString, MaxLength: 10000},
		{Field: "photo_url", Type: TypeURL},
		{Field: "website", Type: TypeURL},
		{Field: "contact_email", Type: TypeEmail},
		sourceRule(),
	}
}
