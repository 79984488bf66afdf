package query

import (
	"time"

	"venue-indexer/domain"
)

var (
	VenueTextFields  = []string{"name^3", "name.autocomplete^2", "city.name^2", "address", "genres"}
	ArtistTextFields = []string{"name^3", "name.autocomplete^2", "genres^2", "profile_bio"}
	EventTextFields  = []string{"title^3", "title.autocomplete^2", "venue.name^2", "venue.city.name", "description"}
)

const (
	VenueSuggestField  = "name.suggest"
	ArtistSuggestField = "name.suggest"
	EventSuggestField  = "title.suggest"
)

var (
	venueSortFields = map[string]string{
		"name":         "name",
		"capacity":     "capacity",
		"prosper_rank": "prosper_rank",
		"created_at":   "created_at",
	}
	artistSortFields = map[string]string{
		"name":       "name",
		"created_at": "created_at",
	}
	eventSortFields = map[string]string{
		"date":           "event_datetime",
		"event_datetime": "event_datetime",
		"title":          "title",
		"created_at":     "created_at",
	}
)

func sortOptions(p domain.SearchParams, allowed map[string]string, geoField string, defaults []Sort) SortOptions {
	opts := SortOptions{Defaults: defaults}
	if field, ok := allowed[p.SortBy]; ok {
		opts.Field = field
		opts.Direction = ParseSortOrder(p.SortDir, Asc)
	}
	if geoField != "" && p.HasGeo() && (p.SortBy == "" || p.SortBy == "distance") {
		opts.Geo = &GeoSortPoint{Field: geoField, Point: domain.GeoPoint{Lat: *p.Lat, Lon: *p.Lon}}
	}
	return opts
}

func geoFilter(field string, p domain.SearchParams) Query {
	if !p.HasGeo() {
		return nil
	}
	return GeoFilter(field, *p.Lat, *p.Lon, p.RadiusKm)
}

func boolTerm(field string, v *bool) Query {
	if v == nil {
		return nil
	}
	return Term{Field: field, Value: *v}
}

func idTerm(field string, v *int64) Query {
	if v == nil {
		return nil
	}
	return Term{Field: field, Value: *v}
}

func paged(q Query, sorts []Sort, p domain.SearchParams) Request {
	from, size := Paginate(p.Page, p.Limit)
	return Request{Query: q, Sort: sorts, From: from, Size: size}
}

// BuildVenueSearch filters venues by genre, distance, capacity, rank, region,
// country and city.
func BuildVenueSearch(text string, p domain.SearchParams) Request {
	var fs filters
	fs.add(TermsFilter("genres", p.Genres))
	fs.add(geoFilter("location", p))
	fs.add(IntRangeFilter("capacity", p.CapacityMin, p.CapacityMax))
	fs.add(IntRangeFilter("prosper_rank", p.ProsperRankMin, nil))
	fs.add(TermsFilter("city.state_province", p.Regions))
	fs.add(TermsFilter("city.country", p.Countries))
	fs.add(idTerm("city.id", p.CityID))

	sorts := BuildSort(sortOptions(p, venueSortFields, "location",
		[]Sort{ScoreSort{Order: Desc}, FieldSort{Field: "prosper_rank", Order: Desc}}))

	return paged(compose(Text(text, VenueTextFields), fs), sorts, p)
}

// BuildArtistSearch filters artists by genre and bio or photo presence.
func BuildArtistSearch(text string, p domain.SearchParams) Request {
	var fs filters
	fs.add(TermsFilter("genres", p.Genres))
	fs.add(boolTerm("has_bio", p.HasBio))
	fs.add(boolTerm("has_photo", p.HasPhoto))
	if p.ArtistID != nil {
		fs.add(Term{Field: "id", Value: domain.FormatID(*p.ArtistID)})
	}

	sorts := BuildSort(sortOptions(p, artistSortFields, "", []Sort{ScoreSort{Order: Desc}}))

	return paged(compose(Text(text, ArtistTextFields), fs), sorts, p)
}

// BuildEventSearch filters events by date, artist genre, distance, venue,
// artist, city, region, country, capacity and ticket availability. Artist
// filters are nested so genre and id match the same artist.
func BuildEventSearch(text string, p domain.SearchParams) Request {
	var fs filters
	fs.add(DateRangeFilter("event_datetime", p.StartDate, p.EndDate))
	fs.add(NestedFilter("artists", TermsFilter("artists.genres", p.Genres)))
	fs.add(geoFilter("venue.location", p))
	fs.add(idTerm("venue.id", p.VenueID))
	fs.add(NestedFilter("artists", idTerm("artists.id", p.ArtistID)))
	fs.add(idTerm("venue.city.id", p.CityID))
	fs.add(TermsFilter("venue.city.state_province", p.Regions))
	fs.add(TermsFilter("venue.city.country", p.Countries))
	fs.add(IntRangeFilter("venue.capacity", p.CapacityMin, p.CapacityMax))
	fs.add(boolTerm("has_tickets", p.HasTickets))

	sorts := BuildSort(sortOptions(p, eventSortFields, "venue.location",
		[]Sort{ScoreSort{Order: Desc}, FieldSort{Field: "event_datetime", Order: Asc}}))

	return paged(compose(eventText(text), fs), sorts, p)
}

// eventText also matches performing artist names through the nested list.
func eventText(text string) Query {
	q := Text(text, EventTextFields)
	if _, all := q.(MatchAll); all {
		return q
	}
	return Bool{
		Should: []Query{
			q,
			Nested{Path: "artists", Query: Text(text, []string{"artists.name^2"}), ScoreMode: "max"},
		},
		MinimumShouldMatch: 1,
	}
}

// BuildUpcomingEvents selects events in [now, now+days_ahead], ordered strictly
// by event time.
func BuildUpcomingEvents(p domain.UpcomingParams, now time.Time) Request {
	days := p.DaysAhead
	if days <= 0 {
		days = domain.DefaultDaysAhead
	}
	end := now.AddDate(0, 0, days)

	var fs filters
	fs.add(DateRangeFilter("event_datetime", &now, &end))
	fs.add(idTerm("venue.id", p.VenueID))
	fs.add(NestedFilter("artists", idTerm("artists.id", p.ArtistID)))
	fs.add(idTerm("venue.city.id", p.CityID))

	from, size := Paginate(p.Page, p.Limit)
	return Request{
		Query: compose(MatchAll{}, fs),
		Sort:  []Sort{FieldSort{Field: "event_datetime", Order: Asc}},
		From:  from,
		Size:  size,
	}
}

// BuildSuggestion asks the completion suggester on field for prefix matches.
func BuildSuggestion(prefix, field string, size int) Request {
	if size <= 0 || size > domain.MaxSuggestions {
		size = domain.MaxSuggestions
	}
	fetch := false
	return Request{
		Size:        0,
		FetchSource: &fetch,
		Suggest: []Suggester{{
			Name:           "suggestions",
			Prefix:         prefix,
			Field:          field,
			Size:           size,
			SkipDuplicates: true,
		}},
	}
}
