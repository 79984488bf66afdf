package domain

// Source identifies the ingestion connector that produced an external record.
type Source string

const (
	SourceSongkick     Source = "songkick"
	SourceBandsintown  Source = "bandsintown"
	SourceTicketmaster Source = "ticketmaster"
	SourceScraper      Source = "scraper"
)

// Valid reports whether s is one of the known connectors.
func (s Source) Valid() bool {
	switch s {
	case SourceSongkick, SourceBandsintown, SourceTicketmaster, SourceScraper:
		return true
	}
	return false
}

// ExternalEvent is an untrusted event record handed over by a connector.
type ExternalEvent struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Datetime    string   `json:"datetime"`
	VenueName   string   `json:"venue_name"`
	VenueCity   string   `json:"venue_city,omitempty"`
	Artists     []string `json:"artists"`
	Genres      []string `json:"genres,omitempty"`
	TicketURL   string   `json:"ticket_url,omitempty"`
	Source      Source   `json:"source"`
}

// Fields exposes the record by field name for rule evaluation.
func (e ExternalEvent) Fields() map[string]any {
	return map[string]any{
		"id":          e.ID,
		"title":       e.Title,
		"description": e.Description,
		"datetime":    e.Datetime,
		"venue_name":  e.VenueName,
		"venue_city":  e.VenueCity,
		"artists":     e.Artists,
		"genres":      e.Genres,
		"ticket_url":  e.TicketURL,
		"source":      string(e.Source),
	}
}

// ExternalVenue is an untrusted venue record handed over by a connector.
type ExternalVenue struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	City      string   `json:"city"`
	Address   string   `json:"address,omitempty"`
	Country   string   `json:"country,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Capacity  *int     `json:"capacity,omitempty"`
	Website   string   `json:"website,omitempty"`
	Source    Source   `json:"source"`
}

func (v ExternalVenue) Fields() map[string]any {
	f := map[string]any{
		"id":        v.ID,
		"name":      v.Name,
		"city":      v.City,
		"address":   v.Address,
		"country":   v.Country,
		"latitude":  nil,
		"longitude": nil,
		"capacity":  nil,
		"website":   v.Website,
		"source":    string(v.Source),
	}
	if v.Latitude != nil {
		f["latitude"] = *v.Latitude
	}
	if v.Longitude != nil {
		f["longitude"] = *v.Longitude
	}
	if v.Capacity != nil {
		f["capacity"] = *v.Capacity
	}
	return f
}

// ExternalArtist is an untrusted artist record handed over by a connector.
type ExternalArtist struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Genres       []string `json:"genres,omitempty"`
	Bio          string   `json:"bio,omitempty"`
	PhotoURL     string   `json:"photo_url,omitempty"`
	Website      string   `json:"website,omitempty"`
	ContactEmail string   `json:"contact_email,omitempty"`
	Source       Source   `json:"source"`
}

func (a ExternalArtist) Fields() map[string]any {
	return map[string]any{
		"id":            a.ID,
		"name":          a.Name,
		"genres":        a.Genres,
		"bio":           a.Bio,
		"photo_url":     a.PhotoURL,
		"website":       a.Website,
		"contact_email": a.ContactEmail,
		"source":        string(a.Source),
	}
}
