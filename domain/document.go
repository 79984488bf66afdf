package domain

import "time"

// EntityType names one of the three indexed entity kinds.
type EntityType string

const (
	EntityVenue  EntityType = "venue"
	EntityArtist EntityType = "artist"
	EntityEvent  EntityType = "event"
)

// EntityTypes lists the indexed kinds in sync order.
var EntityTypes = []EntityType{EntityVenue, EntityArtist, EntityEvent}

// ParseEntityType accepts the singular or plural name of an entity kind.
func ParseEntityType(s string) (EntityType, bool) {
	switch s {
	case "venue", "venues":
		return EntityVenue, true
	case "artist", "artists":
		return EntityArtist, true
	case "event", "events":
		return EntityEvent, true
	}
	return "", false
}

// Document is a denormalized projection stored in a search index.
type Document interface {
	EntityType() EntityType
	DocumentID() string
}

type CityDocument struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	StateProvince string    `json:"state_province"`
	Country       string    `json:"country"`
	Location      *GeoPoint `json:"location,omitempty"`
}

type VenueDocument struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Address     string        `json:"address,omitempty"`
	Location    *GeoPoint     `json:"location"`
	Capacity    *int          `json:"capacity"`
	Website     string        `json:"website,omitempty"`
	ProsperRank int           `json:"prosper_rank"`
	Genres      []string      `json:"genres"`
	City        *CityDocument `json:"city"`
	CreatedAt   time.Time     `json:"created_at"`
}

func (d VenueDocument) EntityType() EntityType { return EntityVenue }
func (d VenueDocument) DocumentID() string     { return d.ID }

type ArtistDocument struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Genres     []string  `json:"genres"`
	PhotoURL   string    `json:"photo_url,omitempty"`
	ProfileBio string    `json:"profile_bio,omitempty"`
	HasBio     bool      `json:"has_bio"`
	HasPhoto   bool      `json:"has_photo"`
	CreatedAt  time.Time `json:"created_at"`
}

func (d ArtistDocument) EntityType() EntityType { return EntityArtist }
func (d ArtistDocument) DocumentID() string     { return d.ID }

// EventVenueDocument is the venue sub-object flattened into an event.
type EventVenueDocument struct {
	ID       int64         `json:"id"`
	Name     string        `json:"name"`
	Location *GeoPoint     `json:"location"`
	Capacity *int          `json:"capacity"`
	City     *CityDocument `json:"city"`
}

// EventArtistDocument is one element of an event's nested artist list.
type EventArtistDocument struct {
	ID     int64    `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
}

type EventDocument struct {
	ID            string                `json:"id"`
	Title         string                `json:"title"`
	Description   string                `json:"description,omitempty"`
	EventDatetime time.Time             `json:"event_datetime"`
	TicketURL     string                `json:"ticket_url,omitempty"`
	HasTickets    bool                  `json:"has_tickets"`
	ExternalID    string                `json:"external_id,omitempty"`
	Venue         *EventVenueDocument   `json:"venue"`
	Artists       []EventArtistDocument `json:"artists"`
	CreatedAt     time.Time             `json:"created_at"`
}

func (d EventDocument) EntityType() EntityType { return EntityEvent }
func (d EventDocument) DocumentID() string     { return d.ID }

func NewCityDocument(city *City) *CityDocument {
	if city == nil {
		return nil
	}
	return &CityDocument{
		ID:            city.ID,
		Name:          city.Name,
		StateProvince: city.StateProvince,
		Country:       city.Country,
		Location:      copyPoint(city.Location),
	}
}

func NewVenueDocument(venue *Venue) VenueDocument {
	return VenueDocument{
		ID:          FormatID(venue.ID),
		Name:        venue.Name,
		Address:     venue.Address,
		Location:    copyPoint(venue.Location),
		Capacity:    copyInt(venue.Capacity),
		Website:     venue.Website,
		ProsperRank: venue.ProsperRank,
		Genres:      copyStrings(venue.Genres),
		City:        NewCityDocument(venue.City),
		CreatedAt:   venue.CreatedAt.UTC(),
	}
}

func NewArtistDocument(artist *Artist) ArtistDocument {
	return ArtistDocument{
		ID:         FormatID(artist.ID),
		Name:       artist.Name,
		Genres:     copyStrings(artist.Genres),
		PhotoURL:   artist.PhotoURL,
		ProfileBio: artist.ProfileBio,
		HasBio:     artist.ProfileBio != "",
		HasPhoto:   artist.PhotoURL != "",
		CreatedAt:  artist.CreatedAt.UTC(),
	}
}

func NewEventDocument(event *Event) EventDocument {
	doc := EventDocument{
		ID:            FormatID(event.ID),
		Title:         event.Title,
		Description:   event.Description,
		EventDatetime: event.EventDatetime.UTC(),
		TicketURL:     event.TicketURL,
		HasTickets:    event.TicketURL != "",
		ExternalID:    event.ExternalID,
		Artists:       make([]EventArtistDocument, 0, len(event.Artists)),
		CreatedAt:     event.CreatedAt.UTC(),
	}
	if v := event.Venue; v != nil {
		doc.Venue = &EventVenueDocument{
			ID:       v.ID,
			Name:     v.Name,
			Location: copyPoint(v.Location),
			Capacity: copyInt(v.Capacity),
			City:     NewCityDocument(v.City),
		}
	}
	for _, a := range event.Artists {
		doc.Artists = append(doc.Artists, EventArtistDocument{
			ID:     a.ID,
			Name:   a.Name,
			Genres: copyStrings(a.Genres),
		})
	}
	return doc
}

func copyPoint(p *GeoPoint) *GeoPoint {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyStrings(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
