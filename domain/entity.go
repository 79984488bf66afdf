package domain

import (
	"strconv"
	"time"
)

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type City struct {
	ID            int64
	Name          string
	StateProvince string
	Country       string
	Location      *GeoPoint
}

type Venue struct {
	ID          int64
	CityID      int64
	Name        string
	Address     string
	Location    *GeoPoint
	Capacity    *int
	Website     string
	ProsperRank int
	// Genres is derived from the artists that have played the venue.
	Genres    []string
	CreatedAt time.Time

	City *City
}

type Artist struct {
	ID         int64
	Name       string
	Genres     []string
	PhotoURL   string
	ProfileBio string
	CreatedAt  time.Time
}

type Event struct {
	ID            int64
	VenueID       int64
	Title         string
	Description   string
	EventDatetime time.Time
	TicketURL     string
	ExternalID    string
	CreatedAt     time.Time

	Venue   *Venue
	Artists []Artist
}

// FormatID renders an entity primary key the way it is stored as a document id.
func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Page is a one-based page request against the system of record.
type Page struct {
	Page  int
	Limit int
}

// Offset returns the row offset of the page.
func (p Page) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// PageResult is one page of rows plus the total row count.
type PageResult[T any] struct {
	Data  []T
	Total int
}
