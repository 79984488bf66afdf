// Package validation checks untrusted records from ingestion connectors and
// removes duplicates before they become domain entities.
package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"venue-indexer/domain"
	"venue-indexer/similarity"
)

// Config holds the duplicate thresholds per entity kind.
type Config struct {
	EventThreshold  float64 `validate:"gt=0,lte=1"`
	VenueThreshold  float64 `validate:"gt=0,lte=1"`
	ArtistThreshold float64 `validate:"gt=0,lte=1"`
	FuzzyMatching   bool
}

func DefaultConfig() Config {
	return Config{
		EventThreshold:  0.8,
		VenueThreshold:  0.9,
		ArtistThreshold: 0.85,
		FuzzyMatching:   true,
	}
}

// DuplicateResult describes the first existing record a candidate matched.
type DuplicateResult struct {
	IsDuplicate bool    `json:"is_duplicate"`
	DuplicateID string  `json:"duplicate_id,omitempty"`
	Similarity  float64 `json:"similarity"`
	Reason      string  `json:"reason,omitempty"`
}

// BatchResult is the outcome of validating and deduplicating a batch.
type BatchResult[T any] struct {
	Success  bool     `json:"success"`
	Data     []T      `json:"data"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Service is stateless once built and safe for concurrent use.
type Service struct {
	cfg      Config
	sim      *similarity.Engine
	validate *validator.Validate
	events   []Rule
	venues   []Rule
	artists  []Rule
}

func NewService(cfg Config) *Service {
	return &Service{
		cfg:      cfg,
		sim:      similarity.New(cfg.FuzzyMatching),
		validate: validator.New(),
		events:   eventRules(),
		venues:   venueRules(),
		artists:  artistRules(),
	}
}

func (s *Service) ValidateEvent(e domain.ExternalEvent) ValidationResult {
	return applyRules(s.validate, s.events, e.Fields())
}

func (s *Service) ValidateVenue(v domain.ExternalVenue) ValidationResult {
	return applyRules(s.validate, s.venues, v.Fields())
}

func (s *Service) ValidateArtist(a domain.ExternalArtist) ValidationResult {
	return applyRules(s.validate, s.artists, a.Fields())
}

// EventSimilarity weighs title 40, venue name 30, datetime 20 and artists 10.
func (s *Service) EventSimilarity(a, b domain.ExternalEvent) float64 {
	var score, weight float64

	score += s.sim.StringSimilarity(a.Title, b.Title) * 40
	weight += 40

	score += s.sim.StringSimilarity(a.VenueName, b.VenueName) * 30
	weight += 30

	da, okA := ParseDatetime(a.Datetime)
	db, okB := ParseDatetime(b.Datetime)
	if okA && okB {
		score += s.sim.DateSimilarity(da, db) * 20
	}
	weight += 20

	score += s.sim.ListSimilarity(a.Artists, b.Artists) * 10
	weight += 10

	return score / weight
}

// VenueSimilarity weighs name 50 and city 30, plus address 20 when both
// records carry one. The result is normalised by the weight actually applied.
func (s *Service) VenueSimilarity(a, b domain.ExternalVenue) float64 {
	var score, weight float64

	score += s.sim.StringSimilarity(a.Name, b.Name) * 50
	weight += 50

	score += s.sim.StringSimilarity(a.City, b.City) * 30
	weight += 30

	if strings.TrimSpace(a.Address) != "" && strings.TrimSpace(b.Address) != "" {
		score += s.sim.StringSimilarity(a.Address, b.Address) * 20
		weight += 20
	}

	return score / weight
}

func (s *Service) ArtistSimilarity(a, b domain.ExternalArtist) float64 {
	return s.sim.StringSimilarity(a.Name, b.Name)
}

// CheckEventDuplicate returns the first record in existing that reaches the
// event threshold. Order of existing decides which id is reported.
func (s *Service) CheckEventDuplicate(candidate domain.ExternalEvent, existing []domain.ExternalEvent) DuplicateResult {
	return firstMatch(candidate, existing, s.cfg.EventThreshold, "event", s.EventSimilarity,
		func(e domain.ExternalEvent) string { return e.ID })
}

func (s *Service) CheckVenueDuplicate(candidate domain.ExternalVenue, existing []domain.ExternalVenue) DuplicateResult {
	return firstMatch(candidate, existing, s.cfg.VenueThreshold, "venue", s.VenueSimilarity,
		func(v domain.ExternalVenue) string { return v.ID })
}

func (s *Service) CheckArtistDuplicate(candidate domain.ExternalArtist, existing []domain.ExternalArtist) DuplicateResult {
	return firstMatch(candidate, existing, s.cfg.ArtistThreshold, "artist", s.ArtistSimilarity,
		func(a domain.ExternalArtist) string { return a.ID })
}

func firstMatch[T any](candidate T, existing []T, threshold float64, kind string,
	score func(a, b T) float64, id func(T) string) DuplicateResult {
	for _, e := range existing {
		sim := score(candidate, e)
		if sim >= threshold {
			return DuplicateResult{
				IsDuplicate: true,
				DuplicateID: id(e),
				Similarity:  sim,
				Reason:      fmt.Sprintf("Similar %s found (similarity: %.2f)", kind, sim),
			}
		}
	}
	return DuplicateResult{}
}

// ValidateAndDeduplicateEvents validates each event in input order and drops
// those that duplicate an event already accepted earlier in the same batch.
func (s *Service) ValidateAndDeduplicateEvents(events []domain.ExternalEvent) BatchResult[domain.ExternalEvent] {
	return validateAndDeduplicate(events, "Event", s.ValidateEvent, s.CheckEventDuplicate)
}

func (s *Service) ValidateAndDeduplicateVenues(venues []domain.ExternalVenue) BatchResult[domain.ExternalVenue] {
	return validateAndDeduplicate(venues, "Venue", s.ValidateVenue, s.CheckVenueDuplicate)
}

func (s *Service) ValidateAndDeduplicateArtists(artists []domain.ExternalArtist) BatchResult[domain.ExternalArtist] {
	return validateAndDeduplicate(artists, "Artist", s.ValidateArtist, s.CheckArtistDuplicate)
}

func validateAndDeduplicate[T any](records []T, label string,
	validate func(T) ValidationResult, check func(T, []T) DuplicateResult) BatchResult[T] {
	result := BatchResult[T]{
		Data:     make([]T, 0, len(records)),
		Errors:   []string{},
		Warnings: []string{},
	}

	for i, rec := range records {
		v := validate(rec)
		if !v.IsValid {
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s %d: %s", label, i, strings.Join(v.Errors, ", ")))
			continue
		}

		// result.Data is the accepted-so-far accumulator.
		if dup := check(rec, result.Data); dup.IsDuplicate {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s %d: duplicate of %s (similarity: %.2f)", label, i, dup.DuplicateID, dup.Similarity))
			continue
		}

		result.Data = append(result.Data, rec)
	}

	result.Success = len(result.Errors) == 0
	return result
}
