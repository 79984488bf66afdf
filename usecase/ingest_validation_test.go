package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"venue-indexer/domain"
	"venue-indexer/validation"
)

func TestIngestValidationUsecase_ValidateEvents(t *testing.T) {
	uc := NewIngestValidationUsecase(validation.NewService(validation.DefaultConfig()))

	event := domain.ExternalEvent{
		ID:        "sk-1",
		Title:     "Khruangbin Live",
		Datetime:  "2025-07-12T20:00:00Z",
		VenueName: "Moody Amphitheater",
		Artists:   []string{"Khruangbin"},
		Source:    domain.SourceSongkick,
	}
	dup := event
	dup.ID = "sk-2"
	invalid := domain.ExternalEvent{ID: "sk-3", Source: domain.SourceSongkick}

	result := uc.ValidateEvents(context.Background(), domain.SourceSongkick,
		[]domain.ExternalEvent{event, dup, invalid})

	assert.False(t, result.Success)
	assert.Len(t, result.Data, 1)
	assert.Len(t, result.Warnings, 1)
	assert.Len(t, result.Errors, 1)
}

func TestIngestValidationUsecase_ValidateVenuesAndArtists(t *testing.T) {
	uc := NewIngestValidationUsecase(validation.NewService(validation.DefaultConfig()))

	venues := uc.ValidateVenues(context.Background(), domain.SourceScraper, []domain.ExternalVenue{
		{ID: "v1", Name: "Mohawk", City: "Austin", Source: domain.SourceScraper},
	})
	assert.True(t, venues.Success)
	assert.Len(t, venues.Data, 1)

	artists := uc.ValidateArtists(context.Background(), domain.SourceScraper, []domain.ExternalArtist{
		{ID: "a1", Name: "Black Pumas", Source: domain.SourceScraper},
		{ID: "a2", Name: "Black Pumas", Source: domain.SourceScraper},
	})
	assert.True(t, artists.Success)
	assert.Len(t, artists.Data, 1)
	assert.Len(t, artists.Warnings, 1)
}
