package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venue-indexer/domain"
)

type mockSearchEngine struct {
	err        error
	lastText   string
	lastParams domain.SearchParams
	nearby     domain.NearbyParams
	upcoming   domain.UpcomingParams
	prefix     string
	calls      int
}

func (m *mockSearchEngine) SearchAll(ctx context.Context, text string, params domain.SearchParams) (domain.CategorizedResults, error) {
	m.calls++
	m.lastText, m.lastParams = text, params
	return domain.CategorizedResults{Total: 3}, m.err
}

func (m *mockSearchEngine) SearchVenues(ctx context.Context, text string, params domain.SearchParams) (domain.SearchResult[domain.VenueDocument], error) {
	m.calls++
	m.lastText, m.lastParams = text, params
	return domain.SearchResult[domain.VenueDocument]{Total: 1}, m.err
}

func (m *mockSearchEngine) SearchArtists(ctx context.Context, text string, params domain.SearchParams) (domain.SearchResult[domain.ArtistDocument], error) {
	m.calls++
	m.lastText, m.lastParams = text, params
	return domain.SearchResult[domain.ArtistDocument]{Total: 1}, m.err
}

func (m *mockSearchEngine) SearchEvents(ctx context.Context, text string, params domain.SearchParams) (domain.SearchResult[domain.EventDocument], error) {
	m.calls++
	m.lastText, m.lastParams = text, params
	return domain.SearchResult[domain.EventDocument]{Total: 1}, m.err
}

func (m *mockSearchEngine) SearchNearbyVenues(ctx context.Context, params domain.NearbyParams) (domain.SearchResult[domain.VenueDocument], error) {
	m.calls++
	m.nearby = params
	return domain.SearchResult[domain.VenueDocument]{}, m.err
}

func (m *mockSearchEngine) GetSuggestions(ctx context.Context, prefix string, entity *domain.EntityType) ([]string, error) {
	m.calls++
	m.prefix = prefix
	return []string{prefix + "awk"}, m.err
}

func (m *mockSearchEngine) GetUpcomingEvents(ctx context.Context, params domain.UpcomingParams) (domain.SearchResult[domain.EventDocument], error) {
	m.calls++
	m.upcoming = params
	return domain.SearchResult[domain.EventDocument]{}, m.err
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func TestSearchUsecase_SearchAll(t *testing.T) {
	engine := &mockSearchEngine{}
	uc := NewSearchUsecase(engine, nil)

	result, err := uc.SearchAll(context.Background(), "  Red \t  River ", domain.SearchParams{Limit: 500, Genres: []string{"rock"}})
	require.NoError(t, err)

	assert.Equal(t, int64(3), result.Total)
	assert.Equal(t, "Red River", engine.lastText)
	assert.Equal(t, domain.MaxLimit, engine.lastParams.Limit)
}

func TestSearchUsecase_InvalidInputNeverReachesEngine(t *testing.T) {
	start := mustTime(t, "2025-06-02T00:00:00Z")
	end := mustTime(t, "2025-06-01T00:00:00Z")

	tests := []struct {
		name   string
		text   string
		params domain.SearchParams
	}{
		{"dangerous character", "rock; drop", domain.SearchParams{}},
		{"latitude out of range", "", domain.SearchParams{Lat: floatPtr(91), Lon: floatPtr(0), RadiusKm: 5}},
		{"latitude without longitude", "", domain.SearchParams{Lat: floatPtr(30)}},
		{"bad sort direction", "", domain.SearchParams{SortDir: "sideways"}},
		{"bad country code", "", domain.SearchParams{Countries: []string{"USA"}}},
		{"injection in genre", "", domain.SearchParams{Genres: []string{"rock\"}"}}},
		{"inverted dates", "", domain.SearchParams{StartDate: &start, EndDate: &end}},
		{"negative capacity", "", domain.SearchParams{CapacityMin: intPtr(-1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &mockSearchEngine{}
			uc := NewSearchUsecase(engine, nil)

			_, err := uc.SearchEvents(context.Background(), tt.text, tt.params)
			var invalid *InvalidParamsError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, "SearchEvents", invalid.Op)
			assert.Zero(t, engine.calls)
		})
	}
}

func TestSearchUsecase_EngineErrorPropagates(t *testing.T) {
	engine := &mockSearchEngine{err: errors.New("backend down")}
	uc := NewSearchUsecase(engine, nil)

	_, err := uc.SearchVenues(context.Background(), "mohawk", domain.SearchParams{})
	require.Error(t, err)
	var invalid *InvalidParamsError
	assert.False(t, errors.As(err, &invalid))

	_, err = uc.SearchArtists(context.Background(), "pumas", domain.SearchParams{})
	assert.EqualError(t, err, "backend down")
}

func TestSearchUsecase_SearchNearbyVenues(t *testing.T) {
	engine := &mockSearchEngine{}
	uc := NewSearchUsecase(engine, nil)

	_, err := uc.SearchNearbyVenues(context.Background(), domain.NearbyParams{Lat: 30.27, Lon: -97.74, RadiusKm: 10, Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, domain.MaxLimit, engine.nearby.Limit)

	_, err = uc.SearchNearbyVenues(context.Background(), domain.NearbyParams{Lat: 30.27, Lon: -97.74})
	var invalid *InvalidParamsError
	require.ErrorAs(t, err, &invalid, "radius is required")
	assert.Equal(t, 1, engine.calls)
}

func TestSearchUsecase_GetUpcomingEvents(t *testing.T) {
	engine := &mockSearchEngine{}
	uc := NewSearchUsecase(engine, nil)

	_, err := uc.GetUpcomingEvents(context.Background(), domain.UpcomingParams{DaysAhead: 400})
	assert.Error(t, err)

	_, err = uc.GetUpcomingEvents(context.Background(), domain.UpcomingParams{DaysAhead: 14, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 14, engine.upcoming.DaysAhead)
}

func TestSearchUsecase_GetSuggestions(t *testing.T) {
	engine := &mockSearchEngine{}
	uc := NewSearchUsecase(engine, nil)

	got, err := uc.GetSuggestions(context.Background(), " Moh ", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Mohawk"}, got)
	assert.Equal(t, "Moh", engine.prefix)

	got, err = uc.GetSuggestions(context.Background(), " \t ", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, engine.calls, "blank prefix is answered locally")
}
