package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venue-indexer/domain"
	"venue-indexer/usecase"
	"venue-indexer/validation"
)

type mockSearcher struct {
	err          error
	lastText     string
	lastParams   domain.SearchParams
	lastNearby   domain.NearbyParams
	lastUpcoming domain.UpcomingParams
	lastEntity   *domain.EntityType
	venues       domain.SearchResult[domain.VenueDocument]
	suggestions  []string
}

func (m *mockSearcher) SearchAll(ctx context.Context, text string, params domain.SearchParams) (domain.CategorizedResults, error) {
	m.lastText, m.lastParams = text, params
	if m.err != nil {
		return domain.CategorizedResults{}, m.err
	}
	return domain.CategorizedResults{Venues: m.venues, Total: m.venues.Total}, nil
}

func (m *mockSearcher) SearchVenues(ctx context.Context, text string, params domain.SearchParams) (domain.SearchResult[domain.VenueDocument], error) {
	m.lastText, m.lastParams = text, params
	return m.venues, m.err
}

func (m *mockSearcher) SearchArtists(ctx context.Context, text string, params domain.SearchParams) (domain.SearchResult[domain.ArtistDocument], error) {
	m.lastText, m.lastParams = text, params
	return domain.SearchResult[domain.ArtistDocument]{}, m.err
}

func (m *mockSearcher) SearchEvents(ctx context.Context, text string, params domain.SearchParams) (domain.SearchResult[domain.EventDocument], error) {
	m.lastText, m.lastParams = text, params
	return domain.SearchResult[domain.EventDocument]{}, m.err
}

func (m *mockSearcher) SearchNearbyVenues(ctx context.Context, params domain.NearbyParams) (domain.SearchResult[domain.VenueDocument], error) {
	m.lastNearby = params
	return m.venues, m.err
}

func (m *mockSearcher) GetUpcomingEvents(ctx context.Context, params domain.UpcomingParams) (domain.SearchResult[domain.EventDocument], error) {
	m.lastUpcoming = params
	return domain.SearchResult[domain.EventDocument]{}, m.err
}

func (m *mockSearcher) GetSuggestions(ctx context.Context, prefix string, entity *domain.EntityType) ([]string, error) {
	m.lastText, m.lastEntity = prefix, entity
	return m.suggestions, m.err
}

type mockSyncer struct {
	report  usecase.SyncReport
	err     error
	healthy bool
	calls   []string
}

func (m *mockSyncer) FullSync(ctx context.Context) (usecase.SyncReport, error) {
	m.calls = append(m.calls, "sync")
	return m.report, m.err
}

func (m *mockSyncer) IndexVenue(ctx context.Context, id int64) error {
	m.calls = append(m.calls, "venue:"+domain.FormatID(id))
	return m.err
}

func (m *mockSyncer) IndexArtist(ctx context.Context, id int64) error {
	m.calls = append(m.calls, "artist:"+domain.FormatID(id))
	return m.err
}

func (m *mockSyncer) IndexEvent(ctx context.Context, id int64) error {
	m.calls = append(m.calls, "event:"+domain.FormatID(id))
	return m.err
}

func (m *mockSyncer) RemoveFromIndex(ctx context.Context, entity domain.EntityType, id int64) error {
	m.calls = append(m.calls, "remove-"+string(entity)+":"+domain.FormatID(id))
	return m.err
}

func (m *mockSyncer) HealthCheck(ctx context.Context) domain.HealthStatus {
	_, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return domain.HealthStatus{Healthy: false, Message: "no deadline"}
	}
	if m.healthy {
		return domain.HealthStatus{Healthy: true, Message: "search index is healthy"}
	}
	return domain.HealthStatus{Healthy: false, Message: "search index is unreachable"}
}

func newTestServer(search *mockSearcher, sync *mockSyncer) *echo.Echo {
	svc := validation.NewService(validation.DefaultConfig())
	e := echo.New()
	NewHandler(search, sync, usecase.NewIngestValidationUsecase(svc)).Register(e)
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandler_SearchVenues(t *testing.T) {
	search := &mockSearcher{venues: domain.SearchResult[domain.VenueDocument]{
		Total: 1,
		Hits:  []domain.Hit[domain.VenueDocument]{{ID: "1", Score: 2.5, Document: domain.VenueDocument{ID: "1", Name: "Blue Note"}}},
	}}
	e := newTestServer(search, &mockSyncer{})

	rec := do(e, http.MethodGet, "/v1/search/venues?q=blue&genre=jazz&genres=soul,funk&lat=40.7&lon=-74&radius_km=5&capacity_min=100&has_tickets=true&page=2&limit=10&sort_dir=DESC", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "blue", body["query"])
	assert.Equal(t, float64(1), body["total"])
	assert.Len(t, body["hits"], 1)
	assert.NotContains(t, body, "error")

	p := search.lastParams
	assert.Equal(t, "blue", search.lastText)
	assert.Equal(t, []string{"jazz", "soul", "funk"}, p.Genres)
	require.NotNil(t, p.Lat)
	assert.Equal(t, 40.7, *p.Lat)
	assert.Equal(t, 5.0, p.RadiusKm)
	require.NotNil(t, p.CapacityMin)
	assert.Equal(t, 100, *p.CapacityMin)
	require.NotNil(t, p.HasTickets)
	assert.True(t, *p.HasTickets)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 10, p.Limit)
	assert.Equal(t, "desc", p.SortDir)
}

func TestHandler_SearchDegradesOnBackendError(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"venues", "/v1/search/venues?q=x"},
		{"artists", "/v1/search/artists?q=x"},
		{"events", "/v1/search/events?q=x"},
		{"nearby", "/v1/venues/nearby?lat=1&lon=2"},
		{"upcoming", "/v1/events/upcoming"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			search := &mockSearcher{err: &domain.SearchEngineError{Op: "search", Err: errors.New("connection refused")}}
			e := newTestServer(search, &mockSyncer{})

			rec := do(e, http.MethodGet, tt.target, "")

			require.Equal(t, http.StatusServiceUnavailable, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, float64(0), body["total"])
			assert.Equal(t, []any{}, body["hits"])
			assert.NotEmpty(t, body["error"])
			assert.NotContains(t, body["error"], "connection refused")
		})
	}
}

func TestHandler_SearchAll(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		search := &mockSearcher{venues: domain.SearchResult[domain.VenueDocument]{Total: 3}}
		e := newTestServer(search, &mockSyncer{})

		rec := do(e, http.MethodGet, "/v1/search?q=rock", "")

		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, float64(3), body["total"])
		artists := body["artists"].(map[string]any)
		assert.Equal(t, []any{}, artists["hits"])
	})

	t.Run("backend failure", func(t *testing.T) {
		e := newTestServer(&mockSearcher{err: errors.New("down")}, &mockSyncer{})

		rec := do(e, http.MethodGet, "/v1/search?q=rock", "")

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		body := decode(t, rec)
		assert.NotEmpty(t, body["error"])
		venues := body["venues"].(map[string]any)
		assert.Equal(t, []any{}, venues["hits"])
	})

	t.Run("invalid params", func(t *testing.T) {
		search := &mockSearcher{err: &usecase.InvalidParamsError{Op: "SearchAll", Err: "bad filter"}}
		e := newTestServer(search, &mockSyncer{})

		rec := do(e, http.MethodGet, "/v1/search?q=rock", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_BadQueryParams(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"page not a number", "/v1/search/venues?page=two"},
		{"bad latitude", "/v1/search?lat=north&lon=1"},
		{"bad date", "/v1/search/events?start_date=next-friday"},
		{"bad bool", "/v1/search/artists?has_bio=maybe"},
		{"nearby without coordinates", "/v1/venues/nearby?radius_km=3"},
		{"upcoming bad venue id", "/v1/events/upcoming?venue_id=abc"},
		{"unknown suggestion type", "/v1/suggestions?q=ro&type=user"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			search := &mockSearcher{}
			e := newTestServer(search, &mockSyncer{})

			rec := do(e, http.MethodGet, tt.target, "")

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decode(t, rec)["error"])
		})
	}
}

func TestHandler_SearchEventsDates(t *testing.T) {
	search := &mockSearcher{}
	e := newTestServer(search, &mockSyncer{})

	rec := do(e, http.MethodGet, "/v1/search/events?start_date=2025-06-01&end_date=2025-06-30T23:00:00Z", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, search.lastParams.StartDate)
	require.NotNil(t, search.lastParams.EndDate)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), *search.lastParams.StartDate)
	assert.Equal(t, time.Date(2025, 6, 30, 23, 0, 0, 0, time.UTC), *search.lastParams.EndDate)
}

func TestHandler_NearbyDefaultsRadius(t *testing.T) {
	search := &mockSearcher{}
	e := newTestServer(search, &mockSyncer{})

	rec := do(e, http.MethodGet, "/v1/venues/nearby?lat=51.5&lon=-0.12", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 51.5, search.lastNearby.Lat)
	assert.Equal(t, float64(defaultNearbyRadiusKm), search.lastNearby.RadiusKm)
}

func TestHandler_SearchDefaultsRadiusWithPoint(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantRadius float64
	}{
		{"point without radius", "/v1/search/venues?lat=30.27&lon=-97.74", defaultNearbyRadiusKm},
		{"events point without radius", "/v1/search/events?lat=30.27&lon=-97.74", defaultNearbyRadiusKm},
		{"explicit radius kept", "/v1/search/venues?lat=30.27&lon=-97.74&radius_km=3", 3},
		{"no point leaves radius unset", "/v1/search/venues?q=jazz", 0},
		{"latitude alone leaves radius unset", "/v1/search/venues?lat=30.27", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			search := &mockSearcher{}
			e := newTestServer(search, &mockSyncer{})

			rec := do(e, http.MethodGet, tt.target, "")

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantRadius, search.lastParams.RadiusKm)
			if tt.wantRadius > 0 {
				assert.True(t, search.lastParams.HasGeo())
			}
		})
	}
}

func TestHandler_UpcomingEvents(t *testing.T) {
	search := &mockSearcher{}
	e := newTestServer(search, &mockSyncer{})

	rec := do(e, http.MethodGet, "/v1/events/upcoming?venue_id=7&days_ahead=14&limit=5", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, search.lastUpcoming.VenueID)
	assert.Equal(t, int64(7), *search.lastUpcoming.VenueID)
	assert.Equal(t, 14, search.lastUpcoming.DaysAhead)
	assert.Equal(t, 5, search.lastUpcoming.Limit)
}

func TestHandler_Suggestions(t *testing.T) {
	t.Run("typed prefix", func(t *testing.T) {
		search := &mockSearcher{suggestions: []string{"Radiohead", "Ramones"}}
		e := newTestServer(search, &mockSyncer{})

		rec := do(e, http.MethodGet, "/v1/suggestions?q=ra&type=artists", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []any{"Radiohead", "Ramones"}, decode(t, rec)["suggestions"])
		require.NotNil(t, search.lastEntity)
		assert.Equal(t, domain.EntityArtist, *search.lastEntity)
	})

	t.Run("nil suggestions render as empty list", func(t *testing.T) {
		e := newTestServer(&mockSearcher{}, &mockSyncer{})

		rec := do(e, http.MethodGet, "/v1/suggestions?q=zz", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []any{}, decode(t, rec)["suggestions"])
	})

	t.Run("backend failure", func(t *testing.T) {
		e := newTestServer(&mockSearcher{err: errors.New("down")}, &mockSyncer{})

		rec := do(e, http.MethodGet, "/v1/suggestions?q=ra", "")

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, []any{}, body["suggestions"])
		assert.NotEmpty(t, body["error"])
	})
}

func TestHandler_ValidateEvents(t *testing.T) {
	e := newTestServer(&mockSearcher{}, &mockSyncer{})

	body := `{"source":"songkick","records":[
		{"id":"a","title":"Jazz Night","datetime":"2030-05-01T20:00:00Z","venue_name":"Blue Note","artists":["Trio"],"source":"songkick"},
		{"id":"b","title":"","datetime":"2030-05-01T20:00:00Z","venue_name":"Blue Note","artists":["Trio"],"source":"songkick"}
	]}`
	rec := do(e, http.MethodPost, "/v1/ingest/events/validate", body)

	require.Equal(t, http.StatusOK, rec.Code)
	var result validation.BatchResult[domain.ExternalEvent]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Data, 1)
	assert.Equal(t, "a", result.Data[0].ID)
	assert.NotEmpty(t, result.Errors)
}

func TestHandler_ValidateRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		target string
		body   string
	}{
		{"unknown source", "/v1/ingest/venues/validate", `{"source":"myspace","records":[]}`},
		{"malformed json", "/v1/ingest/artists/validate", `{"source":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestServer(&mockSearcher{}, &mockSyncer{})
			rec := do(e, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandler_FullSync(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		sync := &mockSyncer{report: usecase.SyncReport{RunID: "run-1", Venues: 3, Artists: 2, Events: 1, Duration: 1500 * time.Millisecond}}
		e := newTestServer(&mockSearcher{}, sync)

		rec := do(e, http.MethodPost, "/v1/admin/sync", "")

		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "run-1", body["run_id"])
		assert.Equal(t, float64(3), body["venues"])
		assert.Equal(t, float64(1500), body["duration_ms"])
	})

	t.Run("partial failure keeps counts", func(t *testing.T) {
		sync := &mockSyncer{report: usecase.SyncReport{Venues: 3}, err: errors.New("sync event page 1: boom")}
		e := newTestServer(&mockSearcher{}, sync)

		rec := do(e, http.MethodPost, "/v1/admin/sync", "")

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, float64(3), body["venues"])
		assert.Contains(t, body["error"], "boom")
	})
}

func TestHandler_IndexAndRemove(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		target   string
		failWith error
		wantCode int
		wantCall []string
	}{
		{"index venue", http.MethodPut, "/v1/admin/index/venue/5", nil, http.StatusNoContent, []string{"venue:5"}},
		{"index artists plural", http.MethodPut, "/v1/admin/index/artists/6", nil, http.StatusNoContent, []string{"artist:6"}},
		{"index event", http.MethodPut, "/v1/admin/index/event/7", nil, http.StatusNoContent, []string{"event:7"}},
		{"remove event", http.MethodDelete, "/v1/admin/index/event/8", nil, http.StatusNoContent, []string{"remove-event:8"}},
		{"unknown type", http.MethodPut, "/v1/admin/index/user/1", nil, http.StatusBadRequest, nil},
		{"bad id", http.MethodDelete, "/v1/admin/index/venue/abc", nil, http.StatusBadRequest, nil},
		{"zero id", http.MethodPut, "/v1/admin/index/venue/0", nil, http.StatusBadRequest, nil},
		{"backend failure", http.MethodPut, "/v1/admin/index/venue/9", errors.New("down"), http.StatusBadGateway, []string{"venue:9"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sync := &mockSyncer{err: tt.failWith}
			e := newTestServer(&mockSearcher{}, sync)

			rec := do(e, tt.method, tt.target, "")

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantCall, sync.calls)
		})
	}
}

func TestHandler_Health(t *testing.T) {
	tests := []struct {
		name     string
		healthy  bool
		wantCode int
	}{
		{"healthy", true, http.StatusOK},
		{"unhealthy", false, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestServer(&mockSearcher{}, &mockSyncer{healthy: tt.healthy})

			rec := do(e, http.MethodGet, "/health", "")

			assert.Equal(t, tt.wantCode, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tt.healthy, body["healthy"])
		})
	}
}
