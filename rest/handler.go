package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"venue-indexer/domain"
	"venue-indexer/logger"
	"venue-indexer/usecase"
	"venue-indexer/validation"
)

const (
	healthTimeout         = 5 * time.Second
	defaultNearbyRadiusKm = 10
)

// Searcher is the read side served by the search endpoints.
type Searcher interface {
	SearchAll(ctx context.Context, text string, params domain.SearchParams) (domain.CategorizedResults, error)
	SearchVenues(ctx context.Context, text string, params domain.SearchParams) (domain.SearchResult[domain.VenueDocument], error)
	SearchArtists(ctx context.Context, text string, params domain.SearchParams) (domain.SearchResult[domain.ArtistDocument], error)
	SearchEvents(ctx context.Context, text string, params domain.SearchParams) (domain.SearchResult[domain.EventDocument], error)
	SearchNearbyVenues(ctx context.Context, params domain.NearbyParams) (domain.SearchResult[domain.VenueDocument], error)
	GetUpcomingEvents(ctx context.Context, params domain.UpcomingParams) (domain.SearchResult[domain.EventDocument], error)
	GetSuggestions(ctx context.Context, prefix string, entity *domain.EntityType) ([]string, error)
}

// Syncer is the write side driven by the admin endpoints.
type Syncer interface {
	FullSync(ctx context.Context) (usecase.SyncReport, error)
	IndexVenue(ctx context.Context, id int64) error
	IndexArtist(ctx context.Context, id int64) error
	IndexEvent(ctx context.Context, id int64) error
	RemoveFromIndex(ctx context.Context, entity domain.EntityType, id int64) error
	HealthCheck(ctx context.Context) domain.HealthStatus
}

// IngestValidator screens connector batches.
type IngestValidator interface {
	ValidateEvents(ctx context.Context, source domain.Source, events []domain.ExternalEvent) validation.BatchResult[domain.ExternalEvent]
	ValidateVenues(ctx context.Context, source domain.Source, venues []domain.ExternalVenue) validation.BatchResult[domain.ExternalVenue]
	ValidateArtists(ctx context.Context, source domain.Source, artists []domain.ExternalArtist) validation.BatchResult[domain.ExternalArtist]
}

// Handler contains all HTTP handlers of the indexer.
type Handler struct {
	search Searcher
	sync   Syncer
	ingest IngestValidator
}

func NewHandler(search Searcher, sync Syncer, ingest IngestValidator) *Handler {
	return &Handler{search: search, sync: sync, ingest: ingest}
}

// Register mounts every route on e.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)

	v1 := e.Group("/v1")
	v1.GET("/search", h.SearchAll)
	v1.GET("/search/venues", h.SearchVenues)
	v1.GET("/search/artists", h.SearchArtists)
	v1.GET("/search/events", h.SearchEvents)
	v1.GET("/venues/nearby", h.SearchNearbyVenues)
	v1.GET("/suggestions", h.Suggestions)
	v1.GET("/events/upcoming", h.UpcomingEvents)

	v1.POST("/ingest/events/validate", h.ValidateEvents)
	v1.POST("/ingest/venues/validate", h.ValidateVenues)
	v1.POST("/ingest/artists/validate", h.ValidateArtists)

	admin := v1.Group("/admin")
	admin.POST("/sync", h.FullSync)
	admin.PUT("/index/:type/:id", h.IndexEntity)
	admin.DELETE("/index/:type/:id", h.RemoveEntity)
}

type errorResponse struct {
	Error string `json:"error"`
}

type searchResponse[T any] struct {
	Query string          `json:"query"`
	Total int64           `json:"total"`
	Hits  []domain.Hit[T] `json:"hits"`
	Error string          `json:"error,omitempty"`
}

type categorizedResponse struct {
	Query string `json:"query"`
	domain.CategorizedResults
	Error string `json:"error,omitempty"`
}

type suggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
	Error       string   `json:"error,omitempty"`
}

func badRequest(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

// writeSearch answers with the result or, when the backend failed, with an
// empty result and the error so clients can keep rendering.
func writeSearch[T any](c echo.Context, op, query string, result domain.SearchResult[T], err error) error {
	var invalid *usecase.InvalidParamsError
	if errors.As(err, &invalid) {
		return badRequest(c, err)
	}

	resp := searchResponse[T]{Query: query, Total: result.Total, Hits: result.Hits}
	if resp.Hits == nil {
		resp.Hits = []domain.Hit[T]{}
	}
	if err != nil {
		logger.GlobalContext.LogError(c.Request().Context(), op, err)
		resp.Total = 0
		resp.Hits = []domain.Hit[T]{}
		resp.Error = "search is temporarily unavailable"
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

func emptyCategorized() domain.CategorizedResults {
	return domain.CategorizedResults{
		Venues:  domain.SearchResult[domain.VenueDocument]{Hits: []domain.Hit[domain.VenueDocument]{}},
		Artists: domain.SearchResult[domain.ArtistDocument]{Hits: []domain.Hit[domain.ArtistDocument]{}},
		Events:  domain.SearchResult[domain.EventDocument]{Hits: []domain.Hit[domain.EventDocument]{}},
	}
}

func (h *Handler) SearchAll(c echo.Context) error {
	query := c.QueryParam("q")
	params, err := parseSearchParams(c.QueryParams())
	if err != nil {
		return badRequest(c, err)
	}

	ctx := c.Request().Context()
	result, err := h.search.SearchAll(ctx, query, params)
	var invalid *usecase.InvalidParamsError
	if errors.As(err, &invalid) {
		return badRequest(c, err)
	}
	if err != nil {
		logger.GlobalContext.LogError(ctx, "SearchAll", err)
		return c.JSON(http.StatusServiceUnavailable, categorizedResponse{
			Query:              query,
			CategorizedResults: emptyCategorized(),
			Error:              "search is temporarily unavailable",
		})
	}

	empty := emptyCategorized()
	if result.Venues.Hits == nil {
		result.Venues.Hits = empty.Venues.Hits
	}
	if result.Artists.Hits == nil {
		result.Artists.Hits = empty.Artists.Hits
	}
	if result.Events.Hits == nil {
		result.Events.Hits = empty.Events.Hits
	}
	return c.JSON(http.StatusOK, categorizedResponse{Query: query, CategorizedResults: result})
}

func (h *Handler) SearchVenues(c echo.Context) error {
	query := c.QueryParam("q")
	params, err := parseSearchParams(c.QueryParams())
	if err != nil {
		return badRequest(c, err)
	}
	result, err := h.search.SearchVenues(c.Request().Context(), query, params)
	return writeSearch(c, "SearchVenues", query, result, err)
}

func (h *Handler) SearchArtists(c echo.Context) error {
	query := c.QueryParam("q")
	params, err := parseSearchParams(c.QueryParams())
	if err != nil {
		return badRequest(c, err)
	}
	result, err := h.search.SearchArtists(c.Request().Context(), query, params)
	return writeSearch(c, "SearchArtists", query, result, err)
}

func (h *Handler) SearchEvents(c echo.Context) error {
	query := c.QueryParam("q")
	params, err := parseSearchParams(c.QueryParams())
	if err != nil {
		return badRequest(c, err)
	}
	result, err := h.search.SearchEvents(c.Request().Context(), query, params)
	return writeSearch(c, "SearchEvents", query, result, err)
}

func (h *Handler) SearchNearbyVenues(c echo.Context) error {
	params, err := parseNearbyParams(c.QueryParams())
	if err != nil {
		return badRequest(c, err)
	}
	result, err := h.search.SearchNearbyVenues(c.Request().Context(), params)
	return writeSearch(c, "SearchNearbyVenues", "", result, err)
}

func (h *Handler) UpcomingEvents(c echo.Context) error {
	params, err := parseUpcomingParams(c.QueryParams())
	if err != nil {
		return badRequest(c, err)
	}
	result, err := h.search.GetUpcomingEvents(c.Request().Context(), params)
	return writeSearch(c, "GetUpcomingEvents", "", result, err)
}

func (h *Handler) Suggestions(c echo.Context) error {
	var entity *domain.EntityType
	if raw := c.QueryParam("type"); raw != "" {
		t, ok := domain.ParseEntityType(raw)
		if !ok {
			return badRequest(c, errors.New("unknown entity type: "+raw))
		}
		entity = &t
	}

	ctx := c.Request().Context()
	suggestions, err := h.search.GetSuggestions(ctx, c.QueryParam("q"), entity)
	var invalid *usecase.InvalidParamsError
	if errors.As(err, &invalid) {
		return badRequest(c, err)
	}
	if err != nil {
		logger.GlobalContext.LogError(ctx, "GetSuggestions", err)
		return c.JSON(http.StatusServiceUnavailable, suggestionsResponse{
			Suggestions: []string{},
			Error:       "suggestions are temporarily unavailable",
		})
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	return c.JSON(http.StatusOK, suggestionsResponse{Suggestions: suggestions})
}

type ingestRequest[T any] struct {
	Source  domain.Source `json:"source"`
	Records []T           `json:"records"`
}

// bindIngest decodes a connector batch and checks its source.
func bindIngest[T any](c echo.Context) (ingestRequest[T], error) {
	var req ingestRequest[T]
	if err := c.Bind(&req); err != nil {
		return req, errors.New("malformed request body")
	}
	if !req.Source.Valid() {
		return req, errors.New("unknown source: " + string(req.Source))
	}
	return req, nil
}

func (h *Handler) ValidateEvents(c echo.Context) error {
	req, err := bindIngest[domain.ExternalEvent](c)
	if err != nil {
		return badRequest(c, err)
	}
	return c.JSON(http.StatusOK, h.ingest.ValidateEvents(c.Request().Context(), req.Source, req.Records))
}

func (h *Handler) ValidateVenues(c echo.Context) error {
	req, err := bindIngest[domain.ExternalVenue](c)
	if err != nil {
		return badRequest(c, err)
	}
	return c.JSON(http.StatusOK, h.ingest.ValidateVenues(c.Request().Context(), req.Source, req.Records))
}

func (h *Handler) ValidateArtists(c echo.Context) error {
	req, err := bindIngest[domain.ExternalArtist](c)
	if err != nil {
		return badRequest(c, err)
	}
	return c.JSON(http.StatusOK, h.ingest.ValidateArtists(c.Request().Context(), req.Source, req.Records))
}

type syncResponse struct {
	RunID      string `json:"run_id"`
	Venues     int    `json:"venues"`
	Artists    int    `json:"artists"`
	Events     int    `json:"events"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

func (h *Handler) FullSync(c echo.Context) error {
	report, err := h.sync.FullSync(c.Request().Context())
	resp := syncResponse{
		RunID:      report.RunID,
		Venues:     report.Venues,
		Artists:    report.Artists,
		Events:     report.Events,
		DurationMs: report.Duration.Milliseconds(),
	}
	if err != nil {
		resp.Error = err.Error()
		return c.JSON(http.StatusInternalServerError, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

func entityParams(c echo.Context) (domain.EntityType, int64, error) {
	entity, ok := domain.ParseEntityType(c.Param("type"))
	if !ok {
		return "", 0, echo.NewHTTPError(http.StatusBadRequest, "unknown entity type")
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return "", 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return entity, id, nil
}

func (h *Handler) IndexEntity(c echo.Context) error {
	entity, id, err := entityParams(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	switch entity {
	case domain.EntityVenue:
		err = h.sync.IndexVenue(ctx, id)
	case domain.EntityArtist:
		err = h.sync.IndexArtist(ctx, id)
	default:
		err = h.sync.IndexEvent(ctx, id)
	}
	if err != nil {
		logger.GlobalContext.LogError(ctx, "IndexEntity", err)
		return echo.NewHTTPError(http.StatusBadGateway, "failed to index document")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RemoveEntity(c echo.Context) error {
	entity, id, err := entityParams(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if err := h.sync.RemoveFromIndex(ctx, entity, id); err != nil {
		logger.GlobalContext.LogError(ctx, "RemoveEntity", err)
		return echo.NewHTTPError(http.StatusBadGateway, "failed to remove document")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	status := h.sync.HealthCheck(ctx)
	if !status.Healthy {
		return c.JSON(http.StatusServiceUnavailable, status)
	}
	return c.JSON(http.StatusOK, status)
}
