package usecase

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"venue-indexer/domain"
	"venue-indexer/port"
	"venue-indexer/utils"
	appOtel "venue-indexer/utils/otel"
)

// InvalidParamsError reports search input rejected before any backend call.
type InvalidParamsError struct {
	Op  string
	Err string
}

func (e *InvalidParamsError) Error() string {
	return e.Op + ": " + e.Err
}

// SearchUsecase validates and sanitizes search input before it reaches the
// search engine, and records search latency.
type SearchUsecase struct {
	engine    port.SearchEngine
	sanitizer *utils.QuerySanitizer
	validate  *validator.Validate
	metrics   *appOtel.IndexerMetrics
}

func NewSearchUsecase(engine port.SearchEngine, metrics *appOtel.IndexerMetrics) *SearchUsecase {
	return &SearchUsecase{
		engine:    engine,
		sanitizer: utils.NewQuerySanitizer(utils.DefaultSecurityConfig()),
		validate:  validator.New(),
		metrics:   metrics,
	}
}

func (u *SearchUsecase) cleanText(ctx context.Context, op, text string) (string, error) {
	if err := u.sanitizer.ValidateQuery(ctx, text); err != nil {
		return "", &InvalidParamsError{Op: op, Err: err.Error()}
	}
	sanitized, err := u.sanitizer.SanitizeQuery(ctx, text)
	if err != nil {
		return "", &InvalidParamsError{Op: op, Err: err.Error()}
	}
	return sanitized, nil
}

func (u *SearchUsecase) checkParams(op string, params domain.SearchParams) (domain.SearchParams, error) {
	if err := u.validate.Struct(params); err != nil {
		return params, &InvalidParamsError{Op: op, Err: err.Error()}
	}
	if err := domain.ValidateSearchFilters(params); err != nil {
		return params, &InvalidParamsError{Op: op, Err: err.Error()}
	}
	params.Limit = clampLimit(params.Limit)
	return params, nil
}

func clampLimit(limit int) int {
	return min(limit, domain.MaxLimit)
}

// prepare runs the shared text and parameter checks of the text searches.
func (u *SearchUsecase) prepare(ctx context.Context, op, text string, params domain.SearchParams) (string, domain.SearchParams, error) {
	clean, err := u.cleanText(ctx, op, text)
	if err != nil {
		return "", params, err
	}
	params, err = u.checkParams(op, params)
	return clean, params, err
}

func (u *SearchUsecase) observe(ctx context.Context, kind string, start time.Time, err error) {
	u.metrics.RecordSearch(ctx, kind, time.Since(start))
	if err != nil {
		u.metrics.RecordError(ctx, "search_"+kind)
	}
}

func (u *SearchUsecase) SearchAll(ctx context.Context, text string, params domain.SearchParams) (domain.CategorizedResults, error) {
	text, params, err := u.prepare(ctx, "SearchAll", text, params)
	if err != nil {
		return domain.CategorizedResults{}, err
	}
	start := time.Now()
	result, err := u.engine.SearchAll(ctx, text, params)
	u.observe(ctx, "all", start, err)
	return result, err
}

func (u *SearchUsecase) SearchVenues(ctx context.Context, text string, params domain.SearchParams) (domain.SearchResult[domain.VenueDocument], error) {
	text, params, err := u.prepare(ctx, "SearchVenues", text, params)
	if err != nil {
		return domain.SearchResult[domain.VenueDocument]{}, err
	}
	start := time.Now()
	result, err := u.engine.SearchVenues(ctx, text, params)
	u.observe(ctx, "venues", start, err)
	return result, err
}

func (u *SearchUsecase) SearchArtists(ctx context.Context, text string, params domain.SearchParams) (domain.SearchResult[domain.ArtistDocument], error) {
	text, params, err := u.prepare(ctx, "SearchArtists", text, params)
	if err != nil {
		return domain.SearchResult[domain.ArtistDocument]{}, err
	}
	start := time.Now()
	result, err := u.engine.SearchArtists(ctx, text, params)
	u.observe(ctx, "artists", start, err)
	return result, err
}

func (u *SearchUsecase) SearchEvents(ctx context.Context, text string, params domain.SearchParams) (domain.SearchResult[domain.EventDocument], error) {
	text, params, err := u.prepare(ctx, "SearchEvents", text, params)
	if err != nil {
		return domain.SearchResult[domain.EventDocument]{}, err
	}
	start := time.Now()
	result, err := u.engine.SearchEvents(ctx, text, params)
	u.observe(ctx, "events", start, err)
	return result, err
}

func (u *SearchUsecase) SearchNearbyVenues(ctx context.Context, params domain.NearbyParams) (domain.SearchResult[domain.VenueDocument], error) {
	if err := u.validate.Struct(params); err != nil {
		return domain.SearchResult[domain.VenueDocument]{}, &InvalidParamsError{Op: "SearchNearbyVenues", Err: err.Error()}
	}
	params.Limit = clampLimit(params.Limit)
	start := time.Now()
	result, err := u.engine.SearchNearbyVenues(ctx, params)
	u.observe(ctx, "nearby", start, err)
	return result, err
}

func (u *SearchUsecase) GetUpcomingEvents(ctx context.Context, params domain.UpcomingParams) (domain.SearchResult[domain.EventDocument], error) {
	if err := u.validate.Struct(params); err != nil {
		return domain.SearchResult[domain.EventDocument]{}, &InvalidParamsError{Op: "GetUpcomingEvents", Err: err.Error()}
	}
	params.Limit = clampLimit(params.Limit)
	start := time.Now()
	result, err := u.engine.GetUpcomingEvents(ctx, params)
	u.observe(ctx, "upcoming", start, err)
	return result, err
}

// GetSuggestions returns no suggestions for a prefix that is empty once
// sanitized.
func (u *SearchUsecase) GetSuggestions(ctx context.Context, prefix string, entity *domain.EntityType) ([]string, error) {
	prefix, err := u.cleanText(ctx, "GetSuggestions", prefix)
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		return []string{}, nil
	}
	start := time.Now()
	suggestions, err := u.engine.GetSuggestions(ctx, prefix, entity)
	u.observe(ctx, "suggest", start, err)
	return suggestions, err
}
