package usecase

import (
	"context"

	"venue-indexer/domain"
	"venue-indexer/logger"
	"venue-indexer/validation"
)

// IngestValidationUsecase screens connector payloads before they are written
// to the system of record.
type IngestValidationUsecase struct {
	service *validation.Service
}

func NewIngestValidationUsecase(service *validation.Service) *IngestValidationUsecase {
	return &IngestValidationUsecase{service: service}
}

func (u *IngestValidationUsecase) ValidateEvents(ctx context.Context, source domain.Source, events []domain.ExternalEvent) validation.BatchResult[domain.ExternalEvent] {
	result := u.service.ValidateAndDeduplicateEvents(events)
	logBatch(ctx, source, domain.EntityEvent, len(events), len(result.Data), result.Errors, result.Warnings)
	return result
}

func (u *IngestValidationUsecase) ValidateVenues(ctx context.Context, source domain.Source, venues []domain.ExternalVenue) validation.BatchResult[domain.ExternalVenue] {
	result := u.service.ValidateAndDeduplicateVenues(venues)
	logBatch(ctx, source, domain.EntityVenue, len(venues), len(result.Data), result.Errors, result.Warnings)
	return result
}

func (u *IngestValidationUsecase) ValidateArtists(ctx context.Context, source domain.Source, artists []domain.ExternalArtist) validation.BatchResult[domain.ExternalArtist] {
	result := u.service.ValidateAndDeduplicateArtists(artists)
	logBatch(ctx, source, domain.EntityArtist, len(artists), len(result.Data), result.Errors, result.Warnings)
	return result
}

func logBatch(ctx context.Context, source domain.Source, entity domain.EntityType, received, accepted int, errs, warnings []string) {
	log := logger.GlobalContext.WithContext(logger.WithSource(ctx, string(source)))
	attrs := []any{
		"entity_type", string(entity),
		"received", received,
		"accepted", accepted,
		"invalid", len(errs),
		"duplicates", len(warnings),
	}
	if len(errs) > 0 {
		log.Warn("ingest batch had invalid records", append(attrs, "errors", errs)...)
		return
	}
	log.Info("ingest batch validated", attrs...)
}
