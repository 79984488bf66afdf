package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"venue-indexer/domain"
	"venue-indexer/logger"
)

const (
	actionUpserted = "upserted"
	actionDeleted  = "deleted"
)

// EntityChangedPayload is the payload of every catalog change event.
type EntityChangedPayload struct {
	ID int64 `json:"id"`
}

// Indexer is the part of the sync use case driven by change events.
type Indexer interface {
	IndexVenue(ctx context.Context, id int64) error
	IndexArtist(ctx context.Context, id int64) error
	IndexEvent(ctx context.Context, id int64) error
	RemoveFromIndex(ctx context.Context, entity domain.EntityType, id int64) error
}

// IndexEventHandler re-indexes or removes the entity named by each event.
// Handling is synchronous so a message is only acknowledged once the index
// write succeeded.
type IndexEventHandler struct {
	indexer Indexer
	logger  *slog.Logger
}

func NewIndexEventHandler(indexer Indexer, logger *slog.Logger) *IndexEventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexEventHandler{indexer: indexer, logger: logger}
}

// HandleEvent dispatches "<entity>.<action>" events. Unknown types are
// skipped without error so they do not block the group.
func (h *IndexEventHandler) HandleEvent(ctx context.Context, event Event) error {
	entityName, action, _ := strings.Cut(event.EventType, ".")
	entity, ok := domain.ParseEntityType(entityName)
	if !ok || (action != actionUpserted && action != actionDeleted) {
		h.logger.Warn("unknown event type, skipping",
			"event_type", event.EventType,
			"event_id", event.EventID,
		)
		return nil
	}

	var payload EntityChangedPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.EventType, err)
	}
	if payload.ID <= 0 {
		return fmt.Errorf("decode %s payload: missing id", event.EventType)
	}

	ctx = logger.WithSource(ctx, event.Source)
	if action == actionDeleted {
		return h.indexer.RemoveFromIndex(ctx, entity, payload.ID)
	}

	switch entity {
	case domain.EntityVenue:
		return h.indexer.IndexVenue(ctx, payload.ID)
	case domain.EntityArtist:
		return h.indexer.IndexArtist(ctx, payload.ID)
	default:
		return h.indexer.IndexEvent(ctx, payload.ID)
	}
}
