package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"venue-indexer/logger"
	"venue-indexer/query"

	"github.com/meilisearch/meilisearch-go"
)

// taskWaitInterval is the polling interval while waiting on index tasks.
const taskWaitInterval = 50 * time.Millisecond

// MeilisearchDriver serves the search driver contract from a Meilisearch
// instance. Query trees are translated into Meilisearch filter expressions;
// nested artist filters match across the artist list rather than per artist.
type MeilisearchDriver struct {
	client meilisearch.ServiceManager
}

func NewMeilisearchDriver(client meilisearch.ServiceManager) *MeilisearchDriver {
	return &MeilisearchDriver{
		client: client,
	}
}

// NewMeilisearchClient builds a client for host authenticated with apiKey.
func NewMeilisearchClient(host, apiKey string) meilisearch.ServiceManager {
	return meilisearch.New(host, meilisearch.WithAPIKey(apiKey))
}

func (d *MeilisearchDriver) wait(ctx context.Context, op string, task *meilisearch.TaskInfo) error {
	result, err := d.client.WaitForTaskWithContext(ctx, task.TaskUID, taskWaitInterval)
	if err != nil {
		return wrapError(ctx, op, "failed to wait for task", err)
	}
	if result.Status == meilisearch.TaskStatusFailed {
		return &DriverError{
			Op:  op,
			Err: fmt.Sprintf("task %d failed: %v", task.TaskUID, result.Error),
		}
	}
	return nil
}

func (d *MeilisearchDriver) IndexExists(ctx context.Context, index string) (bool, error) {
	_, err := d.client.GetIndexWithContext(ctx, index)
	if err == nil {
		return true, nil
	}
	var meiliErr *meilisearch.Error
	if errors.As(err, &meiliErr) && meiliErr.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, wrapError(ctx, "IndexExists", "", err)
}

// CreateIndex creates index keyed by id and derives its filterable and
// sortable attributes from the mapping body.
func (d *MeilisearchDriver) CreateIndex(ctx context.Context, index string, body map[string]any) error {
	task, err := d.client.CreateIndexWithContext(ctx, &meilisearch.IndexConfig{
		Uid:        index,
		PrimaryKey: "id",
	})
	if err != nil {
		return wrapError(ctx, "CreateIndex", "", err)
	}
	if err := d.wait(ctx, "CreateIndex", task); err != nil {
		return err
	}

	filterable, sortable := indexAttributes(body)
	idx := d.client.Index(index)

	filterAttrs := make([]any, 0, len(filterable))
	for _, name := range filterable {
		filterAttrs = append(filterAttrs, name)
	}
	task, err = idx.UpdateFilterableAttributesWithContext(ctx, &filterAttrs)
	if err != nil {
		return wrapError(ctx, "CreateIndex", "failed to set filterable attributes", err)
	}
	if err := d.wait(ctx, "CreateIndex", task); err != nil {
		return err
	}

	task, err = idx.UpdateSortableAttributesWithContext(ctx, &sortable)
	if err != nil {
		return wrapError(ctx, "CreateIndex", "failed to set sortable attributes", err)
	}
	if err := d.wait(ctx, "CreateIndex", task); err != nil {
		return err
	}

	logger.Logger.Info("created search index", "index", index, "filterable", len(filterable), "sortable", len(sortable))
	return nil
}

// prepareDocument flattens doc into a map with the geo point and unix
// timestamp copies Meilisearch filters on.
func prepareDocument(doc any) (map[string]any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	if geo := geoOf(m["location"]); geo != nil {
		m["_geo"] = geo
	} else if venue, ok := m["venue"].(map[string]any); ok {
		if geo := geoOf(venue["location"]); geo != nil {
			m["_geo"] = geo
		}
	}

	for k, v := range m {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			m[k+timestampSuffix] = t.Unix()
		}
	}
	return m, nil
}

func geoOf(v any) map[string]any {
	loc, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	lat, okLat := loc["lat"].(float64)
	lon, okLon := loc["lon"].(float64)
	if !okLat || !okLon {
		return nil
	}
	return map[string]any{"lat": lat, "lng": lon}
}

func (d *MeilisearchDriver) IndexDocument(ctx context.Context, index, id string, doc any) error {
	return d.Bulk(ctx, []BulkItem{{Action: "index", Index: index, ID: id, Document: doc}})
}

// Bulk adds documents per index in one task and deletes individually.
func (d *MeilisearchDriver) Bulk(ctx context.Context, items []BulkItem) error {
	docs := map[string][]map[string]any{}
	var deletes []BulkItem
	for _, item := range items {
		if item.Action == "delete" {
			deletes = append(deletes, item)
			continue
		}
		m, err := prepareDocument(item.Document)
		if err != nil {
			return &DriverError{Op: "Bulk", Err: "failed to prepare document " + item.ID + ": " + err.Error(), Cause: err}
		}
		docs[item.Index] = append(docs[item.Index], m)
	}

	for index, batch := range docs {
		task, err := d.client.Index(index).AddDocumentsWithContext(ctx, batch, nil)
		if err != nil {
			return wrapError(ctx, "Bulk", "", err)
		}
		if err := d.wait(ctx, "Bulk", task); err != nil {
			return err
		}
	}

	for _, item := range deletes {
		if err := d.DeleteDocument(ctx, item.Index, item.ID); err != nil {
			return err
		}
	}
	return nil
}

// DeleteDocument removes id from index. Deleting a missing id succeeds.
func (d *MeilisearchDriver) DeleteDocument(ctx context.Context, index, id string) error {
	task, err := d.client.Index(index).DeleteDocumentWithContext(ctx, id, nil)
	if err != nil {
		return wrapError(ctx, "DeleteDocument", "", err)
	}
	return d.wait(ctx, "DeleteDocument", task)
}

func (d *MeilisearchDriver) Search(ctx context.Context, index string, req query.Request) (*SearchResponse, error) {
	if len(req.Suggest) > 0 {
		return d.suggest(ctx, index, req.Suggest[0])
	}

	translated := translateRequest(req)
	searchRequest := &meilisearch.SearchRequest{
		Limit:            int64(req.Size),
		Offset:           int64(req.From),
		Sort:             translated.Sort,
		ShowRankingScore: true,
	}
	if translated.Filter != "" {
		searchRequest.Filter = translated.Filter
	}

	result, err := d.client.Index(index).SearchWithContext(ctx, translated.Text, searchRequest)
	if err != nil {
		return nil, wrapError(ctx, "Search", "", err)
	}

	hits, err := decodeHits(result.Hits)
	if err != nil {
		return nil, wrapError(ctx, "Search", "failed to decode hits", err)
	}

	out := &SearchResponse{
		Total: result.EstimatedTotalHits,
		Hits:  make([]SearchHit, 0, len(hits)),
	}
	for _, h := range hits {
		out.Hits = append(out.Hits, toSearchHit(h))
	}
	return out, nil
}

// suggest approximates completion with a prefix search on the suggester's
// base field.
func (d *MeilisearchDriver) suggest(ctx context.Context, index string, s query.Suggester) (*SearchResponse, error) {
	field := strings.TrimSuffix(s.Field, ".suggest")
	result, err := d.client.Index(index).SearchWithContext(ctx, s.Prefix, &meilisearch.SearchRequest{
		Limit:                int64(s.Size),
		AttributesToRetrieve: []string{field},
	})
	if err != nil {
		return nil, wrapError(ctx, "Search", "", err)
	}

	hits, err := decodeHits(result.Hits)
	if err != nil {
		return nil, wrapError(ctx, "Search", "failed to decode hits", err)
	}

	texts := make([]string, 0, len(hits))
	for _, h := range hits {
		var text string
		if err := json.Unmarshal(h[field], &text); err == nil && text != "" {
			texts = append(texts, text)
		}
	}
	return &SearchResponse{
		Suggestions: map[string][]string{s.Name: texts},
	}, nil
}

func decodeHits(hits any) ([]map[string]json.RawMessage, error) {
	data, err := json.Marshal(hits)
	if err != nil {
		return nil, err
	}
	var out []map[string]json.RawMessage
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// toSearchHit strips engine fields from h and exposes the geo distance in
// kilometres.
func toSearchHit(h map[string]json.RawMessage) SearchHit {
	hit := SearchHit{}
	_ = json.Unmarshal(h["id"], &hit.ID)
	if raw, ok := h["_rankingScore"]; ok {
		_ = json.Unmarshal(raw, &hit.Score)
	}
	if raw, ok := h["_geoDistance"]; ok {
		var meters float64
		if err := json.Unmarshal(raw, &meters); err == nil {
			hit.Fields = map[string]float64{"distance_km": meters / 1000}
		}
	}

	source := make(map[string]json.RawMessage, len(h))
	for k, v := range h {
		if strings.HasPrefix(k, "_") || strings.HasSuffix(k, timestampSuffix) {
			continue
		}
		source[k] = v
	}
	hit.Source, _ = json.Marshal(source)
	return hit
}

// Refresh is a no-op; writes are visible once their task completes.
func (d *MeilisearchDriver) Refresh(ctx context.Context, indices ...string) error {
	return nil
}

func (d *MeilisearchDriver) Ping(ctx context.Context) error {
	health, err := d.client.HealthWithContext(ctx)
	if err != nil {
		return wrapError(ctx, "Ping", "", err)
	}
	if health.Status != "available" {
		return &DriverError{Op: "Ping", Err: "meilisearch status " + health.Status}
	}
	return nil
}
