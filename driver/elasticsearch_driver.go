package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"venue-indexer/logger"
	"venue-indexer/query"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticsearchConfig holds the cluster connection settings.
type ElasticsearchConfig struct {
	Addresses []string
	Username  string
	Password  string
	APIKey    string
	Transport http.RoundTripper
}

type ElasticsearchDriver struct {
	es *elasticsearch.Client
}

func NewElasticsearchDriver(cfg ElasticsearchConfig) (*ElasticsearchDriver, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		APIKey:    cfg.APIKey,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, &DriverError{
			Op:    "NewElasticsearchDriver",
			Err:   err.Error(),
			Cause: err,
		}
	}

	return &ElasticsearchDriver{es: es}, nil
}

// responseError drains an error response into a DriverError.
func responseError(op string, res *esapi.Response) error {
	body, _ := io.ReadAll(res.Body)
	return &DriverError{
		Op:  op,
		Err: fmt.Sprintf("[%s] %s", res.Status(), body),
	}
}

func encodeJSON(v any) (*bytes.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

func (d *ElasticsearchDriver) IndexExists(ctx context.Context, index string) (bool, error) {
	res, err := d.es.Indices.Exists([]string{index}, d.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, wrapError(ctx, "IndexExists", "", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, responseError("IndexExists", res)
}

// CreateIndex creates index with the given settings and mappings body.
func (d *ElasticsearchDriver) CreateIndex(ctx context.Context, index string, body map[string]any) error {
	reader, err := encodeJSON(body)
	if err != nil {
		return wrapError(ctx, "CreateIndex", "", err)
	}

	res, err := d.es.Indices.Create(
		index,
		d.es.Indices.Create.WithBody(reader),
		d.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return wrapError(ctx, "CreateIndex", "", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("CreateIndex", res)
	}

	logger.Logger.Info("created search index", "index", index)
	return nil
}

func (d *ElasticsearchDriver) IndexDocument(ctx context.Context, index, id string, doc any) error {
	reader, err := encodeJSON(doc)
	if err != nil {
		return wrapError(ctx, "IndexDocument", "", err)
	}

	res, err := d.es.Index(
		index,
		reader,
		d.es.Index.WithDocumentID(id),
		d.es.Index.WithContext(ctx),
	)
	if err != nil {
		return wrapError(ctx, "IndexDocument", "", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("IndexDocument", res)
	}
	return nil
}

type bulkResponse struct {
	Errors bool                                `json:"errors"`
	Items  []map[string]bulkResponseItemResult `json:"items"`
}

type bulkResponseItemResult struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// encodeBulk renders items as newline delimited action and source lines.
func encodeBulk(items []BulkItem) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, item := range items {
		meta := map[string]any{
			item.Action: map[string]any{"_index": item.Index, "_id": item.ID},
		}
		if err := enc.Encode(meta); err != nil {
			return nil, err
		}
		if item.Action == "delete" {
			continue
		}
		if err := enc.Encode(item.Document); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Bulk executes items in one request. A delete of a missing document is not
// a failure; any other item failure is reported with the first failing id.
func (d *ElasticsearchDriver) Bulk(ctx context.Context, items []BulkItem) error {
	if len(items) == 0 {
		return nil
	}

	body, err := encodeBulk(items)
	if err != nil {
		return wrapError(ctx, "Bulk", "", err)
	}

	res, err := d.es.Bulk(bytes.NewReader(body), d.es.Bulk.WithContext(ctx))
	if err != nil {
		return wrapError(ctx, "Bulk", "", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("Bulk", res)
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return wrapError(ctx, "Bulk", "failed to decode response", err)
	}
	if !parsed.Errors {
		return nil
	}

	failed := 0
	var first string
	for _, item := range parsed.Items {
		for action, result := range item {
			if result.Status < 300 || (action == "delete" && result.Status == http.StatusNotFound) {
				continue
			}
			if failed == 0 {
				reason := http.StatusText(result.Status)
				if result.Error != nil {
					reason = result.Error.Type + ": " + result.Error.Reason
				}
				first = fmt.Sprintf("%s %s: %s", action, result.ID, reason)
			}
			failed++
		}
	}
	if failed == 0 {
		return nil
	}
	return &DriverError{
		Op:  "Bulk",
		Err: fmt.Sprintf("%d of %d items failed, first: %s", failed, len(items), first),
	}
}

// DeleteDocument removes id from index. A missing document is not an error.
func (d *ElasticsearchDriver) DeleteDocument(ctx context.Context, index, id string) error {
	res, err := d.es.Delete(index, id, d.es.Delete.WithContext(ctx))
	if err != nil {
		return wrapError(ctx, "DeleteDocument", "", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.IsError() {
		return responseError("DeleteDocument", res)
	}
	return nil
}

type searchResponseBody struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string               `json:"_id"`
			Score  *float64             `json:"_score"`
			Source json.RawMessage      `json:"_source"`
			Fields map[string][]float64 `json:"fields"`
		} `json:"hits"`
	} `json:"hits"`
	Suggest map[string][]struct {
		Options []struct {
			Text string `json:"text"`
		} `json:"options"`
	} `json:"suggest"`
}

func (d *ElasticsearchDriver) Search(ctx context.Context, index string, req query.Request) (*SearchResponse, error) {
	reader, err := encodeJSON(req.Body())
	if err != nil {
		return nil, wrapError(ctx, "Search", "", err)
	}

	opts := []func(*esapi.SearchRequest){
		d.es.Search.WithContext(ctx),
		d.es.Search.WithIndex(index),
		d.es.Search.WithBody(reader),
	}
	if req.RequestCache != nil {
		opts = append(opts, d.es.Search.WithRequestCache(*req.RequestCache))
	}
	if req.Preference != "" {
		opts = append(opts, d.es.Search.WithPreference(req.Preference))
	}

	res, err := d.es.Search(opts...)
	if err != nil {
		return nil, wrapError(ctx, "Search", "", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, responseError("Search", res)
	}

	var body searchResponseBody
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, wrapError(ctx, "Search", "failed to decode response", err)
	}

	out := &SearchResponse{
		Total: body.Hits.Total.Value,
		Hits:  make([]SearchHit, 0, len(body.Hits.Hits)),
	}
	for _, h := range body.Hits.Hits {
		hit := SearchHit{ID: h.ID, Source: h.Source}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		for name, values := range h.Fields {
			if len(values) == 0 {
				continue
			}
			if hit.Fields == nil {
				hit.Fields = map[string]float64{}
			}
			hit.Fields[name] = values[0]
		}
		out.Hits = append(out.Hits, hit)
	}

	if len(body.Suggest) > 0 {
		out.Suggestions = make(map[string][]string, len(body.Suggest))
		for name, entries := range body.Suggest {
			texts := []string{}
			for _, entry := range entries {
				for _, opt := range entry.Options {
					texts = append(texts, opt.Text)
				}
			}
			out.Suggestions[name] = texts
		}
	}
	return out, nil
}

func (d *ElasticsearchDriver) Refresh(ctx context.Context, indices ...string) error {
	res, err := d.es.Indices.Refresh(
		d.es.Indices.Refresh.WithIndex(indices...),
		d.es.Indices.Refresh.WithContext(ctx),
	)
	if err != nil {
		return wrapError(ctx, "Refresh", "", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("Refresh", res)
	}
	return nil
}

func (d *ElasticsearchDriver) Ping(ctx context.Context) error {
	res, err := d.es.Ping(d.es.Ping.WithContext(ctx))
	if err != nil {
		return wrapError(ctx, "Ping", "", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("Ping", res)
	}
	return nil
}
