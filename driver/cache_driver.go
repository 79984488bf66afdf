package driver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"

	"venue-indexer/logger"
	"venue-indexer/query"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "venue-indexer:search:"

// CacheDriver serves searches that carry a cache key from Redis. Every other
// call passes through. Cache failures degrade to uncached searches.
type CacheDriver struct {
	SearchBackend
	rdb *redis.Client
}

func NewCacheDriver(next SearchBackend, rdb *redis.Client) *CacheDriver {
	return &CacheDriver{SearchBackend: next, rdb: rdb}
}

// cacheKey scopes the caller's key by index and request body so distinct
// requests never share an entry.
func cacheKey(index string, req query.Request) (string, error) {
	body, err := json.Marshal(req.Body())
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(body)
	return cacheKeyPrefix + req.CacheKey + ":" + index + ":" + hex.EncodeToString(sum[:8]), nil
}

func (d *CacheDriver) Search(ctx context.Context, index string, req query.Request) (*SearchResponse, error) {
	if req.CacheKey == "" || req.CacheTTL <= 0 {
		return d.SearchBackend.Search(ctx, index, req)
	}

	key, err := cacheKey(index, req)
	if err != nil {
		return d.SearchBackend.Search(ctx, index, req)
	}

	cached, err := d.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var resp SearchResponse
		if err := json.Unmarshal(cached, &resp); err == nil {
			return &resp, nil
		}
		logger.Logger.Warn("discarding unreadable cached search result", "key", key)
	case !errors.Is(err, redis.Nil):
		logger.Logger.Warn("search cache read failed", "key", key, "error", err)
	}

	resp, err := d.SearchBackend.Search(ctx, index, req)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(resp)
	if err == nil {
		if err := d.rdb.Set(ctx, key, data, req.CacheTTL).Err(); err != nil {
			logger.Logger.Warn("search cache write failed", "key", key, "error", err)
		}
	}
	return resp, nil
}
