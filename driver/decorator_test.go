package driver

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venue-indexer/query"
)

// stubBackend counts calls and answers with fixed results.
type stubBackend struct {
	searchCalls int
	pingCalls   int
	resp        *SearchResponse
	err         error
}

func (s *stubBackend) IndexExists(ctx context.Context, index string) (bool, error) {
	return true, s.err
}

func (s *stubBackend) CreateIndex(ctx context.Context, index string, body map[string]any) error {
	return s.err
}

func (s *stubBackend) IndexDocument(ctx context.Context, index, id string, doc any) error {
	return s.err
}

func (s *stubBackend) Bulk(ctx context.Context, items []BulkItem) error {
	return s.err
}

func (s *stubBackend) DeleteDocument(ctx context.Context, index, id string) error {
	return s.err
}

func (s *stubBackend) Search(ctx context.Context, index string, req query.Request) (*SearchResponse, error) {
	s.searchCalls++
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func (s *stubBackend) Refresh(ctx context.Context, indices ...string) error {
	return s.err
}

func (s *stubBackend) Ping(ctx context.Context) error {
	s.pingCalls++
	return s.err
}

func TestBreakerDriver_OpensAfterConsecutiveFailures(t *testing.T) {
	backend := &stubBackend{err: errors.New("connection refused")}
	d := NewBreakerDriver(backend, BreakerSettings{
		Name:                "test",
		ConsecutiveFailures: 3,
		OpenTimeout:         time.Minute,
		HalfOpenRequests:    1,
	})
	ctx := context.Background()

	for range 3 {
		err := d.Ping(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	}
	assert.Equal(t, gobreaker.StateOpen, d.State())

	_, err := d.Search(ctx, "venues", query.Request{})
	require.Error(t, err)
	var driverErr *DriverError
	require.ErrorAs(t, err, &driverErr)
	assert.Equal(t, "Search", driverErr.Op)
	assert.Contains(t, driverErr.Err, "search backend unavailable")
	assert.Equal(t, 0, backend.searchCalls, "open circuit must not reach the backend")
	assert.Equal(t, 3, backend.pingCalls)
}

func TestBreakerDriver_CancellationDoesNotTrip(t *testing.T) {
	backend := &stubBackend{err: context.Canceled}
	d := NewBreakerDriver(backend, BreakerSettings{Name: "test", ConsecutiveFailures: 1, OpenTimeout: time.Minute})

	for range 3 {
		assert.ErrorIs(t, d.Ping(context.Background()), context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, d.State())
}

func TestBreakerDriver_AbortedRequestsKeepCircuitClosed(t *testing.T) {
	release := make(chan struct{})
	es := fakeCluster(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	t.Cleanup(func() { close(release) })

	d := NewBreakerDriver(es, BreakerSettings{Name: "test", ConsecutiveFailures: 3, OpenTimeout: time.Minute})

	for range 5 {
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(20*time.Millisecond, cancel)

		err := d.Ping(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		var driverErr *DriverError
		require.ErrorAs(t, err, &driverErr)
		assert.Equal(t, "Ping", driverErr.Op)
	}
	assert.Equal(t, gobreaker.StateClosed, d.State())
}

func TestDriverError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")

	t.Run("keeps the cause", func(t *testing.T) {
		err := wrapError(context.Background(), "Search", "", cause)
		assert.Equal(t, "Search: connection reset", err.Error())
		assert.ErrorIs(t, err, cause)
	})

	t.Run("joins a done context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := wrapError(ctx, "Bulk", "failed to decode response", cause)
		assert.Equal(t, "Bulk: failed to decode response: connection reset", err.Error())
		assert.ErrorIs(t, err, cause)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestBreakerDriver_PassesResults(t *testing.T) {
	want := &SearchResponse{Total: 1, Hits: []SearchHit{{ID: "1"}}}
	d := NewBreakerDriver(&stubBackend{resp: want}, DefaultBreakerSettings())

	got, err := d.Search(context.Background(), "venues", query.Request{})
	require.NoError(t, err)
	assert.Same(t, want, got)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestCacheDriver_CachesKeyedSearches(t *testing.T) {
	_, rdb := newTestRedis(t)
	backend := &stubBackend{resp: &SearchResponse{Total: 2, Hits: []SearchHit{{ID: "1", Score: 1.5}}}}
	d := NewCacheDriver(backend, rdb)
	ctx := context.Background()
	req := query.Request{Query: query.MatchAll{}, Size: 10, CacheKey: "venues:popular", CacheTTL: time.Minute}

	first, err := d.Search(ctx, "venues", req)
	require.NoError(t, err)
	second, err := d.Search(ctx, "venues", req)
	require.NoError(t, err)

	assert.Equal(t, 1, backend.searchCalls)
	assert.Equal(t, first.Total, second.Total)
	assert.Equal(t, "1", second.Hits[0].ID)
	assert.Equal(t, 1.5, second.Hits[0].Score)
}

func TestCacheDriver_DistinctRequestsDoNotShareEntries(t *testing.T) {
	_, rdb := newTestRedis(t)
	backend := &stubBackend{resp: &SearchResponse{}}
	d := NewCacheDriver(backend, rdb)
	ctx := context.Background()

	a := query.Request{Query: query.MatchAll{}, Size: 10, CacheKey: "k", CacheTTL: time.Minute}
	b := a
	b.From = 10

	_, err := d.Search(ctx, "venues", a)
	require.NoError(t, err)
	_, err = d.Search(ctx, "venues", b)
	require.NoError(t, err)
	_, err = d.Search(ctx, "events", a)
	require.NoError(t, err)

	assert.Equal(t, 3, backend.searchCalls)
}

func TestCacheDriver_UncachedWithoutKey(t *testing.T) {
	_, rdb := newTestRedis(t)
	backend := &stubBackend{resp: &SearchResponse{}}
	d := NewCacheDriver(backend, rdb)

	for range 2 {
		_, err := d.Search(context.Background(), "venues", query.Request{Query: query.MatchAll{}})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, backend.searchCalls)
}

func TestCacheDriver_ExpiresWithTTL(t *testing.T) {
	mr, rdb := newTestRedis(t)
	backend := &stubBackend{resp: &SearchResponse{}}
	d := NewCacheDriver(backend, rdb)
	req := query.Request{Query: query.MatchAll{}, CacheKey: "k", CacheTTL: time.Minute}

	_, err := d.Search(context.Background(), "venues", req)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = d.Search(context.Background(), "venues", req)
	require.NoError(t, err)

	assert.Equal(t, 2, backend.searchCalls)
}

func TestCacheDriver_RedisDownFallsThrough(t *testing.T) {
	mr, rdb := newTestRedis(t)
	backend := &stubBackend{resp: &SearchResponse{Total: 4}}
	d := NewCacheDriver(backend, rdb)
	mr.Close()

	resp, err := d.Search(context.Background(), "venues", query.Request{CacheKey: "k", CacheTTL: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, int64(4), resp.Total)
}

func TestCacheDriver_BackendErrorIsNotCached(t *testing.T) {
	_, rdb := newTestRedis(t)
	backend := &stubBackend{err: errors.New("boom")}
	d := NewCacheDriver(backend, rdb)
	req := query.Request{CacheKey: "k", CacheTTL: time.Minute}

	_, err := d.Search(context.Background(), "venues", req)
	require.Error(t, err)

	backend.err = nil
	backend.resp = &SearchResponse{Total: 1}
	resp, err := d.Search(context.Background(), "venues", req)
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Total)
}
