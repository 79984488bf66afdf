package driver

import (
	"context"
	"errors"
	"time"

	"venue-indexer/logger"
	"venue-indexer/query"

	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerSettings tunes the circuit around a search backend.
type BreakerSettings struct {
	Name                string
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	HalfOpenRequests    uint32
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:                "search-backend",
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
		HalfOpenRequests:    1,
	}
}

// BreakerDriver fails fast while the wrapped backend keeps failing.
type BreakerDriver struct {
	next SearchBackend
	cb   *gobreaker.CircuitBreaker[any]
}

func NewBreakerDriver(next SearchBackend, s BreakerSettings) *BreakerDriver {
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.HalfOpenRequests,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about backend health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Logger.Warn("search backend circuit changed state",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &BreakerDriver{next: next, cb: cb}
}

// State reports the current circuit state.
func (d *BreakerDriver) State() gobreaker.State {
	return d.cb.State()
}

func (d *BreakerDriver) run(op string, fn func() error) error {
	_, err := d.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	return breakerError(op, err)
}

func breakerError(op string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &DriverError{Op: op, Err: "search backend unavailable: " + err.Error()}
	}
	return err
}

func (d *BreakerDriver) IndexExists(ctx context.Context, index string) (bool, error) {
	var exists bool
	err := d.run("IndexExists", func() error {
		var err error
		exists, err = d.next.IndexExists(ctx, index)
		return err
	})
	return exists, err
}

func (d *BreakerDriver) CreateIndex(ctx context.Context, index string, body map[string]any) error {
	return d.run("CreateIndex", func() error {
		return d.next.CreateIndex(ctx, index, body)
	})
}

func (d *BreakerDriver) IndexDocument(ctx context.Context, index, id string, doc any) error {
	return d.run("IndexDocument", func() error {
		return d.next.IndexDocument(ctx, index, id, doc)
	})
}

func (d *BreakerDriver) Bulk(ctx context.Context, items []BulkItem) error {
	return d.run("Bulk", func() error {
		return d.next.Bulk(ctx, items)
	})
}

func (d *BreakerDriver) DeleteDocument(ctx context.Context, index, id string) error {
	return d.run("DeleteDocument", func() error {
		return d.next.DeleteDocument(ctx, index, id)
	})
}

func (d *BreakerDriver) Search(ctx context.Context, index string, req query.Request) (*SearchResponse, error) {
	result, err := d.cb.Execute(func() (any, error) {
		return d.next.Search(ctx, index, req)
	})
	if err != nil {
		return nil, breakerError("Search", err)
	}
	return result.(*SearchResponse), nil
}

func (d *BreakerDriver) Refresh(ctx context.Context, indices ...string) error {
	return d.run("Refresh", func() error {
		return d.next.Refresh(ctx, indices...)
	})
}

func (d *BreakerDriver) Ping(ctx context.Context) error {
	return d.run("Ping", func() error {
		return d.next.Ping(ctx)
	})
}
