package query

import (
	"context"
	"fmt"
	"time"

	apperrors "wayfinder/internal/errors"
)

// Descriptor identifies one read. It is rebuilt from current inputs on every
// call and never stored.
type Descriptor[T any] struct {
	Key Key
	// Fetch performs a single attempt against the remote endpoint.
	Fetch func(ctx context.Context) (T, error)
	// Enabled gates the read. A disabled descriptor never fetches and never
	// errors.
	Enabled bool
	// Retry is the number of extra attempts after a retryable failure.
	Retry int
	// StaleTime and GCTime fall back to the client defaults when zero. A
	// negative StaleTime makes every call refetch.
	StaleTime time.Duration
	GCTime    time.Duration
}

// Result is what a read hands back to its caller.
type Result[T any] struct {
	Data      T
	Err       error
	Status    Status
	FromCache bool
	Attempts  int
	UpdatedAt time.Time
}

// Idle reports whether the read was disabled.
func (r Result[T]) Idle() bool {
	return r.Status == StatusIdle
}

// OK reports whether the read produced data.
func (r Result[T]) OK() bool {
	return r.Status == StatusSuccess
}

// Fetch runs the read described by d: it returns the cached value while it is
// fresh, otherwise joins or starts a fetch and stores the outcome.
func Fetch[T any](ctx context.Context, c *Client, d Descriptor[T]) Result[T] {
	if !d.Enabled || d.Fetch == nil {
		return Result[T]{Status: StatusIdle}
	}

	ns := d.Key.Namespace()
	staleTime := d.StaleTime
	if staleTime == 0 {
		staleTime = c.staleTime
	}
	if snap, ok := c.cache.fresh(d.Key, staleTime); ok {
		data, err := as[T](ns, snap.Data)
		if err == nil {
			c.metrics.CacheHit(ns)
			return Result[T]{Data: data, Status: StatusSuccess, FromCache: true, UpdatedAt: snap.UpdatedAt}
		}
	}
	c.metrics.CacheMiss(ns)

	val, attempts, err := c.load(ctx, d.Key, d.GCTime, d.Retry, func(ctx context.Context) (any, error) {
		return d.Fetch(ctx)
	})
	if err != nil {
		return Result[T]{Err: err, Status: StatusError, Attempts: attempts}
	}

	data, err := as[T](ns, val)
	if err != nil {
		return Result[T]{Err: err, Status: StatusError, Attempts: attempts}
	}
	res := Result[T]{Data: data, Status: StatusSuccess, Attempts: attempts}
	if snap, ok := c.cache.Get(d.Key); ok {
		res.UpdatedAt = snap.UpdatedAt
	}
	return res
}

// Prefetch warms the cache for d and discards the result.
func Prefetch[T any](ctx context.Context, c *Client, d Descriptor[T]) error {
	return Fetch(ctx, c, d).Err
}

// GetData returns the cached data for key, fresh or not.
func GetData[T any](c *Client, key Key) (T, bool) {
	var zero T
	snap, ok := c.cache.Get(key)
	if !ok || !snap.HasData {
		return zero, false
	}
	data, err := as[T](key.Namespace(), snap.Data)
	if err != nil {
		return zero, false
	}
	return data, true
}

// SetData seeds the cache for key, for example with an optimistic update.
func SetData[T any](c *Client, key Key, data T) {
	c.cache.Set(key, data)
}

func as[T any](namespace string, v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	data, ok := v.(T)
	if !ok {
		return zero, apperrors.NetworkOrParse(namespace,
			fmt.Sprintf("cached value has type %T, want %T", v, zero), nil)
	}
	return data, nil
}
