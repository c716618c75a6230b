package querycache

import (
	"context"
	"time"
)

// Result is what a read resolves to. When a refetch fails but an older value
// exists, Data holds that value, Err holds the failure and Stale is true.
type Result[T any] struct {
	Data      T         `json:"data"`
	Err       error     `json:"-"`
	Stale     bool      `json:"stale"`
	FetchedAt time.Time `json:"fetched_at"`
}

type Fetcher[T any] func(ctx context.Context) (T, error)

type options struct {
	enabled         bool
	initialData     any
	refetchInterval time.Duration
}

type Option func(*options)

// Enabled suppresses fetching when false; the read resolves to InitialData.
func Enabled(enabled bool) Option {
	return func(opts *options) {
		opts.enabled = enabled
	}
}

func InitialData[T any](value T) Option {
	return func(opts *options) {
		opts.initialData = value
	}
}

// RefetchInterval makes a Watch refetch on a fixed period in addition to
// invalidations. Read ignores it.
func RefetchInterval(interval time.Duration) Option {
	return func(opts *options) {
		opts.refetchInterval = interval
	}
}

func buildOptions(opts []Option) options {
	built := options{enabled: true}
	for _, opt := range opts {
		opt(&built)
	}
	return built
}

func initialValue[T any](opts options) T {
	if value, ok := opts.initialData.(T); ok {
		return value
	}
	var zero T
	return zero
}

// Read returns the cached value for key when present and fresh. Otherwise it
// runs fetch, sharing one in-flight call among concurrent readers of key.
func Read[T any](ctx context.Context, cache *Cache, key Key, fetch Fetcher[T], opts ...Option) (Result[T], error) {
	built := buildOptions(opts)
	if !built.enabled {
		return Result[T]{Data: initialValue[T](built)}, nil
	}

	previous, found := cache.lookup(key)
	if found && !previous.stale {
		value, ok := previous.value.(T)
		if !ok {
			return Result[T]{}, typeMismatch(key, previous.value)
		}
		cache.hits.Add(1)
		return Result[T]{Data: value, FetchedAt: previous.fetchedAt}, nil
	}
	cache.misses.Add(1)

	startedAt := cache.begin(key)
	fetched, err, _ := cache.group.Do(key.String(), func() (any, error) {
		cache.fetches.Add(1)
		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		cache.store(key, value, startedAt)
		return value, nil
	})
	if err != nil {
		cache.errors.Add(1)
		if !found {
			return Result[T]{}, err
		}
		value, ok := previous.value.(T)
		if !ok {
			return Result[T]{}, typeMismatch(key, previous.value)
		}
		return Result[T]{Data: value, Err: err, Stale: true, FetchedAt: previous.fetchedAt}, nil
	}

	value, ok := fetched.(T)
	if !ok {
		return Result[T]{}, typeMismatch(key, fetched)
	}
	return Result[T]{Data: value, FetchedAt: time.Now()}, nil
}

// Watch mounts a subscriber on key. It emits a result right away, after every
// invalidation selecting key, and every RefetchInterval when one is set.
// Invalidations arriving while a refetch runs collapse into one more refetch.
// The channel closes when ctx ends.
func Watch[T any](ctx context.Context, cache *Cache, key Key, fetch Fetcher[T], opts ...Option) <-chan Result[T] {
	built := buildOptions(opts)
	out := make(chan Result[T], 1)
	id, notify := cache.subscribe(key)

	go func() {
		defer close(out)
		defer cache.unsubscribe(id)

		var tick <-chan time.Time
		if built.refetchInterval > 0 {
			ticker := time.NewTicker(built.refetchInterval)
			defer ticker.Stop()
			tick = ticker.C
		}

		emit := func() bool {
			result, err := Read(ctx, cache, key, fetch, opts...)
			if err != nil {
				result = Result[T]{Data: initialValue[T](built), Err: err}
			}
			select {
			case out <- result:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-notify:
			case <-tick:
				cache.markStale(key)
			}
			if !emit() {
				return
			}
		}
	}()

	return out
}
