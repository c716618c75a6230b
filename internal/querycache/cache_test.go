package querycache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ItsHarshjsin/riseup-sub000/internal/querycache"
)

func counter(value *atomic.Int64) querycache.Fetcher[int64] {
	return func(ctx context.Context) (int64, error) {
		return value.Add(1), nil
	}
}

func TestRead_CachesUntilInvalidated(t *testing.T) {
	cache := querycache.New()
	ctx := context.Background()
	key := querycache.NewKey("profile", "user-1")
	var calls atomic.Int64

	first, err := querycache.Read(ctx, cache, key, counter(&calls))
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	second, _ := querycache.Read(ctx, cache, key, counter(&calls))
	if first.Data != 1 || second.Data != 1 {
		t.Errorf("expected cached value 1 twice, got %d and %d", first.Data, second.Data)
	}

	if marked := cache.Invalidate(querycache.NewKey("profile")); marked != 1 {
		t.Errorf("expected 1 entry invalidated, got %d", marked)
	}

	third, _ := querycache.Read(ctx, cache, key, counter(&calls))
	if third.Data != 2 {
		t.Errorf("expected refetched value 2, got %d", third.Data)
	}

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Fetches != 2 {
		t.Errorf("expected 1 hit and 2 fetches, got %+v", stats)
	}
}

func TestRead_InvalidateLeavesOtherKeys(t *testing.T) {
	cache := querycache.New()
	ctx := context.Background()
	var calls atomic.Int64

	querycache.Read(ctx, cache, querycache.NewKey("tasks", "user-1"), counter(&calls))
	querycache.Read(ctx, cache, querycache.NewKey("tasks", "user-2"), counter(&calls))

	if marked := cache.Invalidate(querycache.NewKey("tasks", "user-1")); marked != 1 {
		t.Errorf("expected 1 entry invalidated, got %d", marked)
	}

	result, _ := querycache.Read(ctx, cache, querycache.NewKey("tasks", "user-2"), counter(&calls))
	if result.Data != 2 {
		t.Errorf("expected untouched value 2, got %d", result.Data)
	}
}

func TestRead_ConcurrentReadersShareOneFetch(t *testing.T) {
	cache := querycache.New()
	key := querycache.NewKey("leaderboard")
	var calls atomic.Int64
	release := make(chan struct{})

	fetch := func(ctx context.Context) (int64, error) {
		calls.Add(1)
		<-release
		return 7, nil
	}

	var ready, done sync.WaitGroup
	results := make([]int64, 10)
	for i := range results {
		ready.Add(1)
		done.Add(1)
		go func(i int) {
			defer done.Done()
			ready.Done()
			result, err := querycache.Read(context.Background(), cache, key, fetch)
			if err != nil {
				t.Errorf("reading: %v", err)
				return
			}
			results[i] = result.Data
		}(i)
	}

	ready.Wait()
	time.Sleep(50 * time.Millisecond)
	close(release)
	done.Wait()

	if calls.Load() != 1 {
		t.Errorf("expected 1 fetch, got %d", calls.Load())
	}
	for i, value := range results {
		if value != 7 {
			t.Errorf("reader %d got %d", i, value)
		}
	}
}

func TestRead_FirstFailureReturnsError(t *testing.T) {
	cache := querycache.New()
	boom := errors.New("boom")

	_, err := querycache.Read(context.Background(), cache, querycache.NewKey("tasks"), func(ctx context.Context) ([]string, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestRead_FailureKeepsLastGoodValue(t *testing.T) {
	cache := querycache.New()
	ctx := context.Background()
	key := querycache.NewKey("tasks", "user-1")
	boom := errors.New("boom")

	_, err := querycache.Read(ctx, cache, key, func(ctx context.Context) ([]string, error) {
		return []string{"stretch"}, nil
	})
	if err != nil {
		t.Fatalf("reading: %v", err)
	}

	cache.Invalidate(key)

	result, err := querycache.Read(ctx, cache, key, func(ctx context.Context) ([]string, error) {
		return nil, boom
	})
	if err != nil {
		t.Fatalf("expected stale result without error, got %v", err)
	}
	if !result.Stale || !errors.Is(result.Err, boom) {
		t.Errorf("expected stale result carrying boom, got %+v", result)
	}
	if len(result.Data) != 1 || result.Data[0] != "stretch" {
		t.Errorf("expected last good value, got %v", result.Data)
	}

	recovered, err := querycache.Read(ctx, cache, key, func(ctx context.Context) ([]string, error) {
		return []string{"stretch", "read"}, nil
	})
	if err != nil {
		t.Fatalf("reading after recovery: %v", err)
	}
	if recovered.Stale || len(recovered.Data) != 2 {
		t.Errorf("expected fresh value after recovery, got %+v", recovered)
	}
}

func TestRead_DisabledUsesInitialData(t *testing.T) {
	cache := querycache.New()
	var calls atomic.Int64

	result, err := querycache.Read(context.Background(), cache, querycache.NewKey("profile", ""), counter(&calls),
		querycache.Enabled(false), querycache.InitialData(int64(-1)))
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	if result.Data != -1 {
		t.Errorf("expected initial data -1, got %d", result.Data)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no fetch, got %d", calls.Load())
	}
}

func TestRead_InvalidatedMidFlightStaysStale(t *testing.T) {
	cache := querycache.New()
	ctx := context.Background()
	key := querycache.NewKey("tasks", "user-1")
	var calls atomic.Int64

	querycache.Read(ctx, cache, key, counter(&calls))
	cache.Invalidate(key)

	_, err := querycache.Read(ctx, cache, key, func(ctx context.Context) (int64, error) {
		cache.Invalidate(key)
		return calls.Add(1), nil
	})
	if err != nil {
		t.Fatalf("reading: %v", err)
	}

	result, _ := querycache.Read(ctx, cache, key, counter(&calls))
	if result.Data != 3 {
		t.Errorf("expected a third fetch after mid-flight invalidation, got %d", result.Data)
	}
}

func TestRead_InvalidateDuringFirstFetch(t *testing.T) {
	cache := querycache.New()
	ctx := context.Background()
	key := querycache.NewKey("tasks", "user-1")
	var source atomic.Int64
	source.Store(1)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		querycache.Read(ctx, cache, key, func(ctx context.Context) (int64, error) {
			value := source.Load()
			close(started)
			<-release
			return value, nil
		})
	}()

	<-started
	source.Store(2)
	cache.Invalidate(key)
	close(release)
	<-done

	result, err := querycache.Read(ctx, cache, key, func(ctx context.Context) (int64, error) {
		return source.Load(), nil
	})
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	if result.Data != 2 {
		t.Errorf("expected the value written during the first fetch, got %d", result.Data)
	}
}

func TestStats_IgnoresInFlightFirstFetch(t *testing.T) {
	cache := querycache.New()
	ctx := context.Background()
	key := querycache.NewKey("tasks", "user-1")

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		querycache.Read(ctx, cache, key, func(ctx context.Context) (int, error) {
			close(started)
			<-release
			return 1, nil
		})
	}()

	<-started
	if stats := cache.Stats(); stats.Entries != 0 {
		t.Errorf("expected no entries while the first fetch runs, got %d", stats.Entries)
	}
	close(release)
	<-done

	if stats := cache.Stats(); stats.Entries != 1 {
		t.Errorf("expected 1 entry after the fetch, got %d", stats.Entries)
	}
}

func TestRead_TypeMismatch(t *testing.T) {
	cache := querycache.New()
	ctx := context.Background()
	key := querycache.NewKey("profile", "user-1")

	querycache.Read(ctx, cache, key, func(ctx context.Context) (string, error) { return "ada", nil })

	if _, err := querycache.Read(ctx, cache, key, func(ctx context.Context) (int, error) { return 1, nil }); err == nil {
		t.Error("expected error reading a key with a different type")
	}
}
