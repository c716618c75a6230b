package querycache

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// entry is a cached value. An entry with filled false is a placeholder for a
// first fetch still in flight; it only carries the generation.
type entry struct {
	key        Key
	value      any
	filled     bool
	fetchedAt  time.Time
	stale      bool
	generation uint64
}

type subscriber struct {
	key    Key
	notify chan struct{}
}

// Cache maps keys to their most recent successful fetch. Concurrent reads of
// a missing or stale key share one in-flight fetch.
type Cache struct {
	mu          sync.Mutex
	entries     map[string]*entry
	subscribers map[uint64]*subscriber
	nextID      uint64
	group       singleflight.Group

	hits          atomic.Int64
	misses        atomic.Int64
	fetches       atomic.Int64
	errors        atomic.Int64
	invalidations atomic.Int64
}

func New() *Cache {
	return &Cache{
		entries:     make(map[string]*entry),
		subscribers: make(map[uint64]*subscriber),
	}
}

type Stats struct {
	Entries       int   `json:"entries"`
	Subscribers   int   `json:"subscribers"`
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Fetches       int64 `json:"fetches"`
	Errors        int64 `json:"errors"`
	Invalidations int64 `json:"invalidations"`
}

func (cache *Cache) Stats() Stats {
	cache.mu.Lock()
	entries := 0
	for _, current := range cache.entries {
		if current.filled {
			entries++
		}
	}
	subscribers := len(cache.subscribers)
	cache.mu.Unlock()

	return Stats{
		Entries:       entries,
		Subscribers:   subscribers,
		Hits:          cache.hits.Load(),
		Misses:        cache.misses.Load(),
		Fetches:       cache.fetches.Load(),
		Errors:        cache.errors.Load(),
		Invalidations: cache.invalidations.Load(),
	}
}

// Invalidate marks every entry selected by prefix stale and signals matching
// subscribers to refetch. It returns the number of entries marked.
func (cache *Cache) Invalidate(prefix Key) int {
	cache.mu.Lock()
	marked := 0
	for name, current := range cache.entries {
		if !current.key.HasPrefix(prefix) {
			continue
		}
		current.stale = true
		current.generation++
		cache.group.Forget(name)
		if current.filled {
			marked++
		}
	}

	var signals []chan struct{}
	for _, sub := range cache.subscribers {
		if sub.key.HasPrefix(prefix) {
			signals = append(signals, sub.notify)
		}
	}
	cache.mu.Unlock()

	cache.invalidations.Add(1)
	for _, notify := range signals {
		select {
		case notify <- struct{}{}:
		default:
		}
	}

	slog.Debug("cache invalidated", "prefix", prefix.String(), "entries", marked, "subscribers", len(signals))
	return marked
}

func (cache *Cache) lookup(key Key) (*entry, bool) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	current, ok := cache.entries[key.String()]
	if !ok || !current.filled {
		return nil, false
	}
	snapshot := *current
	return &snapshot, true
}

// begin returns the generation a fetch of key starts from. A missing key gets
// a placeholder entry so invalidations during its first fetch are counted.
func (cache *Cache) begin(key Key) uint64 {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	name := key.String()
	current, ok := cache.entries[name]
	if !ok {
		current = &entry{key: key, stale: true}
		cache.entries[name] = current
	}
	return current.generation
}

// store saves a fetched value. A value fetched before an invalidation that
// landed mid-flight is kept but stays stale, so the next read fetches again.
func (cache *Cache) store(key Key, value any, startedAt uint64) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	name := key.String()
	current, ok := cache.entries[name]
	if !ok {
		current = &entry{key: key}
		cache.entries[name] = current
	}

	current.value = value
	current.filled = true
	current.fetchedAt = time.Now()
	current.stale = current.generation != startedAt
}

func (cache *Cache) subscribe(key Key) (uint64, chan struct{}) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	cache.nextID++
	notify := make(chan struct{}, 1)
	cache.subscribers[cache.nextID] = &subscriber{key: key, notify: notify}
	return cache.nextID, notify
}

func (cache *Cache) unsubscribe(id uint64) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	delete(cache.subscribers, id)
}

func (cache *Cache) markStale(key Key) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	name := key.String()
	if current, ok := cache.entries[name]; ok {
		current.stale = true
		current.generation++
		cache.group.Forget(name)
	}
}

func typeMismatch(key Key, value any) error {
	return fmt.Errorf("querycache: key %s holds %T", key.String(), value)
}
