package pagecache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/centrosedu/centros/pkg/logger"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL                 = 5 * time.Minute
	DefaultCapacity            = 256
	DefaultPrefetchConcurrency = 2
)

// Fetcher loads the value for key. It is called at most once per key at a time.
type Fetcher[V any] func(ctx context.Context, key Key) (V, error)

type entry[V any] struct {
	data      V
	writtenAt time.Time
}

// Stats is a point-in-time copy of the cache counters.
type Stats struct {
	Hits           int64 `json:"hits"`
	Misses         int64 `json:"misses"`
	Expired        int64 `json:"expired"`
	Evicted        int64 `json:"evicted"`
	Prefetched     int64 `json:"prefetched"`
	PrefetchFailed int64 `json:"prefetch_failed"`
}

// Cache is a time-expiring, capacity-bounded page cache. Entries expire
// lazily: staleness is only checked, and the entry evicted, on read.
//
// A loading mark belongs to the caller that set it, which releases it after
// receiving the fetch result. Each mark carries a token so a late release
// never drops a newer claim on the same key.
type Cache[V any] struct {
	mu       sync.Mutex
	entries  *lru.Cache[Key, entry[V]]
	loading  map[Key]uint64
	token    uint64
	group    singleflight.Group
	ttl      time.Duration
	now      func() time.Time
	parallel int

	hits, misses, expired, evicted atomic.Int64
	prefetched, prefetchFailed     atomic.Int64
}

type Option func(*options)

type options struct {
	ttl      time.Duration
	capacity int
	now      func() time.Time
	parallel int
}

func WithTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

// WithCapacity bounds the number of entries; least recently used pages are
// evicted first. Values <= 0 select DefaultCapacity.
func WithCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithPrefetchConcurrency(n int) Option {
	return func(o *options) { o.parallel = n }
}

func New[V any](opts ...Option) (*Cache[V], error) {
	o := options{ttl: DefaultTTL, capacity: DefaultCapacity, now: time.Now, parallel: DefaultPrefetchConcurrency}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ttl <= 0 {
		o.ttl = DefaultTTL
	}
	if o.capacity <= 0 {
		o.capacity = DefaultCapacity
	}
	if o.parallel <= 0 {
		o.parallel = DefaultPrefetchConcurrency
	}
	if o.now == nil {
		o.now = time.Now
	}
	entries, err := lru.New[Key, entry[V]](o.capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create page cache: %w", err)
	}
	return &Cache[V]{
		entries:  entries,
		loading:  make(map[Key]uint64),
		ttl:      o.ttl,
		now:      o.now,
		parallel: o.parallel,
	}, nil
}

func (c *Cache[V]) TTL() time.Duration {
	return c.ttl
}

// SetPage inserts or overwrites key, stamping it with the current time.
func (c *Cache[V]) SetPage(key Key, data V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, data)
}

func (c *Cache[V]) setLocked(key Key, data V) {
	if c.entries.Add(key, entry[V]{data: data, writtenAt: c.now()}) {
		c.evicted.Add(1)
	}
}

// GetPage returns the data for key unless it is absent or older than the
// TTL. A stale entry is removed before reporting the miss.
func (c *Cache[V]) GetPage(key Key) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.freshLocked(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return data, ok
}

func (c *Cache[V]) freshLocked(key Key) (V, bool) {
	var zero V
	e, ok := c.entries.Get(key)
	if !ok {
		return zero, false
	}
	if c.now().Sub(e.writtenAt) > c.ttl {
		c.entries.Remove(key)
		c.expired.Add(1)
		return zero, false
	}
	return e.data, true
}

// Contains reports whether key has an entry, fresh or not, without touching
// recency or expiring it.
func (c *Cache[V]) Contains(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Contains(key)
}

func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

func (c *Cache[V]) IsLoading(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.loading[key]
	return ok
}

// MarkLoading claims key for a fetch. It returns false when the key is
// already loading, in which case the caller must not fetch it.
func (c *Cache[V]) MarkLoading(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.loading[key]; busy {
		return false
	}
	c.claimLocked(key)
	return true
}

func (c *Cache[V]) claimLocked(key Key) uint64 {
	c.token++
	c.loading[key] = c.token
	return c.token
}

// release drops the mark on key only if it is still the claim made with token.
func (c *Cache[V]) release(key Key, token uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loading[key] == token {
		delete(c.loading, key)
	}
}

// ClearLoading releases key. Callers must reach it on every exit path of a
// fetch, or the key can never be fetched again.
func (c *Cache[V]) ClearLoading(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.loading, key)
}

// Clear drops all entries and loading marks. Fetches already in flight still
// store their result when they settle.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
	c.loading = make(map[Key]uint64)
}

func (c *Cache[V]) Stats() Stats {
	return Stats{
		Hits:           c.hits.Load(),
		Misses:         c.misses.Load(),
		Expired:        c.expired.Load(),
		Evicted:        c.evicted.Load(),
		Prefetched:     c.prefetched.Load(),
		PrefetchFailed: c.prefetchFailed.Load(),
	}
}

// startLocked registers (or joins) the shared fetch for key and claims the
// key when nobody else has. A non-zero token must be passed to release once
// the result is received. c.mu must be held.
func (c *Cache[V]) startLocked(ctx context.Context, key Key, fetch Fetcher[V]) (<-chan singleflight.Result, uint64) {
	var token uint64
	if _, busy := c.loading[key]; !busy {
		token = c.claimLocked(key)
	}
	ch := c.group.DoChan(key.String(), func() (any, error) {
		data, err := fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		c.SetPage(key, data)
		return data, nil
	})
	return ch, token
}

// Load returns the cached data for key, or fetches and stores it. Concurrent
// loads of one key, including a prefetch already in flight, share a single
// fetch. fromCache reports whether no fetch was needed.
func (c *Cache[V]) Load(ctx context.Context, key Key, fetch Fetcher[V]) (data V, fromCache bool, err error) {
	c.mu.Lock()
	if cached, ok := c.freshLocked(key); ok {
		c.mu.Unlock()
		c.hits.Add(1)
		return cached, true, nil
	}
	c.misses.Add(1)
	ch, token := c.startLocked(ctx, key, fetch)
	c.mu.Unlock()

	var zero V
	select {
	case res := <-ch:
		if token != 0 {
			c.release(key, token)
		}
		if res.Err != nil {
			return zero, false, res.Err
		}
		v, ok := res.Val.(V)
		if !ok {
			return zero, false, fmt.Errorf("page cache: unexpected value type %T for %s", res.Val, key)
		}
		return v, false, nil
	case <-ctx.Done():
		if token != 0 {
			go func() {
				<-ch
				c.release(key, token)
			}()
		}
		return zero, false, ctx.Err()
	}
}

// Prefetch fetches every key that is neither cached nor loading and stores
// the results. Keys are claimed before any fetch starts; at most the
// configured number of fetches run at once. It blocks until those fetches
// settle. Failures are logged and dropped, never returned.
func (c *Cache[V]) Prefetch(ctx context.Context, keys []Key, fetch Fetcher[V]) {
	log := logger.FromContext(ctx)
	sem := semaphore.NewWeighted(int64(c.parallel))
	limited := func(ctx context.Context, key Key) (V, error) {
		if err := sem.Acquire(ctx, 1); err != nil {
			var zero V
			return zero, err
		}
		defer sem.Release(1)
		return fetch(ctx, key)
	}
	g := new(errgroup.Group)
	for _, key := range keys {
		c.mu.Lock()
		_, cached := c.freshLocked(key)
		_, busy := c.loading[key]
		if cached || busy {
			c.mu.Unlock()
			continue
		}
		ch, token := c.startLocked(ctx, key, limited)
		c.mu.Unlock()
		g.Go(func() error {
			res := <-ch
			c.release(key, token)
			if res.Err != nil {
				c.prefetchFailed.Add(1)
				log.Warn("Page prefetch failed", "page", key.Page, "error", res.Err)
				return nil
			}
			c.prefetched.Add(1)
			log.Debug("Page prefetched", "page", key.Page)
			return nil
		})
	}
	_ = g.Wait()
}
