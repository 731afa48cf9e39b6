package indicator

import (
	"container/list"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/junghoon-woo/danta/internal/domain"
)

const cacheShards = 16

// Cache memoises computed frames keyed by (ticker, last-bar timestamp).
// A newer bar changes the key, so a stale frame is never served after fresh
// data arrives; the TTL bounds memory for tickers that stop updating. Each
// shard serialises its own updates, so concurrent scoring workers contend
// only within a shard.
type Cache struct {
	shards  [cacheShards]*cacheShard
	ttl     time.Duration
	maxSize int // per shard
	clock   domain.Clock
	log     zerolog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

type cacheShard struct {
	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List // front = most recently used
}

type cacheEntry struct {
	key      string
	frame    *Frame
	storedAt time.Time
}

// CacheStats reports hit counters and current size.
type CacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Size    int     `json:"size"`
	HitRate float64 `json:"hit_rate"`
}

// NewCache creates a frame cache. maxSize is the total entry budget across
// shards; ttl ≈ one tick interval keeps frames warm for every scorer of the
// same tick.
func NewCache(maxSize int, ttl time.Duration, clock domain.Clock, log zerolog.Logger) *Cache {
	if maxSize < cacheShards {
		maxSize = cacheShards
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if clock == nil {
		clock = domain.SystemClock()
	}

	c := &Cache{
		ttl:     ttl,
		maxSize: maxSize / cacheShards,
		clock:   clock,
		log:     log.With().Str("component", "indicator_cache").Logger(),
	}
	for i := range c.shards {
		c.shards[i] = &cacheShard{
			items: make(map[string]*list.Element),
			order: list.New(),
		}
	}
	return c
}

// GetOrCompute returns the cached frame for the series' last bar, computing
// and storing it on a miss.
func (c *Cache) GetOrCompute(series *domain.PriceSeries) (*Frame, error) {
	if series.Len() == 0 {
		return nil, fmt.Errorf("empty price series for %s", series.Ticker)
	}

	key := frameKey(series.Ticker, series.Last().TS)
	shard := c.shards[shardIndex(key)]

	shard.mu.Lock()
	if el, ok := shard.items[key]; ok {
		entry := el.Value.(*cacheEntry)
		if c.clock.Now().Sub(entry.storedAt) < c.ttl {
			shard.order.MoveToFront(el)
			shard.mu.Unlock()
			c.hits.Add(1)
			return entry.frame, nil
		}
		shard.order.Remove(el)
		delete(shard.items, key)
	}
	shard.mu.Unlock()

	c.misses.Add(1)
	frame, err := Compute(series)
	if err != nil {
		return nil, err
	}

	shard.mu.Lock()
	defer shard.mu.Unlock()
	if _, ok := shard.items[key]; !ok {
		el := shard.order.PushFront(&cacheEntry{key: key, frame: frame, storedAt: c.clock.Now()})
		shard.items[key] = el
		for shard.order.Len() > c.maxSize {
			oldest := shard.order.Back()
			shard.order.Remove(oldest)
			delete(shard.items, oldest.Value.(*cacheEntry).key)
		}
	}
	return frame, nil
}

// Stats returns hit counters across all shards.
func (c *Cache) Stats() CacheStats {
	size := 0
	for _, s := range c.shards {
		s.mu.Lock()
		size += s.order.Len()
		s.mu.Unlock()
	}

	hits, misses := c.hits.Load(), c.misses.Load()
	stats := CacheStats{Hits: hits, Misses: misses, Size: size}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}

// Purge drops every cached frame. Used when a new trading day begins.
func (c *Cache) Purge() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.items = make(map[string]*list.Element)
		s.order.Init()
		s.mu.Unlock()
	}
	c.log.Debug().Msg("indicator cache purged")
}

func frameKey(ticker string, lastBar time.Time) string {
	return ticker + "@" + lastBar.UTC().Format("20060102T150405")
}

func shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % cacheShards)
}
