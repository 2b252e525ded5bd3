// Package cache implements the optional Redis-backed query-result cache.
// It is keyed by the normalized query (sorted tokenized terms, since
// spec.md's Non-goals exclude boolean query operators, there is no query
// plan to normalize beyond the term set) plus k, and uses singleflight so
// that concurrent requests for the same uncached query only compute the
// result once.
package cache

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/query"
	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/tfidx/pkg/metrics"
	redisclient "github.com/Adithya-Monish-Kumar-K/tfidx/pkg/redis"
)

// QueryCache caches query.Result values. A nil *QueryCache, or one
// constructed with a nil redis client, is a valid no-op cache: every call
// falls through to compute().
type QueryCache struct {
	redis   *redisclient.Client
	ttl     time.Duration
	metrics *metrics.Metrics
	group   singleflight.Group
	hits    int64
	misses  int64
}

// New creates a QueryCache backed by redis. redis may be nil, in which
// case GetOrCompute always calls compute directly.
func New(redis *redisclient.Client, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{redis: redis, ttl: ttl, metrics: m}
}

// keyPrefix namespaces every cache key so Invalidate's pattern scan only
// ever touches query-cache entries.
const keyPrefix = "tfidx:query:"

// buildKey normalizes q by tokenizing and sorting its terms, then appends
// k, so queries that differ only in term order or whitespace share a key.
func buildKey(q string, k int) string {
	terms := tokenizer.Tokenize(q)
	sort.Strings(terms)
	return keyPrefix + strings.Join(terms, "\x1f") + "\x1f" + strconv.Itoa(k)
}

// GetOrCompute returns the cached result for (q, k) if present, otherwise
// calls compute, caches its result on success, and returns it. hit reports
// whether the result came from the cache.
func (c *QueryCache) GetOrCompute(ctx context.Context, q string, k int, compute func() (query.Result, error)) (query.Result, bool, error) {
	if c == nil || c.redis == nil {
		res, err := compute()
		return res, false, err
	}

	key := buildKey(q, k)
	if cached, ok := c.lookup(ctx, key); ok {
		c.recordHit()
		return cached, true, nil
	}
	c.recordMiss()

	v, err, _ := c.group.Do(key, func() (any, error) {
		res, err := compute()
		if err != nil {
			return query.Result{}, err
		}
		c.store(ctx, key, res)
		return res, nil
	})
	if err != nil {
		return query.Result{}, false, err
	}
	return v.(query.Result), false, nil
}

func (c *QueryCache) lookup(ctx context.Context, key string) (query.Result, bool) {
	raw, err := c.redis.Get(ctx, key)
	if err != nil {
		return query.Result{}, false
	}
	var res query.Result
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return query.Result{}, false
	}
	return res, true
}

func (c *QueryCache) store(ctx context.Context, key string, res query.Result) {
	data, err := json.Marshal(res)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl)
}

func (c *QueryCache) recordHit() {
	atomic.AddInt64(&c.hits, 1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) recordMiss() {
	atomic.AddInt64(&c.misses, 1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// Stats returns the cumulative hit and miss counts since the cache was
// created.
func (c *QueryCache) Stats() (hits, misses int64) {
	if c == nil {
		return 0, 0
	}
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Invalidate removes every cached query result. Used by the admin surface.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	if c == nil || c.redis == nil {
		return 0, nil
	}
	return c.redis.FlushByPattern(ctx, keyPrefix+"*")
}
