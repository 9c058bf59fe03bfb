// Package querycache caches query results by tuple key, with bounded
// staleness, prefix invalidation and a bounded retry policy for fetching.
//
// Mutations invalidate by key prefix: any access-token mutation invalidates
// ["access-tokens"], dropping all cached pages and detail lookups under it in
// one step.
package querycache

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Staleness bounds. Most queries are good for a short while, the
// notifications snapshot much longer.
const (
	StaleDefault       = 10 * time.Second
	StaleNotifications = 30 * time.Minute
)

// Key is a query cache key: a resource name followed by arguments, e.g.
// ["access-tokens"] or ["messages", "3", "INBOX"].
type Key []string

// encode returns an unambiguous string form of the key.
func (k Key) encode() string {
	var sb strings.Builder
	for i, s := range k {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.Quote(s))
	}
	return sb.String()
}

// HasPrefix returns whether k starts with the elements of prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, s := range prefix {
		if k[i] != s {
			return false
		}
	}
	return true
}

type entry struct {
	key     Key
	value   any
	fetched time.Time
	stale   time.Duration
}

// Cache is a tuple-keyed query cache. The zero value is not usable, use New.
type Cache struct {
	mutex   sync.Mutex
	entries map[string]entry
	now     func() time.Time // Replaced in tests.
}

func New() *Cache {
	return &Cache{entries: map[string]entry{}, now: time.Now}
}

// Get returns the cached value for key if present and not stale.
func (c *Cache) Get(key Key) (any, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	e, ok := c.entries[key.encode()]
	if !ok || c.now().Sub(e.fetched) > e.stale {
		return nil, false
	}
	return e.value, true
}

// Set stores a value for key with the given staleness bound.
func (c *Cache) Set(key Key, value any, stale time.Duration) {
	if stale <= 0 {
		stale = StaleDefault
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries[key.encode()] = entry{key: key, value: value, fetched: c.now(), stale: stale}
}

// Invalidate drops all entries whose key starts with prefix. It is atomic:
// concurrent readers see either all matching entries or none.
func (c *Cache) Invalidate(prefix Key) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for ks, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			delete(c.entries, ks)
		}
	}
}

// Flush drops all entries, e.g. after sign-out.
func (c *Cache) Flush() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries = map[string]entry{}
}

// Policy is the fetch behavior of the console: failed queries are retried in
// production, not in development.
type Policy struct {
	Development bool
}

// Attempts returns how often a failed query fetch may be tried in total.
func (p Policy) Attempts() int {
	if p.Development {
		return 1
	}
	return 3
}

// RefetchOnFocus returns whether cached queries are refetched when the
// console regains focus.
func (p Policy) RefetchOnFocus() bool {
	return !p.Development
}

// Fetch returns the cached value for key, or fetches it with fn and caches
// the result. A failed fetch is retried per policy, except when noRetry
// reports the error as non-retryable (e.g. an authentication failure).
func Fetch[T any](ctx context.Context, c *Cache, policy Policy, key Key, stale time.Duration, noRetry func(error) bool, fn func(context.Context) (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		return v.(T), nil
	}
	var v T
	var err error
	for i := 0; i < policy.Attempts(); i++ {
		if err = ctx.Err(); err != nil {
			break
		}
		v, err = fn(ctx)
		if err == nil {
			c.Set(key, v, stale)
			return v, nil
		}
		if noRetry != nil && noRetry(err) {
			break
		}
	}
	return v, err
}
