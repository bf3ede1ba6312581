// Package querycache caches API query results under hierarchical keys such as
// ["voting", "assignments"] and drops whole namespaces on demand.
package querycache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const keySeparator = "/"

// Key is a query path. A key is inside a namespace when the namespace is a prefix of it.
type Key []string

// NewKey builds a key from its segments.
func NewKey(segments ...string) Key {
	return Key(segments)
}

// Append returns a copy of k extended with more segments.
func (k Key) Append(segments ...string) Key {
	out := make(Key, 0, len(k)+len(segments))
	out = append(out, k...)
	return append(out, segments...)
}

func (k Key) String() string {
	return strings.Join(k, keySeparator)
}

// HasPrefix reports whether every segment of prefix matches the start of k.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// ParseKey splits a "voting/myVotes" style namespace into a Key.
func ParseKey(s string) Key {
	if s == "" {
		return nil
	}
	return Key(strings.Split(s, keySeparator))
}

type entry struct {
	key      Key
	value    any
	storedAt time.Time
}

// Cache is safe for concurrent use. Concurrent loads of the same key share one fetch.
type Cache struct {
	clock clockwork.Clock
	ttl   time.Duration

	mu      sync.RWMutex
	entries map[string]entry
	epoch   uint64

	group singleflight.Group
}

// Option customises a Cache.
type Option func(*Cache)

// WithTTL expires entries after ttl. Zero keeps entries until invalidated.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithClock swaps the clock used for expiry.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Cache) {
		c.clock = clock
	}
}

func New(opts ...Option) *Cache {
	c := &Cache{
		clock:   clockwork.NewRealClock(),
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns a cached, unexpired value.
func (c *Cache) Lookup(key Key) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key.String()]
	if !ok || c.expired(e) {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key.
func (c *Cache) Set(key Key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key.String()] = entry{key: key, value: value, storedAt: c.clock.Now()}
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Invalidate drops every entry inside namespace, a "/"-separated key prefix. It
// satisfies the countdown engine's Invalidator.
func (c *Cache) Invalidate(_ context.Context, namespace string) error {
	dropped := c.InvalidateKey(ParseKey(namespace))
	log.Debug().Str("namespace", namespace).Int("dropped", dropped).Msg("query cache invalidated")
	return nil
}

// InvalidateKey drops every entry whose key starts with prefix and returns how many
// were dropped. Loads already in flight are not stored.
func (c *Cache) InvalidateKey(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	dropped := 0
	for k, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			delete(c.entries, k)
			dropped++
		}
	}
	return dropped
}

func (c *Cache) expired(e entry) bool {
	return c.ttl > 0 && c.clock.Since(e.storedAt) >= c.ttl
}

// Get returns the cached value for key or loads it with fetch. Errors are not cached.
// A caller whose ctx ends stops waiting; the shared fetch keeps running for the others.
func Get[T any](ctx context.Context, c *Cache, key Key, fetch func(context.Context) (T, error)) (T, error) {
	var zero T

	if v, ok := c.Lookup(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}

	c.mu.RLock()
	epoch := c.epoch
	c.mu.RUnlock()

	flightKey := fmt.Sprintf("%d|%s", epoch, key.String())
	ch := c.group.DoChan(flightKey, func() (any, error) {
		v, err := fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.epoch == epoch {
			c.entries[key.String()] = entry{key: key, value: v, storedAt: c.clock.Now()}
		}
		c.mu.Unlock()
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		typed, ok := res.Val.(T)
		if !ok {
			return zero, fmt.Errorf("query cache: %s holds %T", key, res.Val)
		}
		return typed, nil
	}
}
