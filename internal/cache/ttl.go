package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Clock returns the current time. Tests inject a fake one.
type Clock func() time.Time

const DefaultMaxEntries = 10000

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// TTL is a size-bounded LRU whose entries expire ttl after they were stored.
// Expiry is evaluated on read; an expired entry is dropped and reported as a miss.
type TTL[V any] struct {
	ttl   time.Duration
	now   Clock
	items *lru.Cache[string, entry[V]]
}

// NewTTL creates a cache holding at most size entries (DefaultMaxEntries when size <= 0).
func NewTTL[V any](size int, ttl time.Duration, now Clock) (*TTL[V], error) {
	if size <= 0 {
		size = DefaultMaxEntries
	}
	if now == nil {
		now = time.Now
	}
	items, err := lru.New[string, entry[V]](size)
	if err != nil {
		return nil, err
	}
	return &TTL[V]{ttl: ttl, now: now, items: items}, nil
}

func (c *TTL[V]) Get(key string) (V, bool) {
	var zero V
	e, ok := c.items.Get(key)
	if !ok {
		return zero, false
	}
	if c.ttl > 0 && c.now().Sub(e.storedAt) > c.ttl {
		c.items.Remove(key)
		return zero, false
	}
	return e.value, true
}

func (c *TTL[V]) Set(key string, value V) {
	c.items.Add(key, entry[V]{value: value, storedAt: c.now()})
}

func (c *TTL[V]) Delete(key string) {
	c.items.Remove(key)
}

func (c *TTL[V]) Len() int { return c.items.Len() }

func (c *TTL[V]) TTL() time.Duration { return c.ttl }
