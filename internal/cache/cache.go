// Package cache provides the memoization layers used by retrieval: a bounded
// in-process LRU and a Redis-backed cache shared between replicas.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache is a best-effort key/value memo. Implementations never fail loudly:
// a backend error is a miss.
type Cache[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	Set(ctx context.Context, key string, value V)
}

// LRU is a size-bounded in-process cache. A zero ttl keeps entries until
// they are evicted by size.
type LRU[V any] struct {
	c *expirable.LRU[string, V]
}

func NewLRU[V any](size int, ttl time.Duration) *LRU[V] {
	if size <= 0 {
		size = 1024
	}
	return &LRU[V]{c: expirable.NewLRU[string, V](size, nil, ttl)}
}

func (l *LRU[V]) Get(_ context.Context, key string) (V, bool) {
	return l.c.Get(key)
}

func (l *LRU[V]) Set(_ context.Context, key string, value V) {
	l.c.Add(key, value)
}

func (l *LRU[V]) Len() int {
	return l.c.Len()
}
