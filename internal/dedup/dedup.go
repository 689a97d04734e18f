// Package dedup suppresses repeat deliveries of the same webhook event to the
// same tenant. Three backends share one contract: an in-process bounded LRU
// with per-entry expiry, a SQL table for single-database deployments, and
// Redis for multiple replicas behind one load balancer.
package dedup

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Key identifies one delivery. Events without an id are never deduplicated.
type Key struct {
	EventID string
	Tenant  string
	Kind    string
}

// Store records keys and reports whether a key was already recorded.
// Seen must be safe for concurrent use; for a given key exactly one of any
// number of concurrent callers observes false.
type Store interface {
	Seen(ctx context.Context, k Key) (bool, error)
}

// Memory is a mutex-guarded LRU with a fixed capacity and a per-entry TTL.
// Expired entries are treated as absent; inserting past capacity evicts the
// oldest entry only.
type Memory struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time
	order    *list.List // front = newest
	entries  map[Key]*list.Element
}

type memEntry struct {
	key     Key
	expires time.Time
}

// NewMemory returns an empty Memory store. capacity < 1 is treated as 1.
func NewMemory(capacity int, ttl time.Duration) *Memory {
	if capacity < 1 {
		capacity = 1
	}
	return &Memory{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		order:    list.New(),
		entries:  make(map[Key]*list.Element, capacity),
	}
}

// WithClock overrides the time source. Intended for tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

// Seen implements Store.
func (m *Memory) Seen(_ context.Context, k Key) (bool, error) {
	if k.EventID == "" {
		return false, nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.entries[k]; ok {
		e := el.Value.(*memEntry)
		if now.Before(e.expires) {
			return true, nil
		}
		// expired: forget and re-record below
		m.order.Remove(el)
		delete(m.entries, k)
	}

	for m.order.Len() >= m.capacity {
		oldest := m.order.Back()
		m.order.Remove(oldest)
		delete(m.entries, oldest.Value.(*memEntry).key)
	}
	m.entries[k] = m.order.PushFront(&memEntry{key: k, expires: now.Add(m.ttl)})
	return false, nil
}

// Len returns the number of remembered keys, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}
