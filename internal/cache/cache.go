// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package cache memoizes expensive values in process memory.
// The renderer keeps its scaled and rotated sprites here.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL applies when Options.TTL is not positive.
const DefaultTTL = time.Minute

// Options configures a Memo.
type Options struct {
	// TTL is how long an entry lives after its last use.
	TTL time.Duration
	// CleanupInterval determines how often expired entries are removed.
	// Zero disables the janitor.
	CleanupInterval time.Duration
	// MaxEntries bounds the memo; the least recently used entry is evicted
	// when a new key would exceed it. Zero means unbounded.
	MaxEntries int
}

// Stats holds memo counters.
type Stats struct {
	Hits      int64 // lookups served from memory
	Misses    int64 // lookups that found nothing live
	Loads     int64 // loader invocations
	Evictions int64 // entries dropped by expiry or capacity
	Size      int
}

type entry[V any] struct {
	value   V
	expires time.Time
}

// Memo is a TTL and size bounded map safe for concurrent use. Expiry slides
// on every hit, so entries in steady use stay resident. A nil *Memo is valid
// and caches nothing.
type Memo[V any] struct {
	mu      sync.Mutex
	entries map[string]*entry[V]
	ttl     time.Duration
	max     int

	loads singleflight.Group

	hits      atomic.Int64
	misses    atomic.Int64
	loaded    atomic.Int64
	evictions atomic.Int64

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New returns an empty memo. With a cleanup interval it starts a janitor
// goroutine that Close stops.
func New[V any](opts Options) *Memo[V] {
	m := &Memo[V]{
		entries: make(map[string]*entry[V]),
		ttl:     opts.TTL,
		max:     opts.MaxEntries,
	}
	if m.ttl <= 0 {
		m.ttl = DefaultTTL
	}
	if opts.CleanupInterval > 0 {
		m.stop = make(chan struct{})
		m.done = make(chan struct{})
		go m.janitor(opts.CleanupInterval)
	}
	return m
}

// Get returns the live value for key and refreshes its expiry.
func (m *Memo[V]) Get(key string) (V, bool) {
	var zero V
	if m == nil {
		return zero, false
	}
	now := time.Now()

	m.mu.Lock()
	e, ok := m.entries[key]
	if ok && now.After(e.expires) {
		delete(m.entries, key)
		m.evictions.Add(1)
		ok = false
	}
	if ok {
		e.expires = now.Add(m.ttl)
	}
	m.mu.Unlock()

	if !ok {
		m.misses.Add(1)
		return zero, false
	}
	m.hits.Add(1)
	return e.value, true
}

// Set stores v under key.
func (m *Memo[V]) Set(key string, v V) {
	if m == nil {
		return
	}
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[key]; !exists && m.max > 0 && len(m.entries) >= m.max {
		m.evictLocked(now)
	}
	m.entries[key] = &entry[V]{value: v, expires: now.Add(m.ttl)}
}

// GetOrLoad returns the cached value for key, calling load on a miss.
// Concurrent misses for one key share a single load.
func (m *Memo[V]) GetOrLoad(key string, load func() V) V {
	if m == nil {
		return load()
	}
	if v, ok := m.Get(key); ok {
		return v
	}
	v, _, _ := m.loads.Do(key, func() (any, error) {
		if v, ok := m.Get(key); ok {
			return v, nil
		}
		m.loaded.Add(1)
		v := load()
		m.Set(key, v)
		return v, nil
	})
	return v.(V)
}

// evictLocked drops the first expired entry it finds, otherwise the least
// recently used one.
func (m *Memo[V]) evictLocked(now time.Time) {
	var victim string
	var oldest time.Time
	for k, e := range m.entries {
		if now.After(e.expires) {
			victim = k
			break
		}
		if victim == "" || e.expires.Before(oldest) {
			victim, oldest = k, e.expires
		}
	}
	if victim != "" {
		delete(m.entries, victim)
		m.evictions.Add(1)
	}
}

// Purge drops every entry.
func (m *Memo[V]) Purge() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*entry[V])
}

// Stats reports counters and current size.
func (m *Memo[V]) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	m.mu.Lock()
	size := len(m.entries)
	m.mu.Unlock()

	return Stats{
		Hits:      m.hits.Load(),
		Misses:    m.misses.Load(),
		Loads:     m.loaded.Load(),
		Evictions: m.evictions.Load(),
		Size:      size,
	}
}

// Close stops the janitor and waits for it to exit. Safe to call twice.
func (m *Memo[V]) Close() {
	if m == nil || m.stop == nil {
		return
	}
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
}

func (m *Memo[V]) janitor(interval time.Duration) {
	defer close(m.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep(time.Now())
		case <-m.stop:
			return
		}
	}
}

func (m *Memo[V]) sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k, e := range m.entries {
		if now.After(e.expires) {
			delete(m.entries, k)
			n++
		}
	}
	m.evictions.Add(int64(n))
	return n
}
