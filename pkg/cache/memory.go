package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryEntry struct {
	data     []byte
	expireAt time.Time
	touched  time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return now.After(e.expireAt)
}

// MemoryCache is the in-process backend used when no Redis is
// configured. Entries are stored as JSON so a later switch to the
// Redis backend does not change Get semantics.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	max     int
	sweeper *time.Ticker
	done    chan struct{}
}

// NewMemoryCache creates an in-process cache with LRU eviction.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxEntries:    1000,
		SweepInterval: time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		entries: make(map[string]*memoryEntry),
		max:     cfg.MaxEntries,
		sweeper: time.NewTicker(cfg.SweepInterval),
		done:    make(chan struct{}),
	}
	go mc.sweep()
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	now := time.Now()
	if ttl <= 0 {
		ttl = time.Hour
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()
	if _, ok := mc.entries[key]; !ok && len(mc.entries) >= mc.max {
		mc.evictOldest()
	}
	mc.entries[key] = &memoryEntry{data: data, expireAt: now.Add(ttl), touched: now}
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	now := time.Now()

	mc.mu.Lock()
	e, ok := mc.entries[key]
	if !ok || e.expired(now) {
		if ok {
			delete(mc.entries, key)
		}
		mc.mu.Unlock()
		return ErrCacheMiss
	}
	e.touched = now
	data := e.data
	mc.mu.Unlock()

	return json.Unmarshal(data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, key := range keys {
		delete(mc.entries, key)
	}
	return nil
}

// evictOldest drops the least recently touched entry. Called with the
// lock held.
func (mc *MemoryCache) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for key, e := range mc.entries {
		if oldestKey == "" || e.touched.Before(oldest) {
			oldestKey = key
			oldest = e.touched
		}
	}
	if oldestKey != "" {
		delete(mc.entries, oldestKey)
	}
}

func (mc *MemoryCache) sweep() {
	for {
		select {
		case <-mc.done:
			return
		case <-mc.sweeper.C:
			now := time.Now()
			mc.mu.Lock()
			for key, e := range mc.entries {
				if e.expired(now) {
					delete(mc.entries, key)
				}
			}
			mc.mu.Unlock()
		}
	}
}

// Close stops the background sweeper.
func (mc *MemoryCache) Close() error {
	mc.sweeper.Stop()
	close(mc.done)
	return nil
}
