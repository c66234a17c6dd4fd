// Package cache is a TTL-based read-through wrapper around a key/value
// store. It is an optimization only: every failure path (unparsable entry,
// storage error) behaves as a miss and is swallowed.
package cache

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// KV is the primitive store the cache wraps.
type KV interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string)
}

// envelope wraps a cached value with its write timestamp so staleness can
// be computed against a caller-supplied TTL.
type envelope struct {
	WrittenAt int64           `json:"writtenAt"`
	Payload   json.RawMessage `json:"payload"`
}

// Cache is the read-side cache. Safe for concurrent use when its KV is.
type Cache struct {
	kv  KV
	now func() time.Time
}

// New creates a cache over the given key/value store.
func New(kv KV) *Cache {
	return &Cache{kv: kv, now: time.Now}
}

// Read returns the cached payload for key, or nil if it is absent,
// unparsable, or older than ttl. A stored value that predates the envelope
// format is returned as-is when it decodes into the target, so deployments
// upgrade transparently.
func (c *Cache) Read(key string, ttl time.Duration, target interface{}) bool {
	raw, ok := c.kv.Get(key)
	if !ok {
		return false
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err == nil && env.WrittenAt > 0 {
		if c.now().Sub(time.UnixMilli(env.WrittenAt)) > ttl {
			return false
		}
		return json.Unmarshal(env.Payload, target) == nil
	}

	// Pre-envelope value: no timestamp to age against, accept if it decodes
	return json.Unmarshal([]byte(raw), target) == nil
}

// Write stores a value best-effort; encoding and storage errors are
// swallowed.
func (c *Cache) Write(key string, value interface{}) {
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	env, err := json.Marshal(envelope{
		WrittenAt: c.now().UnixMilli(),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	_ = c.kv.Set(key, string(env))
}

// Invalidate drops one key.
func (c *Cache) Invalidate(key string) {
	c.kv.Delete(key)
}

// MemoryKV is an in-process KV with an optional capacity cap, mirroring the
// quota behavior of browser-local storage: writes past the cap fail and the
// cache layer swallows the error.
type MemoryKV struct {
	mu       sync.RWMutex
	items    map[string]string
	capacity int
}

// ErrCapacity is returned by Set when the store is full.
var ErrCapacity = errors.New("kv store is full")

// NewMemoryKV creates an in-process KV. capacity <= 0 means unbounded.
func NewMemoryKV(capacity int) *MemoryKV {
	return &MemoryKV{items: make(map[string]string), capacity: capacity}
}

func (m *MemoryKV) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok
}

func (m *MemoryKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[key]; !exists && m.capacity > 0 && len(m.items) >= m.capacity {
		return ErrCapacity
	}
	m.items[key] = value
	return nil
}

func (m *MemoryKV) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
}
