package kvstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/festivalops/planstore/internal/core"
	"github.com/festivalops/planstore/internal/registry"
)

// MemoryKVStore implements the core.KVStore interface with an in-process map.
// It supports every optional capability (bulk reads, metadata, key listing)
// and is the reference backend for tests and local development.
type MemoryKVStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	closed  bool
}

type memoryEntry struct {
	value     []byte
	storedAt  time.Time
	expiresAt time.Time // zero means no expiry
	revision  int64
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewMemoryKVStore creates a new in-memory KV store.
func NewMemoryKVStore() *MemoryKVStore {
	return &MemoryKVStore{
		entries: make(map[string]*memoryEntry),
	}
}

// Get retrieves a value by key from the store.
func (m *MemoryKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("KV store is closed")
	}

	entry, ok := m.entries[key]
	if !ok || entry.expired(time.Now()) {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	return append([]byte(nil), entry.value...), nil
}

// Set stores a key-value pair with an optional TTL.
func (m *MemoryKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("KV store is closed")
	}

	m.setLocked(key, value, ttl)
	return nil
}

func (m *MemoryKVStore) setLocked(key string, value []byte, ttl time.Duration) {
	now := time.Now()
	var revision int64 = 1
	if prev, ok := m.entries[key]; ok && !prev.expired(now) {
		revision = prev.revision + 1
	}

	entry := &memoryEntry{
		value:    append([]byte(nil), value...),
		storedAt: now,
		revision: revision,
	}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	m.entries[key] = entry
}

// Delete removes a key from the store.
func (m *MemoryKVStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("KV store is closed")
	}

	delete(m.entries, key)
	return nil
}

// Exists checks if a key exists in the store.
func (m *MemoryKVStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, fmt.Errorf("KV store is closed")
	}

	entry, ok := m.entries[key]
	return ok && !entry.expired(time.Now()), nil
}

// BatchSet stores multiple key-value pairs with a shared TTL.
func (m *MemoryKVStore) BatchSet(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("KV store is closed")
	}

	for key, value := range items {
		m.setLocked(key, value, ttl)
	}
	return nil
}

// BulkGetValues retrieves the values for all requested keys in one call.
// Keys with no stored value map to a nil entry.
func (m *MemoryKVStore) BulkGetValues(ctx context.Context, keys []string, opts core.BulkGetOptions) (core.BulkResult, error) {
	return m.bulkGet(keys, opts, false)
}

// BulkGetValuesWithMetadata behaves like BulkGetValues and additionally
// returns per-entry metadata (revision, stored_at, expires_at).
func (m *MemoryKVStore) BulkGetValuesWithMetadata(ctx context.Context, keys []string, opts core.BulkGetOptions) (core.BulkResult, error) {
	return m.bulkGet(keys, opts, true)
}

func (m *MemoryKVStore) bulkGet(keys []string, opts core.BulkGetOptions, withMetadata bool) (core.BulkResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("KV store is closed")
	}

	now := time.Now()
	result := make(core.BulkResult, len(keys))
	for _, key := range keys {
		entry, ok := m.entries[key]
		if !ok || entry.expired(now) {
			result[key] = nil
			continue
		}

		value, err := core.DecodeValue(opts.Format, entry.value)
		if err != nil {
			return nil, fmt.Errorf("failed to decode key %s: %w", key, err)
		}

		bulkEntry := &core.BulkEntry{Value: value}
		if withMetadata {
			metadata := map[string]any{
				"revision":  entry.revision,
				"stored_at": entry.storedAt.UTC().Format(time.RFC3339Nano),
			}
			if !entry.expiresAt.IsZero() {
				metadata["expires_at"] = entry.expiresAt.UTC().Format(time.RFC3339Nano)
			}
			bulkEntry.Metadata = metadata
		}
		result[key] = bulkEntry
	}
	return result, nil
}

// ListKeys returns all live keys starting with prefix, sorted.
func (m *MemoryKVStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("KV store is closed")
	}

	now := time.Now()
	keys := make([]string, 0, len(m.entries))
	for key, entry := range m.entries {
		if strings.HasPrefix(key, prefix) && !entry.expired(now) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close marks the store as closed.
func (m *MemoryKVStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.entries = nil
	return nil
}

// MemoryKVStoreFactory implements the KVStoreFactory interface for the
// in-memory backend.
type MemoryKVStoreFactory struct{}

// Type returns the type identifier for this factory.
func (f *MemoryKVStoreFactory) Type() string {
	return "memory"
}

// Validate validates the memory-specific configuration.
func (f *MemoryKVStoreFactory) Validate(config KVStoreConfig) error {
	if config.Type != "memory" {
		return fmt.Errorf("invalid type for memory factory: %s", config.Type)
	}
	return nil
}

// Create creates a new in-memory KV store instance.
func (f *MemoryKVStoreFactory) Create(config KVStoreConfig) (core.KVStore, error) {
	return NewMemoryKVStore(), nil
}

// MemoryConfigValidator implements the ConfigValidator interface for the
// in-memory backend. The backend needs no configuration.
type MemoryConfigValidator struct{}

// Type returns the type identifier for this validator.
func (v *MemoryConfigValidator) Type() string {
	return "memory"
}

// Validate validates the memory-specific configuration in the internal config.
func (v *MemoryConfigValidator) Validate(config *registry.InternalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if config.KVStore.Type != "memory" {
		return fmt.Errorf("invalid type for memory validator: %s", config.KVStore.Type)
	}
	return nil
}

func init() {
	RegisterFactory(&MemoryKVStoreFactory{})
	registry.RegisterValidator(&MemoryConfigValidator{})
}
