package kvstore

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/festivalops/planstore/internal/core"
	"github.com/festivalops/planstore/internal/registry"
)

// BadgerKVStore implements the core.KVStore interface using embedded BadgerDB.
// Useful for single-node deployments that need persistence without an external
// store.
type BadgerKVStore struct {
	db     *badger.DB
	closed bool
}

// NewBadgerKVStore creates a new Badger-backed KV store. With inMemory set the
// store keeps everything in RAM and path is ignored.
func NewBadgerKVStore(path string, inMemory bool) (*BadgerKVStore, error) {
	if !inMemory && path == "" {
		return nil, fmt.Errorf("path is required")
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable Badger's default logger
	if inMemory {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &BadgerKVStore{db: db}, nil
}

// Get retrieves a value by key from the store.
func (b *BadgerKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if b.closed {
		return nil, fmt.Errorf("KV store is closed")
	}

	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return value, nil
}

// Set stores a key-value pair with an optional TTL.
func (b *BadgerKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if b.closed {
		return fmt.Errorf("KV store is closed")
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Delete removes a key from the store.
func (b *BadgerKVStore) Delete(ctx context.Context, key string) error {
	if b.closed {
		return fmt.Errorf("KV store is closed")
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Exists checks if a key exists in the store.
func (b *BadgerKVStore) Exists(ctx context.Context, key string) (bool, error) {
	if b.closed {
		return false, fmt.Errorf("KV store is closed")
	}

	exists := false
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to check existence of key %s: %w", key, err)
	}
	return exists, nil
}

// BatchSet stores multiple key-value pairs with a shared TTL in one transaction.
func (b *BadgerKVStore) BatchSet(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	if b.closed {
		return fmt.Errorf("KV store is closed")
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	for key, value := range items {
		entry := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		if err := wb.SetEntry(entry); err != nil {
			return fmt.Errorf("failed to batch set key %s: %w", key, err)
		}
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to batch set keys: %w", err)
	}
	return nil
}

// BulkGetValues retrieves the values for all requested keys within a single
// read transaction. Keys with no stored value map to a nil entry.
func (b *BadgerKVStore) BulkGetValues(ctx context.Context, keys []string, opts core.BulkGetOptions) (core.BulkResult, error) {
	return b.bulkGet(keys, opts, false)
}

// BulkGetValuesWithMetadata behaves like BulkGetValues and additionally
// returns per-entry metadata (version, expires_at).
func (b *BadgerKVStore) BulkGetValuesWithMetadata(ctx context.Context, keys []string, opts core.BulkGetOptions) (core.BulkResult, error) {
	return b.bulkGet(keys, opts, true)
}

func (b *BadgerKVStore) bulkGet(keys []string, opts core.BulkGetOptions, withMetadata bool) (core.BulkResult, error) {
	if b.closed {
		return nil, fmt.Errorf("KV store is closed")
	}

	result := make(core.BulkResult, len(keys))
	err := b.db.View(func(txn *badger.Txn) error {
		for _, key := range keys {
			item, err := txn.Get([]byte(key))
			if err == badger.ErrKeyNotFound {
				result[key] = nil
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to get key %s: %w", key, err)
			}

			raw, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("failed to read key %s: %w", key, err)
			}
			value, err := core.DecodeValue(opts.Format, raw)
			if err != nil {
				return fmt.Errorf("failed to decode key %s: %w", key, err)
			}

			entry := &core.BulkEntry{Value: value}
			if withMetadata {
				metadata := map[string]any{
					"version": item.Version(),
				}
				if expiresAt := item.ExpiresAt(); expiresAt > 0 {
					metadata["expires_at"] = time.Unix(int64(expiresAt), 0).UTC().Format(time.RFC3339)
				}
				entry.Metadata = metadata
			}
			result[key] = entry
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListKeys returns all keys starting with prefix using a prefix iterator.
func (b *BadgerKVStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	if b.closed {
		return nil, fmt.Errorf("KV store is closed")
	}

	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list keys with prefix %s: %w", prefix, err)
	}
	return keys, nil
}

// Close closes the database.
func (b *BadgerKVStore) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

// BadgerKVStoreFactory implements the KVStoreFactory interface for Badger.
type BadgerKVStoreFactory struct{}

// Type returns the type identifier for this factory.
func (f *BadgerKVStoreFactory) Type() string {
	return "badger"
}

// Validate validates the Badger-specific configuration.
func (f *BadgerKVStoreFactory) Validate(config KVStoreConfig) error {
	if config.Type != "badger" {
		return fmt.Errorf("invalid type for Badger factory: %s", config.Type)
	}
	if !config.InMemory && config.Path == "" {
		return fmt.Errorf("path is required for Badger")
	}
	return nil
}

// Create creates a new Badger KV store instance based on the provided configuration.
func (f *BadgerKVStoreFactory) Create(config KVStoreConfig) (core.KVStore, error) {
	badgerStore, err := NewBadgerKVStore(config.Path, config.InMemory)
	if err != nil {
		return nil, fmt.Errorf("failed to create Badger KV store: %w", err)
	}
	return badgerStore, nil
}

// BadgerConfigValidator implements the ConfigValidator interface for Badger.
type BadgerConfigValidator struct{}

// Type returns the type identifier for this validator.
func (v *BadgerConfigValidator) Type() string {
	return "badger"
}

// Validate validates the Badger-specific configuration in the internal config.
func (v *BadgerConfigValidator) Validate(config *registry.InternalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if config.KVStore.Type != "badger" {
		return fmt.Errorf("invalid type for Badger validator: %s", config.KVStore.Type)
	}
	badgerConfig := config.KVStore.BadgerConfig
	if !badgerConfig.InMemory && badgerConfig.Path == "" {
		return fmt.Errorf("path is required for Badger")
	}
	return nil
}

func init() {
	RegisterFactory(&BadgerKVStoreFactory{})
	registry.RegisterValidator(&BadgerConfigValidator{})
}
