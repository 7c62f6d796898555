package core

import (
	"context"
	"time"
)

// KVStore defines the interface for key-value store operations.
// Implementations should support Redis/ElastiCache, DynamoDB, or similar stores.
type KVStore interface {
	// Get retrieves a value by key from the store.
	// Returns an error if the key does not exist or if the operation fails.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a key-value pair with an optional TTL.
	// If ttl is 0, the key will not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key from the store.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists in the store.
	Exists(ctx context.Context, key string) (bool, error)

	// BatchSet stores multiple key-value pairs with a shared TTL.
	// This is more efficient than multiple Set calls for bulk operations.
	BatchSet(ctx context.Context, items map[string][]byte, ttl time.Duration) error

	// Close closes the connection to the KV store and releases resources.
	Close() error
}

// BulkReader is an optional capability for stores that support reading many
// keys in a single round trip. Callers discover it by type assertion:
//
//	if br, ok := store.(core.BulkReader); ok { ... }
type BulkReader interface {
	// BulkGetValues retrieves the values for all requested keys in one
	// logical call. The result contains an entry for every requested key;
	// keys the store has no value for map to a nil entry.
	BulkGetValues(ctx context.Context, keys []string, opts BulkGetOptions) (BulkResult, error)
}

// BulkMetadataReader is an optional capability for stores that can return
// store-defined metadata alongside each value in a bulk read.
type BulkMetadataReader interface {
	// BulkGetValuesWithMetadata behaves like BulkGetValues but additionally
	// populates each entry's Metadata field.
	BulkGetValuesWithMetadata(ctx context.Context, keys []string, opts BulkGetOptions) (BulkResult, error)
}

// KeyLister is an optional capability for stores that can enumerate keys by
// prefix. Used by the plan key index to rebuild its cached key list.
type KeyLister interface {
	// ListKeys returns all keys starting with prefix, in no particular order.
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}
