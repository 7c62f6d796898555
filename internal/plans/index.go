package plans

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/festivalops/planstore/internal/core"
	"github.com/festivalops/planstore/internal/metrics"
	"github.com/festivalops/planstore/internal/read"
)

const (
	// indexKey caches the sorted list of plan keys so that listing does not
	// hit the store's key-scan path on every request.
	indexKey = "keys:all"

	planKeyPrefix    = "plans/"
	detailsKeyPrefix = "details/"
)

// PlanKey returns the storage key for a plan document.
func PlanKey(id string) string {
	return planKeyPrefix + id
}

// DetailsKey returns the storage key for a detail document.
func DetailsKey(id string) string {
	return detailsKeyPrefix + id
}

// Index maintains the cached list of plan keys. Reads regenerate the cache on
// miss; concurrent regenerations are coalesced so only one scan runs.
type Index struct {
	store     core.KVStore
	preventer *read.StampedePreventer
}

// NewIndex creates an index over store.
func NewIndex(store core.KVStore) *Index {
	return &Index{
		store:     store,
		preventer: read.NewStampedePreventer(),
	}
}

// Keys returns the sorted plan keys, rebuilding the cache on miss.
func (ix *Index) Keys(ctx context.Context) ([]string, error) {
	exists, err := ix.store.Exists(ctx, indexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check key index: %w", err)
	}
	if !exists {
		return ix.Rebuild(ctx)
	}

	raw, err := ix.store.Get(ctx, indexKey)
	if err != nil {
		// The index expired between the existence check and the read.
		return ix.Rebuild(ctx)
	}

	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, fmt.Errorf("corrupt key index: %w", err)
	}
	return keys, nil
}

// Rebuild scans the store for plan keys, writes the cache, and returns the
// fresh key list. Concurrent calls share a single scan.
func (ix *Index) Rebuild(ctx context.Context) ([]string, error) {
	keys, err := ix.preventer.Do(ctx, indexKey, func() ([]string, error) {
		return ix.rebuild(ctx)
	})
	if err != nil {
		metrics.IndexRebuilds.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.IndexRebuilds.WithLabelValues("success").Inc()
	return keys, nil
}

func (ix *Index) rebuild(ctx context.Context) ([]string, error) {
	lister, ok := ix.store.(core.KeyLister)
	if !ok {
		return nil, fmt.Errorf("store does not support key listing")
	}

	keys, err := lister.ListKeys(ctx, planKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list plan keys: %w", err)
	}
	sort.Strings(keys)

	data, err := json.Marshal(keys)
	if err != nil {
		return nil, fmt.Errorf("failed to encode key index: %w", err)
	}
	if err := ix.store.Set(ctx, indexKey, data, 0); err != nil {
		return nil, fmt.Errorf("failed to write key index: %w", err)
	}
	return keys, nil
}
