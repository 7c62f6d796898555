// Package read implements the read-side helpers of planstore: the bulk
// fetcher that normalizes a store's bulk-read result into a plain mapping,
// and the stampede preventer that coalesces concurrent regeneration work.
package read

import (
	"context"
	"errors"
	"fmt"

	"github.com/festivalops/planstore/internal/core"
)

var (
	// ErrInvalidStore is returned when the store handle is missing or does
	// not expose the bulk-read capability required by the requested mode.
	ErrInvalidStore = errors.New("invalid store handle")

	// ErrInvalidKeyList is returned when the key list is not a proper
	// sequence of non-empty keys.
	ErrInvalidKeyList = errors.New("invalid key list")

	// ErrInvalidFormat is returned when the decode format is not one of the
	// supported values.
	ErrInvalidFormat = errors.New("invalid decode format")
)

// FetchOption configures a single BulkFetch call.
type FetchOption func(*fetchOptions)

type fetchOptions struct {
	format       core.DecodeFormat
	withMetadata bool
}

// WithFormat sets the decode hint passed through to the store. Defaults to
// core.FormatText.
func WithFormat(format core.DecodeFormat) FetchOption {
	return func(o *fetchOptions) {
		o.format = format
	}
}

// WithMetadata selects the combined value+metadata read mode. The store must
// support core.BulkMetadataReader.
func WithMetadata() FetchOption {
	return func(o *fetchOptions) {
		o.withMetadata = true
	}
}

// BulkFetch retrieves the values for keys from store in one logical call and
// returns a fresh mapping from each requested key to its entry (nil entry for
// keys the store has no value for).
//
// The store is validated against the capability the requested mode needs
// before any store call is issued. Keys must be non-nil and contain no empty
// strings. An empty key slice yields an empty result without touching the
// store. Failures raised by the store itself are propagated unchanged; no
// retry, recovery, or logging happens here.
func BulkFetch(ctx context.Context, store core.KVStore, keys []string, opts ...FetchOption) (core.BulkResult, error) {
	options := fetchOptions{format: core.FormatText}
	for _, opt := range opts {
		opt(&options)
	}

	if store == nil {
		return nil, fmt.Errorf("%w: store is nil", ErrInvalidStore)
	}

	var (
		reader     core.BulkReader
		metaReader core.BulkMetadataReader
		ok         bool
	)
	if options.withMetadata {
		metaReader, ok = store.(core.BulkMetadataReader)
		if !ok {
			return nil, fmt.Errorf("%w: store does not support bulk reads with metadata", ErrInvalidStore)
		}
	} else {
		reader, ok = store.(core.BulkReader)
		if !ok {
			return nil, fmt.Errorf("%w: store does not support bulk reads", ErrInvalidStore)
		}
	}

	if keys == nil {
		return nil, fmt.Errorf("%w: keys must be a non-nil slice", ErrInvalidKeyList)
	}
	for i, key := range keys {
		if key == "" {
			return nil, fmt.Errorf("%w: empty key at index %d", ErrInvalidKeyList, i)
		}
	}

	if !options.format.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, options.format)
	}

	if len(keys) == 0 {
		return core.BulkResult{}, nil
	}

	getOpts := core.BulkGetOptions{Format: options.format}

	var (
		native core.BulkResult
		err    error
	)
	if options.withMetadata {
		native, err = metaReader.BulkGetValuesWithMetadata(ctx, keys, getOpts)
	} else {
		native, err = reader.BulkGetValues(ctx, keys, getOpts)
	}
	if err != nil {
		return nil, err
	}

	// Reshape into a fresh mapping owned by the caller; every pair the store
	// returned is preserved verbatim.
	result := make(core.BulkResult, len(native))
	for key, entry := range native {
		result[key] = entry
	}
	return result, nil
}
