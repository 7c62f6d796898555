package core

import (
	"encoding/json"
	"fmt"
)

// DecodeFormat tells the store how to interpret stored bytes before returning
// them from a bulk read. Decoding happens inside the store implementation; the
// caller receives the decoded value and performs no interpretation of its own.
type DecodeFormat string

const (
	// FormatText returns values as strings.
	FormatText DecodeFormat = "text"
	// FormatJSON returns values parsed with encoding/json.
	FormatJSON DecodeFormat = "json"
	// FormatBinary returns values as raw byte slices.
	FormatBinary DecodeFormat = "binary"
)

// Valid reports whether f is one of the supported decode formats.
func (f DecodeFormat) Valid() bool {
	switch f {
	case FormatText, FormatJSON, FormatBinary:
		return true
	}
	return false
}

// BulkGetOptions carries per-call options for bulk read operations.
type BulkGetOptions struct {
	// Format is the decode hint applied to every returned value.
	Format DecodeFormat
}

// BulkEntry is a single fetched value, optionally paired with store-defined
// metadata. Metadata is opaque to everything outside the store that produced it.
type BulkEntry struct {
	Value    any
	Metadata map[string]any
}

// BulkResult maps each requested key to its fetched entry. A nil entry marks a
// key the store has no value for.
type BulkResult map[string]*BulkEntry

// DecodeValue converts raw stored bytes according to the decode format.
// Store implementations call this so that all backends decode identically.
func DecodeValue(format DecodeFormat, raw []byte) (any, error) {
	switch format {
	case FormatText:
		return string(raw), nil
	case FormatJSON:
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("failed to decode value as JSON: %w", err)
		}
		return v, nil
	case FormatBinary:
		return append([]byte(nil), raw...), nil
	default:
		return nil, fmt.Errorf("unsupported decode format: %q", format)
	}
}
