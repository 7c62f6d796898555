// Package planstore is the public API for the plan catalogue store. It wraps
// the internal client with stable types so callers never import internal
// packages.
package planstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/festivalops/planstore/internal/client"
	"github.com/festivalops/planstore/internal/core"
	"github.com/festivalops/planstore/internal/plans"
)

// Format selects how bulk-fetched values are decoded.
type Format string

const (
	// FormatText decodes values as strings.
	FormatText Format = "text"

	// FormatJSON decodes values as parsed JSON documents.
	FormatJSON Format = "json"

	// FormatBinary returns values as raw bytes.
	FormatBinary Format = "binary"
)

// Entry is one fetched value with optional store metadata.
type Entry struct {
	Value    any            `json:"value"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Result maps each requested key to its entry. A nil entry means the key was
// absent.
type Result map[string]*Entry

var (
	// ErrNotFound is returned when no plan or detail document exists for the
	// given id.
	ErrNotFound = plans.ErrNotFound

	// ErrConflict is returned when a create targets an id that already has a
	// document.
	ErrConflict = plans.ErrConflict
)

// ListFilter narrows ListPlans. Nil pointer fields mean "don't care".
type ListFilter struct {
	// Types keeps only plans whose type is in the list.
	Types []string

	// Recommended keeps only plans matching the recommended flag.
	Recommended *bool

	// ChildFriendly keeps only plans matching the child-friendly flag.
	ChildFriendly *bool

	// LabTour keeps only labo plans matching the lab-tour flag; plans of other
	// types pass unaffected.
	LabTour *bool
}

// Client is the main interface for interacting with the plan store.
//
// Typical usage:
//
//	client, _ := planstore.NewClient(config)
//	defer client.Close()
//
//	client.CreatePlan(ctx, "c-101", plan)
//	result, _ := client.BulkGet(ctx, []string{"plans/c-101"}, planstore.FormatJSON)
type Client interface {
	// BulkGet fetches the values for keys in one round trip. Absent keys map
	// to nil entries.
	BulkGet(ctx context.Context, keys []string, format Format) (Result, error)

	// BulkGetWithMetadata fetches values along with per-key store metadata.
	BulkGetWithMetadata(ctx context.Context, keys []string, format Format) (Result, error)

	// CreatePlan stores a new plan document under id. Returns ErrConflict if
	// a plan with the id already exists.
	CreatePlan(ctx context.Context, id string, plan map[string]any) error

	// GetPlan retrieves a plan document by id.
	GetPlan(ctx context.Context, id string) (map[string]any, error)

	// PatchPlan deep-merges a JSON patch into the stored plan. Objects merge
	// recursively; arrays and scalars are replaced.
	PatchPlan(ctx context.Context, id string, patch map[string]any) error

	// DeletePlan removes a plan by id.
	DeletePlan(ctx context.Context, id string) error

	// ListPlans returns all plans passing the filter, sorted by id.
	ListPlans(ctx context.Context, filter ListFilter) ([]map[string]any, error)

	// Close releases the store connection. The client cannot be used after
	// Close.
	Close() error
}

// configProvider implements client.ConfigProvider to provide config as YAML
// without import cycles.
type configProvider struct {
	config *Config
}

func (cp *configProvider) GetYAML() ([]byte, error) {
	return yaml.Marshal(cp.config)
}

// clientWrapper wraps the internal client implementation to provide the
// public Client interface.
type clientWrapper struct {
	mu   sync.RWMutex
	impl *client.ClientImpl
}

// NewClient creates a new plan store client with the provided configuration.
// The client initializes the configured KV store backend. Returns an error if
// initialization fails.
func NewClient(config *Config) (Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	impl, err := client.NewClientImpl(&configProvider{config: config})
	if err != nil {
		return nil, err
	}

	return &clientWrapper{impl: impl}, nil
}

func decodeFormat(format Format) (core.DecodeFormat, error) {
	switch format {
	case FormatText, "":
		return core.FormatText, nil
	case FormatJSON:
		return core.FormatJSON, nil
	case FormatBinary:
		return core.FormatBinary, nil
	default:
		return "", fmt.Errorf("unknown format: %s", format)
	}
}

func toResult(in core.BulkResult) Result {
	out := make(Result, len(in))
	for key, entry := range in {
		if entry == nil {
			out[key] = nil
			continue
		}
		out[key] = &Entry{Value: entry.Value, Metadata: entry.Metadata}
	}
	return out
}

// BulkGet fetches the values for keys in one round trip.
func (cw *clientWrapper) BulkGet(ctx context.Context, keys []string, format Format) (Result, error) {
	df, err := decodeFormat(format)
	if err != nil {
		return nil, err
	}
	result, err := cw.impl.BulkGet(ctx, keys, df)
	if err != nil {
		return nil, err
	}
	return toResult(result), nil
}

// BulkGetWithMetadata fetches values along with per-key store metadata.
func (cw *clientWrapper) BulkGetWithMetadata(ctx context.Context, keys []string, format Format) (Result, error) {
	df, err := decodeFormat(format)
	if err != nil {
		return nil, err
	}
	result, err := cw.impl.BulkGetWithMetadata(ctx, keys, df)
	if err != nil {
		return nil, err
	}
	return toResult(result), nil
}

// CreatePlan stores a new plan document under id.
func (cw *clientWrapper) CreatePlan(ctx context.Context, id string, plan map[string]any) error {
	decoded, err := decodePlan(plan)
	if err != nil {
		return err
	}
	return cw.impl.Plans().Create(ctx, id, decoded)
}

// GetPlan retrieves a plan document by id.
func (cw *clientWrapper) GetPlan(ctx context.Context, id string) (map[string]any, error) {
	plan, err := cw.impl.Plans().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return encodePlan(plan)
}

// PatchPlan deep-merges a JSON patch into the stored plan.
func (cw *clientWrapper) PatchPlan(ctx context.Context, id string, patch map[string]any) error {
	return cw.impl.Plans().Patch(ctx, id, patch)
}

// DeletePlan removes a plan by id.
func (cw *clientWrapper) DeletePlan(ctx context.Context, id string) error {
	return cw.impl.Plans().Delete(ctx, id)
}

// ListPlans returns all plans passing the filter, sorted by id.
func (cw *clientWrapper) ListPlans(ctx context.Context, filter ListFilter) ([]map[string]any, error) {
	result, err := cw.impl.Plans().List(ctx, plans.Filter{
		Types:         filter.Types,
		Recommended:   filter.Recommended,
		ChildFriendly: filter.ChildFriendly,
		LabTour:       filter.LabTour,
	})
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(result))
	for _, plan := range result {
		doc, err := encodePlan(plan)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// Close releases the store connection.
func (cw *clientWrapper) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.impl.Close()
}

func decodePlan(doc map[string]any) (*plans.Plan, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode plan: %w", err)
	}
	var plan plans.Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("invalid plan document: %w", err)
	}
	return &plan, nil
}

func encodePlan(plan *plans.Plan) (map[string]any, error) {
	raw, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("failed to encode plan: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	return doc, nil
}
