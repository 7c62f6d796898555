package plans

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/festivalops/planstore/internal/core"
	"github.com/festivalops/planstore/internal/metrics"
	"github.com/festivalops/planstore/internal/read"
)

var (
	// ErrNotFound is returned when no document exists for the given id.
	ErrNotFound = errors.New("plan not found")

	// ErrConflict is returned when a create targets an id that already has a
	// document.
	ErrConflict = errors.New("plan already exists")

	// ErrStore marks failures of the underlying KV store, as opposed to
	// payload validation failures.
	ErrStore = errors.New("store failure")
)

// listChunkSize caps how many documents a single bulk read requests.
const listChunkSize = 100

// Service implements plan and detail operations over a KV store.
type Service struct {
	store core.KVStore
	index *Index
}

// NewService creates a plan service over store.
func NewService(store core.KVStore) *Service {
	return &Service{
		store: store,
		index: NewIndex(store),
	}
}

// Create stores a new plan under id. The id in the document is taken from the
// argument, not the payload.
func (s *Service) Create(ctx context.Context, id string, plan *Plan) error {
	plan.ID = id
	if err := plan.Validate(); err != nil {
		metrics.PlanOperations.WithLabelValues("create", "invalid").Inc()
		return err
	}

	exists, err := s.store.Exists(ctx, PlanKey(id))
	if err != nil {
		metrics.PlanOperations.WithLabelValues("create", "error").Inc()
		return fmt.Errorf("%w: failed to check plan %s: %v", ErrStore, id, err)
	}
	if exists {
		metrics.PlanOperations.WithLabelValues("create", "conflict").Inc()
		return ErrConflict
	}

	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to encode plan %s: %w", id, err)
	}
	if err := s.store.Set(ctx, PlanKey(id), data, 0); err != nil {
		metrics.PlanOperations.WithLabelValues("create", "error").Inc()
		return fmt.Errorf("%w: failed to store plan %s: %v", ErrStore, id, err)
	}

	metrics.PlanOperations.WithLabelValues("create", "success").Inc()
	return nil
}

// Get retrieves a plan by id.
func (s *Service) Get(ctx context.Context, id string) (*Plan, error) {
	raw, err := s.getRaw(ctx, PlanKey(id))
	if err != nil {
		return nil, err
	}

	var plan Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("corrupt plan document %s: %w", id, err)
	}
	return &plan, nil
}

// Delete removes a plan by id.
func (s *Service) Delete(ctx context.Context, id string) error {
	exists, err := s.store.Exists(ctx, PlanKey(id))
	if err != nil {
		return fmt.Errorf("%w: failed to check plan %s: %v", ErrStore, id, err)
	}
	if !exists {
		return ErrNotFound
	}

	if err := s.store.Delete(ctx, PlanKey(id)); err != nil {
		metrics.PlanOperations.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("%w: failed to delete plan %s: %v", ErrStore, id, err)
	}
	metrics.PlanOperations.WithLabelValues("delete", "success").Inc()
	return nil
}

// Patch deep-merges an arbitrary JSON patch into the stored plan document.
// Objects merge recursively; arrays and scalars are replaced.
func (s *Service) Patch(ctx context.Context, id string, patch map[string]any) error {
	if err := s.patchDocument(ctx, PlanKey(id), patch); err != nil {
		metrics.PlanOperations.WithLabelValues("patch", "error").Inc()
		return err
	}
	metrics.PlanOperations.WithLabelValues("patch", "success").Inc()
	return nil
}

// Filter narrows a plan listing. Nil pointer fields mean "don't care".
type Filter struct {
	Types         []string
	Recommended   *bool
	ChildFriendly *bool
	LabTour       *bool
}

// Match reports whether p passes the filter. The lab-tour filter only
// constrains labo plans.
func (f Filter) Match(p *Plan) bool {
	if f.Recommended != nil && p.IsRecommended != *f.Recommended {
		return false
	}
	if f.ChildFriendly != nil && p.IsChildFriendly != *f.ChildFriendly {
		return false
	}
	if f.LabTour != nil && p.Type == PlanTypeLabo {
		if p.IsLabTour == nil || *p.IsLabTour != *f.LabTour {
			return false
		}
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if PlanType(t) == p.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// List returns all plans passing the filter, sorted by id. Documents are read
// through the key index in bulk chunks; keys whose document disappeared since
// the index was built are skipped.
func (s *Service) List(ctx context.Context, filter Filter) ([]*Plan, error) {
	keys, err := s.index.Keys(ctx)
	if err != nil {
		return nil, err
	}

	plans := make([]*Plan, 0, len(keys))
	for start := 0; start < len(keys); start += listChunkSize {
		end := start + listChunkSize
		if end > len(keys) {
			end = len(keys)
		}

		result, err := read.BulkFetch(ctx, s.store, keys[start:end],
			read.WithFormat(core.FormatBinary))
		if err != nil {
			return nil, fmt.Errorf("%w: failed to bulk read plans: %v", ErrStore, err)
		}

		for _, entry := range result {
			if entry == nil {
				continue
			}
			raw, ok := entry.Value.([]byte)
			if !ok {
				continue
			}
			var plan Plan
			if err := json.Unmarshal(raw, &plan); err != nil {
				return nil, fmt.Errorf("corrupt plan document: %w", err)
			}
			if filter.Match(&plan) {
				plans = append(plans, &plan)
			}
		}
	}

	sort.Slice(plans, func(i, j int) bool { return plans[i].ID < plans[j].ID })
	return plans, nil
}

// BulkCreateError describes one failed entry of a bulk create.
type BulkCreateError struct {
	PlanID string
	Err    error
}

// BulkCreate stores every plan in the map, keyed by id, collecting per-id
// failures instead of stopping at the first one. The returned slice is sorted
// by plan id and empty when everything succeeded.
func (s *Service) BulkCreate(ctx context.Context, creates map[string]*Plan) []BulkCreateError {
	var failures []BulkCreateError
	for id, plan := range creates {
		if err := s.Create(ctx, id, plan); err != nil {
			failures = append(failures, BulkCreateError{PlanID: id, Err: err})
		}
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].PlanID < failures[j].PlanID })
	return failures
}

// CreateDetails stores the detail document for a plan.
func (s *Service) CreateDetails(ctx context.Context, id string, details *Details) error {
	if err := details.Validate(); err != nil {
		return err
	}

	exists, err := s.store.Exists(ctx, DetailsKey(id))
	if err != nil {
		return fmt.Errorf("%w: failed to check details %s: %v", ErrStore, id, err)
	}
	if exists {
		return ErrConflict
	}

	data, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode details %s: %w", id, err)
	}
	if err := s.store.Set(ctx, DetailsKey(id), data, 0); err != nil {
		return fmt.Errorf("%w: failed to store details %s: %v", ErrStore, id, err)
	}
	return nil
}

// GetDetails retrieves the detail document for a plan.
func (s *Service) GetDetails(ctx context.Context, id string) (*Details, error) {
	raw, err := s.getRaw(ctx, DetailsKey(id))
	if err != nil {
		return nil, err
	}

	var details Details
	if err := json.Unmarshal(raw, &details); err != nil {
		return nil, fmt.Errorf("corrupt detail document %s: %w", id, err)
	}
	return &details, nil
}

// PatchDetails deep-merges an arbitrary JSON patch into the stored detail
// document.
func (s *Service) PatchDetails(ctx context.Context, id string, patch map[string]any) error {
	return s.patchDocument(ctx, DetailsKey(id), patch)
}

// RebuildIndex refreshes the cached key index. Called after writes; callers
// treat failures as non-fatal.
func (s *Service) RebuildIndex(ctx context.Context) error {
	_, err := s.index.Rebuild(ctx)
	return err
}

func (s *Service) getRaw(ctx context.Context, key string) ([]byte, error) {
	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to check %s: %v", ErrStore, key, err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	raw, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrStore, key, err)
	}
	return raw, nil
}

func (s *Service) patchDocument(ctx context.Context, key string, patch map[string]any) error {
	raw, err := s.getRaw(ctx, key)
	if err != nil {
		return err
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("corrupt document %s: %w", key, err)
	}

	merged := DeepMerge(doc, map[string]any(patch))

	data, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", key, err)
	}
	if err := s.store.Set(ctx, key, data, 0); err != nil {
		return fmt.Errorf("%w: failed to store document %s: %v", ErrStore, key, err)
	}
	return nil
}
