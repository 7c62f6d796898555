package plans

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/festivalops/planstore/internal/kvstore"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store := kvstore.NewMemoryKVStore()
	t.Cleanup(func() { store.Close() })
	return NewService(store)
}

func TestServiceCreateAndGet(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	err := svc.Create(ctx, "c-101", validBoothPlan())
	require.NoError(t, err)

	plan, err := svc.Get(ctx, "c-101")
	require.NoError(t, err)
	assert.Equal(t, "c-101", plan.ID)
	assert.Equal(t, PlanTypeBooth, plan.Type)
	assert.Equal(t, "Rice Bowl Stand", plan.PlanName)
}

func TestServiceCreateTakesIDFromArgument(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	plan := validBoothPlan()
	plan.ID = "ignored"
	require.NoError(t, svc.Create(ctx, "c-200", plan))

	stored, err := svc.Get(ctx, "c-200")
	require.NoError(t, err)
	assert.Equal(t, "c-200", stored.ID)
}

func TestServiceCreateConflict(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.Create(ctx, "c-101", validBoothPlan()))
	err := svc.Create(ctx, "c-101", validBoothPlan())
	assert.ErrorIs(t, err, ErrConflict)
}

func TestServiceCreateRejectsInvalidPlan(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	plan := validBoothPlan()
	plan.PlanName = ""
	err := svc.Create(ctx, "c-101", plan)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStore)

	_, err = svc.Get(ctx, "c-101")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceGetNotFound(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceDelete(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.Create(ctx, "c-101", validBoothPlan()))
	require.NoError(t, svc.Delete(ctx, "c-101"))

	_, err := svc.Get(ctx, "c-101")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, "c-101"), ErrNotFound)
}

func TestServicePatchDeepMerges(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.Create(ctx, "c-101", validBoothPlan()))

	err := svc.Patch(ctx, "c-101", map[string]any{
		"description":    "Now with extra rice",
		"is_recommended": true,
	})
	require.NoError(t, err)

	plan, err := svc.Get(ctx, "c-101")
	require.NoError(t, err)
	assert.Equal(t, "Now with extra rice", plan.Description)
	assert.True(t, plan.IsRecommended)
	// Untouched fields survive the merge.
	assert.Equal(t, "Rice Bowl Stand", plan.PlanName)
	assert.Equal(t, []string{"main_rice", "drink"}, plan.Categories)
}

func TestServicePatchNotFound(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	err := svc.Patch(ctx, "nope", map[string]any{"description": "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceListFilters(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	booth := validBoothPlan()
	booth.IsRecommended = true
	require.NoError(t, svc.Create(ctx, "b-1", booth))

	general := validBoothPlan()
	general.Type = PlanTypeGeneral
	general.Categories = []string{"play"}
	general.IsChildFriendly = true
	require.NoError(t, svc.Create(ctx, "g-1", general))

	labo := validBoothPlan()
	labo.Type = PlanTypeLabo
	labo.Categories = nil
	labo.IsLabTour = boolPtr(true)
	require.NoError(t, svc.Create(ctx, "l-1", labo))

	t.Run("no filter returns all sorted by id", func(t *testing.T) {
		result, err := svc.List(ctx, Filter{})
		require.NoError(t, err)
		require.Len(t, result, 3)
		assert.Equal(t, "b-1", result[0].ID)
		assert.Equal(t, "g-1", result[1].ID)
		assert.Equal(t, "l-1", result[2].ID)
	})

	t.Run("type filter", func(t *testing.T) {
		result, err := svc.List(ctx, Filter{Types: []string{"booth", "labo"}})
		require.NoError(t, err)
		require.Len(t, result, 2)
		assert.Equal(t, "b-1", result[0].ID)
		assert.Equal(t, "l-1", result[1].ID)
	})

	t.Run("recommended filter", func(t *testing.T) {
		result, err := svc.List(ctx, Filter{Recommended: boolPtr(true)})
		require.NoError(t, err)
		require.Len(t, result, 1)
		assert.Equal(t, "b-1", result[0].ID)
	})

	t.Run("child friendly filter", func(t *testing.T) {
		result, err := svc.List(ctx, Filter{ChildFriendly: boolPtr(true)})
		require.NoError(t, err)
		require.Len(t, result, 1)
		assert.Equal(t, "g-1", result[0].ID)
	})

	t.Run("lab tour filter only constrains labo plans", func(t *testing.T) {
		result, err := svc.List(ctx, Filter{LabTour: boolPtr(false)})
		require.NoError(t, err)
		// The labo plan is a lab tour so it drops; booth and general pass.
		require.Len(t, result, 2)
		assert.Equal(t, "b-1", result[0].ID)
		assert.Equal(t, "g-1", result[1].ID)
	})
}

func TestServiceListSeesWritesAfterIndexRebuild(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.Create(ctx, "c-1", validBoothPlan()))
	result, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, result, 1)

	// The cached index predates the second write; a rebuild refreshes it.
	require.NoError(t, svc.Create(ctx, "c-2", validBoothPlan()))
	require.NoError(t, svc.RebuildIndex(ctx))

	result, err = svc.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, result, 2)
}

func TestServiceListChunksLargeIndexes(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	const total = listChunkSize*2 + 7
	for i := 0; i < total; i++ {
		require.NoError(t, svc.Create(ctx, fmt.Sprintf("c-%03d", i), validBoothPlan()))
	}
	require.NoError(t, svc.RebuildIndex(ctx))

	result, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, result, total)
}

func TestServiceBulkCreate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.Create(ctx, "dup", validBoothPlan()))

	invalid := validBoothPlan()
	invalid.PlanName = ""

	failures := svc.BulkCreate(ctx, map[string]*Plan{
		"a-ok": validBoothPlan(),
		"dup":  validBoothPlan(),
		"bad":  invalid,
	})

	require.Len(t, failures, 2)
	// Failures come back sorted by plan id.
	assert.Equal(t, "bad", failures[0].PlanID)
	assert.NotErrorIs(t, failures[0].Err, ErrConflict)
	assert.Equal(t, "dup", failures[1].PlanID)
	assert.ErrorIs(t, failures[1].Err, ErrConflict)

	// The valid entry was still written.
	_, err := svc.Get(ctx, "a-ok")
	assert.NoError(t, err)
}

func TestServiceBulkCreateAllSuccess(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	failures := svc.BulkCreate(ctx, map[string]*Plan{
		"a": validBoothPlan(),
		"b": validBoothPlan(),
	})
	assert.Empty(t, failures)
}

func TestServiceDetailsLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	info := "Vegetarian options available"
	details := &Details{
		Products: Products{
			Items:       []ProductItem{{Name: "Rice Bowl"}},
			Description: "Menu",
		},
		AdditionalInfo: &info,
	}

	require.NoError(t, svc.CreateDetails(ctx, "c-101", details))
	assert.ErrorIs(t, svc.CreateDetails(ctx, "c-101", details), ErrConflict)

	stored, err := svc.GetDetails(ctx, "c-101")
	require.NoError(t, err)
	assert.Equal(t, "Menu", stored.Products.Description)
	require.NotNil(t, stored.AdditionalInfo)
	assert.Equal(t, info, *stored.AdditionalInfo)

	err = svc.PatchDetails(ctx, "c-101", map[string]any{
		"products": map[string]any{"description": "Updated menu"},
	})
	require.NoError(t, err)

	stored, err = svc.GetDetails(ctx, "c-101")
	require.NoError(t, err)
	assert.Equal(t, "Updated menu", stored.Products.Description)
	// The items array is untouched by the nested merge.
	require.Len(t, stored.Products.Items, 1)
	assert.Equal(t, "Rice Bowl", stored.Products.Items[0].Name)

	_, err = svc.GetDetails(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceDetailsAndPlansAreSeparateNamespaces(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.Create(ctx, "c-101", validBoothPlan()))

	_, err := svc.GetDetails(ctx, "c-101")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServicePlanDocumentShape(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	labo := validBoothPlan()
	labo.Type = PlanTypeLabo
	labo.Categories = nil
	labo.IsLabTour = boolPtr(true)
	require.NoError(t, svc.Create(ctx, "l-1", labo))

	plan, err := svc.Get(ctx, "l-1")
	require.NoError(t, err)

	data, err := json.Marshal(plan)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "labo", doc["type"])
	assert.Equal(t, true, doc["is_lab_tour"])
	assert.NotContains(t, doc, "categories")
}
