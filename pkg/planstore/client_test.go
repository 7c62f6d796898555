package planstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/festivalops/planstore/pkg/planstore"
)

func newTestClient(t *testing.T) planstore.Client {
	t.Helper()
	client, err := planstore.NewClient(planstore.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func testPlan() map[string]any {
	return map[string]any{
		"type":              "booth",
		"categories":        []any{"main_rice"},
		"organization_name": "Class 1-A",
		"plan_name":         "Rice Bowl Stand",
		"schedule": map[string]any{
			"day1": []any{map[string]any{"start_time": "10:00", "end_time": "15:00"}},
			"day2": []any{},
		},
		"location": []any{map[string]any{
			"type":     "indoor",
			"building": "Main Hall",
			"room":     "101",
		}},
	}
}

func TestNewClientRequiresConfig(t *testing.T) {
	_, err := planstore.NewClient(nil)
	assert.ErrorContains(t, err, "config cannot be nil")
}

func TestClientPlanLifecycle(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	require.NoError(t, client.CreatePlan(ctx, "c-101", testPlan()))

	err := client.CreatePlan(ctx, "c-101", testPlan())
	assert.ErrorIs(t, err, planstore.ErrConflict)

	plan, err := client.GetPlan(ctx, "c-101")
	require.NoError(t, err)
	assert.Equal(t, "c-101", plan["id"])
	assert.Equal(t, "Rice Bowl Stand", plan["plan_name"])

	require.NoError(t, client.PatchPlan(ctx, "c-101", map[string]any{
		"description": "Updated",
	}))
	plan, err = client.GetPlan(ctx, "c-101")
	require.NoError(t, err)
	assert.Equal(t, "Updated", plan["description"])

	require.NoError(t, client.DeletePlan(ctx, "c-101"))
	_, err = client.GetPlan(ctx, "c-101")
	assert.ErrorIs(t, err, planstore.ErrNotFound)
}

func TestClientCreateRejectsInvalidPlan(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	plan := testPlan()
	delete(plan, "plan_name")
	assert.Error(t, client.CreatePlan(ctx, "c-101", plan))
}

func TestClientListPlans(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	require.NoError(t, client.CreatePlan(ctx, "b-1", testPlan()))

	stage := testPlan()
	stage["type"] = "stage"
	delete(stage, "categories")
	require.NoError(t, client.CreatePlan(ctx, "s-1", stage))

	all, err := client.ListPlans(ctx, planstore.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b-1", all[0]["id"])
	assert.Equal(t, "s-1", all[1]["id"])

	booths, err := client.ListPlans(ctx, planstore.ListFilter{Types: []string{"booth"}})
	require.NoError(t, err)
	require.Len(t, booths, 1)
	assert.Equal(t, "b-1", booths[0]["id"])
}

func TestClientBulkGet(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	require.NoError(t, client.CreatePlan(ctx, "c-101", testPlan()))

	result, err := client.BulkGet(ctx, []string{"plans/c-101", "plans/missing"}, planstore.FormatJSON)
	require.NoError(t, err)
	require.Len(t, result, 2)

	require.NotNil(t, result["plans/c-101"])
	doc, ok := result["plans/c-101"].Value.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "c-101", doc["id"])

	assert.Nil(t, result["plans/missing"])
}

func TestClientBulkGetWithMetadata(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	require.NoError(t, client.CreatePlan(ctx, "c-101", testPlan()))

	result, err := client.BulkGetWithMetadata(ctx, []string{"plans/c-101"}, planstore.FormatText)
	require.NoError(t, err)
	require.NotNil(t, result["plans/c-101"])
	assert.Contains(t, result["plans/c-101"].Metadata, "revision")
}

func TestClientBulkGetUnknownFormat(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	_, err := client.BulkGet(ctx, []string{"k"}, "csv")
	assert.ErrorContains(t, err, "unknown format")
}

func TestClientCloseIsIdempotent(t *testing.T) {
	client, err := planstore.NewClient(planstore.DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
}
