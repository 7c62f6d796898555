package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/festivalops/planstore/internal/auth"
	"github.com/festivalops/planstore/internal/kvstore"
	"github.com/festivalops/planstore/internal/plans"
)

func newTestRouter(t *testing.T, verifier *auth.Verifier) http.Handler {
	t.Helper()
	store := kvstore.NewMemoryKVStore()
	t.Cleanup(func() { store.Close() })

	server := NewServer(plans.NewService(store), nil, verifier, nil, []string{"*"})
	return server.Router()
}

func doRequest(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func testPlanDoc() map[string]any {
	return map[string]any{
		"type":              "booth",
		"categories":        []string{"main_rice"},
		"organization_name": "Class 1-A",
		"plan_name":         "Rice Bowl Stand",
		"schedule": map[string]any{
			"day1": []map[string]any{{"start_time": "10:00", "end_time": "15:00"}},
			"day2": []map[string]any{},
		},
		"location": []map[string]any{{
			"type":     "indoor",
			"building": "Main Hall",
			"room":     "101",
		}},
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doRequest(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doRequest(t, router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPutAndGetPlan(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doRequest(t, router, http.MethodPut, "/v1/plans/c-101", testPlanDoc())
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(t, router, http.MethodGet, "/v1/plans/c-101", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var plan map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&plan))
	assert.Equal(t, "c-101", plan["id"])
	assert.Equal(t, "booth", plan["type"])
	assert.Equal(t, "Rice Bowl Stand", plan["plan_name"])
}

func TestGetPlanNotFound(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doRequest(t, router, http.MethodGet, "/v1/plans/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Plan not found.", decodeError(t, w).Message)
}

func TestPutPlanConflict(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doRequest(t, router, http.MethodPut, "/v1/plans/c-101", testPlanDoc())
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(t, router, http.MethodPut, "/v1/plans/c-101", testPlanDoc())
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "A plan with the specified ID already exists.", decodeError(t, w).Message)
}

func TestPutPlanInvalidPayload(t *testing.T) {
	router := newTestRouter(t, nil)

	doc := testPlanDoc()
	delete(doc, "plan_name")
	w := doRequest(t, router, http.MethodPut, "/v1/plans/c-101", doc)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, router, http.MethodPut, "/v1/plans/c-101", `{"broken`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPatchPlan(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doRequest(t, router, http.MethodPut, "/v1/plans/c-101", testPlanDoc())
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(t, router, http.MethodPatch, "/v1/plans/c-101", map[string]any{
		"description": "Updated",
	})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(t, router, http.MethodGet, "/v1/plans/c-101", nil)
	var plan map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&plan))
	assert.Equal(t, "Updated", plan["description"])
	assert.Equal(t, "Rice Bowl Stand", plan["plan_name"])
}

func TestPatchPlanNotFound(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doRequest(t, router, http.MethodPatch, "/v1/plans/nope", map[string]any{"description": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeletePlan(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doRequest(t, router, http.MethodPut, "/v1/plans/c-101", testPlanDoc())
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(t, router, http.MethodDelete, "/v1/plans/c-101", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(t, router, http.MethodDelete, "/v1/plans/c-101", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListPlans(t *testing.T) {
	router := newTestRouter(t, nil)

	booth := testPlanDoc()
	booth["is_recommended"] = true
	w := doRequest(t, router, http.MethodPut, "/v1/plans/b-1", booth)
	require.Equal(t, http.StatusNoContent, w.Code)

	stage := testPlanDoc()
	stage["type"] = "stage"
	delete(stage, "categories")
	w = doRequest(t, router, http.MethodPut, "/v1/plans/s-1", stage)
	require.Equal(t, http.StatusNoContent, w.Code)

	listPlans := func(query string) []map[string]any {
		w := doRequest(t, router, http.MethodGet, "/v1/plans"+query, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Plans []map[string]any `json:"plans"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		return resp.Plans
	}

	all := listPlans("")
	require.Len(t, all, 2)
	assert.Equal(t, "b-1", all[0]["id"])
	assert.Equal(t, "s-1", all[1]["id"])

	boothOnly := listPlans("?type=booth")
	require.Len(t, boothOnly, 1)
	assert.Equal(t, "b-1", boothOnly[0]["id"])

	both := listPlans("?type=booth,stage")
	assert.Len(t, both, 2)

	recommended := listPlans("?recommended=true")
	require.Len(t, recommended, 1)
	assert.Equal(t, "b-1", recommended[0]["id"])
}

func TestBulkCreatePlansAllSuccess(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doRequest(t, router, http.MethodPost, "/v1/plans:bulk", map[string]any{
		"a-1": testPlanDoc(),
		"a-2": testPlanDoc(),
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(t, router, http.MethodGet, "/v1/plans/a-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBulkCreatePlansPartialFailure(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doRequest(t, router, http.MethodPut, "/v1/plans/dup", testPlanDoc())
	require.Equal(t, http.StatusNoContent, w.Code)

	invalid := testPlanDoc()
	delete(invalid, "plan_name")

	w = doRequest(t, router, http.MethodPost, "/v1/plans:bulk", map[string]any{
		"ok":  testPlanDoc(),
		"dup": testPlanDoc(),
		"bad": invalid,
	})
	require.Equal(t, http.StatusMultiStatus, w.Code)

	var resp struct {
		Errors []bulkError `json:"errors"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Errors, 2)

	byID := map[string]bulkError{}
	for _, e := range resp.Errors {
		byID[e.PlanID] = e
	}
	assert.Equal(t, http.StatusConflict, byID["dup"].Code)
	assert.Equal(t, http.StatusBadRequest, byID["bad"].Code)

	// The valid entry landed despite the partial failure.
	w = doRequest(t, router, http.MethodGet, "/v1/plans/ok", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDetailsLifecycle(t *testing.T) {
	router := newTestRouter(t, nil)

	details := map[string]any{
		"products": map[string]any{
			"items":       []map[string]any{{"name": "Rice Bowl", "price": 500}},
			"description": "Menu",
		},
		"additional_info": "Cash only",
	}

	w := doRequest(t, router, http.MethodPut, "/v1/plans/c-101/details", details)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(t, router, http.MethodPut, "/v1/plans/c-101/details", details)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doRequest(t, router, http.MethodGet, "/v1/plans/c-101/details", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stored map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&stored))
	assert.Equal(t, "Cash only", stored["additional_info"])

	w = doRequest(t, router, http.MethodPatch, "/v1/plans/c-101/details", map[string]any{
		"additional_info": "Cash and cards",
	})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(t, router, http.MethodGet, "/v1/plans/c-101/details", nil)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&stored))
	assert.Equal(t, "Cash and cards", stored["additional_info"])

	w = doRequest(t, router, http.MethodGet, "/v1/plans/none/details", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Plan details not found.", decodeError(t, w).Message)
}

func TestIconEndpointsWithoutStorage(t *testing.T) {
	router := newTestRouter(t, nil)

	for _, tc := range []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/v1/plans/c-101/icon", nil},
		{http.MethodPut, "/v1/plans/c-101/icon", "fakeimagedata"},
		{http.MethodPost, "/v1/plans/c-101/icon:import", map[string]any{"url": "https://example.com/a.png"}},
	} {
		w := doRequest(t, router, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, "%s %s", tc.method, tc.path)
		assert.Equal(t, "Icon storage is not configured.", decodeError(t, w).Message)
	}
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/v1/plans", nil)
	req.Header.Set("Origin", "https://festival.example")
	req.Header.Set("Access-Control-Request-Method", "PUT")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestCORSRestrictedOrigins(t *testing.T) {
	store := kvstore.NewMemoryKVStore()
	t.Cleanup(func() { store.Close() })
	server := NewServer(plans.NewService(store), nil, nil, nil, []string{"https://festival.example"})
	router := server.Router()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://festival.example")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "https://festival.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestListPlansStaysFreshAfterWrites(t *testing.T) {
	router := newTestRouter(t, nil)

	for i := 0; i < 3; i++ {
		w := doRequest(t, router, http.MethodPut, fmt.Sprintf("/v1/plans/c-%d", i), testPlanDoc())
		require.Equal(t, http.StatusNoContent, w.Code)

		w = doRequest(t, router, http.MethodGet, "/v1/plans", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Plans []map[string]any `json:"plans"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Len(t, resp.Plans, i+1)
	}

	w := doRequest(t, router, http.MethodDelete, "/v1/plans/c-0", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(t, router, http.MethodGet, "/v1/plans", nil)
	var resp struct {
		Plans []map[string]any `json:"plans"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Len(t, resp.Plans, 2)
}

func TestUnmatchedRoute(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doRequest(t, router, http.MethodGet, "/v1/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
