package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/festivalops/planstore/internal/notify"
	"github.com/festivalops/planstore/internal/plans"
)

// ListPlans returns every plan passing the query filters.
func (s *Server) ListPlans(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var filter plans.Filter
	if v := query.Get("type"); v != "" {
		filter.Types = strings.Split(v, ",")
	}
	filter.Recommended = parseBoolParam(query.Get("recommended"))
	filter.ChildFriendly = parseBoolParam(query.Get("child_friendly"))
	filter.LabTour = parseBoolParam(query.Get("lab_tour"))

	result, err := s.plans.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal error occurred.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"plans": result})
}

func parseBoolParam(v string) *bool {
	if v == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &parsed
}

// GetPlan returns one plan by id.
func (s *Server) GetPlan(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "plan_id")

	plan, err := s.plans.Get(r.Context(), planID)
	if errors.Is(err, plans.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Plan not found.")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal error occurred.")
		return
	}

	writeJSON(w, http.StatusOK, plan)
}

// PutPlan creates a plan under the id in the path.
func (s *Server) PutPlan(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "plan_id")

	var plan plans.Plan
	if err := json.NewDecoder(r.Body).Decode(&plan); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := s.plans.Create(r.Context(), planID, &plan)
	switch {
	case errors.Is(err, plans.ErrConflict):
		writeError(w, http.StatusConflict, "A plan with the specified ID already exists.")
		return
	case errors.Is(err, plans.ErrStore):
		writeError(w, http.StatusInternalServerError, "Internal error occurred.")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.rebuildIndex(r.Context())
	s.publish(notify.NewEvent(notify.EventPlanCreated, planID, nil))
	w.WriteHeader(http.StatusNoContent)
}

// PatchPlan deep-merges a JSON patch into a plan.
func (s *Server) PatchPlan(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "plan_id")

	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	err := s.plans.Patch(r.Context(), planID, patch)
	switch {
	case errors.Is(err, plans.ErrNotFound):
		writeError(w, http.StatusNotFound, "Plan not found.")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Internal error occurred.")
		return
	}

	s.publish(notify.NewEvent(notify.EventPlanUpdated, planID, patch))
	w.WriteHeader(http.StatusNoContent)
}

// DeletePlan removes a plan.
func (s *Server) DeletePlan(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "plan_id")

	err := s.plans.Delete(r.Context(), planID)
	switch {
	case errors.Is(err, plans.ErrNotFound):
		writeError(w, http.StatusNotFound, "Plan not found.")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Internal error occurred.")
		return
	}

	s.rebuildIndex(r.Context())
	s.publish(notify.NewEvent(notify.EventPlanDeleted, planID, nil))
	w.WriteHeader(http.StatusNoContent)
}

// bulkError is one failed entry in a bulk create response.
type bulkError struct {
	PlanID  string `json:"plan_id"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// BulkCreatePlans creates every plan in the request map. All-success returns
// 201; otherwise 207 with the per-id failures.
func (s *Server) BulkCreatePlans(w http.ResponseWriter, r *http.Request) {
	var creates map[string]*plans.Plan
	if err := json.NewDecoder(r.Body).Decode(&creates); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	failures := s.plans.BulkCreate(r.Context(), creates)
	if len(failures) == 0 {
		s.rebuildIndex(r.Context())
		s.publish(notify.NewEvent(notify.EventPlanBulkCreate, "", map[string]any{
			"count": len(creates),
		}))
		w.WriteHeader(http.StatusCreated)
		return
	}

	// Some entries may have been written; keep the index fresh anyway.
	s.rebuildIndex(r.Context())

	responses := make([]bulkError, 0, len(failures))
	for _, failure := range failures {
		switch {
		case errors.Is(failure.Err, plans.ErrConflict):
			responses = append(responses, bulkError{
				PlanID:  failure.PlanID,
				Code:    http.StatusConflict,
				Message: fmt.Sprintf("A plan with the ID %q already exists.", failure.PlanID),
			})
		case errors.Is(failure.Err, plans.ErrStore):
			responses = append(responses, bulkError{
				PlanID:  failure.PlanID,
				Code:    http.StatusInternalServerError,
				Message: fmt.Sprintf("Internal error occurred while creating plan %q.", failure.PlanID),
			})
		default:
			responses = append(responses, bulkError{
				PlanID:  failure.PlanID,
				Code:    http.StatusBadRequest,
				Message: failure.Err.Error(),
			})
		}
	}
	writeJSON(w, http.StatusMultiStatus, map[string]any{"errors": responses})
}
