package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/festivalops/planstore/internal/notify"
	"github.com/festivalops/planstore/internal/plans"
)

// GetDetails returns the detail document of a plan.
func (s *Server) GetDetails(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "plan_id")

	details, err := s.plans.GetDetails(r.Context(), planID)
	if errors.Is(err, plans.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Plan details not found.")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal error occurred.")
		return
	}

	writeJSON(w, http.StatusOK, details)
}

// PutDetails creates the detail document of a plan.
func (s *Server) PutDetails(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "plan_id")

	var details plans.Details
	if err := json.NewDecoder(r.Body).Decode(&details); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := s.plans.CreateDetails(r.Context(), planID, &details)
	switch {
	case errors.Is(err, plans.ErrConflict):
		writeError(w, http.StatusConflict, "Details for the specified plan already exist.")
		return
	case errors.Is(err, plans.ErrStore):
		writeError(w, http.StatusInternalServerError, "Internal error occurred.")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.publish(notify.NewEvent(notify.EventDetailsCreated, planID, nil))
	w.WriteHeader(http.StatusNoContent)
}

// PatchDetails deep-merges a JSON patch into the detail document.
func (s *Server) PatchDetails(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "plan_id")

	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	err := s.plans.PatchDetails(r.Context(), planID, patch)
	switch {
	case errors.Is(err, plans.ErrNotFound):
		writeError(w, http.StatusNotFound, "Plan details not found.")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Internal error occurred.")
		return
	}

	s.publish(notify.NewEvent(notify.EventDetailsUpdated, planID, patch))
	w.WriteHeader(http.StatusNoContent)
}
