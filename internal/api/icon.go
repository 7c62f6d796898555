package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/festivalops/planstore/internal/notify"
)

// maxIconSize caps uploaded icon payloads.
const maxIconSize = 10 << 20

// GetIcon returns the original icon of a plan.
func (s *Server) GetIcon(w http.ResponseWriter, r *http.Request) {
	if s.icons == nil {
		writeError(w, http.StatusServiceUnavailable, "Icon storage is not configured.")
		return
	}
	planID := chi.URLParam(r, "plan_id")

	icon, err := s.icons.Get(r.Context(), planID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Icon not found.")
		return
	}

	w.Header().Set("Content-Type", icon.ContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(icon.Data)
}

// PutIcon stores the uploaded image as the plan's icon, preserving the
// request's content type.
func (s *Server) PutIcon(w http.ResponseWriter, r *http.Request) {
	if s.icons == nil {
		writeError(w, http.StatusServiceUnavailable, "Icon storage is not configured.")
		return
	}
	planID := chi.URLParam(r, "plan_id")

	data, err := io.ReadAll(io.LimitReader(r.Body, maxIconSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body.")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "Icon payload is empty.")
		return
	}
	if len(data) > maxIconSize {
		writeError(w, http.StatusRequestEntityTooLarge, "Icon payload is too large.")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := s.icons.Put(r.Context(), planID, data, contentType); err != nil {
		writeError(w, http.StatusInternalServerError, "Internal error occurred.")
		return
	}

	s.publish(notify.NewEvent(notify.EventIconUpdated, planID, map[string]any{
		"content_type": contentType,
	}))
	w.WriteHeader(http.StatusNoContent)
}

// iconImportRequest is the payload of icon:import.
type iconImportRequest struct {
	URL string `json:"url" validate:"required"`
}

// ImportIcon fetches an image from a URL server-side and stores it as the
// plan's icon.
func (s *Server) ImportIcon(w http.ResponseWriter, r *http.Request) {
	if s.icons == nil {
		writeError(w, http.StatusServiceUnavailable, "Icon storage is not configured.")
		return
	}
	planID := chi.URLParam(r, "plan_id")

	var req iconImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required.")
		return
	}

	if err := s.icons.ImportFromURL(r.Context(), planID, req.URL); err != nil {
		writeError(w, http.StatusBadGateway, "Failed to import icon from the given URL.")
		return
	}

	s.publish(notify.NewEvent(notify.EventIconUpdated, planID, map[string]any{
		"source": req.URL,
	}))
	w.WriteHeader(http.StatusNoContent)
}
