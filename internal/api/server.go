// Package api exposes the plan catalogue over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/festivalops/planstore/internal/auth"
	"github.com/festivalops/planstore/internal/icons"
	"github.com/festivalops/planstore/internal/notify"
	"github.com/festivalops/planstore/internal/plans"
)

// Server holds the handler dependencies. Icons, verifier and dispatcher are
// optional; nil disables the corresponding behavior.
type Server struct {
	plans      *plans.Service
	icons      *icons.Store
	verifier   *auth.Verifier
	dispatcher *notify.Dispatcher
	cors       []string
}

// NewServer creates the HTTP server facade.
func NewServer(planService *plans.Service, iconStore *icons.Store, verifier *auth.Verifier, dispatcher *notify.Dispatcher, corsOrigins []string) *Server {
	return &Server{
		plans:      planService,
		icons:      iconStore,
		verifier:   verifier,
		dispatcher: dispatcher,
		cors:       corsOrigins,
	}
}

// Router builds the route tree. Write routes sit behind the auth middleware.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(metricsMiddleware)

	r.Get("/healthz", s.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	authed := auth.Middleware(s.verifier)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/plans", s.ListPlans)
		r.With(authed).Post("/plans:bulk", s.BulkCreatePlans)

		r.Route("/plans/{plan_id}", func(r chi.Router) {
			r.Get("/", s.GetPlan)
			r.With(authed).Put("/", s.PutPlan)
			r.With(authed).Patch("/", s.PatchPlan)
			r.With(authed).Delete("/", s.DeletePlan)

			r.Get("/details", s.GetDetails)
			r.With(authed).Put("/details", s.PutDetails)
			r.With(authed).Patch("/details", s.PatchDetails)

			r.Get("/icon", s.GetIcon)
			r.With(authed).Put("/icon", s.PutIcon)
			r.With(authed).Post("/icon:import", s.ImportIcon)
		})
	})

	return r
}

// Healthz reports liveness.
func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, errorResponse{Code: code, Message: message})
}

// publish hands an event to the dispatcher when one is configured.
func (s *Server) publish(event notify.Event) {
	if s.dispatcher != nil {
		s.dispatcher.Publish(event)
	}
}

// rebuildIndex refreshes the key index after a write. Failures are logged,
// never surfaced.
func (s *Server) rebuildIndex(ctx context.Context) {
	if err := s.plans.RebuildIndex(ctx); err != nil {
		log.Printf("[API] Failed to rebuild key index: %v", err)
	}
}
