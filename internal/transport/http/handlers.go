// Copyright 2026 The NexusCentral Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/nexuscentral/nexuscentral/internal/audit"
	"github.com/nexuscentral/nexuscentral/internal/company"
	"github.com/nexuscentral/nexuscentral/internal/installation"
	"github.com/nexuscentral/nexuscentral/internal/observability/logger"
	"github.com/nexuscentral/nexuscentral/internal/ratelimit"
	"github.com/nexuscentral/nexuscentral/internal/update"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	companyService      *company.Service
	installationService *installation.Service
	updateService       *update.Service
	auditLogger         audit.Logger
	adminSecret         string
	metrics             *Metrics
	validate            *validator.Validate
}

// NewHandler creates a new HTTP handler
func NewHandler(
	companyService *company.Service,
	installationService *installation.Service,
	updateService *update.Service,
	auditLogger audit.Logger,
	adminSecret string,
	m *Metrics,
) *Handler {
	return &Handler{
		companyService:      companyService,
		installationService: installationService,
		updateService:       updateService,
		auditLogger:         auditLogger,
		adminSecret:         adminSecret,
		metrics:             m,
		validate:            validator.New(validator.WithRequiredStructEnabled()),
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, governor *ratelimit.Governor) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(governor, h.metrics))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	// Tenant-facing routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/company", func(r chi.Router) {
			r.Post("/register", h.RegisterCompany)
			r.Post("/validate", h.ValidateInstallation)
			r.Post("/heartbeat", h.Heartbeat)
		})

		r.Route("/updates", func(r chi.Router) {
			r.Get("/check", h.CheckForUpdate)
			r.Get("/latest.yml", h.UpdateManifest)
			r.Get("/download/{version}", h.DownloadUpdate)
		})

		// Admin routes behind the shared secret. Updates list/publish
		// included; nothing on this surface is open.
		r.Route("/admin", func(r chi.Router) {
			r.Use(h.AdminAuthMiddleware)
			r.Get("/companies", h.ListCompanies)
			r.Get("/updates", h.ListUpdates)
			r.Post("/updates", h.PublishUpdate)
			r.Get("/stats", h.Stats)
		})
	})

	return r
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "nexuscentral",
	})
}

// decodeValid decodes a JSON body into dst and runs struct validation.
// Returns false after writing the 400 response.
func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			respondError(w, http.StatusBadRequest, "validation failed on field '"+verrs[0].Field()+"'")
			return false
		}
		respondError(w, http.StatusBadRequest, "validation failed")
		return false
	}
	return true
}

// respondServiceError maps domain errors to HTTP statuses. Anything not in
// the taxonomy is logged and surfaced as an opaque 500.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, company.ErrCompanyNotFound):
		respondError(w, http.StatusNotFound, "invalid company code")
	case errors.Is(err, company.ErrCompanySuspended):
		respondError(w, http.StatusForbidden, "subscription suspended")
	case errors.Is(err, company.ErrCompanyExpired):
		respondError(w, http.StatusForbidden, "subscription expired")
	case errors.Is(err, installation.ErrSeatLimitExceeded):
		respondError(w, http.StatusForbidden, "installation limit reached")
	case errors.Is(err, update.ErrChannelNotFound):
		respondError(w, http.StatusNotFound, "update not found")
	default:
		slog.ErrorContext(r.Context(), "request failed",
			logger.Path(r.URL.Path),
			logger.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

func getIPAddress(r *http.Request) string {
	// Check X-Forwarded-For header first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
