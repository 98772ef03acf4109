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
	"net/http"

	"github.com/nexuscentral/nexuscentral/internal/update"
)

// ListCompanies returns all tenants with their active installation counts.
func (h *Handler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.companyService.ListWithCounts(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	out := make([]map[string]any, 0, len(companies))
	for _, c := range companies {
		out = append(out, map[string]any{
			"id":                  c.ID,
			"company_code":        c.Code,
			"company_name":        c.Name,
			"admin_email":         c.Email,
			"subscription_status": c.SubscriptionStatus,
			"subscription_tier":   c.SubscriptionTier,
			"max_installations":   c.MaxInstallations,
			"installation_count":  c.InstallationCount,
			"expires_at":          c.ExpiresAt,
			"created_at":          c.CreatedAt,
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{"companies": out})
}

// ListUpdates returns all release channels.
func (h *Handler) ListUpdates(w http.ResponseWriter, r *http.Request) {
	channels, err := h.updateService.List(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"updates": channels})
}

// PublishUpdateRequest represents one channel publication
type PublishUpdateRequest struct {
	Version        string `json:"version" validate:"required,max=20"`
	Channel        string `json:"channel" validate:"omitempty,oneof=stable beta alpha"`
	MinimumVersion string `json:"minimum_version" validate:"omitempty,max=20"`
	ReleaseNotes   string `json:"release_notes" validate:"omitempty,max=10000"`
	FileURL        string `json:"file_url" validate:"omitempty,url"`
	FileSize       int64  `json:"file_size" validate:"omitempty,min=0"`
	Checksum       string `json:"sha256_checksum" validate:"omitempty,max=128"`
	IsMandatory    bool   `json:"is_mandatory"`
}

// PublishUpdate records a new current version on a channel.
func (h *Handler) PublishUpdate(w http.ResponseWriter, r *http.Request) {
	var req PublishUpdateRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	ch, err := h.updateService.Publish(r.Context(), update.PublishInput{
		Version:        req.Version,
		Channel:        req.Channel,
		MinimumVersion: req.MinimumVersion,
		ReleaseNotes:   req.ReleaseNotes,
		FileURL:        req.FileURL,
		FileSize:       req.FileSize,
		Checksum:       req.Checksum,
		IsMandatory:    req.IsMandatory,
		IPAddress:      getIPAddress(r),
		UserAgent:      r.UserAgent(),
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, ch)
}

// Stats returns fleet-wide aggregates for the operations dashboard.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	totalCompanies, err := h.companyService.Count(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	activeInstalls, err := h.installationService.CountAllActive(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	latest, err := h.updateService.LatestStableVersion(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"total_companies":      totalCompanies,
		"active_installations": activeInstalls,
		"latest_version":       latest,
	})
}
