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

	"github.com/nexuscentral/nexuscentral/internal/company"
	"github.com/nexuscentral/nexuscentral/internal/installation"
)

// RegisterCompanyRequest represents registration data
type RegisterCompanyRequest struct {
	CompanyName string `json:"company_name" validate:"required,min=2,max=255"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone" validate:"omitempty,max=50"`
	Tier        string `json:"subscription_tier" validate:"omitempty,oneof=standard professional enterprise"`
}

// RegisterCompany handles tenant registration. The database credential in
// the response is the only time it leaves the server in plaintext.
func (h *Handler) RegisterCompany(w http.ResponseWriter, r *http.Request) {
	var req RegisterCompanyRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	reg, err := h.companyService.Register(r.Context(), company.RegisterInput{
		Name:      req.CompanyName,
		Email:     req.Email,
		Phone:     req.Phone,
		Tier:      req.Tier,
		IPAddress: getIPAddress(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"company_code":    reg.Code,
		"company_name":    reg.Company.Name,
		"database_config": reg.Credential,
		"subscription": map[string]any{
			"status":     reg.Company.SubscriptionStatus,
			"tier":       reg.Company.SubscriptionTier,
			"expires_at": reg.Company.ExpiresAt,
		},
		"max_installations": reg.Company.MaxInstallations,
	})
}

// ValidateInstallationRequest represents one admission attempt
type ValidateInstallationRequest struct {
	CompanyCode string `json:"company_code" validate:"required,max=20"`
	MachineID   string `json:"machine_id" validate:"required,min=32,max=64"`
	Hostname    string `json:"hostname" validate:"omitempty,max=255"`
}

// ValidateInstallation admits an installation against the seat pool and
// returns the decrypted tenant credential on success.
func (h *Handler) ValidateInstallation(w http.ResponseWriter, r *http.Request) {
	var req ValidateInstallationRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	h.metrics.recordValidation(r.Context())

	result, err := h.installationService.Validate(r.Context(), installation.AdmissionRequest{
		Code:      req.CompanyCode,
		MachineID: req.MachineID,
		Hostname:  req.Hostname,
		IPAddress: getIPAddress(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"valid":           true,
		"company_name":    result.CompanyName,
		"database_config": result.Credential,
		"settings":        result.Settings,
		"update_channel":  result.UpdateChannel,
	})
}

// HeartbeatRequest represents one liveness signal
type HeartbeatRequest struct {
	CompanyCode     string `json:"company_code" validate:"required,max=20"`
	MachineID       string `json:"machine_id" validate:"required,min=32,max=64"`
	AppVersion      string `json:"app_version" validate:"omitempty,max=20"`
	SettingsVersion string `json:"settings_version" validate:"omitempty,max=20"`
}

// Heartbeat processes a liveness signal and reports pending forced updates
// or settings changes.
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var req HeartbeatRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	result, err := h.installationService.Heartbeat(r.Context(), installation.HeartbeatRequest{
		Code:            req.CompanyCode,
		MachineID:       req.MachineID,
		AppVersion:      req.AppVersion,
		SettingsVersion: req.SettingsVersion,
		IPAddress:       getIPAddress(r),
		UserAgent:       r.UserAgent(),
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":              "ok",
		"force_update":        result.ForceUpdate,
		"settings_changed":    result.SettingsChanged,
		"subscription_status": result.SubscriptionStatus,
	})
}
