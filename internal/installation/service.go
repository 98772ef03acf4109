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

package installation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nexuscentral/nexuscentral/internal/audit"
	"github.com/nexuscentral/nexuscentral/internal/company"
	"github.com/nexuscentral/nexuscentral/internal/vault"
)

// CompanyDirectory is the slice of the tenant registry the admission
// controller needs.
type CompanyDirectory interface {
	Lookup(ctx context.Context, code string) (*company.Company, error)
	GrantedChannels(ctx context.Context, companyID string) ([]string, error)
}

// Service enforces installation admission: seat limits, machine binding and
// idempotent re-validation.
type Service struct {
	repo        Repository
	companies   CompanyDirectory
	vault       *vault.Vault
	auditLogger audit.Logger
}

// NewService creates a new installation service
func NewService(repo Repository, companies CompanyDirectory, v *vault.Vault, auditLogger audit.Logger) *Service {
	return &Service{
		repo:        repo,
		companies:   companies,
		vault:       v,
		auditLogger: auditLogger,
	}
}

// AdmissionRequest carries one validation attempt.
type AdmissionRequest struct {
	Code      string
	MachineID string
	Hostname  string
	IPAddress string
	UserAgent string
}

// AdmissionResult is returned on successful validation. Credential is the
// decrypted per-tenant datastore credential.
type AdmissionResult struct {
	CompanyName   string
	Credential    vault.DatabaseCredential
	Settings      company.Settings
	UpdateChannel string
}

// Validate admits or rejects an installation attempt. A machine already
// bound to the company may always re-validate, even at the seat cap; that
// is a refresh, not a new seat.
func (s *Service) Validate(ctx context.Context, req AdmissionRequest) (*AdmissionResult, error) {
	c, err := s.companies.Lookup(ctx, req.Code)
	if err != nil {
		s.denied(ctx, "", req, "unknown_code")
		return nil, err
	}

	if err := c.Usable(); err != nil {
		s.denied(ctx, c.ID, req, "unusable")
		return nil, err
	}

	active, err := s.repo.CountActive(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count installations: %w", err)
	}
	if active >= c.MaxInstallations {
		existing, err := s.repo.GetByMachine(ctx, c.ID, req.MachineID)
		if err != nil {
			if err == ErrInstallationNotFound {
				s.denied(ctx, c.ID, req, "installation_limit_reached")
				return nil, ErrSeatLimitExceeded
			}
			return nil, fmt.Errorf("failed to look up installation: %w", err)
		}
		if !existing.IsActive {
			// A deactivated row does not hold a seat; reactivating it here
			// would push the active count past the limit.
			s.denied(ctx, c.ID, req, "installation_limit_reached")
			return nil, ErrSeatLimitExceeded
		}
		// Known active machine: idempotent re-admission.
	}

	inst := &Installation{
		ID:            uuid.Must(uuid.NewV7()).String(),
		CompanyID:     c.ID,
		MachineID:     req.MachineID,
		Hostname:      req.Hostname,
		IPAddress:     req.IPAddress,
		LastHeartbeat: time.Now(),
		IsActive:      true,
	}
	if err := s.repo.Upsert(ctx, inst); err != nil {
		return nil, fmt.Errorf("failed to upsert installation: %w", err)
	}

	cred, err := s.vault.DecryptCredential(c.DatabaseConfig)
	if err != nil {
		// Invariant violation: the stored credential is unreadable. Surface
		// it as-is so the boundary maps it to an opaque internal error.
		return nil, err
	}

	channel, err := s.effectiveChannel(ctx, c)
	if err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Action:    audit.ActionCompanyValidated,
		CompanyID: c.ID,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
		Details: map[string]any{
			"machine_id": req.MachineID,
			"hostname":   req.Hostname,
		},
	})

	return &AdmissionResult{
		CompanyName:   c.Name,
		Credential:    cred,
		Settings:      c.Settings,
		UpdateChannel: channel,
	}, nil
}

// CountAllActive reports fleet-wide active installations for the admin
// surface.
func (s *Service) CountAllActive(ctx context.Context) (int, error) {
	return s.repo.CountAllActive(ctx)
}

// effectiveChannel prefers an explicit per-company grant, then the settings
// bag, then stable.
func (s *Service) effectiveChannel(ctx context.Context, c *company.Company) (string, error) {
	granted, err := s.companies.GrantedChannels(ctx, c.ID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve channel grants: %w", err)
	}
	if len(granted) > 0 {
		return granted[0], nil
	}
	if c.Settings.UpdateChannel != "" {
		return c.Settings.UpdateChannel, nil
	}
	return "stable", nil
}

func (s *Service) denied(ctx context.Context, companyID string, req AdmissionRequest, reason string) {
	s.auditLogger.Log(ctx, audit.Event{
		Action:    audit.ActionValidationDenied,
		CompanyID: companyID,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
		Details: map[string]any{
			"machine_id": req.MachineID,
			"reason":     reason,
		},
	})
}
