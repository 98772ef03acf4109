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

package company

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nexuscentral/nexuscentral/internal/audit"
	"github.com/nexuscentral/nexuscentral/internal/vault"
)

const (
	trialDuration    = 30 * 24 * time.Hour
	codeAttemptLimit = 10
)

// Service provides tenant registry business logic: registration with code
// issuance, lookup and lifecycle checks.
type Service struct {
	repo               Repository
	vault              *vault.Vault
	auditLogger        audit.Logger
	defaultDBHost      string
	defaultMaxInstalls int
}

// NewService creates a new company service
func NewService(repo Repository, v *vault.Vault, auditLogger audit.Logger, defaultDBHost string, defaultMaxInstalls int) *Service {
	return &Service{
		repo:               repo,
		vault:              v,
		auditLogger:        auditLogger,
		defaultDBHost:      defaultDBHost,
		defaultMaxInstalls: defaultMaxInstalls,
	}
}

// RegisterInput carries validated registration data plus request metadata
// for the audit trail.
type RegisterInput struct {
	Name      string
	Email     string
	Phone     string
	Tier      string
	IPAddress string
	UserAgent string
}

// Registration is the one-time registration result. Credential is plaintext
// here and nowhere else; the persisted copy is ciphertext.
type Registration struct {
	Company    *Company
	Code       string
	Credential vault.DatabaseCredential
}

// Register creates a new company: unique code, synthetic datastore
// credential (encrypted at rest), 30-day trial.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Registration, error) {
	code, err := s.uniqueCode(ctx)
	if err != nil {
		return nil, err
	}

	// Stand-in for real tenant database provisioning: a deterministic
	// name/user derived from the code plus a random password.
	slug := strings.ToLower(strings.ReplaceAll(code, "-", "_"))
	cred := vault.DatabaseCredential{
		Host:     s.defaultDBHost,
		Port:     5432,
		Database: "nexus_" + slug,
		Username: "nexus_" + slug + "_user",
		Password: vault.GenerateSecret(32),
	}

	encrypted, err := s.vault.EncryptCredential(cred)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt credential: %w", err)
	}

	tier := in.Tier
	if tier == "" {
		tier = TierStandard
	}

	now := time.Now()
	expiresAt := now.Add(trialDuration)
	c := &Company{
		ID:             uuid.Must(uuid.NewV7()).String(),
		Code:           code,
		Name:           in.Name,
		Email:          in.Email,
		Phone:          in.Phone,
		DatabaseConfig: encrypted,
		Settings: Settings{
			AllowAutoUpdates: true,
			UpdateChannel:    "stable",
		},
		SubscriptionStatus: StatusTrial,
		SubscriptionTier:   tier,
		MaxInstallations:   s.defaultMaxInstalls,
		ExpiresAt:          &expiresAt,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create company: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Action:    audit.ActionCompanyRegistered,
		CompanyID: c.ID,
		IPAddress: in.IPAddress,
		UserAgent: in.UserAgent,
		Details: map[string]any{
			"company_name":      c.Name,
			"subscription_tier": c.SubscriptionTier,
		},
	})

	return &Registration{Company: c, Code: code, Credential: cred}, nil
}

// Lookup retrieves a company by its code.
func (s *Service) Lookup(ctx context.Context, code string) (*Company, error) {
	return s.repo.GetByCode(ctx, code)
}

// GrantedChannels returns the company's explicit channel grants.
func (s *Service) GrantedChannels(ctx context.Context, companyID string) ([]string, error) {
	return s.repo.GrantedChannels(ctx, companyID)
}

// ListWithCounts lists all companies with their active installation counts
// for the admin surface.
func (s *Service) ListWithCounts(ctx context.Context) ([]*WithInstallations, error) {
	return s.repo.ListWithCounts(ctx)
}

// Count returns the total number of registered companies.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// uniqueCode generates a code and retries against the existence check,
// bounded at codeAttemptLimit attempts.
func (s *Service) uniqueCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < codeAttemptLimit; attempt++ {
		code := vault.GenerateCode()
		exists, err := s.repo.ExistsByCode(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check code uniqueness: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrCodeGenerationExhausted
}
