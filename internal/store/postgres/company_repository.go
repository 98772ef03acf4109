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

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/nexuscentral/nexuscentral/internal/company"
)

const uniqueViolation = "23505"

// CompanyRepository implements company.Repository
type CompanyRepository struct {
	db *DB
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(db *DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// Create persists a new company row.
func (r *CompanyRepository) Create(ctx context.Context, c *company.Company) error {
	settings, err := json.Marshal(c.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	var phone sql.NullString
	if c.Phone != "" {
		phone = sql.NullString{String: c.Phone, Valid: true}
	}

	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO companies (id, company_code, company_name, admin_email, admin_phone,
			database_config, settings, subscription_status, subscription_tier,
			max_installations, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, c.ID, c.Code, c.Name, c.Email, phone, c.DatabaseConfig, settings,
		c.SubscriptionStatus, c.SubscriptionTier, c.MaxInstallations,
		c.ExpiresAt, c.CreatedAt, c.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			// Code collided between the existence check and the insert.
			return company.ErrCodeGenerationExhausted
		}
		return fmt.Errorf("failed to create company: %w", err)
	}

	return nil
}

// GetByCode retrieves a company by its code.
func (r *CompanyRepository) GetByCode(ctx context.Context, code string) (*company.Company, error) {
	row := r.db.pool.QueryRow(ctx, `
		SELECT id, company_code, company_name, admin_email, admin_phone, database_config,
			settings, subscription_status, subscription_tier, max_installations,
			expires_at, created_at, updated_at
		FROM companies
		WHERE company_code = $1
	`, code)

	c, err := scanCompany(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, company.ErrCompanyNotFound
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return c, nil
}

// ExistsByCode reports whether a code is already taken.
func (r *CompanyRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM companies WHERE company_code = $1)
	`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check company code: %w", err)
	}
	return exists, nil
}

// Count returns the total number of companies.
func (r *CompanyRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM companies`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count companies: %w", err)
	}
	return count, nil
}

// ListWithCounts lists all companies newest-first with their active
// installation counts.
func (r *CompanyRepository) ListWithCounts(ctx context.Context) ([]*company.WithInstallations, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT c.id, c.company_code, c.company_name, c.admin_email, c.admin_phone,
			c.database_config, c.settings, c.subscription_status, c.subscription_tier,
			c.max_installations, c.expires_at, c.created_at, c.updated_at,
			(SELECT COUNT(*) FROM installations i
				WHERE i.company_id = c.id AND i.is_active) AS installation_count
		FROM companies c
		ORDER BY c.created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	var out []*company.WithInstallations
	for rows.Next() {
		var (
			c         company.Company
			phone     sql.NullString
			settings  []byte
			installed int
		)
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.Email, &phone, &c.DatabaseConfig,
			&settings, &c.SubscriptionStatus, &c.SubscriptionTier, &c.MaxInstallations,
			&c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt, &installed); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		if phone.Valid {
			c.Phone = phone.String
		}
		if err := json.Unmarshal(settings, &c.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
		}
		out = append(out, &company.WithInstallations{Company: c, InstallationCount: installed})
	}

	return out, rows.Err()
}

// GrantedChannels returns the channel names this company has explicit
// access grants for.
func (r *CompanyRepository) GrantedChannels(ctx context.Context, companyID string) ([]string, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT ch.channel_name
		FROM company_update_access a
		JOIN update_channels ch ON ch.id = a.channel_id
		WHERE a.company_id = $1
		ORDER BY ch.channel_name
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get channel grants: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan channel grant: %w", err)
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

func scanCompany(row pgx.Row) (*company.Company, error) {
	var (
		c        company.Company
		phone    sql.NullString
		settings []byte
	)
	err := row.Scan(&c.ID, &c.Code, &c.Name, &c.Email, &phone, &c.DatabaseConfig,
		&settings, &c.SubscriptionStatus, &c.SubscriptionTier, &c.MaxInstallations,
		&c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if phone.Valid {
		c.Phone = phone.String
	}
	if err := json.Unmarshal(settings, &c.Settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	return &c, nil
}
