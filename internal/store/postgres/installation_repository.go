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
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nexuscentral/nexuscentral/internal/installation"
)

// InstallationRepository implements installation.Repository
type InstallationRepository struct {
	db *DB
}

// NewInstallationRepository creates a new installation repository
func NewInstallationRepository(db *DB) *InstallationRepository {
	return &InstallationRepository{db: db}
}

// Upsert inserts or refreshes the row keyed by (company_id, machine_id).
// The conditional write is resolved by the database, so two concurrent
// first-time validations of the same machine collapse into one seat.
func (r *InstallationRepository) Upsert(ctx context.Context, inst *installation.Installation) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO installations (id, company_id, machine_id, hostname, ip_address,
			last_heartbeat, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, now())
		ON CONFLICT (company_id, machine_id) DO UPDATE SET
			hostname       = EXCLUDED.hostname,
			ip_address     = EXCLUDED.ip_address,
			last_heartbeat = EXCLUDED.last_heartbeat,
			is_active      = TRUE
	`, inst.ID, inst.CompanyID, inst.MachineID, inst.Hostname, inst.IPAddress, inst.LastHeartbeat)

	if err != nil {
		return fmt.Errorf("failed to upsert installation: %w", err)
	}
	return nil
}

// GetByMachine retrieves the installation bound to a machine.
func (r *InstallationRepository) GetByMachine(ctx context.Context, companyID, machineID string) (*installation.Installation, error) {
	var inst installation.Installation
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, company_id, machine_id, COALESCE(hostname, ''), COALESCE(ip_address, ''),
			COALESCE(app_version, ''), last_heartbeat, is_active, created_at
		FROM installations
		WHERE company_id = $1 AND machine_id = $2
	`, companyID, machineID).Scan(
		&inst.ID, &inst.CompanyID, &inst.MachineID, &inst.Hostname, &inst.IPAddress,
		&inst.AppVersion, &inst.LastHeartbeat, &inst.IsActive, &inst.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, installation.ErrInstallationNotFound
		}
		return nil, fmt.Errorf("failed to get installation: %w", err)
	}

	return &inst, nil
}

// CountActive counts the company's active seats.
func (r *InstallationRepository) CountActive(ctx context.Context, companyID string) (int, error) {
	var count int
	err := r.db.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM installations WHERE company_id = $1 AND is_active
	`, companyID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count installations: %w", err)
	}
	return count, nil
}

// CountAllActive counts active installations across all companies.
func (r *InstallationRepository) CountAllActive(ctx context.Context) (int, error) {
	var count int
	err := r.db.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM installations WHERE is_active
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count installations: %w", err)
	}
	return count, nil
}

// RecordHeartbeat updates liveness fields of the matching row.
func (r *InstallationRepository) RecordHeartbeat(ctx context.Context, companyID, machineID, appVersion, ipAddress string, at time.Time) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE installations
		SET last_heartbeat = $3, app_version = $4, ip_address = $5
		WHERE company_id = $1 AND machine_id = $2
	`, companyID, machineID, at, appVersion, ipAddress)

	if err != nil {
		return fmt.Errorf("failed to record heartbeat: %w", err)
	}
	if result.RowsAffected() == 0 {
		return installation.ErrInstallationNotFound
	}

	return nil
}
