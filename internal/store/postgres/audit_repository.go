package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nexuscentral/nexuscentral/internal/audit"
)

// AuditRepository implements audit.Store. The table is append-only;
// nothing in the control plane reads it back.
type AuditRepository struct {
	db *DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert appends one audit event.
func (r *AuditRepository) Insert(ctx context.Context, event audit.Event) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}

	var companyID sql.NullString
	if event.CompanyID != "" {
		companyID = sql.NullString{String: event.CompanyID, Valid: true}
	}

	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO audit_logs (id, company_id, action, details, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.Must(uuid.NewV7()).String(), companyID, event.Action, details,
		nullable(event.IPAddress), nullable(event.UserAgent), event.Timestamp)

	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}
