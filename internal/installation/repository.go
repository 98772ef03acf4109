package installation

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInstallationNotFound = errors.New("installation not found")
	ErrSeatLimitExceeded    = errors.New("installation limit reached")
)

// Repository defines the interface for installation storage
type Repository interface {
	// Upsert inserts or refreshes the row keyed by (company_id, machine_id)
	// as a single atomic conditional write. Two concurrent first-time
	// validations for the same machine must not create two seats.
	Upsert(ctx context.Context, inst *Installation) error
	GetByMachine(ctx context.Context, companyID, machineID string) (*Installation, error)
	CountActive(ctx context.Context, companyID string) (int, error)
	CountAllActive(ctx context.Context) (int, error)
	// RecordHeartbeat updates last_heartbeat, app_version and ip_address of
	// the matching row. Returns ErrInstallationNotFound when no row matches.
	RecordHeartbeat(ctx context.Context, companyID, machineID, appVersion, ipAddress string, at time.Time) error
}
