package company

import (
	"context"
	"errors"
)

var (
	ErrCompanyNotFound         = errors.New("company not found")
	ErrCompanySuspended        = errors.New("company subscription is suspended")
	ErrCompanyExpired          = errors.New("company subscription has expired")
	ErrCodeGenerationExhausted = errors.New("failed to generate unique company code")
)

// WithInstallations pairs a company with its active installation count for
// the admin listing.
type WithInstallations struct {
	Company
	InstallationCount int `json:"installation_count"`
}

// Repository defines the interface for company storage
type Repository interface {
	Create(ctx context.Context, c *Company) error
	GetByCode(ctx context.Context, code string) (*Company, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	Count(ctx context.Context) (int, error)
	ListWithCounts(ctx context.Context) ([]*WithInstallations, error)
	// GrantedChannels returns the names of update channels this company has
	// an explicit access grant for.
	GrantedChannels(ctx context.Context, companyID string) ([]string, error)
}
