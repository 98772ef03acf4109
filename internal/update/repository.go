package update

import (
	"context"
	"errors"
)

var (
	ErrChannelNotFound = errors.New("update channel not found")
	// ErrNoUpdate is the 204-equivalent outcome: the caller is current, the
	// channel does not exist, or the tenant has no access to it.
	ErrNoUpdate = errors.New("no update available")
)

// Repository defines the interface for update channel storage
type Repository interface {
	GetByName(ctx context.Context, name string) (*Channel, error)
	GetByVersion(ctx context.Context, version string) (*Channel, error)
	List(ctx context.Context) ([]*Channel, error)
	// Publish inserts or replaces the row for ch.Name.
	Publish(ctx context.Context, ch *Channel) error
}
