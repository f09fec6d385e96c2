package port

import (
	"context"

	"github.com/stockroom/allocator/internal/core/domain"
)

type CacheRepository interface {
	// SetIdempotency claims a request token, returns false if it was
	// already claimed.
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// GetLocation returns the cached lot listing for a location; the bool
	// is false on a miss.
	GetLocation(ctx context.Context, locationID string) ([]domain.Lot, bool, error)

	// SetLocation caches a location's lot listing with a TTL.
	SetLocation(ctx context.Context, locationID string, lots []domain.Lot) error

	// InvalidateLocation drops a location's cached listing after a write.
	InvalidateLocation(ctx context.Context, locationID string) error
}
