package port

import (
	"context"

	"github.com/stockroom/allocator/internal/core/domain"
)

type DatabaseRepository interface {
	// AddStock increments a lot's quantity unconditionally, creating the
	// lot and stamping CreatedAt on first use.
	AddStock(ctx context.Context, locationID string, key domain.ItemKey, quantity int) error

	// GetLocation returns every lot held at a location.
	GetLocation(ctx context.Context, locationID string) ([]domain.Lot, error)

	// GetLot returns one lot, or nil if it does not exist.
	GetLot(ctx context.Context, locationID string, key domain.ItemKey) (*domain.Lot, error)

	// GetAllocation returns one allocation record, or nil if it does not exist.
	GetAllocation(ctx context.Context, locationID string, key domain.ItemKey, orderID string) (*domain.Allocation, error)

	// Collect deletes an allocation record unconditionally.
	Collect(ctx context.Context, locationID string, key domain.ItemKey, orderID string) error
}
