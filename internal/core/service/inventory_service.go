package service

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stockroom/allocator/internal/core/domain"
	"github.com/stockroom/allocator/internal/port"
)

// InventoryService covers the single-record operations around the
// allocation core: adding stock, listing a location, and collecting
// fulfilled allocations. None of these touch the allocation invariants.
type InventoryService struct {
	db            port.DatabaseRepository
	cache         port.CacheRepository
	logger        *zap.Logger
	maxConcurrent int
}

func NewInventoryService(
	db port.DatabaseRepository,
	cache port.CacheRepository,
	logger *zap.Logger,
	maxConcurrent int,
) *InventoryService {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	return &InventoryService{
		db:            db,
		cache:         cache,
		logger:        logger,
		maxConcurrent: maxConcurrent,
	}
}

// AddStock increments the requested lots and returns the items whose write
// failed; those should be resubmitted by the caller.
func (s *InventoryService) AddStock(ctx context.Context, req domain.StockRequest) ([]domain.ItemRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	failed := make([]bool, len(req.Items))

	g := new(errgroup.Group)
	g.SetLimit(s.maxConcurrent)
	for i, item := range req.Items {
		g.Go(func() error {
			if err := s.db.AddStock(ctx, req.LocationID, item.Key(), item.Quantity); err != nil {
				s.logger.Error("failed to add stock",
					zap.String("location_id", req.LocationID),
					zap.String("item_key", item.Key().String()),
					zap.Error(err))
				failed[i] = true
			}
			return nil
		})
	}
	g.Wait()

	if err := s.cache.InvalidateLocation(ctx, req.LocationID); err != nil {
		s.logger.Warn("failed to invalidate location cache",
			zap.String("location_id", req.LocationID), zap.Error(err))
	}

	retry := []domain.ItemRequest{}
	for i, item := range req.Items {
		if failed[i] {
			retry = append(retry, item)
		}
	}
	return retry, nil
}

// GetLocation lists every lot at a location, serving from the cache when a
// fresh listing is present.
func (s *InventoryService) GetLocation(ctx context.Context, locationID string) ([]domain.Lot, error) {
	if locationID == "" {
		return nil, &domain.ValidationError{Field: "locationId", Reason: "must not be empty"}
	}

	lots, hit, err := s.cache.GetLocation(ctx, locationID)
	if err != nil {
		s.logger.Warn("location cache read failed",
			zap.String("location_id", locationID), zap.Error(err))
	} else if hit {
		return lots, nil
	}

	lots, err = s.db.GetLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetLocation(ctx, locationID, lots); err != nil {
		s.logger.Warn("location cache write failed",
			zap.String("location_id", locationID), zap.Error(err))
	}

	return lots, nil
}

// Collect deletes the order's allocation records and returns the items
// whose delete failed.
func (s *InventoryService) Collect(ctx context.Context, req domain.CollectRequest) ([]domain.CollectItem, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	failed := make([]bool, len(req.Items))

	g := new(errgroup.Group)
	g.SetLimit(s.maxConcurrent)
	for i, item := range req.Items {
		g.Go(func() error {
			if err := s.db.Collect(ctx, req.LocationID, item.Key(), req.OrderID); err != nil {
				s.logger.Error("failed to collect allocation",
					zap.String("location_id", req.LocationID),
					zap.String("item_key", item.Key().String()),
					zap.String("order_id", req.OrderID),
					zap.Error(err))
				failed[i] = true
			}
			return nil
		})
	}
	g.Wait()

	retry := []domain.CollectItem{}
	for i, item := range req.Items {
		if failed[i] {
			retry = append(retry, item)
		}
	}
	return retry, nil
}
