package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stockroom/allocator/internal/core/domain"
	"github.com/stockroom/allocator/internal/port"
)

var ErrDuplicateRequest = errors.New("duplicate request")

const defaultMaxConcurrent = 16

// AllocationService coordinates allocation batches: it validates the
// request up front, fans out one conditional transaction per item with a
// bounded degree of concurrency, classifies aborts, and aggregates the
// per-item outcomes.
type AllocationService struct {
	engine        port.TransactionEngine
	db            port.DatabaseRepository
	cache         port.CacheRepository
	logger        *zap.Logger
	maxConcurrent int
	outcomeQueue  chan domain.OutcomeEvent
}

func NewAllocationService(
	engine port.TransactionEngine,
	db port.DatabaseRepository,
	cache port.CacheRepository,
	logger *zap.Logger,
	maxConcurrent, queueSize int,
) *AllocationService {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	return &AllocationService{
		engine:        engine,
		db:            db,
		cache:         cache,
		logger:        logger,
		maxConcurrent: maxConcurrent,
		outcomeQueue:  make(chan domain.OutcomeEvent, queueSize),
	}
}

// AllocateBatch decides every item of the batch before returning. Items are
// independent: there is no cross-item rollback, and a failure on one item
// never aborts its siblings. Some items may commit while siblings in the
// same batch are rejected or fail transiently.
func (s *AllocationService) AllocateBatch(ctx context.Context, req domain.BatchRequest) (*domain.BatchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if req.RequestID != "" {
		ok, err := s.cache.SetIdempotency(ctx, "allocate:"+req.RequestID)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return nil, ErrDuplicateRequest
		}
	}

	batchID := uuid.NewString()
	s.logger.Debug("received allocate request",
		zap.String("batch_id", batchID),
		zap.String("location_id", req.LocationID),
		zap.String("order_id", req.OrderID),
		zap.Int("items", len(req.Items)),
	)

	outcomes := make([]domain.ItemOutcome, len(req.Items))

	g := new(errgroup.Group)
	g.SetLimit(s.maxConcurrent)
	for i, item := range req.Items {
		g.Go(func() error {
			outcomes[i] = s.allocateOne(ctx, req.LocationID, req.OrderID, item)
			return nil
		})
	}
	g.Wait()

	committed := 0
	for _, out := range outcomes {
		if out.Outcome == domain.OutcomeCommitted {
			committed++
		}
		s.outcomeQueue <- domain.OutcomeEvent{
			BatchID:    batchID,
			LocationID: req.LocationID,
			OrderID:    req.OrderID,
			ItemID:     out.Item.ItemID,
			Expiry:     out.Item.Expiry,
			Quantity:   out.Item.Quantity,
			Outcome:    out.Outcome,
			OccurredAt: time.Now(),
		}
	}

	if committed > 0 {
		if err := s.cache.InvalidateLocation(ctx, req.LocationID); err != nil {
			s.logger.Warn("failed to invalidate location cache",
				zap.String("location_id", req.LocationID), zap.Error(err))
		}
	}

	return aggregate(batchID, outcomes), nil
}

// allocateOne runs a single attempt to a terminal state. Errors of any
// shape are converted into this item's outcome; they never propagate to the
// batch.
func (s *AllocationService) allocateOne(ctx context.Context, locationID, orderID string, item domain.ItemRequest) domain.ItemOutcome {
	attempt := domain.AllocationRequest{
		LocationID: locationID,
		OrderID:    orderID,
		Key:        item.Key(),
		Quantity:   item.Quantity,
	}

	err := s.engine.Allocate(ctx, attempt)
	if err == nil {
		return domain.ItemOutcome{Item: item, Outcome: domain.OutcomeCommitted}
	}

	outcome := classifyAbort(err)
	s.logRejection(attempt, outcome, err)

	out := domain.ItemOutcome{
		Item:      item,
		Outcome:   outcome,
		Retryable: outcome.Retryable(),
	}
	if outcome == domain.OutcomeInsufficientStock || outcome == domain.OutcomeRejectedBoth {
		if available, ok := s.availableQuantity(ctx, locationID, attempt.Key); ok {
			out.Available = &available
		}
	}
	return out
}

// availableQuantity is a best-effort point read used to enrich stock
// rejections; a missing lot reports zero.
func (s *AllocationService) availableQuantity(ctx context.Context, locationID string, key domain.ItemKey) (int, bool) {
	lot, err := s.db.GetLot(ctx, locationID, key)
	if err != nil {
		s.logger.Warn("failed to read lot for availability hint",
			zap.String("item_key", key.String()), zap.Error(err))
		return 0, false
	}
	if lot == nil {
		return 0, true
	}
	return lot.Quantity, true
}

func (s *AllocationService) logRejection(attempt domain.AllocationRequest, outcome domain.Outcome, err error) {
	fields := []zap.Field{
		zap.String("item_key", attempt.Key.String()),
		zap.String("order_id", attempt.OrderID),
		zap.String("location_id", attempt.LocationID),
	}
	switch outcome {
	case domain.OutcomeRejectedBoth:
		s.logger.Error("not enough inventory available and inventory for this order has already been allocated", fields...)
	case domain.OutcomeAlreadyAllocated:
		s.logger.Error("inventory for this order has already been allocated", fields...)
	case domain.OutcomeInsufficientStock:
		s.logger.Error("not enough inventory available", fields...)
	default:
		s.logger.Error("allocation attempt failed, caller should retry",
			append(fields, zap.Error(err))...)
	}
}

// aggregate partitions decided outcomes into the structured result list and
// the transient-only retry subset. Committed and rejected items are
// terminal and never appear in Retry.
func aggregate(batchID string, outcomes []domain.ItemOutcome) *domain.BatchResult {
	result := &domain.BatchResult{
		BatchID: batchID,
		Results: outcomes,
		Retry:   []domain.ItemRequest{},
	}
	for _, out := range outcomes {
		if out.Retryable {
			result.Retry = append(result.Retry, out.Item)
		}
	}
	return result
}

// OutcomeQueue exposes the stream of decided item outcomes for the
// publishing workers.
func (s *AllocationService) OutcomeQueue() <-chan domain.OutcomeEvent {
	return s.outcomeQueue
}

// Close stops the outcome stream. AllocateBatch must not be called after
// Close.
func (s *AllocationService) Close() {
	close(s.outcomeQueue)
}
