package port

import (
	"context"

	"github.com/stockroom/allocator/internal/core/domain"
)

type EventPublisher interface {
	// PublishOutcome emits one decided item outcome to the event stream.
	PublishOutcome(ctx context.Context, event domain.OutcomeEvent) error
}
