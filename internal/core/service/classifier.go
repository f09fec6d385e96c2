package service

import (
	"errors"

	"github.com/stockroom/allocator/internal/core/domain"
	"github.com/stockroom/allocator/internal/port"
)

// classifyAbort maps a failed allocation attempt to its outcome. Only an
// abort carrying exactly one verdict per operation can produce a business
// rejection; every other shape (throttling, network failure, driver error,
// or an abort where neither precondition failed) classifies transient and
// is left to the caller to retry.
func classifyAbort(err error) domain.Outcome {
	var canceled *port.TransactionCanceledError
	if !errors.As(err, &canceled) {
		return domain.OutcomeTransient
	}
	if len(canceled.Reasons) != 2 {
		return domain.OutcomeTransient
	}

	insertFailed := canceled.Reasons[0].Code == port.ReasonConditionFailed
	updateFailed := canceled.Reasons[1].Code == port.ReasonConditionFailed

	switch {
	case insertFailed && updateFailed:
		return domain.OutcomeRejectedBoth
	case insertFailed:
		return domain.OutcomeAlreadyAllocated
	case updateFailed:
		return domain.OutcomeInsufficientStock
	default:
		return domain.OutcomeTransient
	}
}
