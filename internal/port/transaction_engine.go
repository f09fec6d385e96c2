package port

import (
	"context"
	"strings"

	"github.com/stockroom/allocator/internal/core/domain"
)

// ReasonCode tells why one operation of a conditional transaction was
// cancelled.
type ReasonCode string

const (
	// ReasonNone marks an operation whose precondition held; it was rolled
	// back only because a sibling operation failed.
	ReasonNone ReasonCode = "None"

	// ReasonConditionFailed marks an operation whose precondition did not
	// hold against the currently stored state.
	ReasonConditionFailed ReasonCode = "ConditionalCheckFailed"
)

// CancellationReason is the per-operation failure detail of an aborted
// conditional transaction.
type CancellationReason struct {
	Code    ReasonCode
	Message string
}

// TransactionCanceledError reports an aborted conditional transaction.
// Reasons holds one entry per operation, in the order the operations were
// submitted: [allocation insert, quantity update].
type TransactionCanceledError struct {
	Reasons []CancellationReason
}

func (e *TransactionCanceledError) Error() string {
	codes := make([]string, len(e.Reasons))
	for i, r := range e.Reasons {
		codes[i] = string(r.Code)
	}
	return "transaction canceled: [" + strings.Join(codes, ", ") + "]"
}

// TransactionEngine executes the allocation write as one all-or-nothing
// conditional transaction with exactly two operations:
//
//  1. insert the allocation record, precondition "no record exists at this
//     key"
//  2. decrement the lot's quantity, precondition "quantity >= requested"
//
// A nil return means both writes committed atomically; no reader can
// observe one effect without the other. A *TransactionCanceledError means
// neither write applied. Any other error is an infrastructure failure that
// carries no precondition verdict.
type TransactionEngine interface {
	Allocate(ctx context.Context, req domain.AllocationRequest) error
}
