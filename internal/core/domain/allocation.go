package domain

import (
	"fmt"
	"strings"
	"time"
)

// keyDelimiters are reserved by the serialized key forms ("itemID:date" and
// "itemKey+orderID"); identifiers containing them are rejected up front.
const keyDelimiters = ":+"

// ValidationError reports a malformed request field. It is returned before
// any storage call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ItemRequest is one requested line of an allocate or add-stock call.
type ItemRequest struct {
	ItemID   string `json:"itemId"`
	Expiry   Expiry `json:"expiry"`
	Quantity int    `json:"quantity"`
}

func (r ItemRequest) Key() ItemKey {
	return ItemKey{ItemID: r.ItemID, Expiry: r.Expiry}
}

func (r ItemRequest) validate(field string) error {
	if err := validateIdentifier(field+".itemId", r.ItemID); err != nil {
		return err
	}
	if !r.Expiry.Valid() {
		return &ValidationError{Field: field + ".expiry", Reason: "not a valid calendar date"}
	}
	if r.Quantity <= 0 {
		return &ValidationError{Field: field + ".quantity", Reason: "must be a positive integer"}
	}
	return nil
}

func validateIdentifier(field, value string) error {
	if value == "" {
		return &ValidationError{Field: field, Reason: "must not be empty"}
	}
	if strings.ContainsAny(value, keyDelimiters) {
		return &ValidationError{Field: field, Reason: `must not contain ":" or "+"`}
	}
	return nil
}

// BatchRequest asks to allocate a list of items held at one location to one
// order. RequestID is optional; when set, resubmissions with the same token
// are rejected for ten minutes after the first request.
type BatchRequest struct {
	RequestID  string        `json:"requestId,omitempty"`
	LocationID string        `json:"locationId"`
	OrderID    string        `json:"orderId"`
	Items      []ItemRequest `json:"items"`
}

func (r BatchRequest) Validate() error {
	if err := validateIdentifier("locationId", r.LocationID); err != nil {
		return err
	}
	if err := validateIdentifier("orderId", r.OrderID); err != nil {
		return err
	}
	if len(r.Items) == 0 {
		return &ValidationError{Field: "items", Reason: "must not be empty"}
	}
	for i, item := range r.Items {
		if err := item.validate(fmt.Sprintf("items[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

// StockRequest adds quantities of items to a location's lots.
type StockRequest struct {
	LocationID string        `json:"locationId"`
	Items      []ItemRequest `json:"items"`
}

func (r StockRequest) Validate() error {
	if err := validateIdentifier("locationId", r.LocationID); err != nil {
		return err
	}
	if len(r.Items) == 0 {
		return &ValidationError{Field: "items", Reason: "must not be empty"}
	}
	for i, item := range r.Items {
		if err := item.validate(fmt.Sprintf("items[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

// CollectItem names one allocation to delete; quantity is irrelevant for
// collection.
type CollectItem struct {
	ItemID string `json:"itemId"`
	Expiry Expiry `json:"expiry"`
}

func (c CollectItem) Key() ItemKey {
	return ItemKey{ItemID: c.ItemID, Expiry: c.Expiry}
}

// CollectRequest deletes the allocations a fulfilled order holds at a
// location.
type CollectRequest struct {
	LocationID string        `json:"locationId"`
	OrderID    string        `json:"orderId"`
	Items      []CollectItem `json:"items"`
}

func (r CollectRequest) Validate() error {
	if err := validateIdentifier("locationId", r.LocationID); err != nil {
		return err
	}
	if err := validateIdentifier("orderId", r.OrderID); err != nil {
		return err
	}
	if len(r.Items) == 0 {
		return &ValidationError{Field: "items", Reason: "must not be empty"}
	}
	for i, item := range r.Items {
		if err := validateIdentifier(fmt.Sprintf("items[%d].itemId", i), item.ItemID); err != nil {
			return err
		}
		if !item.Expiry.Valid() {
			return &ValidationError{Field: fmt.Sprintf("items[%d].expiry", i), Reason: "not a valid calendar date"}
		}
	}
	return nil
}

// AllocationRequest is the transient per-item unit handed to the
// transaction engine. It exists only for the duration of one attempt.
type AllocationRequest struct {
	LocationID string
	OrderID    string
	Key        ItemKey
	Quantity   int
}

// Outcome is the terminal state of one allocation attempt.
type Outcome string

const (
	OutcomeCommitted         Outcome = "committed"
	OutcomeInsufficientStock Outcome = "insufficient_stock"
	OutcomeAlreadyAllocated  Outcome = "already_allocated"
	OutcomeRejectedBoth      Outcome = "rejected_both"
	OutcomeTransient         Outcome = "transient"
)

// Retryable reports whether resubmitting the identical request can succeed
// without the stored state changing first.
func (o Outcome) Retryable() bool {
	return o == OutcomeTransient
}

// ItemOutcome pairs one requested item with its decided outcome. Available
// is a best-effort snapshot of the lot's remaining quantity, attached only
// when the rejection was about stock.
type ItemOutcome struct {
	Item      ItemRequest `json:"item"`
	Outcome   Outcome     `json:"outcome"`
	Retryable bool        `json:"retryable"`
	Available *int        `json:"available,omitempty"`
}

// BatchResult is the aggregate answer for one allocate call. Retry holds
// the transient-only subset callers should resubmit; rejections are
// terminal and appear only in Results.
type BatchResult struct {
	BatchID string        `json:"batchId"`
	Results []ItemOutcome `json:"results"`
	Retry   []ItemRequest `json:"retry"`
}

// OutcomeEvent is the observability record emitted for every decided item.
type OutcomeEvent struct {
	BatchID    string    `json:"batchId"`
	LocationID string    `json:"locationId"`
	OrderID    string    `json:"orderId"`
	ItemID     string    `json:"itemId"`
	Expiry     Expiry    `json:"expiry"`
	Quantity   int       `json:"quantity"`
	Outcome    Outcome   `json:"outcome"`
	OccurredAt time.Time `json:"occurredAt"`
}
