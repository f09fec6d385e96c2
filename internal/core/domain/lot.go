package domain

import (
	"fmt"
	"time"
)

// Expiry is the calendar date on which a batch of stock expires. It is kept
// as a plain tuple so key equality never depends on string formatting.
type Expiry struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// String renders the expiry as YYYY-MM-DD with zero padding.
func (e Expiry) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", e.Year, e.Month, e.Day)
}

// Valid reports whether the tuple denotes a real calendar date.
func (e Expiry) Valid() bool {
	if e.Year < 1 || e.Month < 1 || e.Month > 12 || e.Day < 1 || e.Day > 31 {
		return false
	}
	t := time.Date(e.Year, time.Month(e.Month), e.Day, 0, 0, 0, 0, time.UTC)
	return t.Year() == e.Year && int(t.Month()) == e.Month && t.Day() == e.Day
}

// ExpiryOf truncates a timestamp to its calendar date.
func ExpiryOf(t time.Time) Expiry {
	return Expiry{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

// ItemKey identifies one lot within a location: an item plus the expiry of
// that particular batch. Keys are compared as struct values; the flat
// "itemID:YYYY-MM-DD" form exists only for storage keys and log labels.
type ItemKey struct {
	ItemID string `json:"itemId"`
	Expiry Expiry `json:"expiry"`
}

func (k ItemKey) String() string {
	return k.ItemID + ":" + k.Expiry.String()
}

// Lot is a quantity of one item with one expiry, held at one location.
// Quantity never goes negative: it only decreases through a committed
// allocation and only increases through AddStock.
type Lot struct {
	LocationID string    `json:"locationId"`
	Key        ItemKey   `json:"key"`
	Quantity   int       `json:"quantity"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Allocation is a claim by one order on part of one lot. Its mere existence
// is the idempotency guard: at most one allocation per (location, item key,
// order) can ever exist.
type Allocation struct {
	LocationID string    `json:"locationId"`
	Key        ItemKey   `json:"key"`
	OrderID    string    `json:"orderId"`
	Allocated  int       `json:"allocated"`
	CreatedAt  time.Time `json:"createdAt"`
}
