package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/stockroom/allocator/internal/core/domain"
	"github.com/stockroom/allocator/internal/port"
)

// MySQL error 1062: duplicate entry for a unique key.
const errDuplicateEntry = 1062

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// Allocate runs the two-operation conditional transaction: insert the
// allocation if absent, decrement the lot if sufficient. Both statements
// are evaluated even when the first precondition fails, so an abort always
// carries one verdict per operation in submission order.
func (m *MySQLAdapter) Allocate(ctx context.Context, req domain.AllocationRequest) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	reasons := []port.CancellationReason{
		{Code: port.ReasonNone},
		{Code: port.ReasonNone},
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO allocations (location_id, item_id, expiry, order_id, allocated, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		req.LocationID, req.Key.ItemID, req.Key.Expiry.String(), req.OrderID,
		req.Quantity, time.Now(),
	)
	if err != nil {
		if !isDuplicateEntry(err) {
			return fmt.Errorf("insert allocation: %w", err)
		}
		reasons[0] = port.CancellationReason{
			Code:    port.ReasonConditionFailed,
			Message: "allocation already exists",
		}
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE lots
		SET quantity = quantity - ?
		WHERE location_id = ? AND item_id = ? AND expiry = ? AND quantity >= ?`,
		req.Quantity, req.LocationID, req.Key.ItemID, req.Key.Expiry.String(), req.Quantity,
	)
	if err != nil {
		return fmt.Errorf("update lot: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		reasons[1] = port.CancellationReason{
			Code:    port.ReasonConditionFailed,
			Message: "not enough quantity",
		}
	}

	if reasons[0].Code != port.ReasonNone || reasons[1].Code != port.ReasonNone {
		return &port.TransactionCanceledError{Reasons: reasons}
	}

	return tx.Commit()
}

// AddStock upserts a lot; created_at is written only when the row is first
// inserted.
func (m *MySQLAdapter) AddStock(ctx context.Context, locationID string, key domain.ItemKey, quantity int) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO lots (location_id, item_id, expiry, quantity, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity)`,
		locationID, key.ItemID, key.Expiry.String(), quantity, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("add stock: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetLocation(ctx context.Context, locationID string) ([]domain.Lot, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT item_id, expiry, quantity, created_at
		FROM lots WHERE location_id = ?
		ORDER BY item_id, expiry`, locationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query lots: %w", err)
	}
	defer rows.Close()

	var lots []domain.Lot
	for rows.Next() {
		var (
			lot    domain.Lot
			expiry time.Time
		)
		if err := rows.Scan(&lot.Key.ItemID, &expiry, &lot.Quantity, &lot.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan lot: %w", err)
		}
		lot.LocationID = locationID
		lot.Key.Expiry = domain.ExpiryOf(expiry)
		lots = append(lots, lot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lots: %w", err)
	}

	return lots, nil
}

func (m *MySQLAdapter) GetLot(ctx context.Context, locationID string, key domain.ItemKey) (*domain.Lot, error) {
	var lot domain.Lot
	err := m.db.QueryRowContext(ctx, `
		SELECT quantity, created_at
		FROM lots WHERE location_id = ? AND item_id = ? AND expiry = ?`,
		locationID, key.ItemID, key.Expiry.String(),
	).Scan(&lot.Quantity, &lot.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query lot: %w", err)
	}

	lot.LocationID = locationID
	lot.Key = key
	return &lot, nil
}

func (m *MySQLAdapter) GetAllocation(ctx context.Context, locationID string, key domain.ItemKey, orderID string) (*domain.Allocation, error) {
	var alloc domain.Allocation
	err := m.db.QueryRowContext(ctx, `
		SELECT allocated, created_at
		FROM allocations WHERE location_id = ? AND item_id = ? AND expiry = ? AND order_id = ?`,
		locationID, key.ItemID, key.Expiry.String(), orderID,
	).Scan(&alloc.Allocated, &alloc.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query allocation: %w", err)
	}

	alloc.LocationID = locationID
	alloc.Key = key
	alloc.OrderID = orderID
	return &alloc, nil
}

func (m *MySQLAdapter) Collect(ctx context.Context, locationID string, key domain.ItemKey, orderID string) error {
	_, err := m.db.ExecContext(ctx, `
		DELETE FROM allocations
		WHERE location_id = ? AND item_id = ? AND expiry = ? AND order_id = ?`,
		locationID, key.ItemID, key.Expiry.String(), orderID,
	)
	if err != nil {
		return fmt.Errorf("delete allocation: %w", err)
	}
	return nil
}

func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == errDuplicateEntry
}
