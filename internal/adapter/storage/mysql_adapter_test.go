package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/stockroom/allocator/internal/core/domain"
	"github.com/stockroom/allocator/internal/port"
)

func getMySQLDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/stockroom?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	ensureSchema(t, db)
	return db
}

func ensureSchema(t *testing.T, db *sql.DB) {
	t.Helper()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS lots (
			location_id VARCHAR(64) NOT NULL,
			item_id     VARCHAR(64) NOT NULL,
			expiry      DATE        NOT NULL,
			quantity    INT         NOT NULL,
			created_at  DATETIME    NOT NULL,
			PRIMARY KEY (location_id, item_id, expiry)
		)`,
		`CREATE TABLE IF NOT EXISTS allocations (
			location_id VARCHAR(64) NOT NULL,
			item_id     VARCHAR(64) NOT NULL,
			expiry      DATE        NOT NULL,
			order_id    VARCHAR(64) NOT NULL,
			allocated   INT         NOT NULL,
			created_at  DATETIME    NOT NULL,
			PRIMARY KEY (location_id, item_id, expiry, order_id)
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("schema setup failed: %v", err)
		}
	}
}

var testExpiry = domain.Expiry{Year: 2027, Month: 6, Day: 30}

func testKey(itemID string) domain.ItemKey {
	return domain.ItemKey{ItemID: itemID, Expiry: testExpiry}
}

// testLocation returns a fresh location per test so runs never interfere.
func testLocation() string {
	return "test-" + uuid.NewString()
}

func allocation(locationID, orderID string, qty int) domain.AllocationRequest {
	return domain.AllocationRequest{
		LocationID: locationID,
		OrderID:    orderID,
		Key:        testKey("widget"),
		Quantity:   qty,
	}
}

func TestAllocate_Commits(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	loc := testLocation()

	if err := adapter.AddStock(ctx, loc, testKey("widget"), 10); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if err := adapter.Allocate(ctx, allocation(loc, "order-1", 5)); err != nil {
		t.Fatalf("expected commit, got %v", err)
	}

	lot, err := adapter.GetLot(ctx, loc, testKey("widget"))
	if err != nil || lot == nil {
		t.Fatalf("lot read failed: %v", err)
	}
	if lot.Quantity != 5 {
		t.Errorf("expected quantity 5, got %d", lot.Quantity)
	}

	alloc, err := adapter.GetAllocation(ctx, loc, testKey("widget"), "order-1")
	if err != nil || alloc == nil {
		t.Fatalf("allocation read failed: %v", err)
	}
	if alloc.Allocated != 5 {
		t.Errorf("expected allocated 5, got %d", alloc.Allocated)
	}
}

func TestAllocate_AlreadyAllocated(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	loc := testLocation()

	adapter.AddStock(ctx, loc, testKey("widget"), 10)
	if err := adapter.Allocate(ctx, allocation(loc, "order-1", 5)); err != nil {
		t.Fatalf("first allocation failed: %v", err)
	}

	err := adapter.Allocate(ctx, allocation(loc, "order-1", 3))
	var canceled *port.TransactionCanceledError
	if !errors.As(err, &canceled) {
		t.Fatalf("expected TransactionCanceledError, got %v", err)
	}
	if canceled.Reasons[0].Code != port.ReasonConditionFailed {
		t.Errorf("insert reason = %s, want ConditionalCheckFailed", canceled.Reasons[0].Code)
	}
	if canceled.Reasons[1].Code != port.ReasonNone {
		t.Errorf("update reason = %s, want None", canceled.Reasons[1].Code)
	}

	lot, _ := adapter.GetLot(ctx, loc, testKey("widget"))
	if lot.Quantity != 5 {
		t.Errorf("quantity must not change on abort, got %d", lot.Quantity)
	}
}

func TestAllocate_InsufficientStock(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	loc := testLocation()

	adapter.AddStock(ctx, loc, testKey("widget"), 5)

	err := adapter.Allocate(ctx, allocation(loc, "order-2", 10))
	var canceled *port.TransactionCanceledError
	if !errors.As(err, &canceled) {
		t.Fatalf("expected TransactionCanceledError, got %v", err)
	}
	if canceled.Reasons[0].Code != port.ReasonNone {
		t.Errorf("insert reason = %s, want None", canceled.Reasons[0].Code)
	}
	if canceled.Reasons[1].Code != port.ReasonConditionFailed {
		t.Errorf("update reason = %s, want ConditionalCheckFailed", canceled.Reasons[1].Code)
	}

	// Atomicity: the insert must have been rolled back with the abort.
	alloc, _ := adapter.GetAllocation(ctx, loc, testKey("widget"), "order-2")
	if alloc != nil {
		t.Errorf("no allocation must survive an abort, got %+v", alloc)
	}

	lot, _ := adapter.GetLot(ctx, loc, testKey("widget"))
	if lot.Quantity != 5 {
		t.Errorf("quantity must not change on abort, got %d", lot.Quantity)
	}
}

func TestAllocate_BothConditionsFailed(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	loc := testLocation()

	adapter.AddStock(ctx, loc, testKey("widget"), 5)
	if err := adapter.Allocate(ctx, allocation(loc, "order-1", 5)); err != nil {
		t.Fatalf("first allocation failed: %v", err)
	}

	err := adapter.Allocate(ctx, allocation(loc, "order-1", 3))
	var canceled *port.TransactionCanceledError
	if !errors.As(err, &canceled) {
		t.Fatalf("expected TransactionCanceledError, got %v", err)
	}
	if canceled.Reasons[0].Code != port.ReasonConditionFailed ||
		canceled.Reasons[1].Code != port.ReasonConditionFailed {
		t.Errorf("expected both conditions failed, got %v", canceled.Reasons)
	}
}

func TestAllocate_MissingLot(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	adapter := NewMySQLAdapter(db)

	err := adapter.Allocate(context.Background(), allocation(testLocation(), "order-1", 1))
	var canceled *port.TransactionCanceledError
	if !errors.As(err, &canceled) {
		t.Fatalf("expected TransactionCanceledError, got %v", err)
	}
	if canceled.Reasons[1].Code != port.ReasonConditionFailed {
		t.Errorf("a missing lot must fail the update condition, got %v", canceled.Reasons)
	}
}

func TestAddStock_CreatedAtSetOnce(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	loc := testLocation()

	if err := adapter.AddStock(ctx, loc, testKey("widget"), 10); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	first, _ := adapter.GetLot(ctx, loc, testKey("widget"))

	if err := adapter.AddStock(ctx, loc, testKey("widget"), 5); err != nil {
		t.Fatalf("second add failed: %v", err)
	}
	second, _ := adapter.GetLot(ctx, loc, testKey("widget"))

	if second.Quantity != 15 {
		t.Errorf("expected quantity 15, got %d", second.Quantity)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("created_at must be immutable: %v != %v", second.CreatedAt, first.CreatedAt)
	}
}

func TestGetLot_MissingReturnsNil(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	adapter := NewMySQLAdapter(db)

	lot, err := adapter.GetLot(context.Background(), testLocation(), testKey("nope"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lot != nil {
		t.Errorf("expected nil lot, got %+v", lot)
	}
}

func TestGetLocation_ListsLots(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	loc := testLocation()

	adapter.AddStock(ctx, loc, testKey("apple"), 3)
	adapter.AddStock(ctx, loc, testKey("banana"), 7)

	lots, err := adapter.GetLocation(ctx, loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lots) != 2 {
		t.Fatalf("expected 2 lots, got %d", len(lots))
	}
	if lots[0].Key.ItemID != "apple" || lots[1].Key.ItemID != "banana" {
		t.Errorf("expected ordered listing, got %+v", lots)
	}
	if lots[0].Key.Expiry != testExpiry {
		t.Errorf("expiry must round-trip, got %v", lots[0].Key.Expiry)
	}
}

func TestCollect_DeletesAllocation(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	loc := testLocation()

	adapter.AddStock(ctx, loc, testKey("widget"), 10)
	if err := adapter.Allocate(ctx, allocation(loc, "order-1", 4)); err != nil {
		t.Fatalf("allocation failed: %v", err)
	}

	if err := adapter.Collect(ctx, loc, testKey("widget"), "order-1"); err != nil {
		t.Fatalf("collect failed: %v", err)
	}

	alloc, _ := adapter.GetAllocation(ctx, loc, testKey("widget"), "order-1")
	if alloc != nil {
		t.Errorf("allocation should be gone, got %+v", alloc)
	}

	// Collecting does not restore lot quantity.
	lot, _ := adapter.GetLot(ctx, loc, testKey("widget"))
	if lot.Quantity != 6 {
		t.Errorf("expected quantity 6, got %d", lot.Quantity)
	}
}
