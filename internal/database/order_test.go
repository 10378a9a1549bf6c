package database

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

var testBase = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func createOrder(t *testing.T, db *gorm.DB, customerID uint, status OrderStatus, offset time.Duration) *Order {
	t.Helper()
	order := &Order{
		CustomerID:  customerID,
		Status:      status,
		TotalAmount: decimal.NewFromInt(10),
		CreatedAt:   testBase.Add(offset),
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("failed to create order: %v", err)
	}
	return order
}

func TestOrder_TableNames(t *testing.T) {
	if (Order{}).TableName() != "orders" {
		t.Errorf("expected table name 'orders', got '%s'", Order{}.TableName())
	}
	if (OrderItem{}).TableName() != "order_items" {
		t.Errorf("expected table name 'order_items', got '%s'", OrderItem{}.TableName())
	}
	if (OrderMerge{}).TableName() != "order_merges" {
		t.Errorf("expected table name 'order_merges', got '%s'", OrderMerge{}.TableName())
	}
}

func TestOrderStatus_IsActive(t *testing.T) {
	tests := []struct {
		status OrderStatus
		want   bool
	}{
		{OrderStatusPending, true},
		{OrderStatusApproved, true},
		{OrderStatusRejected, false},
		{OrderStatusDelayed, false},
		{OrderStatusCancelled, false},
		{OrderStatusMerged, false},
	}

	for _, tt := range tests {
		if got := tt.status.IsActive(); got != tt.want {
			t.Errorf("%s.IsActive() = %v, want %v", tt.status, got, tt.want)
		}
		if !tt.status.IsValid() {
			t.Errorf("expected %s to be valid", tt.status)
		}
	}
	if OrderStatus("shipped").IsValid() {
		t.Error("expected unknown status to be invalid")
	}
}

func TestOrderItem_LineTotal(t *testing.T) {
	item := OrderItem{Quantity: 3, UnitPrice: decimal.RequireFromString("2.35")}
	if !item.LineTotal().Equal(decimal.RequireFromString("7.05")) {
		t.Errorf("expected 7.05, got %s", item.LineTotal())
	}
}

func TestAppendNote(t *testing.T) {
	if got := AppendNote("", "first"); got != "first" {
		t.Errorf("expected 'first', got %q", got)
	}
	if got := AppendNote("first", "second"); got != "first\nsecond" {
		t.Errorf("expected two lines, got %q", got)
	}
}

func TestFormatMergeProvenance(t *testing.T) {
	if got := FormatMergeProvenance([]uint{12, 3, 40}); got != "Merged from orders: 12, 3, 40" {
		t.Errorf("unexpected provenance %q", got)
	}
	if got := FormatMergedInto(12); got != "Merged into order #12" {
		t.Errorf("unexpected back-reference %q", got)
	}
}

func TestFindActiveOrdersInRange(t *testing.T) {
	db := setupTestDB(t)

	subject := createOrder(t, db, 1, OrderStatusPending, 0)
	inside := createOrder(t, db, 1, OrderStatusApproved, 2*time.Minute)
	createOrder(t, db, 1, OrderStatusRejected, time.Minute)
	createOrder(t, db, 1, OrderStatusPending, 20*time.Minute)
	createOrder(t, db, 2, OrderStatusPending, time.Minute)

	orders, err := FindActiveOrdersInRange(db, 1, subject.ID, testBase.Add(-5*time.Minute), testBase.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != inside.ID {
		t.Errorf("expected only order %d, got %+v", inside.ID, orders)
	}
}

func TestFindMergeSurvivorsInRange(t *testing.T) {
	db := setupTestDB(t)

	survivor := createOrder(t, db, 1, OrderStatusApproved, 0)
	plainApproved := createOrder(t, db, 1, OrderStatusApproved, time.Minute)
	db.Create(&OrderMerge{UUID: "m-1", SurvivorOrderID: survivor.ID, CustomerID: 1, MergedBy: "admin", OrderCount: 2})

	orders, err := FindMergeSurvivorsInRange(db, 1, testBase.Add(-time.Hour), testBase.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != survivor.ID {
		t.Errorf("expected only survivor %d (not %d), got %+v", survivor.ID, plainApproved.ID, orders)
	}

	db.Model(&Order{}).Where("id = ?", survivor.ID).Update("status", OrderStatusCancelled)
	orders, _ = FindMergeSurvivorsInRange(db, 1, testBase.Add(-time.Hour), testBase.Add(time.Hour))
	if len(orders) != 0 {
		t.Errorf("expected cancelled survivor to be excluded, got %d", len(orders))
	}
}

func TestGetMergeBySurvivor(t *testing.T) {
	db := setupTestDB(t)

	merge := &OrderMerge{
		UUID:            "m-1",
		SurvivorOrderID: 7,
		CustomerID:      1,
		MergedBy:        "admin",
		OrderCount:      2,
		Members:         []OrderMergeMember{{OrderID: 7}, {OrderID: 8}},
	}
	if err := db.Create(merge).Error; err != nil {
		t.Fatalf("failed to create merge: %v", err)
	}

	got, err := GetMergeBySurvivor(db, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Members) != 2 {
		t.Errorf("expected 2 members, got %d", len(got.Members))
	}

	if _, err := GetMergeBySurvivor(db, 8); err != gorm.ErrRecordNotFound {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestMergeRecords_SurvivorMergedTwice(t *testing.T) {
	db := setupTestDB(t)

	survivor := createOrder(t, db, 1, OrderStatusApproved, 0)
	first := &OrderMerge{
		UUID: "m-1", SurvivorOrderID: survivor.ID, CustomerID: 1, MergedBy: "admin", OrderCount: 2,
		CreatedAt: testBase.Add(time.Minute),
		Members:   []OrderMergeMember{{OrderID: survivor.ID}, {OrderID: 20}},
	}
	second := &OrderMerge{
		UUID: "m-2", SurvivorOrderID: survivor.ID, CustomerID: 1, MergedBy: "admin", OrderCount: 2,
		CreatedAt: testBase.Add(4 * time.Minute),
		Members:   []OrderMergeMember{{OrderID: survivor.ID}, {OrderID: 21}},
	}
	if err := db.Create(first).Error; err != nil {
		t.Fatalf("failed to create first merge: %v", err)
	}
	if err := db.Create(second).Error; err != nil {
		t.Fatalf("second merge with the same survivor rejected: %v", err)
	}

	orders, err := FindMergeSurvivorsInRange(db, 1, testBase.Add(-time.Hour), testBase.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != survivor.ID {
		t.Errorf("expected survivor %d once, got %+v", survivor.ID, orders)
	}

	got, err := GetMergeBySurvivor(db, survivor.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UUID != "m-2" {
		t.Errorf("expected latest merge m-2, got %s", got.UUID)
	}
	for _, m := range got.Members {
		if m.OrderID == 20 {
			t.Errorf("expected members of the latest merge, got %+v", got.Members)
		}
	}
}

func TestMigrate_DropsUniqueSurvivorIndex(t *testing.T) {
	db := setupTestDB(t)

	if err := db.Exec("CREATE UNIQUE INDEX idx_order_merges_survivor_order_id ON order_merges (survivor_order_id)").Error; err != nil {
		t.Fatalf("failed to create legacy index: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if db.Migrator().HasIndex(&OrderMerge{}, "idx_order_merges_survivor_order_id") {
		t.Error("expected legacy unique index to be dropped")
	}
	if !db.Migrator().HasIndex(&OrderMerge{}, "idx_order_merges_survivor") {
		t.Error("expected plain survivor index")
	}
}

func TestGetOrdersByIDs_Empty(t *testing.T) {
	db := setupTestDB(t)

	orders, err := GetOrdersByIDs(db, nil)
	if err != nil || len(orders) != 0 {
		t.Errorf("expected empty result, got %v, %v", orders, err)
	}
}
