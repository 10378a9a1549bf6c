package database

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusApproved  OrderStatus = "approved"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusDelayed   OrderStatus = "delayed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusMerged    OrderStatus = "merged" // absorbed into another order, terminal
)

// ActiveOrderStatuses are the statuses that count as live siblings for detection
// and that an order must be in to take part in a merge.
var ActiveOrderStatuses = []OrderStatus{OrderStatusPending, OrderStatusApproved}

// IsActive returns true for pending and approved orders
func (s OrderStatus) IsActive() bool {
	return s == OrderStatusPending || s == OrderStatusApproved
}

// IsValid returns true if s is a known order status
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusApproved, OrderStatusRejected,
		OrderStatusDelayed, OrderStatusCancelled, OrderStatusMerged:
		return true
	}
	return false
}

// Order is a customer order as seen by the suspicion detector and merge workflow.
// Catalog, payment and delivery data live with their own collaborators.
type Order struct {
	ID                  uint            `gorm:"primaryKey" json:"id"`
	CustomerID          uint            `gorm:"not null;index:idx_orders_customer_created,priority:1" json:"customer_id"`
	TotalAmount         decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_amount"`
	Status              OrderStatus     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	IsSuspicious        bool            `gorm:"default:false;index" json:"is_suspicious"`
	IsSingleSuspicious  bool            `gorm:"default:false" json:"is_single_suspicious"` // follow-up to a merged order
	SuspiciousReason    string          `gorm:"type:text" json:"suspicious_reason"`
	LinkedMergedOrderID *uint           `gorm:"index" json:"linked_merged_order_id,omitempty"`
	MergedIntoID        *uint           `gorm:"index" json:"merged_into_id,omitempty"`
	AdminNotes          string          `gorm:"type:text" json:"admin_notes"`
	CreatedAt           time.Time       `gorm:"not null;index:idx_orders_customer_created,priority:2" json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderItem is a single product line of an order
type OrderItem struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   uint            `gorm:"not null;index" json:"order_id"`
	ProductID string          `gorm:"type:varchar(64);not null" json:"product_id"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"unit_price"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// LineTotal returns quantity * unit price
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// AppendNote appends a line to existing admin notes
func AppendNote(notes, line string) string {
	if notes == "" {
		return line
	}
	return notes + "\n" + line
}
