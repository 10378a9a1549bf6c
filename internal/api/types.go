package api

import (
	"time"

	"github.com/harvestlink/harvestlink/internal/database"
	"github.com/shopspring/decimal"
)

// ========== Order Types ==========

// OrderItemRequest is a single line of CreateOrderRequest.
type OrderItemRequest struct {
	ProductID string          `json:"product_id" validate:"required,max=64"`
	Quantity  int             `json:"quantity" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"gte=0"`
}

// CreateOrderRequest is the request body for POST /api/orders.
// TotalAmount is derived from the lines when omitted. The server assigns created_at.
type CreateOrderRequest struct {
	CustomerID  uint               `json:"customer_id" validate:"required"`
	TotalAmount decimal.Decimal    `json:"total_amount" validate:"gte=0"`
	Items       []OrderItemRequest `json:"items" validate:"omitempty,max=500,dive"`
	AdminNotes  string             `json:"admin_notes" validate:"omitempty,max=2000"`
}

// CreateOrderResponse is the response body for POST /api/orders.
type CreateOrderResponse struct {
	Order          OrderResponse `json:"order"`
	Suspicious     bool          `json:"suspicious"`
	Reason         string        `json:"reason,omitempty"`
	RelatedOrders  []uint        `json:"related_order_ids,omitempty"`
	MarkedOrderIDs []uint        `json:"marked_order_ids,omitempty"`
}

// MergeOrdersRequest is the request body for POST /api/orders/merge.
// The first id is the surviving order.
type MergeOrdersRequest struct {
	OrderIDs []uint `json:"order_ids" validate:"required,min=2,max=50,unique,dive,gt=0"`
}

// UpdateStatusRequest is the request body for PUT /api/orders/{id}/status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=approved rejected delayed cancelled"`
	Note   string `json:"note" validate:"omitempty,max=2000"`
}

// OrderResponse is the API representation of an order.
type OrderResponse struct {
	ID                  uint                 `json:"id"`
	CustomerID          uint                 `json:"customer_id"`
	TotalAmount         string               `json:"total_amount"`
	Status              database.OrderStatus `json:"status"`
	IsSuspicious        bool                 `json:"is_suspicious"`
	IsSingleSuspicious  bool                 `json:"is_single_suspicious"`
	SuspiciousReason    string               `json:"suspicious_reason,omitempty"`
	LinkedMergedOrderID *uint                `json:"linked_merged_order_id,omitempty"`
	MergedIntoID        *uint                `json:"merged_into_id,omitempty"`
	AdminNotes          string               `json:"admin_notes,omitempty"`
	Items               []OrderItemResponse  `json:"items"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

// OrderItemResponse is the API representation of an order line.
type OrderItemResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

// ========== Settings Types ==========

// UpdateDetectionSettingsRequest is the request body for PUT /api/settings/detection.
// Omitted fields keep their current value.
type UpdateDetectionSettingsRequest struct {
	SiblingWindowSeconds  *int  `json:"sibling_window_seconds" validate:"omitempty,gt=0,lte=86400"`
	FollowUpWindowSeconds *int  `json:"follow_up_window_seconds" validate:"omitempty,gt=0,lte=86400"`
	FlagSiblings          *bool `json:"flag_siblings"`
	NotificationsEnabled  *bool `json:"notifications_enabled"`
	DigestEnabled         *bool `json:"digest_enabled"`
	DigestIntervalMinutes *int  `json:"digest_interval_minutes" validate:"omitempty,gt=0,lte=1440"`
}

// ========== Pagination Types ==========

// PaginationMeta contains pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// PaginatedResponse wraps a list response with pagination metadata.
type PaginatedResponse struct {
	Data       interface{}    `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}
