package api

import (
	"github.com/harvestlink/harvestlink/internal/database"
)

// OrderToResponse converts a database Order to its API representation.
// Amounts are rendered with two decimals.
func OrderToResponse(o database.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = OrderItemResponse{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
			LineTotal: item.LineTotal().StringFixed(2),
		}
	}
	return OrderResponse{
		ID:                  o.ID,
		CustomerID:          o.CustomerID,
		TotalAmount:         o.TotalAmount.StringFixed(2),
		Status:              o.Status,
		IsSuspicious:        o.IsSuspicious,
		IsSingleSuspicious:  o.IsSingleSuspicious,
		SuspiciousReason:    o.SuspiciousReason,
		LinkedMergedOrderID: o.LinkedMergedOrderID,
		MergedIntoID:        o.MergedIntoID,
		AdminNotes:          o.AdminNotes,
		Items:               items,
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
	}
}

// OrdersToResponses converts a slice of database Orders.
func OrdersToResponses(orders []database.Order) []OrderResponse {
	out := make([]OrderResponse, len(orders))
	for i, o := range orders {
		out[i] = OrderToResponse(o)
	}
	return out
}

// CreateOrderRequestToModel builds the order to insert from a validated request.
func CreateOrderRequestToModel(req CreateOrderRequest) *database.Order {
	order := &database.Order{
		CustomerID:  req.CustomerID,
		TotalAmount: req.TotalAmount,
		AdminNotes:  req.AdminNotes,
	}
	for _, item := range req.Items {
		order.Items = append(order.Items, database.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return order
}

// ApplyDetectionSettings copies the fields present in req onto settings.
func ApplyDetectionSettings(settings *database.DetectionSettings, req UpdateDetectionSettingsRequest) {
	if req.SiblingWindowSeconds != nil {
		settings.SiblingWindowSeconds = *req.SiblingWindowSeconds
	}
	if req.FollowUpWindowSeconds != nil {
		settings.FollowUpWindowSeconds = *req.FollowUpWindowSeconds
	}
	if req.FlagSiblings != nil {
		settings.FlagSiblings = *req.FlagSiblings
	}
	if req.NotificationsEnabled != nil {
		settings.NotificationsEnabled = *req.NotificationsEnabled
	}
	if req.DigestEnabled != nil {
		settings.DigestEnabled = *req.DigestEnabled
	}
	if req.DigestIntervalMinutes != nil {
		settings.DigestIntervalMinutes = *req.DigestIntervalMinutes
	}
}
