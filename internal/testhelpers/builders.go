package testhelpers

import (
	"testing"
	"time"

	"github.com/harvestlink/harvestlink/internal/database"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BaseTime is a fixed UTC instant tests place orders relative to
var BaseTime = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

// ========================================
// Order Builder
// ========================================

// OrderBuilder builds Order instances for testing
type OrderBuilder struct {
	order database.Order
}

// NewOrderBuilder creates a pending order for customer 1 at BaseTime
func NewOrderBuilder() *OrderBuilder {
	return &OrderBuilder{
		order: database.Order{
			CustomerID:  1,
			TotalAmount: decimal.RequireFromString("100.00"),
			Status:      database.OrderStatusPending,
			CreatedAt:   BaseTime,
		},
	}
}

// WithCustomer sets the customer ID
func (b *OrderBuilder) WithCustomer(id uint) *OrderBuilder {
	b.order.CustomerID = id
	return b
}

// At sets created_at to BaseTime + offset
func (b *OrderBuilder) At(offset time.Duration) *OrderBuilder {
	b.order.CreatedAt = BaseTime.Add(offset)
	return b
}

// WithStatus sets the status
func (b *OrderBuilder) WithStatus(status database.OrderStatus) *OrderBuilder {
	b.order.Status = status
	return b
}

// WithTotal sets the total amount from a decimal string
func (b *OrderBuilder) WithTotal(amount string) *OrderBuilder {
	b.order.TotalAmount = decimal.RequireFromString(amount)
	return b
}

// WithItem adds an order line
func (b *OrderBuilder) WithItem(productID string, quantity int, unitPrice string) *OrderBuilder {
	b.order.Items = append(b.order.Items, database.OrderItem{
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: decimal.RequireFromString(unitPrice),
	})
	return b
}

// Suspicious marks the order as a tier-1 suspicious order
func (b *OrderBuilder) Suspicious(reason string) *OrderBuilder {
	b.order.IsSuspicious = true
	b.order.SuspiciousReason = reason
	return b
}

// WithNotes sets admin notes
func (b *OrderBuilder) WithNotes(notes string) *OrderBuilder {
	b.order.AdminNotes = notes
	return b
}

// Build returns the constructed order
func (b *OrderBuilder) Build() database.Order {
	return b.order
}

// Create inserts the order directly, bypassing detection
func (b *OrderBuilder) Create(t *testing.T, db *gorm.DB) *database.Order {
	t.Helper()
	order := b.order
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("failed to create order: %v", err)
	}
	return &order
}

// ========================================
// Detection Settings Builder
// ========================================

// DetectionSettingsBuilder builds DetectionSettings for testing
type DetectionSettingsBuilder struct {
	settings database.DetectionSettings
}

// NewDetectionSettingsBuilder starts from the built-in defaults
func NewDetectionSettingsBuilder() *DetectionSettingsBuilder {
	return &DetectionSettingsBuilder{settings: *database.NewDefaultDetectionSettings()}
}

// WithSiblingWindow sets the tier-1 window
func (b *DetectionSettingsBuilder) WithSiblingWindow(d time.Duration) *DetectionSettingsBuilder {
	b.settings.SiblingWindowSeconds = int(d / time.Second)
	return b
}

// WithFollowUpWindow sets the tier-2 window
func (b *DetectionSettingsBuilder) WithFollowUpWindow(d time.Duration) *DetectionSettingsBuilder {
	b.settings.FollowUpWindowSeconds = int(d / time.Second)
	return b
}

// OnlyNewest stops tier-1 from marking earlier siblings
func (b *DetectionSettingsBuilder) OnlyNewest() *DetectionSettingsBuilder {
	b.settings.FlagSiblings = false
	return b
}

// WithoutNotifications disables notifications
func (b *DetectionSettingsBuilder) WithoutNotifications() *DetectionSettingsBuilder {
	b.settings.NotificationsEnabled = false
	return b
}

// Build returns the constructed settings
func (b *DetectionSettingsBuilder) Build() database.DetectionSettings {
	return b.settings
}

// Save stores the settings as the singleton row
func (b *DetectionSettingsBuilder) Save(t *testing.T, db *gorm.DB) *database.DetectionSettings {
	t.Helper()
	settings := b.settings
	existing, err := database.GetOrCreateDetectionSettings(db, &settings)
	if err != nil {
		t.Fatalf("failed to create detection settings: %v", err)
	}
	settings.ID = existing.ID
	settings.CreatedAt = existing.CreatedAt
	if err := database.UpdateDetectionSettings(db, &settings); err != nil {
		t.Fatalf("failed to save detection settings: %v", err)
	}
	return &settings
}
