package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/harvestlink/harvestlink/internal/database"
	"github.com/harvestlink/harvestlink/internal/lock"
	"github.com/harvestlink/harvestlink/internal/metrics"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidOrder      = errors.New("invalid order")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// statusTransitions lists the statuses an administrator may move an order to.
// Merged orders only get there through MergeService and never leave.
var statusTransitions = map[database.OrderStatus][]database.OrderStatus{
	database.OrderStatusPending: {
		database.OrderStatusApproved, database.OrderStatusRejected,
		database.OrderStatusDelayed, database.OrderStatusCancelled,
	},
	database.OrderStatusDelayed: {
		database.OrderStatusApproved, database.OrderStatusRejected, database.OrderStatusCancelled,
	},
	database.OrderStatusApproved: {database.OrderStatusCancelled},
}

// CanTransition reports whether an order may move from one status to another
func CanTransition(from, to database.OrderStatus) bool {
	for _, s := range statusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CreateOrderResult is returned by CreateOrder
type CreateOrderResult struct {
	Order          *database.Order `json:"order"`
	Verdict        *Verdict        `json:"verdict,omitempty"`
	MarkedOrderIDs []uint          `json:"marked_order_ids,omitempty"`
}

// OrderService owns order placement and the admin-facing order lifecycle
type OrderService struct {
	db       *gorm.DB
	detector *DetectionService
	marker   *SuspicionMarker
	locker   lock.Locker
	notifier Notifier
}

// NewOrderService creates a new order service. notifier may be nil.
func NewOrderService(db *gorm.DB, detector *DetectionService, marker *SuspicionMarker, locker lock.Locker, notifier Notifier) *OrderService {
	return &OrderService{
		db:       db,
		detector: detector,
		marker:   marker,
		locker:   locker,
		notifier: notifier,
	}
}

type markedOrder struct {
	id      uint
	verdict *Verdict
}

// CreateOrder stores a new order and runs detection on it. Insert, detection and
// marking happen in one transaction under the customer's lock so two concurrent
// orders from the same customer always see each other. Notifications go out after the lock is released
// and only for orders this call actually flagged.
func (s *OrderService) CreateOrder(ctx context.Context, order *database.Order) (*CreateOrderResult, error) {
	if err := prepareOrder(order); err != nil {
		return nil, err
	}

	settings, err := s.detector.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, lock.CustomerKey(order.CustomerID))
	if err != nil {
		return nil, err
	}

	verdict, marked, err := s.createAndDetect(ctx, order, settings)
	release()
	if err != nil {
		return nil, err
	}

	metrics.OrdersCreatedTotal.Inc()

	result := &CreateOrderResult{Verdict: verdict}
	for _, m := range marked {
		result.MarkedOrderIDs = append(result.MarkedOrderIDs, m.id)
		metrics.SuspiciousMarkedTotal.WithLabelValues(m.verdict.Tier()).Inc()
	}

	if len(marked) > 0 {
		log.Printf("Order %d of customer %d flagged suspicious (%s), marked %v",
			order.ID, order.CustomerID, verdict.Reason, result.MarkedOrderIDs)
		if settings.NotificationsEnabled {
			s.notify(ctx, marked)
		}
	}

	result.Order, err = database.GetOrder(s.db.WithContext(ctx), order.ID)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// createAndDetect runs in one transaction, so a failed detection or mark leaves
// no order behind. The caller holds the customer's lock.
func (s *OrderService) createAndDetect(ctx context.Context, order *database.Order, settings *database.DetectionSettings) (*Verdict, []markedOrder, error) {
	var (
		verdict *Verdict
		marked  []markedOrder
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		var err error
		verdict, err = s.detector.WithTx(tx).detect(ctx, order, settings)
		if err != nil || verdict == nil {
			return err
		}

		targets := []markedOrder{{id: order.ID, verdict: verdict}}
		if !verdict.IsSingleSuspicious && settings.FlagSiblings {
			for _, id := range verdict.RelatedOrderIDs {
				targets = append(targets, markedOrder{id: id, verdict: verdict.forSibling(order.ID)})
			}
		}

		marker := s.marker.WithTx(tx)
		for _, t := range targets {
			ok, err := marker.Mark(ctx, t.id, t.verdict)
			if err != nil {
				return fmt.Errorf("failed to mark order %d: %w", t.id, err)
			}
			if ok {
				marked = append(marked, t)
			}
		}
		return nil
	})
	if err != nil {
		order.ID = 0
		return nil, nil, err
	}
	return verdict, marked, nil
}

func (s *OrderService) notify(ctx context.Context, marked []markedOrder) {
	if s.notifier == nil {
		return
	}
	for _, m := range marked {
		order, err := database.GetOrder(s.db.WithContext(ctx), m.id)
		if err != nil {
			log.Printf("Failed to load order %d for notification: %v", m.id, err)
			continue
		}
		if err := s.notifier.NotifySuspicious(ctx, order, m.verdict); err != nil {
			metrics.NotificationsTotal.WithLabelValues("error").Inc()
			log.Printf("Failed to send suspicious order notification for order %d: %v", m.id, err)
			continue
		}
		metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	}
}

// prepareOrder validates a new order and fills in defaults
func prepareOrder(order *database.Order) error {
	if order == nil {
		return fmt.Errorf("%w: order is nil", ErrInvalidOrder)
	}
	if order.CustomerID == 0 {
		return fmt.Errorf("%w: customer_id is required", ErrInvalidOrder)
	}
	for _, item := range order.Items {
		if item.ProductID == "" || item.Quantity <= 0 || item.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: bad line for product %q", ErrInvalidOrder, item.ProductID)
		}
	}
	if order.TotalAmount.IsNegative() {
		return fmt.Errorf("%w: total_amount must not be negative", ErrInvalidOrder)
	}

	order.ID = 0
	for i := range order.Items {
		order.Items[i].ID = 0
		order.Items[i].OrderID = 0
	}
	order.Status = database.OrderStatusPending
	order.IsSuspicious = false
	order.IsSingleSuspicious = false
	order.SuspiciousReason = ""
	order.LinkedMergedOrderID = nil
	order.MergedIntoID = nil
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	order.CreatedAt = order.CreatedAt.UTC()

	if order.TotalAmount.IsZero() {
		total := decimal.Zero
		for _, item := range order.Items {
			total = total.Add(item.LineTotal())
		}
		order.TotalAmount = total
	}
	return nil
}

// GetOrder returns an order with its lines
func (s *OrderService) GetOrder(ctx context.Context, id uint) (*database.Order, error) {
	order, err := database.GetOrder(s.db.WithContext(ctx), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	return order, err
}

// ListSuspicious returns open suspicious orders, newest first, and the total count
func (s *OrderService) ListSuspicious(ctx context.Context, offset, limit int) ([]database.Order, int64, error) {
	return database.ListSuspiciousOrders(s.db.WithContext(ctx), offset, limit)
}

// UpdateStatus moves an order through its lifecycle and appends note to the admin notes.
// It holds the customer's lock so it cannot interleave with a merge or a new order.
func (s *OrderService) UpdateStatus(ctx context.Context, id uint, status database.OrderStatus, note string) (*database.Order, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
	}

	current, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, lock.CustomerKey(current.CustomerID))
	if err != nil {
		return nil, err
	}
	defer release()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order database.Order
		if err := tx.First(&order, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %d", ErrOrderNotFound, id)
			}
			return err
		}
		if !CanTransition(order.Status, status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, status)
		}

		updates := map[string]interface{}{"status": status}
		if note != "" {
			updates["admin_notes"] = database.AppendNote(order.AdminNotes, note)
		}
		// Guard on the old status so a concurrent merge is not overwritten.
		result := tx.Model(&database.Order{}).Where("id = ? AND status = ?", id, order.Status).Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: order %d changed concurrently", ErrInvalidTransition, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Order %d moved to %s", id, status)
	return s.GetOrder(ctx, id)
}
