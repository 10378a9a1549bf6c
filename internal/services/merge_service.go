package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/harvestlink/harvestlink/internal/database"
	"github.com/harvestlink/harvestlink/internal/lock"
	"github.com/harvestlink/harvestlink/internal/metrics"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrInvalidMergeInput covers malformed requests: too few ids, duplicates,
	// unknown orders, or orders from more than one customer.
	ErrInvalidMergeInput = errors.New("invalid merge input")

	// ErrNotMergeable is returned when an input order is not pending or approved
	ErrNotMergeable = errors.New("order not mergeable")
)

// MergeService collapses sibling orders of one customer into a surviving order
type MergeService struct {
	db       *gorm.DB
	locker   lock.Locker
	notifier Notifier
}

// NewMergeService creates a new merge service. notifier may be nil.
func NewMergeService(db *gorm.DB, locker lock.Locker, notifier Notifier) *MergeService {
	return &MergeService{
		db:       db,
		locker:   locker,
		notifier: notifier,
	}
}

// Merge absorbs orderIDs[1:] into orderIDs[0]. The survivor ends up approved and
// no longer suspicious, carrying the summed total and folded order lines. Either
// every row is updated or none is.
func (s *MergeService) Merge(ctx context.Context, orderIDs []uint, adminID string) (*database.Order, error) {
	survivor, err := s.merge(ctx, orderIDs, adminID)
	switch {
	case err == nil:
		metrics.MergesTotal.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrInvalidMergeInput):
		metrics.MergesTotal.WithLabelValues("invalid_input").Inc()
	case errors.Is(err, ErrNotMergeable):
		metrics.MergesTotal.WithLabelValues("not_mergeable").Inc()
	default:
		metrics.MergesTotal.WithLabelValues("error").Inc()
	}
	if err != nil {
		return nil, err
	}

	log.Printf("Merged orders %v into order %d (by %s)", orderIDs, survivor.ID, adminID)

	if s.notifier != nil {
		if err := s.notifier.NotifyMerged(ctx, survivor, orderIDs, adminID); err != nil {
			log.Printf("Failed to send merge notification for order %d: %v", survivor.ID, err)
		}
	}
	return survivor, nil
}

func (s *MergeService) merge(ctx context.Context, orderIDs []uint, adminID string) (*database.Order, error) {
	if len(orderIDs) < 2 {
		return nil, fmt.Errorf("%w: at least two orders are required, got %d", ErrInvalidMergeInput, len(orderIDs))
	}
	seen := make(map[uint]bool, len(orderIDs))
	for _, id := range orderIDs {
		if seen[id] {
			return nil, fmt.Errorf("%w: order %d listed more than once", ErrInvalidMergeInput, id)
		}
		seen[id] = true
	}

	// First read only to learn which customer to lock; everything is re-checked under the lock.
	orders, err := loadMergeInputs(s.db.WithContext(ctx), orderIDs)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, lock.CustomerKey(orders[0].CustomerID))
	if err != nil {
		return nil, err
	}
	defer release()

	var survivorID uint
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders, err := loadMergeInputs(tx, orderIDs)
		if err != nil {
			return err
		}
		survivorID = orders[0].ID
		return applyMerge(tx, orders, adminID)
	})
	if err != nil {
		return nil, err
	}

	return database.GetOrder(s.db.WithContext(ctx), survivorID)
}

// loadMergeInputs returns the orders in the order they were requested after
// checking existence, customer and status.
func loadMergeInputs(db *gorm.DB, orderIDs []uint) ([]database.Order, error) {
	found, err := database.GetOrdersByIDs(db, orderIDs)
	if err != nil {
		return nil, err
	}

	byID := make(map[uint]database.Order, len(found))
	for _, o := range found {
		byID[o.ID] = o
	}

	orders := make([]database.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		o, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: order %d does not exist", ErrInvalidMergeInput, id)
		}
		orders = append(orders, o)
	}

	customerID := orders[0].CustomerID
	for _, o := range orders[1:] {
		if o.CustomerID != customerID {
			return nil, fmt.Errorf("%w: orders belong to more than one customer (%d, %d)",
				ErrInvalidMergeInput, customerID, o.CustomerID)
		}
	}

	for _, o := range orders {
		if !o.Status.IsActive() {
			return nil, fmt.Errorf("%w: order %d is %s", ErrNotMergeable, o.ID, o.Status)
		}
	}
	return orders, nil
}

// applyMerge writes the merge. Must run inside a transaction.
func applyMerge(tx *gorm.DB, orders []database.Order, adminID string) error {
	survivor := orders[0]
	absorbed := orders[1:]

	total := decimal.Zero
	ids := make([]uint, len(orders))
	for i, o := range orders {
		total = total.Add(o.TotalAmount)
		ids[i] = o.ID
	}

	if err := foldItems(tx, survivor, absorbed); err != nil {
		return err
	}

	if err := updateActiveOrder(tx, survivor.ID, map[string]interface{}{
		"status":               database.OrderStatusApproved,
		"total_amount":         total,
		"is_suspicious":        false,
		"is_single_suspicious": false,
		"suspicious_reason":    "",
		"admin_notes":          database.AppendNote(survivor.AdminNotes, database.FormatMergeProvenance(ids)),
	}); err != nil {
		return err
	}

	for _, o := range absorbed {
		if err := updateActiveOrder(tx, o.ID, map[string]interface{}{
			"status":         database.OrderStatusMerged,
			"merged_into_id": survivor.ID,
			"admin_notes":    database.AppendNote(o.AdminNotes, database.FormatMergedInto(survivor.ID)),
		}); err != nil {
			return err
		}
	}

	members := make([]database.OrderMergeMember, len(ids))
	for i, id := range ids {
		members[i] = database.OrderMergeMember{OrderID: id}
	}
	record := &database.OrderMerge{
		UUID:            uuid.New().String(),
		SurvivorOrderID: survivor.ID,
		CustomerID:      survivor.CustomerID,
		MergedBy:        adminID,
		OrderCount:      len(orders),
		TotalAmount:     total,
		Members:         members,
	}
	return tx.Create(record).Error
}

// updateActiveOrder applies updates only while the order is still pending or approved.
// Any other outcome aborts the merge.
func updateActiveOrder(tx *gorm.DB, orderID uint, updates map[string]interface{}) error {
	result := tx.Model(&database.Order{}).
		Where("id = ? AND status IN ?", orderID, database.ActiveOrderStatuses).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected != 1 {
		return fmt.Errorf("%w: order %d changed during merge", ErrNotMergeable, orderID)
	}
	return nil
}

// foldItems moves order lines onto the survivor. A line for a product the
// survivor already has at the same unit price is added to that line's quantity.
func foldItems(tx *gorm.DB, survivor database.Order, absorbed []database.Order) error {
	lines := make(map[string]*database.OrderItem, len(survivor.Items))
	for i := range survivor.Items {
		item := &survivor.Items[i]
		lines[lineKey(*item)] = item
	}
	dirty := make(map[uint]*database.OrderItem)

	for _, o := range absorbed {
		for _, item := range o.Items {
			if line, ok := lines[lineKey(item)]; ok {
				line.Quantity += item.Quantity
				dirty[line.ID] = line
				if err := tx.Delete(&database.OrderItem{}, item.ID).Error; err != nil {
					return err
				}
				continue
			}

			if err := tx.Model(&database.OrderItem{}).Where("id = ?", item.ID).
				Update("order_id", survivor.ID).Error; err != nil {
				return err
			}
			moved := item
			moved.OrderID = survivor.ID
			lines[lineKey(moved)] = &moved
		}
	}

	for id, line := range dirty {
		if err := tx.Model(&database.OrderItem{}).Where("id = ?", id).
			Update("quantity", line.Quantity).Error; err != nil {
			return err
		}
	}
	return nil
}

func lineKey(item database.OrderItem) string {
	return item.ProductID + "@" + item.UnitPrice.String()
}
