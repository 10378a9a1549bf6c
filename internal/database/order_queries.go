package database

import (
	"time"

	"gorm.io/gorm"
)

// FindActiveOrdersInRange returns the customer's pending/approved orders created
// within [from, to], excluding excludeID. Served by idx_orders_customer_created.
func FindActiveOrdersInRange(db *gorm.DB, customerID, excludeID uint, from, to time.Time) ([]Order, error) {
	var orders []Order
	err := db.Where("customer_id = ? AND id <> ? AND status IN ? AND created_at >= ? AND created_at <= ?",
		customerID, excludeID, ActiveOrderStatuses, from, to).
		Order("created_at ASC, id ASC").
		Find(&orders).Error
	return orders, err
}

// FindMergeSurvivorsInRange returns approved orders of the customer that survived a
// merge and were created within [from, to], newest first.
func FindMergeSurvivorsInRange(db *gorm.DB, customerID uint, from, to time.Time) ([]Order, error) {
	var orders []Order
	err := db.Where("orders.customer_id = ? AND orders.status = ? AND orders.created_at >= ? AND orders.created_at <= ?",
		customerID, OrderStatusApproved, from, to).
		Where("EXISTS (SELECT 1 FROM order_merges WHERE order_merges.survivor_order_id = orders.id)").
		Order("orders.created_at DESC, orders.id DESC").
		Find(&orders).Error
	return orders, err
}

// GetOrdersByIDs loads orders (with items) by id. Missing ids are simply absent from the result.
func GetOrdersByIDs(db *gorm.DB, ids []uint) ([]Order, error) {
	var orders []Order
	if len(ids) == 0 {
		return orders, nil
	}
	err := db.Preload("Items").Where("id IN ?", ids).Find(&orders).Error
	return orders, err
}

// GetOrder loads a single order with its items
func GetOrder(db *gorm.DB, id uint) (*Order, error) {
	var order Order
	if err := db.Preload("Items").First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// GetMergeBySurvivor returns the latest merge record whose survivor is orderID
func GetMergeBySurvivor(db *gorm.DB, orderID uint) (*OrderMerge, error) {
	var merge OrderMerge
	if err := db.Preload("Members").Where("survivor_order_id = ?", orderID).
		Order("created_at DESC, id DESC").Take(&merge).Error; err != nil {
		return nil, err
	}
	return &merge, nil
}

// ListSuspiciousOrders returns a page of open (pending/approved) suspicious orders,
// newest first, together with the total number of such orders.
func ListSuspiciousOrders(db *gorm.DB, offset, limit int) ([]Order, int64, error) {
	openSuspicious := func(db *gorm.DB) *gorm.DB {
		return db.Where("is_suspicious = ? AND status IN ?", true, ActiveOrderStatuses)
	}

	var total int64
	if err := db.Model(&Order{}).Scopes(openSuspicious).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []Order
	err := db.Scopes(openSuspicious).Preload("Items").
		Order("created_at DESC, id DESC").
		Offset(offset).Limit(limit).
		Find(&orders).Error
	return orders, total, err
}
