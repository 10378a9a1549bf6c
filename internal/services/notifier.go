package services

import (
	"context"
	"errors"

	"github.com/harvestlink/harvestlink/internal/database"
)

// Notifier tells administrators about suspicious orders and completed merges
type Notifier interface {
	NotifySuspicious(ctx context.Context, order *database.Order, verdict *Verdict) error
	NotifyMerged(ctx context.Context, survivor *database.Order, mergedOrderIDs []uint, mergedBy string) error
}

// MultiNotifier fans out to several notifiers, continuing past failures
type MultiNotifier []Notifier

// NotifySuspicious implements Notifier
func (m MultiNotifier) NotifySuspicious(ctx context.Context, order *database.Order, verdict *Verdict) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.NotifySuspicious(ctx, order, verdict); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotifyMerged implements Notifier
func (m MultiNotifier) NotifyMerged(ctx context.Context, survivor *database.Order, mergedOrderIDs []uint, mergedBy string) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.NotifyMerged(ctx, survivor, mergedOrderIDs, mergedBy); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
