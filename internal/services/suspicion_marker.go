package services

import (
	"context"
	"errors"

	"github.com/harvestlink/harvestlink/internal/database"
	"gorm.io/gorm"
)

// ErrNilVerdict is returned when Mark is called without a verdict
var ErrNilVerdict = errors.New("suspicion marker called with nil verdict")

// SuspicionMarker persists verdicts onto orders
type SuspicionMarker struct {
	db *gorm.DB
}

// NewSuspicionMarker creates a new suspicion marker
func NewSuspicionMarker(db *gorm.DB) *SuspicionMarker {
	return &SuspicionMarker{db: db}
}

// WithTx returns a copy of the marker that writes through tx
func (m *SuspicionMarker) WithTx(tx *gorm.DB) *SuspicionMarker {
	return &SuspicionMarker{db: tx}
}

// Mark flags the order as suspicious in a single conditional update.
// It only writes when the order is active and not yet suspicious, so repeated calls
// leave the row untouched. The returned bool reports whether this call performed
// the not-suspicious to suspicious transition.
func (m *SuspicionMarker) Mark(ctx context.Context, orderID uint, verdict *Verdict) (bool, error) {
	if verdict == nil {
		return false, ErrNilVerdict
	}

	result := m.db.WithContext(ctx).Model(&database.Order{}).
		Where("id = ? AND is_suspicious = ? AND status IN ?", orderID, false, database.ActiveOrderStatuses).
		Updates(map[string]interface{}{
			"is_suspicious":          true,
			"is_single_suspicious":   verdict.IsSingleSuspicious,
			"suspicious_reason":      verdict.Reason,
			"linked_merged_order_id": verdict.LinkedMergedOrderID,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
