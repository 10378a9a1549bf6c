package services

import (
	"context"
	"time"

	"github.com/harvestlink/harvestlink/internal/database"
	"github.com/harvestlink/harvestlink/internal/metrics"
	"gorm.io/gorm"
)

const (
	ReasonMultipleOrders = "multiple orders within short interval"
	ReasonAfterMerge     = "order placed shortly after a merged order was approved"
)

// SQL range queries are widened by this margin and then narrowed with exact
// time comparisons in Go, so window boundaries do not depend on how the
// driver encodes timestamps.
const queryMargin = time.Second

// Verdict is the outcome of pattern detection for one order
type Verdict struct {
	Suspicious          bool   `json:"suspicious"`
	IsSingleSuspicious  bool   `json:"is_single_suspicious"`
	Reason              string `json:"reason"`
	RelatedOrderIDs     []uint `json:"related_order_ids,omitempty"`
	LinkedMergedOrderID *uint  `json:"linked_merged_order_id,omitempty"`
}

// Tier returns the metrics tier label for the verdict
func (v *Verdict) Tier() string {
	if v.IsSingleSuspicious {
		return metrics.TierFollowUp
	}
	return metrics.TierSibling
}

// forSibling derives the verdict applied to an earlier order of the same burst
func (v *Verdict) forSibling(subjectID uint) *Verdict {
	return &Verdict{
		Suspicious:      true,
		Reason:          v.Reason,
		RelatedOrderIDs: []uint{subjectID},
	}
}

// DetectionService runs the suspicious-order heuristics for a single customer
type DetectionService struct {
	db *gorm.DB
}

// NewDetectionService creates a new detection service
func NewDetectionService(db *gorm.DB) *DetectionService {
	return &DetectionService{db: db}
}

// WithTx returns a copy of the service that reads through tx
func (s *DetectionService) WithTx(tx *gorm.DB) *DetectionService {
	return &DetectionService{db: tx}
}

// GetSettings returns detection settings (creates defaults if not exists)
func (s *DetectionService) GetSettings(ctx context.Context) (*database.DetectionSettings, error) {
	return database.GetOrCreateDetectionSettings(s.db.WithContext(ctx), nil)
}

// UpdateSettings updates detection settings
func (s *DetectionService) UpdateSettings(ctx context.Context, settings *database.DetectionSettings) error {
	return database.UpdateDetectionSettings(s.db.WithContext(ctx), settings)
}

// Detect inspects the customer's other orders and returns a verdict for order,
// or nil when nothing looks suspicious. The sibling check wins over the follow-up check.
func (s *DetectionService) Detect(ctx context.Context, order *database.Order) (*Verdict, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	return s.detect(ctx, order, settings)
}

func (s *DetectionService) detect(ctx context.Context, order *database.Order, settings *database.DetectionSettings) (*Verdict, error) {
	start := time.Now()
	defer func() { metrics.DetectionDuration.Observe(time.Since(start).Seconds()) }()

	siblings, err := s.findSiblings(ctx, order, settings.SiblingWindow())
	if err != nil {
		return nil, err
	}
	if len(siblings) > 0 {
		ids := make([]uint, len(siblings))
		for i, o := range siblings {
			ids[i] = o.ID
		}
		return &Verdict{
			Suspicious:      true,
			Reason:          ReasonMultipleOrders,
			RelatedOrderIDs: ids,
		}, nil
	}

	anchor, err := s.findAnchor(ctx, order.CustomerID, order.CreatedAt, settings.FollowUpWindow())
	if err != nil {
		return nil, err
	}
	if anchor != nil {
		anchorID := anchor.ID
		return &Verdict{
			Suspicious:          true,
			IsSingleSuspicious:  true,
			Reason:              ReasonAfterMerge,
			RelatedOrderIDs:     []uint{anchorID},
			LinkedMergedOrderID: &anchorID,
		}, nil
	}

	return nil, nil
}

// FindAnchor returns the most recent merged-and-approved order of the customer
// created within the follow-up window ending at before, or nil.
func (s *DetectionService) FindAnchor(ctx context.Context, customerID uint, before time.Time) (*database.Order, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	return s.findAnchor(ctx, customerID, before, settings.FollowUpWindow())
}

func (s *DetectionService) findSiblings(ctx context.Context, order *database.Order, window time.Duration) ([]database.Order, error) {
	from := order.CreatedAt.Add(-window - queryMargin)
	to := order.CreatedAt.Add(window + queryMargin)

	candidates, err := database.FindActiveOrdersInRange(s.db.WithContext(ctx), order.CustomerID, order.ID, from, to)
	if err != nil {
		return nil, err
	}

	siblings := candidates[:0]
	for _, c := range candidates {
		if withinSiblingWindow(order.CreatedAt, c.CreatedAt, window) {
			siblings = append(siblings, c)
		}
	}
	return siblings, nil
}

func (s *DetectionService) findAnchor(ctx context.Context, customerID uint, before time.Time, window time.Duration) (*database.Order, error) {
	candidates, err := database.FindMergeSurvivorsInRange(s.db.WithContext(ctx), customerID,
		before.Add(-window-queryMargin), before.Add(queryMargin))
	if err != nil {
		return nil, err
	}

	var best *database.Order
	for i := range candidates {
		c := &candidates[i]
		if !withinFollowUpWindow(c.CreatedAt, before, window) {
			continue
		}
		if best == nil || c.CreatedAt.After(best.CreatedAt) ||
			(c.CreatedAt.Equal(best.CreatedAt) && c.ID > best.ID) {
			best = c
		}
	}
	return best, nil
}

// withinSiblingWindow reports |other - subject| <= window
func withinSiblingWindow(subject, other time.Time, window time.Duration) bool {
	d := other.Sub(subject)
	if d < 0 {
		d = -d
	}
	return d <= window
}

// withinFollowUpWindow reports anchor <= subject <= anchor + window.
// The window is measured from the anchor's creation, not from when it was merged.
func withinFollowUpWindow(anchor, subject time.Time, window time.Duration) bool {
	return !subject.Before(anchor) && subject.Sub(anchor) <= window
}
