// Package jobs holds background workers of the order service
package jobs

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/harvestlink/harvestlink/internal/database"
)

// digestLimit caps how many orders a single digest lists
const digestLimit = 50

// DigestSender delivers the periodic summary of open suspicious orders
type DigestSender interface {
	SendDigest(ctx context.Context, orders []database.Order) error
}

// SuspicionDigest periodically reminds administrators of suspicious orders
// that nobody has reviewed yet
type SuspicionDigest struct {
	db     *gorm.DB
	sender DigestSender
}

// NewSuspicionDigest creates a new digest job
func NewSuspicionDigest(db *gorm.DB, sender DigestSender) *SuspicionDigest {
	return &SuspicionDigest{db: db, sender: sender}
}

// Run sends one digest and returns the number of orders it listed.
// Nothing is sent when digests are disabled or no order awaits review.
func (d *SuspicionDigest) Run(ctx context.Context) (int, error) {
	settings, err := database.GetOrCreateDetectionSettings(d.db.WithContext(ctx), nil)
	if err != nil {
		return 0, err
	}
	if !settings.DigestEnabled {
		return 0, nil
	}

	orders, total, err := database.ListSuspiciousOrders(d.db.WithContext(ctx), 0, digestLimit)
	if err != nil {
		return 0, err
	}
	if len(orders) == 0 {
		return 0, nil
	}

	if err := d.sender.SendDigest(ctx, orders); err != nil {
		return 0, err
	}
	if total > int64(len(orders)) {
		log.Printf("Suspicion digest: listed %d of %d open orders", len(orders), total)
	}
	return len(orders), nil
}

// interval reads the digest interval, falling back to fallback on error
func (d *SuspicionDigest) interval(fallback time.Duration) time.Duration {
	settings, err := database.GetOrCreateDetectionSettings(d.db, nil)
	if err != nil || settings.DigestIntervalMinutes <= 0 {
		return fallback
	}
	return time.Duration(settings.DigestIntervalMinutes) * time.Minute
}

// Start runs the digest until stop is closed. The interval is re-read from
// the detection settings after every run so changes apply without a restart.
func (d *SuspicionDigest) Start(stop <-chan struct{}) {
	const fallback = 30 * time.Minute
	timer := time.NewTimer(d.interval(fallback))
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			sent, err := d.Run(ctx)
			cancel()
			if err != nil {
				log.Printf("Suspicion digest error: %v", err)
			} else if sent > 0 {
				log.Printf("Suspicion digest: reported %d open orders", sent)
			}
			timer.Reset(d.interval(fallback))
		case <-stop:
			log.Println("Suspicion digest stopped")
			return
		}
	}
}
