package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/harvestlink/harvestlink/internal/database"
	"github.com/harvestlink/harvestlink/internal/testhelpers"
)

type recordingSender struct {
	mu      sync.Mutex
	digests [][]database.Order
	err     error
}

func (s *recordingSender) SendDigest(ctx context.Context, orders []database.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.digests = append(s.digests, orders)
	return s.err
}

func TestSuspicionDigest_ListsOpenSuspiciousOrders(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	sender := &recordingSender{}

	flagged := testhelpers.NewOrderBuilder().Suspicious("multiple orders within short interval").Create(t, db)
	testhelpers.NewOrderBuilder().At(time.Minute).Create(t, db)
	testhelpers.NewOrderBuilder().At(2*time.Minute).Suspicious("x").WithStatus(database.OrderStatusRejected).Create(t, db)

	sent, err := NewSuspicionDigest(db, sender).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sent != 1 {
		t.Errorf("expected 1 order in digest, got %d", sent)
	}
	if len(sender.digests) != 1 || len(sender.digests[0]) != 1 || sender.digests[0][0].ID != flagged.ID {
		t.Errorf("expected digest with order %d, got %+v", flagged.ID, sender.digests)
	}
}

func TestSuspicionDigest_NothingToReport(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	sender := &recordingSender{}

	testhelpers.NewOrderBuilder().Create(t, db)

	sent, err := NewSuspicionDigest(db, sender).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent != 0 || len(sender.digests) != 0 {
		t.Errorf("expected no digest, got sent=%d digests=%d", sent, len(sender.digests))
	}
}

func TestSuspicionDigest_Disabled(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	sender := &recordingSender{}

	settings := testhelpers.NewDetectionSettingsBuilder().Save(t, db)
	settings.DigestEnabled = false
	if err := database.UpdateDetectionSettings(db, settings); err != nil {
		t.Fatalf("failed to update settings: %v", err)
	}
	testhelpers.NewOrderBuilder().Suspicious("x").Create(t, db)

	sent, err := NewSuspicionDigest(db, sender).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent != 0 || len(sender.digests) != 0 {
		t.Errorf("expected disabled digest to send nothing, got sent=%d", sent)
	}
}

func TestSuspicionDigest_SenderError(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	sender := &recordingSender{err: errors.New("slack down")}

	testhelpers.NewOrderBuilder().Suspicious("x").Create(t, db)

	sent, err := NewSuspicionDigest(db, sender).Run(context.Background())
	if err == nil {
		t.Fatal("expected sender error")
	}
	if sent != 0 {
		t.Errorf("expected 0 on error, got %d", sent)
	}
}

func TestSuspicionDigest_Interval(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	d := NewSuspicionDigest(db, &recordingSender{})

	if got := d.interval(time.Hour); got != 30*time.Minute {
		t.Errorf("expected default interval of 30m, got %v", got)
	}

	settings := testhelpers.NewDetectionSettingsBuilder().Save(t, db)
	settings.DigestIntervalMinutes = 5
	if err := database.UpdateDetectionSettings(db, settings); err != nil {
		t.Fatalf("failed to update settings: %v", err)
	}
	if got := d.interval(time.Hour); got != 5*time.Minute {
		t.Errorf("expected updated interval of 5m, got %v", got)
	}
}

func TestSuspicionDigest_StartStops(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	d := NewSuspicionDigest(db, &recordingSender{})

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		d.Start(stop)
		close(done)
	}()

	close(stop)
	testhelpers.MustCompleteWithin(t, 2*time.Second, func() { <-done })
}
