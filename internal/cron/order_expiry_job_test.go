package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/classickits/jerseystore-backend/pkg/logger"
)

type fakeExpirer struct {
	cutoff  time.Time
	limit   int
	expired int
	err     error
}

func (f *fakeExpirer) ExpirePending(_ context.Context, cutoff time.Time, limit int) (int, error) {
	f.cutoff = cutoff
	f.limit = limit
	return f.expired, f.err
}

func TestOrderExpiryJobCutoff(t *testing.T) {
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	expirer := &fakeExpirer{expired: 2}
	job, err := NewOrderExpiryJob(OrderExpiryJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Orders: expirer,
	})
	if err != nil {
		t.Fatalf("NewOrderExpiryJob: %v", err)
	}
	job.(*orderExpiryJob).now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.Add(-defaultPendingOrderTTL); !expirer.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, expirer.cutoff)
	}
	if expirer.limit != defaultBatchSize {
		t.Fatalf("expected limit %d, got %d", defaultBatchSize, expirer.limit)
	}
}

func TestOrderExpiryJobReturnsPartialFailure(t *testing.T) {
	expirer := &fakeExpirer{expired: 1, err: errors.New("expire order x: locked")}
	job, err := NewOrderExpiryJob(OrderExpiryJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Orders: expirer,
		TTL:    time.Hour,
	})
	if err != nil {
		t.Fatalf("NewOrderExpiryJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
