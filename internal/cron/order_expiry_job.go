package cron

import (
	"context"
	"errors"
	"time"

	"github.com/classickits/jerseystore-backend/pkg/logger"
)

const defaultPendingOrderTTL = 72 * time.Hour

type orderExpirer interface {
	ExpirePending(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

type OrderExpiryJobParams struct {
	Logger    *logger.Logger
	Orders    orderExpirer
	TTL       time.Duration
	BatchSize int
}

// NewOrderExpiryJob cancels orders that stayed pending past TTL without a
// completed payment.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Orders == nil {
		return nil, errors.New("orders service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingOrderTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &orderExpiryJob{
		logg:   params.Logger,
		orders: params.Orders,
		ttl:    ttl,
		batch:  batch,
		now:    time.Now,
	}, nil
}

type orderExpiryJob struct {
	logg   *logger.Logger
	orders orderExpirer
	ttl    time.Duration
	batch  int
	now    func() time.Time
}

func (j *orderExpiryJob) Name() string { return "order-expiry" }

func (j *orderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	expired, err := j.orders.ExpirePending(ctx, cutoff, j.batch)
	if expired > 0 {
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"cutoff":  cutoff,
			"expired": expired,
		}), "expired pending orders")
	}
	return err
}
