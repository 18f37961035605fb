package cron

import (
	"context"
	"errors"
	"time"

	"github.com/classickits/jerseystore-backend/internal/payments"
	"github.com/classickits/jerseystore-backend/pkg/logger"
)

const (
	defaultPendingPaymentAge = 30 * time.Minute
	defaultBatchSize         = 100
)

type paymentSweeper interface {
	ReconcileStale(ctx context.Context, cutoff time.Time, limit int) (payments.SweepResult, error)
}

type PaymentReconcileJobParams struct {
	Logger    *logger.Logger
	Payments  paymentSweeper
	MinAge    time.Duration
	BatchSize int
}

// NewPaymentReconcileJob polls the provider for payments that have sat in
// pending longer than MinAge, catching webhooks that never arrived.
func NewPaymentReconcileJob(params PaymentReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Payments == nil {
		return nil, errors.New("payments service required")
	}
	minAge := params.MinAge
	if minAge <= 0 {
		minAge = defaultPendingPaymentAge
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &paymentReconcileJob{
		logg:     params.Logger,
		payments: params.Payments,
		minAge:   minAge,
		batch:    batch,
		now:      time.Now,
	}, nil
}

type paymentReconcileJob struct {
	logg     *logger.Logger
	payments paymentSweeper
	minAge   time.Duration
	batch    int
	now      func() time.Time
}

func (j *paymentReconcileJob) Name() string { return "payment-reconcile" }

func (j *paymentReconcileJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.minAge)
	res, err := j.payments.ReconcileStale(ctx, cutoff, j.batch)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"checked": res.Checked,
		"settled": res.Settled,
	})
	if err != nil {
		// partial progress is still logged; the error fails the run
		j.logg.Warn(logCtx, "stale payment sweep finished with errors")
		return err
	}
	if res.Checked > 0 {
		j.logg.Info(logCtx, "stale payment sweep complete")
	}
	return nil
}
