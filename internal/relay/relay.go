// Package relay drains outbox_events into Pub/Sub. Rows are claimed with
// SKIP LOCKED inside a transaction, so several relays can run side by side
// and each row is settled exactly once per attempt.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/classickits/jerseystore-backend/pkg/config"
	"github.com/classickits/jerseystore-backend/pkg/db/models"
	"github.com/classickits/jerseystore-backend/pkg/logger"
	"github.com/classickits/jerseystore-backend/pkg/metrics"
	"github.com/classickits/jerseystore-backend/pkg/outbox/registry"
)

const (
	publishTimeout = 15 * time.Second
	maxBackoff     = 10 * time.Second
)

// Sink is where events go. *pubsub.Client satisfies it.
type Sink interface {
	Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error)
	Ping(ctx context.Context) error
}

type Store interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, attempts int) error
}

type Resolver interface {
	Resolve(models.OutboxEvent) (*registry.Resolved, error)
}

type DB interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type Params struct {
	Config   config.OutboxConfig
	Logger   *logger.Logger
	DB       DB
	Store    Store
	Registry Resolver
	Sink     Sink
	Metrics  *metrics.CommerceMetrics
}

type Relay struct {
	logg        *logger.Logger
	db          DB
	store       Store
	registry    Resolver
	sink        Sink
	metrics     *metrics.CommerceMetrics
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func New(p Params) (*Relay, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.Store == nil:
		return nil, errors.New("outbox store is required")
	case p.Registry == nil:
		return nil, errors.New("event registry is required")
	case p.Sink == nil:
		return nil, errors.New("publish sink is required")
	}
	return &Relay{
		logg:        p.Logger,
		db:          p.DB,
		store:       p.Store,
		registry:    p.Registry,
		sink:        p.Sink,
		metrics:     p.Metrics,
		batchSize:   orDefault(p.Config.BatchSize, 50),
		maxAttempts: orDefault(p.Config.MaxAttempts, 10),
		poll:        time.Duration(orDefault(p.Config.PollIntervalMS, 500)) * time.Millisecond,
	}, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Run drains batches until ctx is cancelled. A full or partial batch is
// followed immediately by the next one; an empty batch waits one poll
// interval; a failed batch backs off exponentially.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := r.sink.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping failed: %w", err)
	}

	b := newBackoff(r.poll, maxBackoff)
	for ctx.Err() == nil {
		n, err := r.Drain(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox relay batch failed", err)
			wait = b.next()
		case n > 0:
			b.reset()
			continue
		default:
			b.reset()
			wait = jitter(r.poll)
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// Drain handles one batch and returns how many rows it claimed.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	var claimed int
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.store.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}
		claimed = len(rows)
		for _, row := range rows {
			if err := r.settle(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

type outcome string

const (
	published outcome = "published"
	retry     outcome = "retry"
	parked    outcome = "terminal"
)

// settle publishes one row and records the result. The returned error is a
// bookkeeping failure, which aborts the batch; publish failures are not.
func (r *Relay) settle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) error {
	attempt := row.AttemptCount + 1
	logCtx := r.logg.WithFields(ctx, map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID.String(),
		"attempt":        attempt,
	})

	result, cause := r.publish(logCtx, row)
	if result == retry && attempt >= r.maxAttempts {
		result = parked
		cause = fmt.Errorf("giving up after %d attempts: %w", attempt, cause)
	}
	r.metrics.OutboxPublished(string(row.EventType), string(result))

	var err error
	switch result {
	case published:
		r.logg.Info(logCtx, "outbox event published")
		err = r.store.MarkPublishedTx(tx, row.ID)
	case retry:
		r.logg.Warn(r.logg.WithField(logCtx, "error", cause.Error()), "outbox publish failed, will retry")
		err = r.store.MarkFailedTx(tx, row.ID, cause)
	case parked:
		r.logg.Warn(r.logg.WithField(logCtx, "error", cause.Error()), "outbox event parked")
		err = r.store.MarkTerminalTx(tx, row.ID, cause, attempt)
	}
	if err != nil {
		return fmt.Errorf("record %s for %s: %w", result, row.ID, err)
	}
	return nil
}

func (r *Relay) publish(ctx context.Context, row models.OutboxEvent) (outcome, error) {
	resolved, err := r.registry.Resolve(row)
	if err != nil {
		if errors.Is(err, registry.ErrPermanent) {
			return parked, err
		}
		return retry, err
	}

	attrs := map[string]string{
		"event_id":       resolved.Envelope.EventID,
		"event_type":     string(row.EventType),
		"aggregate_type": string(row.AggregateType),
		"aggregate_id":   row.AggregateID.String(),
		"created_at":     row.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if _, err := r.sink.Publish(pubCtx, resolved.Route.Topic, row.Payload, attrs); err != nil {
		if errors.Is(err, registry.ErrPermanent) {
			return parked, err
		}
		return retry, err
	}
	return published, nil
}
