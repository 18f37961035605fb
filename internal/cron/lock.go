package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// leaseTTL outlives a normal cycle so a crashed worker frees the lock
// within a few intervals.
const leaseTTL = 15 * time.Minute

// Lock guards a cron cycle so only one worker replica runs the jobs.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type leaseStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfValue(ctx context.Context, key, value string) (bool, error)
}

// RedisLock holds a lease keyed by name. Each successful Acquire writes a
// fresh holder token, and Release only clears a lease carrying that token.
type RedisLock struct {
	store  leaseStore
	name   string
	ttl    time.Duration
	holder string
}

func NewRedisLock(store leaseStore, name string, ttl time.Duration) (*RedisLock, error) {
	switch {
	case store == nil:
		return nil, errors.New("cron lock: store required")
	case name == "":
		return nil, errors.New("cron lock: name required")
	}
	return &RedisLock{store: store, name: name, ttl: cmpOr(ttl, leaseTTL)}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	holder := uuid.NewString()
	won, err := l.store.SetNX(ctx, l.name, holder, l.ttl)
	if err != nil {
		return false, fmt.Errorf("cron lock %s: acquire: %w", l.name, err)
	}
	if won {
		l.holder = holder
	}
	return won, nil
}

// Release is a no-op when this lock holds nothing. A lease that expired and
// was picked up by another worker is left in place.
func (l *RedisLock) Release(ctx context.Context) error {
	holder := l.holder
	if holder == "" {
		return nil
	}
	l.holder = ""
	if _, err := l.store.DeleteIfValue(ctx, l.name, holder); err != nil {
		return fmt.Errorf("cron lock %s: release: %w", l.name, err)
	}
	return nil
}

func cmpOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
