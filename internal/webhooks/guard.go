package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// EventStore is the redis surface the dedupe guard needs.
type EventStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	WebhookEventKey(provider, eventID string) string
}

// Guard records provider event ids so a redelivered event is acknowledged
// without being processed again.
type Guard struct {
	store EventStore
	ttl   time.Duration
}

func NewGuard(store EventStore, ttl time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("event store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Guard{store: store, ttl: ttl}, nil
}

// Claim marks the event as seen. It returns false when the event was
// already claimed by an earlier delivery.
func (g *Guard) Claim(ctx context.Context, provider, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	set, err := g.store.SetNX(ctx, g.store.WebhookEventKey(provider, eventID), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim webhook event: %w", err)
	}
	return set, nil
}

// Release forgets a claim so the provider's retry is processed.
func (g *Guard) Release(ctx context.Context, provider, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.store.Del(ctx, g.store.WebhookEventKey(provider, eventID))
}
