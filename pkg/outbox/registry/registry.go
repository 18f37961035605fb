// Package registry decides where each outbox row is published and checks
// that its payload still decodes into the event type it claims to be.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/classickits/jerseystore-backend/pkg/config"
	"github.com/classickits/jerseystore-backend/pkg/db/models"
	"github.com/classickits/jerseystore-backend/pkg/enums"
	"github.com/classickits/jerseystore-backend/pkg/outbox"
	"github.com/classickits/jerseystore-backend/pkg/outbox/payloads"
)

// ErrPermanent marks failures that will not go away on retry: unknown event
// types, malformed envelopes and missing routes.
var ErrPermanent = errors.New("permanent outbox failure")

func permanent(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPermanent, fmt.Sprintf(format, args...))
}

// Permanent wraps err so the relay parks the row instead of retrying it.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

type Route struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	decode        func(data []byte) (any, error)
}

func route[T any](event enums.OutboxEventType, aggregate enums.OutboxAggregateType) Route {
	return Route{
		EventType:     event,
		AggregateType: aggregate,
		decode: func(data []byte) (any, error) {
			v := new(T)
			return v, json.Unmarshal(data, v)
		},
	}
}

// Resolved is an outbox row that passed validation, ready to publish.
type Resolved struct {
	Route    Route
	Envelope outbox.PayloadEnvelope
	Payload  any
}

type Registry struct {
	routes map[enums.OutboxEventType]Route
}

// New routes every order and payment event to the domain topic.
func New(cfg config.PubSubConfig) (*Registry, error) {
	topic := strings.TrimSpace(cfg.DomainTopic)
	if topic == "" {
		return nil, errors.New("domain topic is required")
	}
	r := &Registry{routes: map[enums.OutboxEventType]Route{}}
	for _, rt := range []Route{
		route[payloads.OrderCreatedEvent](enums.EventOrderCreated, enums.AggregateOrder),
		route[payloads.OrderPaidEvent](enums.EventOrderPaid, enums.AggregateOrder),
		route[payloads.OrderStatusChangedEvent](enums.EventOrderStatusChanged, enums.AggregateOrder),
		route[payloads.PaymentFailedEvent](enums.EventPaymentFailed, enums.AggregatePayment),
		route[payloads.PaymentRefundedEvent](enums.EventPaymentRefunded, enums.AggregatePayment),
	} {
		rt.Topic = topic
		r.routes[rt.EventType] = rt
	}
	return r, nil
}

// Route returns the route for an event type.
func (r *Registry) Route(eventType enums.OutboxEventType) (Route, bool) {
	rt, ok := r.routes[eventType]
	return rt, ok
}

// Resolve checks the row against its route and decodes the payload. Every
// error it returns wraps ErrPermanent.
func (r *Registry) Resolve(row models.OutboxEvent) (*Resolved, error) {
	rt, ok := r.routes[row.EventType]
	switch {
	case !ok:
		return nil, permanent("unsupported event type %s", row.EventType)
	case rt.AggregateType != row.AggregateType:
		return nil, permanent("%s belongs to aggregate %s, row says %s", row.EventType, rt.AggregateType, row.AggregateType)
	case row.AggregateID == uuid.Nil:
		return nil, permanent("missing aggregate_id")
	}

	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &env); err != nil {
		return nil, Permanent(fmt.Errorf("decode envelope: %w", err))
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, permanent("payload missing for %s", row.EventType)
	}
	payload, err := rt.decode(env.Data)
	if err != nil {
		return nil, Permanent(fmt.Errorf("decode %s payload: %w", row.EventType, err))
	}
	return &Resolved{Route: rt, Envelope: env, Payload: payload}, nil
}
