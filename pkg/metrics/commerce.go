package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Webhook outcomes recorded on webhook_events_total.
const (
	WebhookProcessed = "processed"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"
	WebhookRejected  = "rejected"
	WebhookFailed    = "failed"
)

// Payment initiation results recorded on payment_initiations_total.
const (
	InitiationCreated   = "created"
	InitiationCompleted = "completed"
	InitiationFailed    = "failed"
)

// CommerceMetrics covers the order and payment flow.
type CommerceMetrics struct {
	initiations *prometheus.CounterVec
	webhooks    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	published   *prometheus.CounterVec
}

// NewCommerceMetrics registers the order/payment counters on reg. A nil
// registerer yields a collector whose methods do nothing.
func NewCommerceMetrics(reg prometheus.Registerer) *CommerceMetrics {
	if reg == nil {
		return &CommerceMetrics{}
	}
	initiations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_initiations_total",
		Help: "Payment attempts started with a provider.",
	}, []string{"provider", "result"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Inbound provider webhook events by outcome.",
	}, []string{"provider", "event", "outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Order status transitions.",
	}, []string{"from", "to"})
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_publish_total",
		Help: "Outbox rows handled by the publisher.",
	}, []string{"event_type", "result"})
	reg.MustRegister(initiations, webhooks, transitions, published)
	return &CommerceMetrics{
		initiations: initiations,
		webhooks:    webhooks,
		transitions: transitions,
		published:   published,
	}
}

func (m *CommerceMetrics) PaymentInitiated(provider, result string) {
	if m == nil || m.initiations == nil {
		return
	}
	m.initiations.WithLabelValues(normalizeLabel(provider), normalizeLabel(result)).Inc()
}

func (m *CommerceMetrics) WebhookEvent(provider, event, outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(provider), normalizeLabel(event), normalizeLabel(outcome)).Inc()
}

func (m *CommerceMetrics) OrderTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (m *CommerceMetrics) OutboxPublished(eventType, result string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}
