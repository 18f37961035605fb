package enums

// OutboxAggregateType names the entity an outbox event is about.
type OutboxAggregateType string

const (
	AggregateOrder   OutboxAggregateType = "order"
	AggregatePayment OutboxAggregateType = "payment"
)

var aggregateTypes = set[OutboxAggregateType]{AggregateOrder, AggregatePayment}

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

// OutboxEventType is the routing key published alongside each event.
type OutboxEventType string

const (
	EventOrderCreated       OutboxEventType = "order.created"
	EventOrderPaid          OutboxEventType = "order.paid"
	EventOrderStatusChanged OutboxEventType = "order.status_changed"
	EventPaymentFailed      OutboxEventType = "payment.failed"
	EventPaymentRefunded    OutboxEventType = "payment.refunded"
)

var outboxEventTypes = set[OutboxEventType]{
	EventOrderCreated,
	EventOrderPaid,
	EventOrderStatusChanged,
	EventPaymentFailed,
	EventPaymentRefunded,
}

func (e OutboxEventType) IsValid() bool { return outboxEventTypes.has(e) }
