package enums

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// orderFlow maps each status to the ones an admin may move it to.
// Delivered and cancelled have no successors.
var orderFlow = map[OrderStatus]set[OrderStatus]{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  nil,
	OrderStatusCancelled:  nil,
}

func (s OrderStatus) String() string { return string(s) }

func (s OrderStatus) IsValid() bool {
	_, ok := orderFlow[s]
	return ok
}

func (s OrderStatus) IsTerminal() bool {
	next, ok := orderFlow[s]
	return ok && len(next) == 0
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return orderFlow[s].has(next)
}

func ParseOrderStatus(raw string) (OrderStatus, error) {
	if s := OrderStatus(raw); s.IsValid() {
		return s, nil
	}
	return "", invalid("order status", raw)
}
