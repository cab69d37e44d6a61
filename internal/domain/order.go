package domain

import "time"

// OrderStatus is a node in the order lifecycle state machine (spec §2).
type OrderStatus string

const (
	OrderCreated   OrderStatus = "CREATED"
	OrderPaid      OrderStatus = "PAID"
	OrderFulfilled OrderStatus = "FULFILLED"
	OrderShipped   OrderStatus = "SHIPPED"
	OrderDelivered OrderStatus = "DELIVERED"
	OrderCancelled OrderStatus = "CANCELLED"
	OrderRefunded  OrderStatus = "REFUNDED"
)

// orderTransitions is the strict transition table. A status not present as
// a key, or a target not present in its value set, is an invalid move.
var orderTransitions = map[OrderStatus]map[OrderStatus]bool{
	OrderCreated:   {OrderPaid: true, OrderCancelled: true},
	OrderPaid:      {OrderFulfilled: true, OrderCancelled: true, OrderRefunded: true},
	OrderFulfilled: {OrderShipped: true, OrderRefunded: true},
	OrderShipped:   {OrderDelivered: true, OrderRefunded: true},
	OrderDelivered: {},
	OrderCancelled: {},
	OrderRefunded:  {},
}

// CanTransition reports whether moving from 'from' to 'to' is legal.
func CanTransition(from, to OrderStatus) bool {
	targets, ok := orderTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// IsTerminal reports whether status has no further legal transitions.
func IsTerminal(status OrderStatus) bool {
	targets, ok := orderTransitions[status]
	return ok && len(targets) == 0
}

// Order is the aggregate root of the order lifecycle.
type Order struct {
	ID             string
	IdempotencyKey string
	CustomerID     string
	Status         OrderStatus
	Items          []OrderItem
	TotalCents     int64
	Currency       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OrderItem is a line item within an Order, referencing the reserved
// ProductVariant and the reservation backing its stock commitment.
type OrderItem struct {
	ID            string
	OrderID       string
	VariantID     string
	Quantity      int
	UnitPriceCent int64
	ReservationID string
}

// Total recomputes the order total from its items, in the smallest
// currency unit (cents).
func (o *Order) Total() int64 {
	var total int64
	for _, it := range o.Items {
		total += it.UnitPriceCent * int64(it.Quantity)
	}
	return total
}
