package domain

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderCreated, OrderPaid, true},
		{OrderCreated, OrderCancelled, true},
		{OrderCreated, OrderFulfilled, false},
		{OrderPaid, OrderFulfilled, true},
		{OrderPaid, OrderRefunded, true},
		{OrderFulfilled, OrderShipped, true},
		{OrderShipped, OrderDelivered, true},
		{OrderDelivered, OrderRefunded, false},
		{OrderDelivered, OrderShipped, false},
		{OrderCancelled, OrderPaid, false},
		{OrderRefunded, OrderPaid, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if !IsTerminal(OrderCancelled) {
		t.Error("CANCELLED should be terminal")
	}
	if !IsTerminal(OrderRefunded) {
		t.Error("REFUNDED should be terminal")
	}
	if IsTerminal(OrderCreated) {
		t.Error("CREATED should not be terminal")
	}
	if !IsTerminal(OrderDelivered) {
		t.Error("DELIVERED should be terminal")
	}
}

func TestOrderTotal(t *testing.T) {
	o := &Order{Items: []OrderItem{
		{Quantity: 2, UnitPriceCent: 500},
		{Quantity: 1, UnitPriceCent: 1000},
	}}
	if got := o.Total(); got != 2000 {
		t.Errorf("Total() = %d, want 2000", got)
	}
}
