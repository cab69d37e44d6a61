package domain

import "time"

// ReservationStatus is the lifecycle state of an InventoryReservation.
type ReservationStatus string

const (
	ReservationReserved  ReservationStatus = "RESERVED"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationReleased  ReservationStatus = "RELEASED"
	ReservationExpired   ReservationStatus = "EXPIRED"
)

// ReservationStrategy names which concurrency-control strategy produced or
// should service a reservation (spec §4.6).
type ReservationStrategy string

const (
	StrategyOptimistic  ReservationStrategy = "optimistic"
	StrategyPessimistic ReservationStrategy = "pessimistic"
)

// ProductVariant is a sellable unit of stock.
type ProductVariant struct {
	ID               string
	SKU              string
	Quantity         int
	ReservedQuantity int
	Version          int64
}

// Available returns the sellable quantity not already reserved.
func (v ProductVariant) Available() int {
	return v.Quantity - v.ReservedQuantity
}

// InventoryReservation is a hold against a ProductVariant's stock, created
// by one of the two reservation strategies and later confirmed, released,
// or swept to expired.
type InventoryReservation struct {
	ID         string
	VariantID  string
	OrderID    string
	Quantity   int
	Status     ReservationStatus
	Strategy   ReservationStrategy
	ReservedBy string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
