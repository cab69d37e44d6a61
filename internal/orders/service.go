// Package orders implements order creation and lifecycle transitions.
package orders

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nordkit/commerce-core/internal/domain"
	"github.com/nordkit/commerce-core/internal/inventory"
	"github.com/nordkit/commerce-core/internal/outbox"
	"github.com/nordkit/commerce-core/internal/store"
)

// Service orchestrates order creation (reserve stock, then persist the order
// and append the order.created event in one transaction) and status
// transitions.
type Service struct {
	db     *store.DB
	orders *store.OrderRepo
	engine *inventory.Engine
	writer *outbox.Writer
	log    *slog.Logger
}

func NewService(db *store.DB, orders *store.OrderRepo, engine *inventory.Engine, writer *outbox.Writer, log *slog.Logger) *Service {
	return &Service{db: db, orders: orders, engine: engine, writer: writer, log: log}
}

// CreateRequest is the input to Create: one line item per variant/quantity pair.
type CreateRequest struct {
	IdempotencyKey string
	CustomerID     string
	Currency       string
	Items          []CreateItem
}

type CreateItem struct {
	VariantID     string
	Quantity      int
	UnitPriceCent int64
}

// Create reserves stock for every item, then persists the order and its
// outbox event in one transaction. A repeat call with a known
// IdempotencyKey returns the existing order instead of reserving again.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Order, error) {
	if existing, err := s.orders.GetByIdempotencyKey(ctx, req.IdempotencyKey); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	order := &domain.Order{
		ID:             uuid.NewString(),
		IdempotencyKey: req.IdempotencyKey,
		CustomerID:     req.CustomerID,
		Currency:       req.Currency,
	}

	for _, item := range req.Items {
		res, err := s.engine.Reserve(ctx, item.VariantID, order.ID, item.Quantity, req.IdempotencyKey)
		if err != nil {
			s.rollbackReservations(ctx, order.Items)
			return nil, err
		}
		order.Items = append(order.Items, domain.OrderItem{
			VariantID:     item.VariantID,
			Quantity:      item.Quantity,
			UnitPriceCent: item.UnitPriceCent,
			ReservationID: res.ID,
		})
	}

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.orders.Create(ctx, tx, order); err != nil {
			return err
		}
		return s.writer.Append(ctx, tx, order.ID, domain.EventOrderCreated, "", "", order)
	})
	if err != nil {
		s.rollbackReservations(ctx, order.Items)
		return nil, err
	}
	return order, nil
}

// rollbackReservations releases any reservations already made when a later
// item in the same order fails, so stock isn't held against an order that
// never commits.
func (s *Service) rollbackReservations(ctx context.Context, items []domain.OrderItem) {
	for _, it := range items {
		if it.ReservationID == "" {
			continue
		}
		if err := s.engine.Release(ctx, it.ReservationID); err != nil {
			s.log.Error("failed to release reservation during order rollback",
				slog.String("reservation_id", it.ReservationID), slog.Any("error", err))
		}
	}
}

// Transition moves an order to a new status, appending the matching domain
// event in the same transaction, and confirming or releasing its
// reservations as the new status implies.
func (s *Service) Transition(ctx context.Context, orderID string, to domain.OrderStatus) error {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	from := order.Status
	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.orders.UpdateStatus(ctx, tx, orderID, to); err != nil {
			return err
		}
		if err := s.writer.Append(ctx, tx, orderID, domain.EventOrderUpdated, "", "", orderUpdatedPayload{
			OrderID:   orderID,
			UserID:    order.CustomerID,
			OldStatus: string(from),
			NewStatus: string(to),
		}); err != nil {
			return err
		}
		if to == domain.OrderPaid {
			return s.writer.Append(ctx, tx, orderID, domain.EventOrderPaid, "", "", map[string]string{"order_id": orderID})
		}
		return nil
	})
	if err != nil {
		return err
	}

	switch to {
	case domain.OrderPaid:
		for _, it := range order.Items {
			if it.ReservationID == "" {
				continue
			}
			if err := s.engine.Confirm(ctx, it.ReservationID); err != nil {
				s.log.Error("failed to confirm reservation on order paid",
					slog.String("reservation_id", it.ReservationID), slog.Any("error", err))
			}
		}
	case domain.OrderCancelled, domain.OrderRefunded:
		for _, it := range order.Items {
			if it.ReservationID == "" {
				continue
			}
			if err := s.engine.Release(ctx, it.ReservationID); err != nil {
				s.log.Error("failed to release reservation on order cancel/refund",
					slog.String("reservation_id", it.ReservationID), slog.Any("error", err))
			}
		}
	}
	return nil
}

// orderUpdatedPayload is the order.updated.v1 event body (spec §4.5,
// §6.2): old/new status plus an optional reason, left empty when the
// transition carries none.
type orderUpdatedPayload struct {
	OrderID   string `json:"order_id"`
	UserID    string `json:"user_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	Reason    string `json:"reason,omitempty"`
}
