package events

import (
	"context"
	"time"

	"storefront/internal/domain"
)

// Routing keys of settlement events.
const (
	OrderPaid   = "order.paid"
	OrderFailed = "order.failed"
)

// Settlement is published once per order, by whichever call moved it out of
// pending.
type Settlement struct {
	Type           string    `json:"type"`
	OrderID        string    `json:"orderId"`
	GatewayOrderID string    `json:"gatewayOrderId,omitempty"`
	PaymentID      string    `json:"paymentId,omitempty"`
	AmountMinor    int64     `json:"amountMinorUnits"`
	Currency       string    `json:"currency"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// FromOrder builds the event for a freshly settled order.
func FromOrder(o *domain.Order) Settlement {
	ev := Settlement{
		Type:        OrderFailed,
		OrderID:     o.ID,
		AmountMinor: o.TotalAmount,
		Currency:    o.Currency,
		OccurredAt:  o.UpdatedAt,
	}
	if o.Status == domain.StatusPaid {
		ev.Type = OrderPaid
	}
	if o.GatewayOrderID != nil {
		ev.GatewayOrderID = *o.GatewayOrderID
	}
	if o.PaymentID != nil {
		ev.PaymentID = *o.PaymentID
	}
	return ev
}

type Publisher interface {
	Publish(ctx context.Context, ev Settlement) error
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Settlement) error { return nil }
