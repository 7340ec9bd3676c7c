package order

import (
	"context"
	"strings"
	"time"

	"storefront/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// NewOrder is the input for CreatePending.
type NewOrder struct {
	Items    []domain.LineItem
	Customer domain.Customer
	Currency string
}

// ListFilter narrows List. A zero Status lists every order.
type ListFilter struct {
	Status domain.OrderStatus
	Limit  int
	Offset int
}

// Repository owns persisted orders. Transitions out of pending are
// compare-and-set: at most one MarkPaid/MarkFailed wins per order, losers
// get a *domain.TransitionError carrying the stored order.
type Repository interface {
	CreatePending(ctx context.Context, in NewOrder) (*domain.Order, error)
	AttachIntent(ctx context.Context, orderID, gatewayOrderID string) (*domain.Order, error)
	MarkPaid(ctx context.Context, orderID, paymentID string) (*domain.Order, error)
	MarkFailed(ctx context.Context, orderID string) (*domain.Order, error)
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Order, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Order, error)
}

// buildPending validates input and returns the order to persist, minus id.
func buildPending(in NewOrder, now time.Time) (*domain.Order, error) {
	if err := domain.ValidateItems(in.Items); err != nil {
		return nil, err
	}
	customer := in.Customer.Normalize()
	if err := customer.Validate(); err != nil {
		return nil, err
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		return nil, domain.Invalid("currency", "required")
	}
	o := &domain.Order{
		Items:       append([]domain.LineItem(nil), in.Items...),
		TotalAmount: domain.SumItems(in.Items),
		Currency:    currency,
		Status:      domain.StatusPending,
		Customer:    customer,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return o, nil
}

func normalizeFilter(f ListFilter) (ListFilter, error) {
	if f.Status != "" && !f.Status.Valid() {
		return f, domain.Invalid("status", "unknown status")
	}
	if f.Offset < 0 {
		return f, domain.Invalid("offset", "must not be negative")
	}
	switch {
	case f.Limit <= 0:
		f.Limit = defaultListLimit
	case f.Limit > maxListLimit:
		f.Limit = maxListLimit
	}
	return f, nil
}

func validatePaymentID(paymentID string) error {
	if strings.TrimSpace(paymentID) == "" {
		return domain.Invalid("paymentId", "required")
	}
	return nil
}
