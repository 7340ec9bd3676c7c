package settlement

import (
	"context"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/metrics"
	orderrepo "storefront/internal/repository/order"
)

// CheckoutInput is the cart and contact details submitted at checkout.
type CheckoutInput struct {
	Items    []domain.CartItem `json:"items"`
	Customer domain.Customer   `json:"customer"`
}

// CheckoutResult carries what the payment widget needs to open the charge.
type CheckoutResult struct {
	OrderID         string `json:"orderId"`
	GatewayIntentID string `json:"gatewayIntentId"`
	AmountMinor     int64  `json:"amountMinorUnits"`
	Currency        string `json:"currency"`
}

// Checkout persists a pending order and creates exactly one gateway intent
// for it. A gateway failure leaves the order pending and is retryable.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (res *CheckoutResult, err error) {
	ctx, span := s.tracer.Start(ctx, "settlement.Checkout")
	defer func() {
		endSpan(span, err)
		if err != nil {
			s.metrics.CheckoutOutcome(errOutcome(err))
		} else {
			s.metrics.CheckoutOutcome(metrics.OutcomeCreated)
		}
	}()
	log := s.logger(ctx)

	items, err := domain.LineItemsFromCart(in.Items)
	if err != nil {
		return nil, err
	}
	customer := in.Customer.Normalize()
	if err := customer.Validate(); err != nil {
		return nil, err
	}
	if s.prices != nil {
		if err := s.prices.CheckPrices(ctx, items, s.currency); err != nil {
			return nil, err
		}
	}

	order, err := s.store.CreatePending(ctx, orderrepo.NewOrder{Items: items, Customer: customer, Currency: s.currency})
	if err != nil {
		return nil, wrapf(err, "create pending order")
	}
	span.SetAttributes(orderAttrs(order)...)
	log = log.With(zap.String("order_id", order.ID))

	start := time.Now()
	intent, err := s.gateway.CreateIntent(ctx, order.TotalAmount, order.Currency, order.ID)
	if err != nil {
		s.metrics.ObserveGateway(metrics.OutcomeGatewayUnavailable, time.Since(start).Seconds())
		log.Warn("gateway intent creation failed; order left pending",
			zap.Int64("amount_minor", order.TotalAmount),
			zap.Error(err),
		)
		return nil, wrapf(err, "create gateway intent for order %s", order.ID)
	}
	s.metrics.ObserveGateway(metrics.OutcomeGatewayOK, time.Since(start).Seconds())

	if _, err := s.store.AttachIntent(ctx, order.ID, intent.ID); err != nil {
		log.Error("attach gateway intent", zap.String("gateway_order_id", intent.ID), zap.Error(err))
		return nil, wrapf(err, "attach gateway intent")
	}

	log.Info("checkout created",
		zap.String("gateway_order_id", intent.ID),
		zap.Int64("amount_minor", order.TotalAmount),
		zap.String("currency", order.Currency),
	)
	return &CheckoutResult{
		OrderID:         order.ID,
		GatewayIntentID: intent.ID,
		AmountMinor:     order.TotalAmount,
		Currency:        order.Currency,
	}, nil
}
