package settlement

import (
	"context"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/metrics"
)

// FinalizeInput is the order record a storefront posts after the payment
// widget returns. Status is accepted for compatibility and never trusted.
type FinalizeInput struct {
	domain.PaymentCallback
	Items       []domain.CartItem `json:"items"`
	TotalAmount *decimal.Decimal  `json:"totalAmount"`
	PaymentID   string            `json:"paymentId"`
	Status      string            `json:"status"`
	Customer    *domain.Customer  `json:"customer"`
}

// Finalize checks that the submitted record describes the stored order and
// then settles it exactly like HandleCallback, re-deriving the status from
// the signature.
func (s *Service) Finalize(ctx context.Context, in FinalizeInput) (res *CallbackResult, err error) {
	ctx, span := s.tracer.Start(ctx, "settlement.Finalize")
	defer func() {
		endSpan(span, err)
		switch {
		case err != nil:
			s.metrics.CallbackOutcome(errOutcome(err))
		case res.AlreadySettled:
			s.metrics.CallbackOutcome(metrics.OutcomeAlreadySettled)
		default:
			s.metrics.CallbackOutcome(metrics.OutcomeSettled)
		}
	}()

	cb := trimCallback(in.PaymentCallback)
	if err := validateCallback(cb); err != nil {
		return nil, err
	}
	order, err := s.store.GetByGatewayOrderID(ctx, cb.GatewayOrderID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(orderAttrs(order)...)

	if err := matchRecord(order, cb, in); err != nil {
		s.logger(ctx).Warn("finalization record does not match stored order",
			zap.String("order_id", order.ID),
			zap.Bool("audit", true),
			zap.Error(err),
		)
		return nil, err
	}
	if in.Status != "" {
		s.logger(ctx).Debug("ignoring client-asserted status",
			zap.String("order_id", order.ID),
			zap.String("claimed_status", in.Status),
		)
	}
	return s.settle(ctx, order, cb, in.Status)
}

func matchRecord(order *domain.Order, cb domain.PaymentCallback, in FinalizeInput) error {
	if p := strings.TrimSpace(in.PaymentID); p != "" && p != cb.GatewayPaymentID {
		return domain.Invalid("paymentId", "does not match razorpay_payment_id")
	}
	if len(in.Items) > 0 {
		items, err := domain.LineItemsFromCart(in.Items)
		if err != nil {
			return err
		}
		if !slices.Equal(items, order.Items) {
			return domain.Invalid("items", "do not match the order")
		}
	}
	if in.TotalAmount != nil {
		total, err := domain.ToMinorUnits(*in.TotalAmount)
		if err != nil {
			return domain.Invalid("totalAmount", err.Error())
		}
		if total != order.TotalAmount {
			return domain.Invalid("totalAmount", "does not match the order")
		}
	}
	if in.Customer != nil && in.Customer.Normalize() != order.Customer {
		return domain.Invalid("customer", "does not match the order")
	}
	return nil
}
