package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/metrics"
	"storefront/internal/repository/callback"
	"storefront/internal/signature"
)

// CallbackResult is the settled view of an order after a callback.
type CallbackResult struct {
	OrderID        string             `json:"orderId"`
	Status         domain.OrderStatus `json:"status"`
	PaymentID      string             `json:"paymentId"`
	Verified       bool               `json:"verified"`
	AlreadySettled bool               `json:"alreadySettled"`

	// ClearCart is true once per distinct callback.
	ClearCart bool `json:"clearCart"`
}

// HandleCallback verifies a gateway callback and settles the correlated
// order. Only a verified callback can mark an order paid; nothing but the
// ids and the signature is read from the callback.
func (s *Service) HandleCallback(ctx context.Context, cb domain.PaymentCallback) (res *CallbackResult, err error) {
	ctx, span := s.tracer.Start(ctx, "settlement.HandleCallback")
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

	cb = trimCallback(cb)
	if err := validateCallback(cb); err != nil {
		return nil, err
	}
	order, err := s.store.GetByGatewayOrderID(ctx, cb.GatewayOrderID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(orderAttrs(order)...)
	return s.settle(ctx, order, cb, "")
}

// settle runs verification and the terminal transition for a correlated order.
// claimed is the status a client asserted, used only for audit logging.
func (s *Service) settle(ctx context.Context, order *domain.Order, cb domain.PaymentCallback, claimed string) (*CallbackResult, error) {
	log := s.logger(ctx).With(
		zap.String("order_id", order.ID),
		zap.String("gateway_order_id", cb.GatewayOrderID),
		zap.String("payment_id", cb.GatewayPaymentID),
	)

	if !signature.Verify(cb.GatewayOrderID, cb.GatewayPaymentID, cb.Signature, s.secret) {
		fields := []zap.Field{zap.Bool("audit", true), zap.String("status", string(order.Status))}
		if strings.EqualFold(claimed, string(domain.StatusPaid)) {
			fields = append(fields, zap.String("claimed_status", claimed))
		}
		log.Warn("payment signature rejected; possible tampering", fields...)
		if s.failOnBadSig {
			s.failOrder(ctx, log, order.ID)
		}
		return nil, fmt.Errorf("%w: order %s", domain.ErrSignatureInvalid, order.ID)
	}

	key := callback.Key(cb.GatewayOrderID, cb.GatewayPaymentID, cb.Signature)
	paid, err := s.store.MarkPaid(ctx, order.ID, cb.GatewayPaymentID)
	if err == nil {
		first, lerr := s.ledger.FirstSeen(ctx, key)
		if lerr != nil {
			log.Warn("record callback in ledger", zap.Error(lerr))
			first = true
		}
		s.publish(ctx, paid)
		log.Info("order paid")
		return &CallbackResult{
			OrderID:   paid.ID,
			Status:    paid.Status,
			PaymentID: strOrEmpty(paid.PaymentID),
			Verified:  true,
			ClearCart: first,
		}, nil
	}

	var te *domain.TransitionError
	if !errors.As(err, &te) {
		log.Error("mark order paid", zap.Error(err))
		return nil, wrapf(err, "mark order %s paid", order.ID)
	}
	if te.Conflict() {
		log.Error("verified payment for an order that already failed",
			zap.Bool("audit", true),
			zap.String("stored_status", string(te.From)),
		)
		return nil, te
	}

	current := te.Current
	if current == nil {
		if current, err = s.store.Get(ctx, order.ID); err != nil {
			return nil, wrapf(err, "reload order %s", order.ID)
		}
	}
	stored := strOrEmpty(current.PaymentID)
	if stored != cb.GatewayPaymentID {
		log.Error("verified callback carries a different payment id than the settled order",
			zap.Bool("audit", true),
			zap.String("stored_payment_id", stored),
		)
	}
	first, lerr := s.ledger.FirstSeen(ctx, key)
	if lerr != nil {
		log.Warn("check callback ledger", zap.Error(lerr))
	}
	log.Info("duplicate callback for paid order", zap.Bool("clear_cart", first))
	return &CallbackResult{
		OrderID:        current.ID,
		Status:         current.Status,
		PaymentID:      stored,
		Verified:       true,
		AlreadySettled: true,
		ClearCart:      first,
	}, nil
}

func (s *Service) failOrder(ctx context.Context, log *zap.Logger, orderID string) {
	failed, err := s.store.MarkFailed(ctx, orderID)
	if err == nil {
		s.publish(ctx, failed)
		log.Info("order failed after signature rejection")
		return
	}
	var te *domain.TransitionError
	if errors.As(err, &te) {
		log.Info("order already settled; signature rejection leaves it unchanged",
			zap.String("stored_status", string(te.From)))
		return
	}
	log.Error("mark order failed", zap.Error(err))
}

func trimCallback(cb domain.PaymentCallback) domain.PaymentCallback {
	return domain.PaymentCallback{
		GatewayOrderID:   strings.TrimSpace(cb.GatewayOrderID),
		GatewayPaymentID: strings.TrimSpace(cb.GatewayPaymentID),
		Signature:        strings.TrimSpace(cb.Signature),
	}
}

func validateCallback(cb domain.PaymentCallback) error {
	switch {
	case cb.GatewayOrderID == "":
		return domain.Invalid("razorpay_order_id", "required")
	case cb.GatewayPaymentID == "":
		return domain.Invalid("razorpay_payment_id", "required")
	case cb.Signature == "":
		return domain.Invalid("razorpay_signature", "required")
	}
	return nil
}
