package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/gateway"
	"storefront/internal/logging"
	"storefront/internal/metrics"
	"storefront/internal/repository/callback"
	orderrepo "storefront/internal/repository/order"
)

type orderStore interface {
	CreatePending(ctx context.Context, in orderrepo.NewOrder) (*domain.Order, error)
	AttachIntent(ctx context.Context, orderID, gatewayOrderID string) (*domain.Order, error)
	MarkPaid(ctx context.Context, orderID, paymentID string) (*domain.Order, error)
	MarkFailed(ctx context.Context, orderID string) (*domain.Order, error)
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Order, error)
}

type priceChecker interface {
	CheckPrices(ctx context.Context, items []domain.LineItem, currency string) error
}

// Options carries collaborators and policy. Only Secret is required.
type Options struct {
	Secret   string
	Currency string

	// FailOnInvalidSignature marks the order failed when a callback does not verify.
	FailOnInvalidSignature bool

	// Prices re-prices carts against the catalog; nil trusts the cart snapshot.
	Prices  priceChecker
	Ledger  callback.Ledger
	Events  events.Publisher
	Metrics *metrics.Settlement
	Logger  *zap.Logger
}

// Service sequences checkout, gateway intent creation, callback verification
// and the single terminal transition of each order.
type Service struct {
	store        orderStore
	gateway      gateway.IntentCreator
	secret       string
	currency     string
	failOnBadSig bool
	prices       priceChecker
	ledger       callback.Ledger
	events       events.Publisher
	metrics      *metrics.Settlement
	log          *zap.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// New builds a Service. store, gw and opts.Secret are required.
func New(store orderStore, gw gateway.IntentCreator, opts Options) (*Service, error) {
	if store == nil || gw == nil {
		return nil, errors.New("settlement: order store and gateway are required")
	}
	if opts.Secret == "" {
		return nil, errors.New("settlement: gateway secret is required")
	}
	if opts.Currency == "" {
		opts.Currency = "INR"
	}
	if opts.Ledger == nil {
		opts.Ledger = callback.NewMemory(24 * time.Hour)
	}
	if opts.Events == nil {
		opts.Events = events.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		store:        store,
		gateway:      gw,
		secret:       opts.Secret,
		currency:     strings.ToUpper(opts.Currency),
		failOnBadSig: opts.FailOnInvalidSignature,
		prices:       opts.Prices,
		ledger:       opts.Ledger,
		events:       opts.Events,
		metrics:      opts.Metrics,
		log:          opts.Logger.Named("settlement"),
		tracer:       otel.Tracer("storefront/settlement"),
		now:          time.Now,
	}, nil
}

func (s *Service) logger(ctx context.Context) *zap.Logger {
	return logging.FromContext(ctx, s.log)
}

func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.Invalid("id", "required")
	}
	return s.store.Get(ctx, id)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func orderAttrs(o *domain.Order) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("order.id", o.ID),
		attribute.String("order.status", string(o.Status)),
	}
	if o.GatewayOrderID != nil {
		attrs = append(attrs, attribute.String("gateway.order_id", *o.GatewayOrderID))
	}
	return attrs
}

func (s *Service) publish(ctx context.Context, o *domain.Order) {
	if err := s.events.Publish(ctx, events.FromOrder(o)); err != nil {
		s.logger(ctx).Error("publish settlement event",
			zap.String("order_id", o.ID),
			zap.String("status", string(o.Status)),
			zap.Error(err),
		)
	}
}

func strOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func errOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return metrics.OutcomeValidationError
	case errors.Is(err, domain.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return metrics.OutcomeGatewayError
	case errors.Is(err, domain.ErrSignatureInvalid):
		return metrics.OutcomeInvalidSignature
	case errors.Is(err, domain.ErrInvalidTransition):
		return metrics.OutcomeConflict
	}
	return metrics.OutcomeError
}

func wrapf(err error, format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, err)...)
}
