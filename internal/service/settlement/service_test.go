package settlement

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/gateway"
	"storefront/internal/metrics"
	"storefront/internal/repository/callback"
	orderrepo "storefront/internal/repository/order"
	"storefront/internal/signature"
)

const testSecret = "s3cret"

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Settlement
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Settlement) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) all() []events.Settlement {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Settlement(nil), p.events...)
}

type stubPrices struct{ err error }

func (s stubPrices) CheckPrices(context.Context, []domain.LineItem, string) error { return s.err }

type fixture struct {
	svc     *Service
	store   orderrepo.Repository
	gw      *gateway.Fake
	events  *recordingPublisher
	metrics *metrics.Settlement
}

func newFixture(t *testing.T, mutate ...func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		store:   orderrepo.NewMemory(),
		gw:      gateway.NewFake("rzp_test_key", testSecret),
		events:  &recordingPublisher{},
		metrics: metrics.NewSettlement(prometheus.NewRegistry()),
	}
	opts := Options{
		Secret:                 testSecret,
		Currency:               "INR",
		FailOnInvalidSignature: true,
		Ledger:                 callback.NewMemory(0),
		Events:                 f.events,
		Metrics:                f.metrics,
	}
	for _, m := range mutate {
		m(&opts)
	}
	svc, err := New(f.store, f.gw, opts)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func exampleCart() CheckoutInput {
	return CheckoutInput{
		Items: []domain.CartItem{
			{ProductID: "kurta", UnitPrice: decimal.NewFromInt(1000), Quantity: 2},
			{ProductID: "mug", UnitPrice: decimal.NewFromInt(500), Quantity: 1},
		},
		Customer: domain.Customer{Name: "Asha", Email: "asha@example.com", Phone: "9999999999"},
	}
}

// checkout creates a pending order and returns it with a valid callback.
func (f *fixture) checkout(t *testing.T) (*CheckoutResult, domain.PaymentCallback) {
	t.Helper()
	res, err := f.svc.Checkout(context.Background(), exampleCart())
	require.NoError(t, err)
	cb, err := f.gw.Pay(res.GatewayIntentID)
	require.NoError(t, err)
	return res, cb
}

func (f *fixture) order(t *testing.T, id string) *domain.Order {
	t.Helper()
	o, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	return o
}

func TestNew_RequiresSecret(t *testing.T) {
	_, err := New(orderrepo.NewMemory(), gateway.NewFake("k", "s"), Options{})
	require.Error(t, err)
	_, err = New(nil, gateway.NewFake("k", "s"), Options{Secret: "s"})
	require.Error(t, err)
}

func TestCheckout_ExampleCart(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Checkout(context.Background(), exampleCart())
	require.NoError(t, err)

	assert.Equal(t, int64(250000), res.AmountMinor)
	assert.Equal(t, "INR", res.Currency)

	intent, ok := f.gw.Intent(res.GatewayIntentID)
	require.True(t, ok)
	assert.Equal(t, int64(250000), intent.AmountMinor)
	assert.Equal(t, res.OrderID, intent.Receipt)

	o := f.order(t, res.OrderID)
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.Equal(t, int64(250000), o.TotalAmount)
	require.NotNil(t, o.GatewayOrderID)
	assert.Equal(t, res.GatewayIntentID, *o.GatewayOrderID)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Checkouts.WithLabelValues(metrics.OutcomeCreated)))
}

func TestCheckout_RejectsBeforeAnyWrite(t *testing.T) {
	cases := map[string]func(*CheckoutInput){
		"fractional total": func(in *CheckoutInput) {
			in.Items = []domain.CartItem{{ProductID: "pen", UnitPrice: decimal.RequireFromString("10.50"), Quantity: 1}}
		},
		"zero quantity": func(in *CheckoutInput) {
			in.Items[0].Quantity = 0
		},
		"empty cart": func(in *CheckoutInput) {
			in.Items = nil
		},
		"missing phone": func(in *CheckoutInput) {
			in.Customer.Phone = "  "
		},
		"three decimals": func(in *CheckoutInput) {
			in.Items[0].UnitPrice = decimal.RequireFromString("1.005")
		},
		"total wraps int64": func(in *CheckoutInput) {
			in.Items = []domain.CartItem{{ProductID: "gold", UnitPrice: decimal.RequireFromString("46116860184273879.05"), Quantity: 100}}
		},
		"total above cap": func(in *CheckoutInput) {
			in.Items = []domain.CartItem{{ProductID: "gold", UnitPrice: domain.FromMinorUnits(domain.MaxAmountMinor), Quantity: 2}}
		},
		"quantity above cap": func(in *CheckoutInput) {
			in.Items[0].Quantity = domain.MaxQuantity + 1
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			in := exampleCart()
			mutate(&in)

			_, err := f.svc.Checkout(context.Background(), in)
			require.ErrorIs(t, err, domain.ErrValidation)

			orders, err := f.store.List(context.Background(), orderrepo.ListFilter{})
			require.NoError(t, err)
			assert.Empty(t, orders)
			assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Checkouts.WithLabelValues(metrics.OutcomeValidationError)))
		})
	}
}

func TestCheckout_CatalogPolicy(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.Prices = stubPrices{err: domain.Invalid("items[0].unitPrice", "does not match catalog price")}
	})
	_, err := f.svc.Checkout(context.Background(), exampleCart())
	require.ErrorIs(t, err, domain.ErrValidation)

	orders, err := f.store.List(context.Background(), orderrepo.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCheckout_GatewayFailureLeavesOrderPending(t *testing.T) {
	f := newFixture(t)
	f.gw.FailNext(1)

	res, err := f.svc.Checkout(context.Background(), exampleCart())
	require.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	assert.Nil(t, res)

	orders, err := f.store.List(context.Background(), orderrepo.ListFilter{})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, domain.StatusPending, orders[0].Status)
	assert.Nil(t, orders[0].GatewayOrderID)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Checkouts.WithLabelValues(metrics.OutcomeGatewayError)))
	assert.Empty(t, f.events.all())
}

func TestHandleCallback_Valid(t *testing.T) {
	f := newFixture(t)
	res, cb := f.checkout(t)

	out, err := f.svc.HandleCallback(context.Background(), cb)
	require.NoError(t, err)
	assert.True(t, out.Verified)
	assert.False(t, out.AlreadySettled)
	assert.True(t, out.ClearCart)
	assert.Equal(t, domain.StatusPaid, out.Status)
	assert.Equal(t, cb.GatewayPaymentID, out.PaymentID)

	o := f.order(t, res.OrderID)
	assert.Equal(t, domain.StatusPaid, o.Status)
	assert.Equal(t, cb.GatewayPaymentID, *o.PaymentID)

	evs := f.events.all()
	require.Len(t, evs, 1)
	assert.Equal(t, events.OrderPaid, evs[0].Type)
	assert.Equal(t, res.OrderID, evs[0].OrderID)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Callbacks.WithLabelValues(metrics.OutcomeSettled)))
}

func TestHandleCallback_ReplayReportsAlreadyPaid(t *testing.T) {
	f := newFixture(t)
	res, cb := f.checkout(t)

	_, err := f.svc.HandleCallback(context.Background(), cb)
	require.NoError(t, err)

	again, err := f.svc.HandleCallback(context.Background(), cb)
	require.NoError(t, err)
	assert.True(t, again.AlreadySettled)
	assert.False(t, again.ClearCart)
	assert.Equal(t, cb.GatewayPaymentID, again.PaymentID)

	assert.Equal(t, cb.GatewayPaymentID, *f.order(t, res.OrderID).PaymentID)
	assert.Len(t, f.events.all(), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Callbacks.WithLabelValues(metrics.OutcomeAlreadySettled)))
}

func TestHandleCallback_ReplayWithUppercaseSignatureKeepsCart(t *testing.T) {
	f := newFixture(t)
	_, cb := f.checkout(t)

	first, err := f.svc.HandleCallback(context.Background(), cb)
	require.NoError(t, err)
	assert.True(t, first.ClearCart)

	cb.Signature = strings.ToUpper(cb.Signature)
	again, err := f.svc.HandleCallback(context.Background(), cb)
	require.NoError(t, err)
	assert.True(t, again.Verified)
	assert.True(t, again.AlreadySettled)
	assert.False(t, again.ClearCart)
}

func TestHandleCallback_DifferentPaymentIDKeepsStoredOne(t *testing.T) {
	f := newFixture(t)
	res, cb := f.checkout(t)
	_, err := f.svc.HandleCallback(context.Background(), cb)
	require.NoError(t, err)

	other := domain.PaymentCallback{
		GatewayOrderID:   cb.GatewayOrderID,
		GatewayPaymentID: "pay_other",
		Signature:        signature.Sign(cb.GatewayOrderID, "pay_other", testSecret),
	}
	out, err := f.svc.HandleCallback(context.Background(), other)
	require.NoError(t, err)
	assert.True(t, out.AlreadySettled)
	assert.True(t, out.ClearCart)
	assert.Equal(t, cb.GatewayPaymentID, out.PaymentID)
	assert.Equal(t, cb.GatewayPaymentID, *f.order(t, res.OrderID).PaymentID)
	assert.Len(t, f.events.all(), 1)
}

func TestHandleCallback_BadSignatureNeverPays(t *testing.T) {
	f := newFixture(t)
	res, cb := f.checkout(t)
	cb.Signature = "bad"

	out, err := f.svc.HandleCallback(context.Background(), cb)
	require.ErrorIs(t, err, domain.ErrSignatureInvalid)
	assert.Nil(t, out)

	o := f.order(t, res.OrderID)
	assert.Equal(t, domain.StatusFailed, o.Status)
	assert.Nil(t, o.PaymentID)

	evs := f.events.all()
	require.Len(t, evs, 1)
	assert.Equal(t, events.OrderFailed, evs[0].Type)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Callbacks.WithLabelValues(metrics.OutcomeInvalidSignature)))
}

func TestHandleCallback_BadSignatureKeepsPendingWhenPolicyOff(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.FailOnInvalidSignature = false })
	res, cb := f.checkout(t)
	tampered := cb
	tampered.GatewayPaymentID = "pay_forged"

	_, err := f.svc.HandleCallback(context.Background(), tampered)
	require.ErrorIs(t, err, domain.ErrSignatureInvalid)
	assert.Equal(t, domain.StatusPending, f.order(t, res.OrderID).Status)

	out, err := f.svc.HandleCallback(context.Background(), cb)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, out.Status)
}

func TestHandleCallback_BadSignatureAfterPaid(t *testing.T) {
	f := newFixture(t)
	res, cb := f.checkout(t)
	_, err := f.svc.HandleCallback(context.Background(), cb)
	require.NoError(t, err)

	cb.Signature = "bad"
	_, err = f.svc.HandleCallback(context.Background(), cb)
	require.ErrorIs(t, err, domain.ErrSignatureInvalid)

	o := f.order(t, res.OrderID)
	assert.Equal(t, domain.StatusPaid, o.Status)
	assert.Len(t, f.events.all(), 1)
}

func TestHandleCallback_VerifiedAfterFailedIsConflict(t *testing.T) {
	f := newFixture(t)
	res, cb := f.checkout(t)
	_, err := f.store.MarkFailed(context.Background(), res.OrderID)
	require.NoError(t, err)

	_, err = f.svc.HandleCallback(context.Background(), cb)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	var te *domain.TransitionError
	require.True(t, errors.As(err, &te))
	assert.True(t, te.Conflict())
	assert.Equal(t, domain.StatusFailed, f.order(t, res.OrderID).Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Callbacks.WithLabelValues(metrics.OutcomeConflict)))
}

func TestHandleCallback_Unknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.HandleCallback(context.Background(), domain.PaymentCallback{
		GatewayOrderID:   "o1",
		GatewayPaymentID: "p1",
		Signature:        signature.Sign("o1", "p1", testSecret),
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHandleCallback_MissingFields(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.HandleCallback(context.Background(), domain.PaymentCallback{GatewayOrderID: "o1", GatewayPaymentID: "p1"})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestHandleCallback_ConcurrentDeliveries(t *testing.T) {
	f := newFixture(t)
	res, cb := f.checkout(t)

	const n = 12
	results := make([]*CallbackResult, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.HandleCallback(context.Background(), cb)
		}(i)
	}
	wg.Wait()

	winners, clears := 0, 0
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		if !results[i].AlreadySettled {
			winners++
		}
		if results[i].ClearCart {
			clears++
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, clears)
	assert.Len(t, f.events.all(), 1)
	assert.Equal(t, domain.StatusPaid, f.order(t, res.OrderID).Status)
}

func TestFinalize_IgnoresClientStatus(t *testing.T) {
	f := newFixture(t)
	res, cb := f.checkout(t)
	cb.Signature = "bad"

	_, err := f.svc.Finalize(context.Background(), FinalizeInput{
		PaymentCallback: cb,
		PaymentID:       cb.GatewayPaymentID,
		Status:          "paid",
	})
	require.ErrorIs(t, err, domain.ErrSignatureInvalid)
	assert.Equal(t, domain.StatusFailed, f.order(t, res.OrderID).Status)
}

func TestFinalize_MatchingRecordSettles(t *testing.T) {
	f := newFixture(t)
	res, cb := f.checkout(t)
	in := exampleCart()
	total := decimal.NewFromInt(2500)

	out, err := f.svc.Finalize(context.Background(), FinalizeInput{
		PaymentCallback: cb,
		Items:           in.Items,
		TotalAmount:     &total,
		PaymentID:       cb.GatewayPaymentID,
		Status:          "pending",
		Customer:        &domain.Customer{Name: "Asha ", Email: "ASHA@example.com", Phone: "9999999999"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, out.Status)
	assert.Equal(t, domain.StatusPaid, f.order(t, res.OrderID).Status)
}

func TestFinalize_MismatchedRecordRejected(t *testing.T) {
	wrongTotal := decimal.NewFromInt(1)
	cases := map[string]func(*FinalizeInput){
		"total": func(in *FinalizeInput) { in.TotalAmount = &wrongTotal },
		"items": func(in *FinalizeInput) {
			in.Items = []domain.CartItem{{ProductID: "kurta", UnitPrice: decimal.NewFromInt(1), Quantity: 1}}
		},
		"payment id": func(in *FinalizeInput) { in.PaymentID = "pay_elsewhere" },
		"customer": func(in *FinalizeInput) {
			in.Customer = &domain.Customer{Name: "Eve", Email: "eve@example.com", Phone: "1"}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			res, cb := f.checkout(t)
			in := FinalizeInput{PaymentCallback: cb}
			mutate(&in)

			_, err := f.svc.Finalize(context.Background(), in)
			require.ErrorIs(t, err, domain.ErrValidation)
			assert.Equal(t, domain.StatusPending, f.order(t, res.OrderID).Status)
		})
	}
}

func TestGetOrder(t *testing.T) {
	f := newFixture(t)
	res, _ := f.checkout(t)

	o, err := f.svc.GetOrder(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, res.OrderID, o.ID)

	_, err = f.svc.GetOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.GetOrder(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
