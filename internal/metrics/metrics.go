package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// Outcome label values shared by the counters.
const (
	OutcomeCreated            = "created"
	OutcomeValidationError    = "validation_error"
	OutcomeGatewayError       = "gateway_error"
	OutcomeSettled            = "settled"
	OutcomeAlreadySettled     = "already_settled"
	OutcomeInvalidSignature   = "invalid_signature"
	OutcomeConflict           = "conflict"
	OutcomeNotFound           = "not_found"
	OutcomeError              = "error"
	OutcomeGatewayOK          = "ok"
	OutcomeGatewayUnavailable = "unavailable"
)

// Settlement holds the collectors the settlement flow reports into.
type Settlement struct {
	Checkouts       *prometheus.CounterVec
	Callbacks       *prometheus.CounterVec
	GatewayDuration *prometheus.HistogramVec
}

// NewSettlement creates the settlement collectors and registers them on reg.
// A nil reg leaves them unregistered, which tests rely on.
func NewSettlement(reg prometheus.Registerer) *Settlement {
	m := &Settlement{
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		Callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callback_total",
			Help:      "Payment callbacks by outcome.",
		}, []string{"outcome"}),
		GatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Latency of payment gateway order creation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.Checkouts, m.Callbacks, m.GatewayDuration)
	}
	return m
}

// CheckoutOutcome increments the checkout counter.
func (m *Settlement) CheckoutOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(outcome).Inc()
}

// CallbackOutcome increments the callback counter.
func (m *Settlement) CallbackOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Callbacks.WithLabelValues(outcome).Inc()
}

// ObserveGateway records one gateway call.
func (m *Settlement) ObserveGateway(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.GatewayDuration.WithLabelValues(outcome).Observe(seconds)
}
