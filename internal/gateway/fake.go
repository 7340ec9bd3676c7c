package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"storefront/internal/domain"
	"storefront/internal/signature"
)

// Fake is an in-process gateway. It remembers every intent it issued so
// callers can produce signed callbacks for them.
type Fake struct {
	mu       sync.RWMutex
	secret   string
	keyID    string
	intents  map[string]domain.GatewayIntent
	failNext int
	delay    time.Duration
}

// NewFake returns a Fake signing callbacks with secret.
func NewFake(keyID, secret string) *Fake {
	return &Fake{
		keyID:   keyID,
		secret:  secret,
		intents: make(map[string]domain.GatewayIntent),
	}
}

// KeyID returns the configured public key.
func (f *Fake) KeyID() string { return f.keyID }

// FailNext makes the next n CreateIntent calls fail as unavailable.
func (f *Fake) FailNext(n int) {
	f.mu.Lock()
	f.failNext = n
	f.mu.Unlock()
}

// SetDelay simulates gateway latency; the caller's context still bounds it.
func (f *Fake) SetDelay(d time.Duration) {
	f.mu.Lock()
	f.delay = d
	f.mu.Unlock()
}

func (f *Fake) CreateIntent(ctx context.Context, amountMinor int64, currency, receipt string) (*domain.GatewayIntent, error) {
	if err := validateIntent(amountMinor, currency); err != nil {
		return nil, err
	}

	f.mu.Lock()
	fail := f.failNext > 0
	if fail {
		f.failNext--
	}
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, ctx.Err())
		}
	}
	if fail {
		return nil, fmt.Errorf("%w: injected failure", domain.ErrGatewayUnavailable)
	}

	now := time.Now().UTC()
	if receipt == "" {
		receipt = fmt.Sprintf("receipt_%d", now.UnixMilli())
	}
	intent := domain.GatewayIntent{
		ID:          "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14],
		AmountMinor: amountMinor,
		Currency:    currency,
		Receipt:     receipt,
		CreatedAt:   now,
	}

	f.mu.Lock()
	f.intents[intent.ID] = intent
	f.mu.Unlock()

	out := intent
	return &out, nil
}

// Intent returns a previously issued intent.
func (f *Fake) Intent(id string) (domain.GatewayIntent, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	in, ok := f.intents[id]
	return in, ok
}

// Pay simulates a successful payment for an issued intent and returns the
// callback the gateway would deliver.
func (f *Fake) Pay(gatewayOrderID string) (domain.PaymentCallback, error) {
	if _, ok := f.Intent(gatewayOrderID); !ok {
		return domain.PaymentCallback{}, fmt.Errorf("intent %s: %w", gatewayOrderID, domain.ErrNotFound)
	}
	paymentID := "pay_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
	return domain.PaymentCallback{
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: paymentID,
		Signature:        signature.Sign(gatewayOrderID, paymentID, f.secret),
	}, nil
}
