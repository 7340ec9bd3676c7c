package gateway

import (
	"context"

	"storefront/internal/domain"
)

// IntentCreator asks the payment gateway for a charge intent.
type IntentCreator interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency, receipt string) (*domain.GatewayIntent, error)
}

func validateIntent(amountMinor int64, currency string) error {
	if amountMinor <= 0 {
		return domain.Invalid("amount", "must be positive")
	}
	if currency == "" {
		return domain.Invalid("currency", "required")
	}
	return nil
}
