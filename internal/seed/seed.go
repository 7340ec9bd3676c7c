package seed

import (
	"context"
	"fmt"

	"storefront/internal/domain"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// DemoProducts is the catalog used for manual testing and the simulator.
// Prices are in paise.
func DemoProducts() []domain.Product {
	return []domain.Product{
		{Key: "demo-kurta", Name: "Cotton Kurta", PriceMinor: 100000, Currency: "INR"},
		{Key: "demo-mug", Name: "Chai Mug", PriceMinor: 50000, Currency: "INR"},
		{Key: "demo-tote", Name: "Block Print Tote", PriceMinor: 35000, Currency: "INR"},
	}
}

// Apply upserts the demo catalog. It is idempotent via the repository's
// upsert on product key.
func Apply(ctx context.Context, repo ProductWriter) (int, error) {
	products := DemoProducts()
	for _, p := range products {
		if _, err := repo.Upsert(ctx, p); err != nil {
			return 0, fmt.Errorf("upsert product %s: %w", p.Key, err)
		}
	}
	return len(products), nil
}
