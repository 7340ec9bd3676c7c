package product

import (
	"context"

	"storefront/internal/domain"
)

type Repository interface {
	List(ctx context.Context) ([]domain.Product, error)
	// FindByRefs resolves each ref by product id or key. Unknown refs are absent from the result.
	FindByRefs(ctx context.Context, refs []string) ([]domain.Product, error)
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}
