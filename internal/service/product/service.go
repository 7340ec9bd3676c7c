package product

import (
	"context"
	"fmt"
	"strings"

	"storefront/internal/domain"
	productrepo "storefront/internal/repository/product"
)

type Service struct {
	repo productrepo.Repository
}

func New(repo productrepo.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	return s.repo.List(ctx)
}

// CheckPrices rejects lines whose product is unknown or whose unit price or
// currency differs from the stored catalog entry.
func (s *Service) CheckPrices(ctx context.Context, items []domain.LineItem, currency string) error {
	refs := make([]string, 0, len(items))
	for _, item := range items {
		refs = append(refs, item.ProductID)
	}
	products, err := s.repo.FindByRefs(ctx, refs)
	if err != nil {
		return fmt.Errorf("load catalog prices: %w", err)
	}

	byRef := make(map[string]domain.Product, len(products)*2)
	for _, p := range products {
		byRef[p.ID] = p
		byRef[p.Key] = p
	}

	for i, item := range items {
		p, ok := byRef[item.ProductID]
		if !ok {
			return domain.Invalid(fmt.Sprintf("items[%d].productId", i), "unknown product")
		}
		if !strings.EqualFold(p.Currency, currency) {
			return domain.Invalid(fmt.Sprintf("items[%d].unitPrice", i), "currency does not match catalog")
		}
		if p.PriceMinor != item.UnitPriceMinor {
			return domain.Invalid(fmt.Sprintf("items[%d].unitPrice", i), "does not match catalog price")
		}
	}
	return nil
}
