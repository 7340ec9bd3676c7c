package product

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storefront/internal/domain"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &postgresRepo{pool: pool, logger: logger.Named("product_repo")}
}

func (r *postgresRepo) List(ctx context.Context) ([]domain.Product, error) {
	const q = `
SELECT id::text, key, name, price_minor, currency, created_at
FROM products
ORDER BY created_at DESC, key
`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		r.logger.Error("list products", zap.Error(err))
		return nil, err
	}
	return collect(rows)
}

func (r *postgresRepo) FindByRefs(ctx context.Context, refs []string) ([]domain.Product, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	const q = `
SELECT id::text, key, name, price_minor, currency, created_at
FROM products
WHERE id::text = ANY($1) OR key = ANY($1)
`
	rows, err := r.pool.Query(ctx, q, refs)
	if err != nil {
		r.logger.Error("find products", zap.Strings("refs", refs), zap.Error(err))
		return nil, err
	}
	result, err := collect(rows)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("find products", zap.Int("requested", len(refs)), zap.Int("found", len(result)))
	return result, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, product domain.Product) (*domain.Product, error) {
	const q = `
INSERT INTO products (id, key, name, price_minor, currency)
VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5)
ON CONFLICT (key) DO UPDATE SET
    name = EXCLUDED.name,
    price_minor = EXCLUDED.price_minor,
    currency = EXCLUDED.currency
RETURNING id::text, created_at
`
	res := product
	err := r.pool.QueryRow(ctx, q,
		product.ID,
		product.Key,
		product.Name,
		product.PriceMinor,
		product.Currency,
	).Scan(&res.ID, &res.CreatedAt)
	if err != nil {
		r.logger.Error("upsert product", zap.String("key", product.Key), zap.Error(err))
		return nil, err
	}
	if product.ID != "" && res.ID != product.ID {
		return nil, fmt.Errorf("product repo: id mismatch for key=%s existing_id=%s requested_id=%s", product.Key, res.ID, product.ID)
	}
	r.logger.Info("upserted product", zap.String("key", res.Key), zap.String("id", res.ID))
	return &res, nil
}

func collect(rows pgx.Rows) ([]domain.Product, error) {
	defer rows.Close()
	var result []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Key, &p.Name, &p.PriceMinor, &p.Currency, &p.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
