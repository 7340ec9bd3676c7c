package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/domain"
)

const orderColumns = `id::text, items, total_amount, currency, status, payment_id, gateway_order_id,
customer_name, customer_email, customer_phone, created_at, updated_at`

type postgresRepo struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool, now: time.Now}
}

func (r *postgresRepo) CreatePending(ctx context.Context, in NewOrder) (*domain.Order, error) {
	o, err := buildPending(in, r.now().UTC())
	if err != nil {
		return nil, err
	}
	items, err := json.Marshal(o.Items)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}

	q := `
INSERT INTO orders (id, items, total_amount, currency, status, customer_name, customer_email, customer_phone)
VALUES ($1, $2, $3, $4, 'pending', $5, $6, $7)
RETURNING ` + orderColumns
	row := r.pool.QueryRow(ctx, q, uuid.NewString(), items, o.TotalAmount, o.Currency,
		o.Customer.Name, o.Customer.Email, o.Customer.Phone)
	created, err := scanOrder(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("insert order: %w", err)
	}
	return created, nil
}

func (r *postgresRepo) AttachIntent(ctx context.Context, orderID, gatewayOrderID string) (*domain.Order, error) {
	if gatewayOrderID == "" {
		return nil, domain.Invalid("gatewayOrderId", "required")
	}
	if !validID(orderID) {
		return nil, domain.ErrNotFound
	}
	q := `
UPDATE orders SET gateway_order_id = $2
WHERE id = $1 AND status = 'pending' AND gateway_order_id IS NULL
RETURNING ` + orderColumns
	o, err := scanOrder(r.pool.QueryRow(ctx, q, orderID, gatewayOrderID))
	if err == nil {
		return o, nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return nil, domain.ErrAlreadyExists
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("attach intent: %w", err)
	}

	current, err := r.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return classifyAttach(current, gatewayOrderID)
}

func (r *postgresRepo) MarkPaid(ctx context.Context, orderID, paymentID string) (*domain.Order, error) {
	if err := validatePaymentID(paymentID); err != nil {
		return nil, err
	}
	return r.transition(ctx, orderID, domain.StatusPaid, &paymentID)
}

func (r *postgresRepo) MarkFailed(ctx context.Context, orderID string) (*domain.Order, error) {
	return r.transition(ctx, orderID, domain.StatusFailed, nil)
}

// transition is the single conditional write; zero rows means the order is
// missing or already terminal, which a re-read tells apart.
func (r *postgresRepo) transition(ctx context.Context, orderID string, to domain.OrderStatus, paymentID *string) (*domain.Order, error) {
	if !validID(orderID) {
		return nil, domain.ErrNotFound
	}
	q := `
UPDATE orders SET status = $2, payment_id = $3
WHERE id = $1 AND status = 'pending'
RETURNING ` + orderColumns
	o, err := scanOrder(r.pool.QueryRow(ctx, q, orderID, string(to), paymentID))
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("mark %s: %w", to, err)
	}

	current, err := r.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return nil, &domain.TransitionError{OrderID: orderID, From: current.Status, To: to, Current: current}
}

func (r *postgresRepo) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	if !validID(orderID) {
		return nil, domain.ErrNotFound
	}
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (r *postgresRepo) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Order, error) {
	if gatewayOrderID == "" {
		return nil, domain.ErrNotFound
	}
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE gateway_order_id = $1`, gatewayOrderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get order by gateway id: %w", err)
	}
	return o, nil
}

func (r *postgresRepo) List(ctx context.Context, filter ListFilter) ([]domain.Order, error) {
	f, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	q := `
SELECT ` + orderColumns + `
FROM orders
WHERE ($1 = '' OR status = $1)
ORDER BY created_at DESC, id
LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, q, string(f.Status), f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var result []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return result, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o     domain.Order
		items []byte
		st    string
	)
	if err := row.Scan(
		&o.ID,
		&items,
		&o.TotalAmount,
		&o.Currency,
		&st,
		&o.PaymentID,
		&o.GatewayOrderID,
		&o.Customer.Name,
		&o.Customer.Email,
		&o.Customer.Phone,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode items of order %s: %w", o.ID, err)
	}
	o.Status = domain.OrderStatus(st)
	return &o, nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func classifyAttach(current *domain.Order, gatewayOrderID string) (*domain.Order, error) {
	if current.GatewayOrderID != nil {
		if *current.GatewayOrderID == gatewayOrderID {
			return current, nil
		}
		return nil, domain.ErrAlreadyExists
	}
	return nil, &domain.TransitionError{OrderID: current.ID, From: current.Status, To: domain.StatusPending, Current: current}
}
