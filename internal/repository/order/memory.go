package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"storefront/internal/domain"
)

type memoryRepo struct {
	mu        sync.Mutex
	orders    map[string]*domain.Order
	byGateway map[string]string
	now       func() time.Time
}

// NewMemory returns a process-local Repository with the same transition
// semantics as the Postgres one.
func NewMemory() Repository {
	return &memoryRepo{
		orders:    make(map[string]*domain.Order),
		byGateway: make(map[string]string),
		now:       time.Now,
	}
}

func (r *memoryRepo) CreatePending(_ context.Context, in NewOrder) (*domain.Order, error) {
	o, err := buildPending(in, r.now().UTC())
	if err != nil {
		return nil, err
	}
	o.ID = uuid.NewString()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = o
	return o.Clone(), nil
}

func (r *memoryRepo) AttachIntent(_ context.Context, orderID, gatewayOrderID string) (*domain.Order, error) {
	if gatewayOrderID == "" {
		return nil, domain.Invalid("gatewayOrderId", "required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if o.Status != domain.StatusPending || o.GatewayOrderID != nil {
		return classifyAttach(o.Clone(), gatewayOrderID)
	}
	if _, taken := r.byGateway[gatewayOrderID]; taken {
		return nil, domain.ErrAlreadyExists
	}
	id := gatewayOrderID
	o.GatewayOrderID = &id
	o.UpdatedAt = r.now().UTC()
	r.byGateway[gatewayOrderID] = orderID
	return o.Clone(), nil
}

func (r *memoryRepo) MarkPaid(_ context.Context, orderID, paymentID string) (*domain.Order, error) {
	if err := validatePaymentID(paymentID); err != nil {
		return nil, err
	}
	return r.transition(orderID, domain.StatusPaid, &paymentID)
}

func (r *memoryRepo) MarkFailed(_ context.Context, orderID string) (*domain.Order, error) {
	return r.transition(orderID, domain.StatusFailed, nil)
}

func (r *memoryRepo) transition(orderID string, to domain.OrderStatus, paymentID *string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if o.Status != domain.StatusPending {
		return nil, &domain.TransitionError{OrderID: orderID, From: o.Status, To: to, Current: o.Clone()}
	}
	o.Status = to
	if paymentID != nil {
		v := *paymentID
		o.PaymentID = &v
	}
	o.UpdatedAt = r.now().UTC()
	return o.Clone(), nil
}

func (r *memoryRepo) Get(_ context.Context, orderID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *memoryRepo) GetByGatewayOrderID(_ context.Context, gatewayOrderID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byGateway[gatewayOrderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.orders[id].Clone(), nil
}

func (r *memoryRepo) List(_ context.Context, filter ListFilter) ([]domain.Order, error) {
	f, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	all := make([]domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		all = append(all, *o.Clone())
	}
	r.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	if f.Offset >= len(all) {
		return nil, nil
	}
	end := f.Offset + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[f.Offset:end], nil
}
