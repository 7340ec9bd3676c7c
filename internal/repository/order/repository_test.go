package order

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

func sampleOrder() NewOrder {
	return NewOrder{
		Items: []domain.LineItem{
			{ProductID: "sku-1", Quantity: 2, UnitPriceMinor: 100000},
			{ProductID: "sku-2", Quantity: 1, UnitPriceMinor: 50000},
		},
		Customer: domain.Customer{Name: " Asha ", Email: "Asha@Example.com", Phone: "9999999999"},
		Currency: "inr",
	}
}

// runRepositoryTests exercises the behaviour every Repository must share.
func runRepositoryTests(t *testing.T, newRepo func(t *testing.T) Repository) {
	ctx := context.Background()

	t.Run("create pending", func(t *testing.T) {
		repo := newRepo(t)
		o, err := repo.CreatePending(ctx, sampleOrder())
		require.NoError(t, err)
		assert.NotEmpty(t, o.ID)
		assert.Equal(t, domain.StatusPending, o.Status)
		assert.Equal(t, int64(250000), o.TotalAmount)
		assert.Equal(t, "INR", o.Currency)
		assert.Equal(t, "Asha", o.Customer.Name)
		assert.Equal(t, "asha@example.com", o.Customer.Email)
		assert.Nil(t, o.PaymentID)
		assert.NoError(t, o.Validate())

		got, err := repo.Get(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, o.Items, got.Items)
		assert.Equal(t, o.TotalAmount, got.TotalAmount)
	})

	t.Run("create rejects invalid input", func(t *testing.T) {
		repo := newRepo(t)
		in := sampleOrder()
		in.Items = nil
		_, err := repo.CreatePending(ctx, in)
		assert.ErrorIs(t, err, domain.ErrValidation)

		in = sampleOrder()
		in.Customer.Phone = ""
		_, err = repo.CreatePending(ctx, in)
		assert.ErrorIs(t, err, domain.ErrValidation)

		in = sampleOrder()
		in.Currency = ""
		_, err = repo.CreatePending(ctx, in)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("get unknown", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Get(ctx, "7f1b1f2e-3c1a-4f7e-9d55-2d8a0f1b9c11")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = repo.Get(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = repo.GetByGatewayOrderID(ctx, "order_missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("attach intent", func(t *testing.T) {
		repo := newRepo(t)
		o, err := repo.CreatePending(ctx, sampleOrder())
		require.NoError(t, err)

		attached, err := repo.AttachIntent(ctx, o.ID, "order_A1")
		require.NoError(t, err)
		require.NotNil(t, attached.GatewayOrderID)
		assert.Equal(t, "order_A1", *attached.GatewayOrderID)

		again, err := repo.AttachIntent(ctx, o.ID, "order_A1")
		require.NoError(t, err)
		assert.Equal(t, "order_A1", *again.GatewayOrderID)

		_, err = repo.AttachIntent(ctx, o.ID, "order_B2")
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)

		byGateway, err := repo.GetByGatewayOrderID(ctx, "order_A1")
		require.NoError(t, err)
		assert.Equal(t, o.ID, byGateway.ID)

		other, err := repo.CreatePending(ctx, sampleOrder())
		require.NoError(t, err)
		_, err = repo.AttachIntent(ctx, other.ID, "order_A1")
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("attach intent after settlement", func(t *testing.T) {
		repo := newRepo(t)
		o, err := repo.CreatePending(ctx, sampleOrder())
		require.NoError(t, err)
		_, err = repo.MarkFailed(ctx, o.ID)
		require.NoError(t, err)

		_, err = repo.AttachIntent(ctx, o.ID, "order_late")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("mark paid once", func(t *testing.T) {
		repo := newRepo(t)
		o, err := repo.CreatePending(ctx, sampleOrder())
		require.NoError(t, err)

		paid, err := repo.MarkPaid(ctx, o.ID, "pay_1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPaid, paid.Status)
		require.NotNil(t, paid.PaymentID)
		assert.Equal(t, "pay_1", *paid.PaymentID)
		assert.NoError(t, paid.Validate())

		_, err = repo.MarkPaid(ctx, o.ID, "pay_2")
		var te *domain.TransitionError
		require.True(t, errors.As(err, &te), "expected TransitionError, got %v", err)
		assert.True(t, te.Duplicate())
		assert.False(t, te.Conflict())
		require.NotNil(t, te.Current)
		assert.Equal(t, "pay_1", *te.Current.PaymentID)

		_, err = repo.MarkFailed(ctx, o.ID)
		require.True(t, errors.As(err, &te))
		assert.True(t, te.Conflict())

		got, err := repo.Get(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPaid, got.Status)
		assert.Equal(t, "pay_1", *got.PaymentID)
	})

	t.Run("mark failed", func(t *testing.T) {
		repo := newRepo(t)
		o, err := repo.CreatePending(ctx, sampleOrder())
		require.NoError(t, err)

		failed, err := repo.MarkFailed(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFailed, failed.Status)
		assert.Nil(t, failed.PaymentID)

		_, err = repo.MarkPaid(ctx, o.ID, "pay_1")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("mark unknown", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.MarkPaid(ctx, "7f1b1f2e-3c1a-4f7e-9d55-2d8a0f1b9c11", "pay_1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = repo.MarkFailed(ctx, "7f1b1f2e-3c1a-4f7e-9d55-2d8a0f1b9c11")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("mark paid requires payment id", func(t *testing.T) {
		repo := newRepo(t)
		o, err := repo.CreatePending(ctx, sampleOrder())
		require.NoError(t, err)
		_, err = repo.MarkPaid(ctx, o.ID, " ")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("concurrent transitions have one winner", func(t *testing.T) {
		repo := newRepo(t)
		o, err := repo.CreatePending(ctx, sampleOrder())
		require.NoError(t, err)

		const workers = 16
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				var err error
				if i%2 == 0 {
					_, err = repo.MarkPaid(ctx, o.ID, "pay_concurrent")
				} else {
					_, err = repo.MarkFailed(ctx, o.ID)
				}
				if err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
					return
				}
				if !errors.Is(err, domain.ErrInvalidTransition) {
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 1, wins)

		got, err := repo.Get(ctx, o.ID)
		require.NoError(t, err)
		assert.True(t, got.Status.Terminal())
		assert.NoError(t, got.Validate())
	})

	t.Run("list newest first", func(t *testing.T) {
		repo := newRepo(t)
		var ids []string
		for i := 0; i < 3; i++ {
			o, err := repo.CreatePending(ctx, sampleOrder())
			require.NoError(t, err)
			ids = append(ids, o.ID)
			time.Sleep(2 * time.Millisecond)
		}
		_, err := repo.MarkPaid(ctx, ids[1], "pay_list")
		require.NoError(t, err)

		all, err := repo.List(ctx, ListFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, ids[2], all[0].ID)
		assert.Equal(t, ids[0], all[2].ID)

		paid, err := repo.List(ctx, ListFilter{Status: domain.StatusPaid})
		require.NoError(t, err)
		require.Len(t, paid, 1)
		assert.Equal(t, ids[1], paid[0].ID)

		page, err := repo.List(ctx, ListFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, ids[1], page[0].ID)

		_, err = repo.List(ctx, ListFilter{Status: "shipped"})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("returned orders are copies", func(t *testing.T) {
		repo := newRepo(t)
		o, err := repo.CreatePending(ctx, sampleOrder())
		require.NoError(t, err)
		o.Items[0].Quantity = 99
		o.Status = domain.StatusPaid

		got, err := repo.Get(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Items[0].Quantity)
		assert.Equal(t, domain.StatusPending, got.Status)
	})
}
