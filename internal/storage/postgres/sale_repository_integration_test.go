package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

func sampleLines() []domain.CartLine {
	return []domain.CartLine{
		{ProductID: 1, Name: "Café Americano", Category: "Bebidas", Price: decimal.RequireFromString("2.50"), Quantity: 2},
		{ProductID: 3, Name: "Croissant", Category: "Panadería", Price: decimal.RequireFromString("2.00"), Quantity: 1},
	}
}

func TestSaleRepository_PostgresAppendGetList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewSaleRepository(store)
	ctx := context.Background()

	payments := []domain.Payment{
		{Method: domain.PaymentMethodCard, Amount: decimal.RequireFromString("3.00")},
		{Method: domain.PaymentMethodCash, Amount: decimal.RequireFromString("5.00")},
	}
	first, err := repo.Append(ctx, sampleLines(), payments)
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	require.Equal(t, int64(1), first.OrderNumber)
	require.Equal(t, domain.SaleStatusCompleted, first.Status)
	require.True(t, first.Total.Equal(decimal.RequireFromString("7.00")))
	require.True(t, first.Change.Equal(decimal.RequireFromString("1.00")))

	time.Sleep(2 * time.Millisecond)
	second, err := repo.Append(ctx, sampleLines()[:1], []domain.Payment{
		{Method: domain.PaymentMethodCash, Amount: decimal.RequireFromString("5.00")},
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), second.OrderNumber)

	got, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, first.OrderNumber, got.OrderNumber)
	require.True(t, got.Date.Equal(first.Date))
	require.Len(t, got.Items, 2)
	require.Equal(t, int64(1), got.Items[0].ProductID)
	require.Equal(t, "Croissant", got.Items[1].Name)
	require.Len(t, got.Payments, 2)
	require.Equal(t, domain.PaymentMethodCard, got.Payments[0].Method)
	require.Nil(t, got.VoidedAt)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, second.ID, list[0].ID)
	require.Len(t, list[1].Items, 2)
	require.Len(t, list[0].Payments, 1)

	_, err = repo.Get(ctx, "missing-sale")
	require.ErrorIs(t, err, domain.ErrSaleNotFound)

	_, err = repo.Append(ctx, nil, nil)
	require.ErrorIs(t, err, domain.ErrEmptyCart)
}

func TestSaleRepository_PostgresSetStatusAndDelete(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewSaleRepository(store)
	ctx := context.Background()

	sale, err := repo.Append(ctx, sampleLines(), []domain.Payment{
		{Method: domain.PaymentMethodCash, Amount: decimal.RequireFromString("7.00")},
	})
	require.NoError(t, err)

	voided, changed, err := repo.SetStatus(ctx, sale.ID, domain.SaleStatusVoid)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, domain.SaleStatusVoid, voided.Status)
	require.NotNil(t, voided.VoidedAt)

	again, changed, err := repo.SetStatus(ctx, sale.ID, domain.SaleStatusVoid)
	require.NoError(t, err)
	require.False(t, changed)
	require.True(t, again.VoidedAt.Equal(*voided.VoidedAt))

	_, changed, err = repo.SetStatus(ctx, sale.ID, domain.SaleStatusCompleted)
	require.ErrorIs(t, err, domain.ErrInvalidStatusTransition)
	require.False(t, changed)

	_, _, err = repo.SetStatus(ctx, "missing-sale", domain.SaleStatusVoid)
	require.ErrorIs(t, err, domain.ErrSaleNotFound)

	require.NoError(t, repo.Delete(ctx, sale.ID))
	_, err = repo.Get(ctx, sale.ID)
	require.ErrorIs(t, err, domain.ErrSaleNotFound)

	// Номер удалённой продажи не выдаётся повторно.
	next, err := repo.Append(ctx, sampleLines(), nil)
	require.NoError(t, err)
	require.Equal(t, int64(2), next.OrderNumber)
}

func TestSaleRepository_PostgresConcurrentOrderNumbersAreUnique(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewSaleRepository(store)
	ctx := context.Background()

	const workers = 8
	numbers := make(chan int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sale, err := repo.Append(ctx, sampleLines(), nil)
			if assert.NoError(t, err) {
				numbers <- sale.OrderNumber
			}
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[int64]struct{}, workers)
	for n := range numbers {
		_, dup := seen[n]
		require.False(t, dup, "order number %d issued twice", n)
		seen[n] = struct{}{}
	}
	require.Len(t, seen, workers)
}
