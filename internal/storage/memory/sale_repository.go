package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// saleRepositoryInMemory — журнал продаж в памяти процесса.
type saleRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Sale
	// lastOrderNumber только растёт: номер выдаётся под тем же мьютексом, что и вставка.
	lastOrderNumber int64
	lastDate        time.Time
	now             func() time.Time
}

// NewSaleRepository создаёт in-memory журнал продаж.
func NewSaleRepository() domain.SaleRepository {
	return &saleRepositoryInMemory{items: make(map[string]domain.Sale), now: time.Now}
}

// List возвращает продажи от новых к старым.
func (r *saleRepositoryInMemory) List(_ context.Context) ([]domain.Sale, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Sale, 0, len(r.items))
	for _, sale := range r.items {
		result = append(result, sale.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.After(result[j].Date)
		}
		return result[i].OrderNumber > result[j].OrderNumber
	})
	return result, nil
}

func (r *saleRepositoryInMemory) Get(_ context.Context, id string) (domain.Sale, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sale, ok := r.items[id]
	if !ok {
		return domain.Sale{}, domain.ErrSaleNotFound
	}
	return sale.Clone(), nil
}

func (r *saleRepositoryInMemory) Append(_ context.Context, lines []domain.CartLine, payments []domain.Payment) (domain.Sale, error) {
	if len(lines) == 0 {
		return domain.Sale{}, domain.ErrEmptyCart
	}

	id := uuid.NewString()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Дата и номер выдаются вместе, иначе List разойдётся с порядком проведения.
	now := r.now().UTC()
	if now.Before(r.lastDate) {
		now = r.lastDate
	}
	r.lastDate = now

	sale := domain.NewSale(lines, payments, now)
	sale.ID = id
	r.lastOrderNumber++
	sale.OrderNumber = r.lastOrderNumber
	r.items[sale.ID] = sale.Clone()
	return sale, nil
}

func (r *saleRepositoryInMemory) SetStatus(_ context.Context, id string, status domain.SaleStatus) (domain.Sale, bool, error) {
	if !status.Valid() {
		return domain.Sale{}, false, fmt.Errorf("status %q: %w", status, domain.ErrInvalidStatusTransition)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sale, ok := r.items[id]
	if !ok {
		return domain.Sale{}, false, domain.ErrSaleNotFound
	}
	if sale.Status == status {
		return sale.Clone(), false, nil
	}
	if !sale.Status.CanTransitionTo(status) {
		return sale.Clone(), false, fmt.Errorf("%s -> %s: %w", sale.Status, status, domain.ErrInvalidStatusTransition)
	}

	sale.Status = status
	if status == domain.SaleStatusVoid {
		now := time.Now().UTC()
		sale.VoidedAt = &now
	}
	r.items[id] = sale
	return sale.Clone(), true, nil
}

func (r *saleRepositoryInMemory) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.items, id)
	return nil
}

var _ domain.SaleRepository = (*saleRepositoryInMemory)(nil)
