package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/lock"
	"github.com/vladislavdragonenkov/pos/internal/service/notify"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
)

func decimalPtr(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func newTestService(t *testing.T) (*Service, *notify.Broker, *memory.OutboxRepository) {
	t.Helper()
	broker := notify.NewBroker("test")
	outbox := memory.NewOutboxRepository()
	emitter := notify.NewEmitter(outbox, broker, "test", nil)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := NewService(memory.NewProductRepository(), lock.NewKeyed(),
		WithEmitter(emitter),
		WithClock(func() time.Time { return fixed }),
	)
	return svc, broker, outbox
}

func TestService_AddDefaults(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	product, err := svc.Add(ctx, domain.ProductDraft{Name: "  Café Latte ", Price: decimalPtr("4.50")})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if product.ID == 0 {
		t.Fatal("expected assigned id")
	}
	if product.Name != "Café Latte" || product.Category != domain.DefaultCategory {
		t.Fatalf("unexpected product: %+v", product)
	}
	if product.Stock != 0 || product.Image != domain.PlaceholderImage {
		t.Fatalf("expected default stock and image, got %+v", product)
	}
}

func TestService_AddValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		draft domain.ProductDraft
	}{
		{name: "missing name", draft: domain.ProductDraft{Price: decimalPtr("1")}},
		{name: "missing price", draft: domain.ProductDraft{Name: "Té"}},
		{name: "negative price", draft: domain.ProductDraft{Name: "Té", Price: decimalPtr("-1")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Add(ctx, tt.draft)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	products, _ := svc.List(ctx)
	if len(products) != 0 {
		t.Fatalf("failed adds must not create products, got %d", len(products))
	}
}

func TestService_UpdateExplicitZeroStock(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	product, err := svc.Add(ctx, domain.ProductDraft{Name: "Croissant", Price: decimalPtr("3.75"), Stock: decimalPtr("24")})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	zero := 0
	updated, err := svc.Update(ctx, product.ID, domain.ProductPatch{Stock: &zero})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Stock != 0 {
		t.Fatalf("explicit zero stock must apply, got %d", updated.Stock)
	}
}

func TestService_UpdateDropsInvalidFields(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	product, _ := svc.Add(ctx, domain.ProductDraft{Name: "Té Matcha", Price: decimalPtr("5.00"), Stock: decimalPtr("30")})

	negative := -5
	empty := "  "
	updated, err := svc.Update(ctx, product.ID, domain.ProductPatch{
		Name:  &empty,
		Price: decimalPtr("-2"),
		Stock: &negative,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Name != "Té Matcha" || !updated.Price.Equal(decimal.RequireFromString("5")) || updated.Stock != 30 {
		t.Fatalf("invalid fields must be ignored, got %+v", updated)
	}
}

func TestService_UpdateNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	name := "x"

	_, err := svc.Update(context.Background(), 404, domain.ProductPatch{Name: &name})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	var notFound *domain.NotFoundError
	if !errors.As(err, &notFound) || notFound.ID != "404" {
		t.Fatalf("expected NotFoundError for 404, got %v", err)
	}
}

func TestService_DeleteIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	product, _ := svc.Add(ctx, domain.ProductDraft{Name: "Jugo", Price: decimalPtr("4")})
	if err := svc.Delete(ctx, product.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := svc.Delete(ctx, product.ID); err != nil {
		t.Fatalf("second delete must succeed, got %v", err)
	}
	if _, err := svc.Get(ctx, product.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestService_SetStockClampsNegative(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	product, _ := svc.Add(ctx, domain.ProductDraft{Name: "Sandwich", Price: decimalPtr("8.5"), Stock: decimalPtr("20")})
	updated, err := svc.SetStock(ctx, product.ID, -3)
	if err != nil {
		t.Fatalf("set stock failed: %v", err)
	}
	if updated.Stock != 0 {
		t.Fatalf("expected stock 0, got %d", updated.Stock)
	}
}

func TestService_EmitsProductChanges(t *testing.T) {
	svc, broker, outbox := newTestService(t)
	ctx := context.Background()
	events, unsub := broker.Subscribe(domain.ChangeProducts)
	defer unsub()

	product, _ := svc.Add(ctx, domain.ProductDraft{Name: "Cheesecake", Price: decimalPtr("6.5")})
	price := decimal.RequireFromString("7")
	_, _ = svc.Update(ctx, product.ID, domain.ProductPatch{Price: &price})
	_ = svc.Delete(ctx, product.ID)

	wantTypes := []string{domain.EventProductCreated, domain.EventProductUpdated, domain.EventProductDeleted}
	for _, want := range wantTypes {
		select {
		case event := <-events:
			if event.EventType != want {
				t.Fatalf("expected %s, got %s", want, event.EventType)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}

	pending, err := outbox.PullPending(10)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 outbox events, got %d", len(pending))
	}
	for _, msg := range pending {
		if msg.AggregateType != domain.AggregateProduct {
			t.Fatalf("unexpected aggregate: %s", msg.AggregateType)
		}
	}
}

func TestService_SeedOnlyWhenEmpty(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	drafts := []domain.ProductDraft{
		{Name: "Café Latte", Category: "Bebidas", Price: decimalPtr("4.50"), Stock: decimalPtr("50")},
		{Name: "Croissant de Almendras", Category: "Panadería", Price: decimalPtr("3.75"), Stock: decimalPtr("24")},
	}

	created, err := svc.Seed(ctx, drafts)
	if err != nil || created != 2 {
		t.Fatalf("expected 2 seeded products, got %d (%v)", created, err)
	}

	created, err = svc.Seed(ctx, drafts)
	if err != nil || created != 0 {
		t.Fatalf("second seed must be a no-op, got %d (%v)", created, err)
	}

	products, _ := svc.List(ctx)
	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(products))
	}
}
