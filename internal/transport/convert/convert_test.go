package convert

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	posv1 "github.com/vladislavdragonenkov/pos/api/pos/v1"
	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/service/report"
)

func TestSale_CopiesVoidedAtAndSubtotals(t *testing.T) {
	voided := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sale := domain.Sale{
		ID:          "s-1",
		OrderNumber: 7,
		Items: []domain.SaleItem{
			{ProductID: 1, Name: "Café Latte", Price: decimal.RequireFromString("4.50"), Quantity: 2},
		},
		Payments: []domain.Payment{{Method: domain.PaymentMethodCash, Amount: decimal.NewFromInt(10)}},
		Total:    decimal.NewFromInt(9),
		Status:   domain.SaleStatusVoid,
		VoidedAt: &voided,
	}

	out := Sale(sale)
	require.Equal(t, "VOID", out.Status)
	require.True(t, out.Items[0].Subtotal.Equal(decimal.NewFromInt(9)))
	require.Equal(t, "CASH", out.Payments[0].Method)
	require.NotNil(t, out.VoidedAt)

	voided = voided.Add(time.Hour)
	require.NotEqual(t, voided, *out.VoidedAt)
}

func TestReport_FormatsTrendDates(t *testing.T) {
	out := Report(report.Summary{
		Trend: []report.DayTotal{{Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), Total: decimal.NewFromInt(5)}},
	})
	require.Len(t, out.Trend, 1)
	require.Equal(t, "2026-03-02", out.Trend[0].Date)
	require.NotNil(t, out.Categories)
	require.NotNil(t, out.TopProducts)
}

func TestLinesAndPayments(t *testing.T) {
	lines := Lines([]posv1.CartItem{{ProductID: 3, Quantity: 2}})
	require.Equal(t, []domain.CartLine{{ProductID: 3, Quantity: 2}}, lines)

	payments := Payments([]posv1.Payment{{Method: "Efectivo", Amount: decimal.NewFromInt(1)}})
	require.Equal(t, domain.PaymentMethod("Efectivo"), payments[0].Method)
}

func TestPatch_MarksUnparseableNumbers(t *testing.T) {
	price := posv1.Number(`"abc"`)
	stock := posv1.Number(`-4`)
	name := "Té Verde"

	patch := Patch(posv1.UpdateProductRequest{Name: &name, Price: &price, Stock: &stock})
	require.Nil(t, patch.Price)
	require.Equal(t, []string{"price"}, patch.Invalid)

	clean, dropped := patch.Sanitize()
	require.ElementsMatch(t, []string{"price", "stock"}, dropped)
	require.Nil(t, clean.Stock)
	require.Equal(t, name, *clean.Name)

	patch = Patch(posv1.UpdateProductRequest{Price: posv1.DecimalNumber(decimal.RequireFromString("2.40")), Stock: posv1.IntNumber(9)})
	require.Empty(t, patch.Invalid)
	require.True(t, patch.Price.Equal(decimal.RequireFromString("2.4")))
	require.Equal(t, 9, *patch.Stock)
}
