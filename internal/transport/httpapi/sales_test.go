package httpapi

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	posv1 "github.com/vladislavdragonenkov/pos/api/pos/v1"
	"github.com/vladislavdragonenkov/pos/internal/domain"
)

func (f *fixture) stock(t *testing.T, id int64) int {
	t.Helper()
	rec := f.do(t, http.MethodGet, fmt.Sprintf("/api/products/%d", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	return decodeBody[posv1.Product](t, rec).Stock
}

func TestSales_CommitVoidScenario(t *testing.T) {
	f := newFixture(t)
	id := f.seed(t, "Café Latte", "4.50", 5)

	body := fmt.Sprintf(`{"items":[{"id":%d,"name":"ignored","price":0.01,"quantity":3}],"payments":[{"method":"Efectivo","amount":20}]}`, id)
	rec := f.do(t, http.MethodPost, "/api/sales", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	sale := decodeBody[posv1.Sale](t, rec)
	require.Equal(t, "COMPLETED", sale.Status)
	require.True(t, sale.Total.Equal(decimal.RequireFromString("13.5")))
	require.True(t, sale.Change.Equal(decimal.RequireFromString("6.5")))
	require.Equal(t, "CASH", sale.Payments[0].Method)
	require.Equal(t, 2, f.stock(t, id))

	rec = f.do(t, http.MethodPatch, "/api/sales/"+sale.ID, `{"status":"VOID"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "VOID", decodeBody[posv1.Sale](t, rec).Status)
	require.Equal(t, 5, f.stock(t, id))

	rec = f.do(t, http.MethodPatch, "/api/sales/"+sale.ID, `{"status":"VOID"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 5, f.stock(t, id), "second void must not credit again")

	rec = f.do(t, http.MethodGet, "/api/sales/"+sale.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decodeBody[saleDetail](t, rec)
	require.Equal(t, sale.ID, detail.ID)
	require.Len(t, detail.Timeline, 2)

	rec = f.do(t, http.MethodGet, "/api/sales", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeBody[[]posv1.Sale](t, rec), 1)
}

func TestSales_CommitErrors(t *testing.T) {
	f := newFixture(t)
	id := f.seed(t, "Croissant", "3.75", 1)

	t.Run("insufficient stock", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/sales", posv1.CommitSaleRequest{
			Items:    []posv1.CartItem{{ProductID: id, Quantity: 2}},
			Payments: []posv1.Payment{{Method: "CASH", Amount: decimal.NewFromInt(10)}},
		})
		require.Equal(t, http.StatusConflict, rec.Code)
		got := decodeBody[errorBody](t, rec)
		require.Equal(t, string(domain.KindInsufficientStock), got.Error.Kind)
		require.Equal(t, id, got.Error.ProductID)
		require.Equal(t, 2, got.Error.Requested)
		require.Equal(t, 1, got.Error.Available)
	})

	t.Run("incomplete payment", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/sales", posv1.CommitSaleRequest{
			Items:    []posv1.CartItem{{ProductID: id, Quantity: 1}},
			Payments: []posv1.Payment{{Method: "CASH", Amount: decimal.NewFromInt(1)}},
		})
		require.Equal(t, http.StatusPaymentRequired, rec.Code)
		got := decodeBody[errorBody](t, rec)
		require.True(t, got.Error.Remaining.Equal(decimal.RequireFromString("2.75")))
	})

	t.Run("empty cart", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/sales", `{"items":[],"payments":[]}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown product", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/sales", `{"items":[{"productId":404,"quantity":1}],"payments":[{"method":"CASH","amount":5}]}`)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	require.Equal(t, 1, f.stock(t, id))
}

func TestSales_VoidErrors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPatch, "/api/sales/missing", `{"status":"VOID"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPatch, "/api/sales/missing", `{"status":"COMPLETED"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPatch, "/api/sales/missing", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSales_IdempotentCommit(t *testing.T) {
	f := newFixture(t)
	id := f.seed(t, "Té Matcha", "5.00", 10)
	req := posv1.CommitSaleRequest{
		Items:    []posv1.CartItem{{ProductID: id, Quantity: 2}},
		Payments: []posv1.Payment{{Method: "CARD", Amount: decimal.NewFromInt(10)}},
	}

	first := f.do(t, http.MethodPost, "/api/sales", req, idempotencyKeyHeader, "k-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	require.Empty(t, first.Header().Get(replayedHeader))

	second := f.do(t, http.MethodPost, "/api/sales", req, idempotencyKeyHeader, "k-1")
	require.Equal(t, http.StatusCreated, second.Code)
	require.Equal(t, "true", second.Header().Get(replayedHeader))
	require.Equal(t, decodeBody[posv1.Sale](t, first).ID, decodeBody[posv1.Sale](t, second).ID)
	require.Equal(t, 8, f.stock(t, id))

	req.Items[0].Quantity = 1
	req.Payments[0].Amount = decimal.NewFromInt(5)
	third := f.do(t, http.MethodPost, "/api/sales", req, idempotencyKeyHeader, "k-1")
	require.Equal(t, http.StatusConflict, third.Code)
	require.Equal(t, kindIdempotencyConflict, decodeBody[errorBody](t, third).Error.Kind)
}

func TestSales_IdempotentFailureReplays(t *testing.T) {
	f := newFixture(t)
	id := f.seed(t, "Cheesecake", "6.50", 1)
	req := posv1.CommitSaleRequest{
		Items:    []posv1.CartItem{{ProductID: id, Quantity: 5}},
		Payments: []posv1.Payment{{Method: "CASH", Amount: decimal.NewFromInt(50)}},
	}

	first := f.do(t, http.MethodPost, "/api/sales", req, idempotencyKeyHeader, "k-2")
	require.Equal(t, http.StatusConflict, first.Code)

	second := f.do(t, http.MethodPost, "/api/sales", req, idempotencyKeyHeader, "k-2")
	require.Equal(t, http.StatusConflict, second.Code)
	require.Equal(t, "true", second.Header().Get(replayedHeader))
	require.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestPaymentMethods(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/payment-methods", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[{"method":"CARD","allowsChange":false},{"method":"CASH","allowsChange":true}]`, rec.Body.String())
}
