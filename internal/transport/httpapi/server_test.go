package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/lock"
	"github.com/vladislavdragonenkov/pos/internal/service/catalog"
	"github.com/vladislavdragonenkov/pos/internal/service/checkout"
	"github.com/vladislavdragonenkov/pos/internal/service/notify"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fixture struct {
	server  *Server
	router  *gin.Engine
	catalog *catalog.Service
	broker  *notify.Broker
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	logger := log.WithField("component", "http-test")
	broker := notify.NewBroker("node-test")
	emitter := notify.NewEmitter(memory.NewOutboxRepository(), broker, broker.Origin(), logger)
	locks := lock.NewKeyed()
	products := memory.NewProductRepository()

	catalogSvc := catalog.NewService(products, locks, catalog.WithLogger(logger), catalog.WithEmitter(emitter))
	engine := checkout.NewEngine(products, memory.NewSaleRepository(), locks, domain.DefaultPaymentMethods(),
		checkout.WithLogger(logger),
		checkout.WithEmitter(emitter),
		checkout.WithTimeline(memory.NewTimelineRepository()),
	)

	opts = append([]Option{
		WithLogger(logger),
		WithBroker(broker),
		WithIdempotency(memory.NewIdempotencyRepository(0), 0),
	}, opts...)
	server := NewServer(catalogSvc, engine, opts...)

	return &fixture{server: server, router: server.Router(), catalog: catalogSvc, broker: broker}
}

func (f *fixture) seed(t *testing.T, name, price string, stock int64) int64 {
	t.Helper()
	p := decimal.RequireFromString(price)
	s := decimal.NewFromInt(stock)
	product, err := f.catalog.Add(context.Background(), domain.ProductDraft{Name: name, Category: "Bebidas", Price: &p, Stock: &s})
	require.NoError(t, err)
	return product.ID
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		data, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type errorBody struct {
	Error struct {
		Kind      string          `json:"kind"`
		Message   string          `json:"message"`
		Field     string          `json:"field"`
		ProductID int64           `json:"productId"`
		Requested int             `json:"requested"`
		Available int             `json:"available"`
		Remaining decimal.Decimal `json:"remaining"`
	} `json:"error"`
}

func TestCORS_PreflightAllowsIdempotencyKey(t *testing.T) {
	f := newFixture(t, WithCORSOrigins([]string{"http://localhost:3000"}))

	req := httptest.NewRequest(http.MethodOptions, "/api/sales", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Idempotency-Key")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNoRoute(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/unknown", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "not_found", decodeBody[errorBody](t, rec).Error.Kind)
}
