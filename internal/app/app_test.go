package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	posv1 "github.com/vladislavdragonenkov/pos/api/pos/v1"
)

func TestRun_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HTTPAddr = ""

	err := Run(context.Background(), cfg)
	require.ErrorContains(t, err, "invalid config")
}

func TestRun_ServesSeededCatalogAndStops(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HTTPAddr = fmt.Sprintf("127.0.0.1:%d", findFreePort(t))
	cfg.GRPCAddr = fmt.Sprintf("127.0.0.1:%d", findFreePort(t))
	cfg.MetricsAddr = fmt.Sprintf("127.0.0.1:%d", findFreePort(t))
	cfg.StorageDriver = StorageDriverMemory
	cfg.KafkaBrokers = nil
	cfg.SeedCatalog = true
	cfg.ShutdownTimeout = 2 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg) }()

	baseURL := "http://" + cfg.HTTPAddr
	waitForHTTP(t, baseURL+"/api/products")

	status, body := httpGet(t, baseURL+"/api/products")
	require.Equal(t, http.StatusOK, status)
	var products []posv1.Product
	require.NoError(t, json.Unmarshal([]byte(body), &products))
	require.Len(t, products, len(demoCatalog))

	waitForHTTP(t, "http://"+cfg.MetricsAddr+"/livez")
	status, _ = httpGet(t, "http://"+cfg.MetricsAddr+"/readyz")
	require.Equal(t, http.StatusOK, status)

	conn, err := grpc.NewClient(cfg.GRPCAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	callCtx, callCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer callCancel()

	health, err := healthpb.NewHealthClient(conn).Check(callCtx, &healthpb.HealthCheckRequest{Service: posv1.ServiceName})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, health.GetStatus())

	resp, err := posv1.NewPointOfSaleClient(conn).ListProducts(callCtx, &posv1.ListProductsRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Products, len(demoCatalog))

	cancel()
	select {
	case err := <-done:
		require.True(t, errors.Is(err, context.Canceled), "unexpected run error: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}

	_, err = http.Get(baseURL + "/api/products")
	require.Error(t, err)
}
