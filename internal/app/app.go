package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	posv1 "github.com/vladislavdragonenkov/pos/api/pos/v1"
	"github.com/vladislavdragonenkov/pos/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/pos/internal/health"
	"github.com/vladislavdragonenkov/pos/internal/lock"
	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
	"github.com/vladislavdragonenkov/pos/internal/service/catalog"
	"github.com/vladislavdragonenkov/pos/internal/service/checkout"
	grpcsvc "github.com/vladislavdragonenkov/pos/internal/service/grpc"
	"github.com/vladislavdragonenkov/pos/internal/service/idempotency"
	"github.com/vladislavdragonenkov/pos/internal/service/notify"
	"github.com/vladislavdragonenkov/pos/internal/service/outbox"
	"github.com/vladislavdragonenkov/pos/internal/service/report"
	"github.com/vladislavdragonenkov/pos/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/pos/internal/version"
)

// Run поднимает кассу: REST, gRPC, метрики и фоновые воркеры. Возвращает
// ctx.Err() после штатной остановки по сигналу.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	methods, err := cfg.PaymentMethodSet()
	if err != nil {
		return err
	}

	rt, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.close(logger)

	producer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(producer, logger)

	// Без Kafka события некому доставлять, поэтому outbox не заполняется.
	var outboxRepo domain.OutboxRepository
	if producer != nil {
		outboxRepo = rt.outbox
	}
	broker := notify.NewBroker(cfg.InstanceID, notify.WithBrokerLogger(logger.WithField("layer", "notify")))
	emitter := notify.NewEmitter(outboxRepo, broker, cfg.InstanceID, logger.WithField("layer", "emitter"))

	locks := lock.NewKeyed()
	catalogSvc := catalog.NewService(rt.products, locks,
		catalog.WithLogger(logger.WithField("layer", "catalog")),
		catalog.WithEmitter(emitter),
	)
	engine := checkout.NewEngine(rt.products, rt.sales, locks, methods,
		checkout.WithLogger(logger.WithField("layer", "checkout")),
		checkout.WithMetrics(metrics.NewCheckoutMetrics()),
		checkout.WithTimeline(rt.timeline),
		checkout.WithEmitter(emitter),
	)

	if cfg.SeedCatalog {
		if err := seedCatalog(ctx, catalogSvc, logger); err != nil {
			logger.WithError(err).Warn("failed to seed catalog")
		}
	}

	workersCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	var workers sync.WaitGroup
	runWorker := func(name string, fn func(context.Context)) {
		workers.Add(1)
		go func() {
			defer workers.Done()
			fn(workersCtx)
			logger.WithField("worker", name).Info("background worker stopped")
		}()
	}

	var consumer *kafka.Consumer
	if producer != nil {
		worker := outbox.NewWorker(rt.outbox, newOutboxPublisher(producer, cfg),
			outbox.WithLogger(logger.WithField("layer", "outbox")),
			outbox.WithDeadLetters(kafka.NewDeadLetterPublisher(producer, "")),
			outbox.WithConfig(outbox.Config{
				PollInterval:   cfg.OutboxPollInterval,
				BatchSize:      cfg.OutboxBatchSize,
				MaxAttempts:    cfg.OutboxMaxAttempts,
				RetryBaseDelay: cfg.OutboxRetryDelay,
			}),
		)
		runWorker("outbox", worker.Run)

		consumer, err = startChangeConsumer(workersCtx, cfg, broker, producer, logger)
		if err != nil {
			logger.WithError(err).Warn("kafka consumer is not started, remote changes will not be relayed")
		}
	}
	cleanup := idempotency.NewCleanupWorker(rt.idempotency,
		idempotency.WithCleanupLogger(logger.WithField("layer", "idempotency-cleanup")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)
	runWorker("idempotency-cleanup", cleanup.Run)

	reportOpts := report.Options{TrendDays: cfg.ReportTrendDays}

	grpcServer, healthServer := newGRPCServer()
	posv1.RegisterPointOfSaleServer(grpcServer, grpcsvc.NewPointOfSaleService(catalogSvc, engine,
		logger.WithField("layer", "grpc"),
		grpcsvc.WithIdempotency(rt.idempotency),
		grpcsvc.WithReportOptions(reportOpts),
	))
	promgrpc.EnableHandlingTimeHistogram()
	promgrpc.Register(grpcServer)

	api := httpapi.NewServer(catalogSvc, engine,
		httpapi.WithLogger(logger.WithField("layer", "http")),
		httpapi.WithIdempotency(rt.idempotency, cfg.IdempotencyTTL),
		httpapi.WithBroker(broker),
		httpapi.WithReportOptions(reportOpts),
		httpapi.WithCORSOrigins(cfg.CORSOrigins),
	)
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpSrv.RegisterOnShutdown(api.CloseStreams)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", rt.storageChecker)
	healthHandler.RegisterChecker("kafka", kafkaChecker(cfg, producer))

	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", cfg.GRPCAddr, err)
	}
	httpLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		_ = grpcLis.Close()
		return fmt.Errorf("listen http %s: %w", cfg.HTTPAddr, err)
	}
	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	errCh := make(chan error, 2)
	go func() {
		logger.WithField("addr", grpcLis.Addr().String()).Info("gRPC server listening")
		if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	go func() {
		logger.WithField("addr", httpLis.Addr().String()).Info("HTTP API listening")
		if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		runErr = ctx.Err()
	case runErr = <-errCh:
		logger.WithError(runErr).Error("server failed, shutting down")
	}

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	stopGRPC(grpcServer, cfg.ShutdownTimeout, logger)
	shutdownHTTP(httpSrv, cfg.ShutdownTimeout, logger)
	shutdownHTTP(metricsSrv, cfg.ShutdownTimeout, logger)

	stopConsumer(consumer, logger)
	stopWorkers()
	workers.Wait()

	return runErr
}

func newGRPCServer() (*grpc.Server, *health.Server) {
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(promgrpc.UnaryServerInterceptor),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(posv1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// reflection нужен grpcurl для health-сервиса.
	reflection.Register(grpcServer)
	return grpcServer, healthServer
}

func stopGRPC(server *grpc.Server, timeout time.Duration, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(timeout):
		logger.Warn("graceful stop timed out, forcing grpc server stop")
		server.Stop()
	}
}

// startMetricsServer отдаёт /metrics и health-ручки на отдельном адресе.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.WithField("addr", addr).Info("metrics and health endpoints listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, 5*time.Second, logger)
	}()

	return srv
}

// shutdownHTTP останавливает HTTP-сервер, дожидаясь активных запросов.
func shutdownHTTP(srv *http.Server, timeout time.Duration, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).WithField("addr", srv.Addr).Warn("http shutdown with error")
	}
}
