package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/app"
	"github.com/vladislavdragonenkov/pos/internal/version"
)

const (
	envLogLevel  = "POS_LOG_LEVEL"
	envLogFormat = "POS_LOG_FORMAT"
	envGinMode   = "POS_GIN_MODE"
)

// setupLogger настраивает формат и уровень логирования. Неизвестный уровень
// заменяется на info с предупреждением.
func setupLogger(lookup func(string) (string, bool)) {
	if format, _ := lookup(envLogFormat); strings.EqualFold(strings.TrimSpace(format), "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level := log.InfoLevel
	if raw, ok := lookup(envLogLevel); ok && strings.TrimSpace(raw) != "" {
		parsed, err := log.ParseLevel(strings.TrimSpace(raw))
		if err != nil {
			log.WithError(err).Warn("unknown log level, using info")
		} else {
			level = parsed
		}
	}
	log.SetLevel(level)
}

// ginMode выбирает режим gin. По умолчанию release, чтобы gin не писал debug-вывод в stdout.
func ginMode(lookup func(string) (string, bool)) string {
	raw, _ := lookup(envGinMode)
	switch mode := strings.ToLower(strings.TrimSpace(raw)); mode {
	case gin.DebugMode, gin.TestMode:
		return mode
	default:
		return gin.ReleaseMode
	}
}

func main() {
	setupLogger(os.LookupEnv)
	gin.SetMode(ginMode(os.LookupEnv))

	cfg, err := app.LoadConfigFromEnv()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"version":      version.GetVersion(),
		"instance_id":  cfg.InstanceID,
		"http_addr":    cfg.HTTPAddr,
		"grpc_addr":    cfg.GRPCAddr,
		"metrics_addr": cfg.MetricsAddr,
		"storage":      cfg.StorageDriver,
		"kafka":        cfg.KafkaEnabled(),
	}).Info("starting point of sale server")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("server stopped with error")
	}

	log.Info("point of sale server stopped")
}
