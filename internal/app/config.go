package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// Драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска кассы.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string
	// InstanceID помечает события этого экземпляра, чтобы не принимать их обратно из Kafka.
	InstanceID string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	IdempotencyTTL              time.Duration
	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int

	PaymentMethods  string
	SeedCatalog     bool
	CORSOrigins     []string
	ReportTrendDays int
	ShutdownTimeout time.Duration
}

// DefaultConfig возвращает настройки для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                    ":8080",
		GRPCAddr:                    ":50051",
		MetricsAddr:                 ":9090",
		InstanceID:                  defaultInstanceID(),
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		KafkaGroupID:                "pos-server",
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            200 * time.Millisecond,
		IdempotencyTTL:              24 * time.Hour,
		IdempotencyCleanupInterval:  time.Minute,
		IdempotencyCleanupBatchSize: 500,
		PaymentMethods:              "CASH:change,CARD:exact",
		SeedCatalog:                 true,
		CORSOrigins:                 []string{"*"},
		ReportTrendDays:             7,
		ShutdownTimeout:             5 * time.Second,
	}
}

func defaultInstanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "pos"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

// LoadConfigFromEnv читает .env (если он есть) и переменные POS_*.
func LoadConfigFromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return configFromLookup(os.LookupEnv)
}

// configFromLookup собирает Config из произвольного источника переменных.
func configFromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()
	p := envParser{lookup: lookup}

	p.str("POS_HTTP_ADDR", &cfg.HTTPAddr)
	p.str("POS_GRPC_ADDR", &cfg.GRPCAddr)
	p.str("POS_METRICS_ADDR", &cfg.MetricsAddr)
	p.str("POS_INSTANCE_ID", &cfg.InstanceID)

	p.str("POS_STORAGE_DRIVER", &cfg.StorageDriver)
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	p.str("POS_POSTGRES_DSN", &cfg.PostgresDSN)
	p.boolean("POS_POSTGRES_AUTO_MIGRATE", &cfg.PostgresAutoMigrate)

	p.list("POS_KAFKA_BROKERS", &cfg.KafkaBrokers)
	p.str("POS_KAFKA_TOPIC", &cfg.KafkaTopic)
	p.str("POS_KAFKA_GROUP_ID", &cfg.KafkaGroupID)

	p.duration("POS_OUTBOX_POLL_INTERVAL", &cfg.OutboxPollInterval)
	p.integer("POS_OUTBOX_BATCH_SIZE", &cfg.OutboxBatchSize)
	p.integer("POS_OUTBOX_MAX_ATTEMPTS", &cfg.OutboxMaxAttempts)
	p.duration("POS_OUTBOX_RETRY_DELAY", &cfg.OutboxRetryDelay)

	p.duration("POS_IDEMPOTENCY_TTL", &cfg.IdempotencyTTL)
	p.duration("POS_IDEMPOTENCY_CLEANUP_INTERVAL", &cfg.IdempotencyCleanupInterval)
	p.integer("POS_IDEMPOTENCY_CLEANUP_BATCH_SIZE", &cfg.IdempotencyCleanupBatchSize)

	p.str("POS_PAYMENT_METHODS", &cfg.PaymentMethods)
	p.boolean("POS_SEED_CATALOG", &cfg.SeedCatalog)
	p.list("POS_CORS_ORIGINS", &cfg.CORSOrigins)
	p.integer("POS_REPORT_TREND_DAYS", &cfg.ReportTrendDays)
	p.duration("POS_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет настройки целиком и возвращает все найденные ошибки.
func (c Config) Validate() error {
	var errs []error

	for name, addr := range map[string]string{
		"POS_HTTP_ADDR":    c.HTTPAddr,
		"POS_GRPC_ADDR":    c.GRPCAddr,
		"POS_METRICS_ADDR": c.MetricsAddr,
	} {
		if strings.TrimSpace(addr) == "" {
			errs = append(errs, fmt.Errorf("%s must not be empty", name))
		}
	}

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("POS_POSTGRES_DSN is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported POS_STORAGE_DRIVER %q", c.StorageDriver))
	}

	if len(c.KafkaBrokers) > 0 && strings.TrimSpace(c.KafkaGroupID) == "" {
		errs = append(errs, errors.New("POS_KAFKA_GROUP_ID is required when kafka is enabled"))
	}
	if c.OutboxPollInterval <= 0 {
		errs = append(errs, errors.New("POS_OUTBOX_POLL_INTERVAL must be positive"))
	}
	if c.OutboxBatchSize <= 0 {
		errs = append(errs, errors.New("POS_OUTBOX_BATCH_SIZE must be positive"))
	}
	if c.OutboxMaxAttempts <= 0 {
		errs = append(errs, errors.New("POS_OUTBOX_MAX_ATTEMPTS must be positive"))
	}
	if c.OutboxRetryDelay < 0 {
		errs = append(errs, errors.New("POS_OUTBOX_RETRY_DELAY must not be negative"))
	}
	if c.IdempotencyTTL <= 0 {
		errs = append(errs, errors.New("POS_IDEMPOTENCY_TTL must be positive"))
	}
	if c.IdempotencyCleanupInterval <= 0 {
		errs = append(errs, errors.New("POS_IDEMPOTENCY_CLEANUP_INTERVAL must be positive"))
	}
	if c.IdempotencyCleanupBatchSize <= 0 {
		errs = append(errs, errors.New("POS_IDEMPOTENCY_CLEANUP_BATCH_SIZE must be positive"))
	}
	if c.ReportTrendDays <= 0 {
		errs = append(errs, errors.New("POS_REPORT_TREND_DAYS must be positive"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("POS_SHUTDOWN_TIMEOUT must be positive"))
	}
	if _, err := c.PaymentMethodSet(); err != nil {
		errs = append(errs, fmt.Errorf("POS_PAYMENT_METHODS: %w", err))
	}

	return errors.Join(errs...)
}

// PaymentMethodSet разбирает POS_PAYMENT_METHODS. Пустая строка даёт набор по умолчанию.
func (c Config) PaymentMethodSet() (domain.PaymentMethods, error) {
	if strings.TrimSpace(c.PaymentMethods) == "" {
		return domain.DefaultPaymentMethods(), nil
	}
	return domain.ParsePaymentMethods(c.PaymentMethods)
}

// KafkaEnabled сообщает, заданы ли брокеры.
func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

type envParser struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (p *envParser) value(key string) (string, bool) {
	raw, ok := p.lookup(key)
	if !ok {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

func (p *envParser) str(key string, dst *string) {
	if v, ok := p.value(key); ok {
		*dst = v
	}
}

func (p *envParser) list(key string, dst *[]string) {
	v, ok := p.value(key)
	if !ok {
		return
	}
	items := make([]string, 0)
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	*dst = items
}

func (p *envParser) boolean(key string, dst *bool) {
	v, ok := p.value(key)
	if !ok {
		return
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid bool %q", key, v))
		return
	}
	*dst = parsed
}

func (p *envParser) integer(key string, dst *int) {
	v, ok := p.value(key)
	if !ok {
		return
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return
	}
	*dst = parsed
}

func (p *envParser) duration(key string, dst *time.Duration) {
	v, ok := p.value(key)
	if !ok {
		return
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return
	}
	*dst = parsed
}
