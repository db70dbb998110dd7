package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// DefaultTTL — срок хранения ответа по ключу.
const DefaultTTL = 24 * time.Hour

var (
	// ErrInProgress — запрос с тем же ключом ещё выполняется.
	ErrInProgress = errors.New("request with the same idempotency key is still processing")
	// ErrKeyReused — ключ уже использован с другим телом запроса.
	ErrKeyReused = fmt.Errorf("idempotency key reused: %w", domain.ErrIdempotencyHashMismatch)
	// ErrPreviousAttemptFailed — прошлый запрос с этим ключом упал, не сформировав ответ.
	ErrPreviousAttemptFailed = errors.New("previous request with the same idempotency key failed")
)

// Response — отрендеренный ответ операции. Status — код транспорта (HTTP или gRPC).
type Response struct {
	Status int
	Body   []byte
}

// Handler выполняет операцию и отдаёт готовый ответ.
// Ошибка означает, что ответ не сформирован и сохранять нечего.
type Handler func(ctx context.Context) (Response, error)

// Guard выполняет операцию не более одного раза на ключ.
type Guard struct {
	repo   domain.IdempotencyRepository
	ttl    time.Duration
	logger *log.Entry
	now    func() time.Time
	// failed решает, считать ли ответ неуспешным при сохранении.
	failed func(status int) bool
}

// GuardOption настраивает Guard.
type GuardOption func(*Guard)

// WithGuardLogger задаёт logger.
func WithGuardLogger(logger *log.Entry) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithFailurePredicate задаёт правило, по которому ответ сохраняется как failed.
func WithFailurePredicate(failed func(status int) bool) GuardOption {
	return func(g *Guard) {
		if failed != nil {
			g.failed = failed
		}
	}
}

// NewGuard создаёт Guard. Без репозитория Guard просто вызывает обработчик.
func NewGuard(repo domain.IdempotencyRepository, ttl time.Duration, opts ...GuardOption) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	g := &Guard{
		repo:   repo,
		ttl:    ttl,
		logger: log.WithField("component", "idempotency"),
		now:    func() time.Time { return time.Now().UTC() },
		failed: func(status int) bool { return status >= 500 },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Do выполняет handler под ключом key. Пустой ключ отключает защиту.
// Повтор с тем же запросом возвращает сохранённый ответ и replayed=true.
func (g *Guard) Do(ctx context.Context, key, scope string, request any, handler Handler) (resp Response, replayed bool, err error) {
	key = strings.TrimSpace(key)
	if g == nil || g.repo == nil || key == "" {
		resp, err = handler(ctx)
		return resp, false, err
	}

	hash, err := RequestHash(scope, request)
	if err != nil {
		return Response{}, false, fmt.Errorf("hash request: %w", err)
	}

	logger := g.logger.WithFields(log.Fields{
		"idempotency_key": key,
		"scope":           scope,
	})

	record, err := g.repo.CreateProcessing(key, hash, g.now().Add(g.ttl))
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return Response{}, false, ErrKeyReused
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		if record.Status == domain.IdempotencyStatusProcessing {
			return Response{}, false, ErrInProgress
		}
		if record.Status == domain.IdempotencyStatusFailed && len(record.ResponseBody) == 0 {
			return Response{}, false, ErrPreviousAttemptFailed
		}
		logger.Debug("replaying stored response")
		return Response{Status: record.HTTPStatus, Body: record.ResponseBody}, true, nil
	default:
		return Response{}, false, fmt.Errorf("reserve idempotency key: %w", err)
	}

	resp, err = handler(ctx)
	if err != nil {
		if markErr := g.repo.MarkFailed(key, nil, 0); markErr != nil {
			logger.WithError(markErr).Warn("failed to store idempotency failure")
		}
		return Response{}, false, err
	}

	store := g.repo.MarkDone
	if g.failed(resp.Status) {
		store = g.repo.MarkFailed
	}
	if storeErr := store(key, resp.Body, resp.Status); storeErr != nil {
		logger.WithError(storeErr).Warn("failed to store idempotent response")
	}
	return resp, false, nil
}

// RequestHash считает sha256 от области действия и JSON-представления запроса.
func RequestHash(scope string, request any) (string, error) {
	data, err := json.Marshal(request)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(scope))
	h.Write([]byte{':'})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}
