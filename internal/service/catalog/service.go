// Package catalog реализует операции над каталогом товаров поверх ProductRepository.
package catalog

import (
	"context"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/lock"
	"github.com/vladislavdragonenkov/pos/internal/service/notify"
)

// Option настраивает Service.
type Option func(*Service)

// WithLogger задаёт logger сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEmitter подключает публикацию изменений каталога.
func WithEmitter(emitter *notify.Emitter) Option {
	return func(s *Service) {
		s.emitter = emitter
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service валидирует и применяет изменения каталога.
// Правки одного товара сериализуются через общий lock.Keyed с кассой.
type Service struct {
	products domain.ProductRepository
	locks    *lock.Keyed
	emitter  *notify.Emitter
	logger   *log.Entry
	now      func() time.Time
}

// NewService создаёт сервис каталога.
func NewService(products domain.ProductRepository, locks *lock.Keyed, opts ...Option) *Service {
	if locks == nil {
		locks = lock.NewKeyed()
	}
	s := &Service{
		products: products,
		locks:    locks,
		logger:   log.WithField("component", "catalog"),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List возвращает снимок каталога.
func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// Get возвращает товар по id.
func (s *Service) Get(ctx context.Context, id int64) (domain.Product, error) {
	product, err := s.products.Get(ctx, id)
	if err != nil {
		return domain.Product{}, wrapNotFound(err, id)
	}
	return product, nil
}

// Add проверяет черновик, подставляет значения по умолчанию и сохраняет товар.
func (s *Service) Add(ctx context.Context, draft domain.ProductDraft) (domain.Product, error) {
	product, err := draft.Build(s.now())
	if err != nil {
		return domain.Product{}, err
	}

	created, err := s.products.Create(ctx, product)
	if err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}

	s.logger.WithFields(log.Fields{
		"product_id": created.ID,
		"name":       created.Name,
		"stock":      created.Stock,
	}).Info("product created")
	s.emit(created, domain.EventProductCreated)
	return created, nil
}

// Update применяет переданные поля. Некорректные значения отбрасываются,
// а не портят карточку.
func (s *Service) Update(ctx context.Context, id int64, patch domain.ProductPatch) (domain.Product, error) {
	clean, dropped := patch.Sanitize()
	if len(dropped) > 0 {
		s.logger.WithFields(log.Fields{
			"product_id": id,
			"dropped":    dropped,
		}).Warn("invalid product fields ignored")
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	if clean.IsEmpty() {
		return s.Get(ctx, id)
	}

	updated, err := s.products.Update(ctx, id, clean)
	if err != nil {
		return domain.Product{}, wrapNotFound(err, id)
	}

	s.logger.WithField("product_id", id).Debug("product updated")
	s.emit(updated, domain.EventProductUpdated)
	return updated, nil
}

// SetStock выставляет остаток напрямую. Отрицательное значение приводится к нулю.
func (s *Service) SetStock(ctx context.Context, id int64, stock int) (domain.Product, error) {
	if stock < 0 {
		stock = 0
	}
	return s.Update(ctx, id, domain.ProductPatch{Stock: &stock})
}

// Delete удаляет товар. Отсутствие товара ошибкой не считается.
func (s *Service) Delete(ctx context.Context, id int64) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.products.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}

	s.logger.WithField("product_id", id).Info("product deleted")
	s.emit(domain.Product{ID: id}, domain.EventProductDeleted)
	return nil
}

// Seed заполняет пустой каталог. Если товары уже есть, ничего не делает.
func (s *Service) Seed(ctx context.Context, drafts []domain.ProductDraft) (int, error) {
	existing, err := s.products.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list products: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	created := 0
	for _, draft := range drafts {
		if _, err := s.Add(ctx, draft); err != nil {
			return created, fmt.Errorf("seed %q: %w", draft.Name, err)
		}
		created++
	}
	return created, nil
}

func (s *Service) emit(product domain.Product, eventType string) {
	s.emitter.Emit(notify.Change{
		Kind:          domain.ChangeProducts,
		AggregateType: domain.AggregateProduct,
		AggregateID:   strconv.FormatInt(product.ID, 10),
		EventType:     eventType,
		Payload: domain.ProductEventPayload{
			ProductID: product.ID,
			Name:      product.Name,
			Stock:     product.Stock,
			Origin:    s.emitter.Origin(),
			Occurred:  s.now(),
		},
	})
}

func wrapNotFound(err error, id int64) error {
	if domain.ErrorKind(err) == domain.KindNotFound {
		return domain.ProductNotFound(id)
	}
	return fmt.Errorf("product %d: %w", id, err)
}
