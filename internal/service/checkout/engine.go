// Package checkout проводит и аннулирует продажи, согласуя журнал продаж и остатки каталога.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/lock"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
	"github.com/vladislavdragonenkov/pos/internal/service/notify"
)

// Committer проводит продажу. Реализуется Engine, используется кассовой сессией.
type Committer interface {
	Commit(ctx context.Context, lines []domain.CartLine, payments []domain.Payment) (domain.Sale, error)
}

// Option настраивает Engine.
type Option func(*Engine)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics подключает метрики кассы.
func WithMetrics(m *metrics.CheckoutMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithTimeline подключает историю событий продажи.
func WithTimeline(timeline domain.TimelineRepository) Option {
	return func(e *Engine) {
		e.timeline = timeline
	}
}

// WithEmitter подключает outbox и уведомления об изменениях.
func WithEmitter(emitter *notify.Emitter) Option {
	return func(e *Engine) {
		e.emitter = emitter
	}
}

// WithClock подменяет источник времени для событий.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine — касса. Commit и Void по одному товару линеаризуются через lock.Keyed,
// общий с сервисом каталога.
type Engine struct {
	products domain.ProductRepository
	sales    domain.SaleRepository
	locks    *lock.Keyed
	methods  domain.PaymentMethods

	timeline domain.TimelineRepository
	emitter  *notify.Emitter
	metrics  *metrics.CheckoutMetrics
	logger   *log.Entry
	now      func() time.Time
}

// NewEngine создаёт кассу.
func NewEngine(
	products domain.ProductRepository,
	sales domain.SaleRepository,
	locks *lock.Keyed,
	methods domain.PaymentMethods,
	opts ...Option,
) *Engine {
	if locks == nil {
		locks = lock.NewKeyed()
	}
	e := &Engine{
		products: products,
		sales:    sales,
		locks:    locks,
		methods:  methods,
		logger:   log.WithField("component", "checkout"),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PaymentMethods возвращает настроенный набор методов оплаты.
func (e *Engine) PaymentMethods() domain.PaymentMethods {
	return e.methods
}

// Commit проверяет корзину и платежи и проводит продажу.
// Пока не пройдены все проверки, ни журнал, ни остатки не меняются.
// Если списание остатка падает после записи в журнал, уже списанное
// возвращается, а запись продажи удаляется.
func (e *Engine) Commit(ctx context.Context, lines []domain.CartLine, payments []domain.Payment) (sale domain.Sale, err error) {
	start := time.Now()
	compensated := false
	e.metrics.InFlightStarted()
	defer func() {
		e.metrics.InFlightFinished()
		result := commitResult(err)
		if compensated {
			result = metrics.ResultCompensated
		}
		e.metrics.RecordCommit(result, time.Since(start))
	}()

	merged, err := domain.MergeLines(lines)
	if err != nil {
		return domain.Sale{}, err
	}
	for _, p := range payments {
		if !p.Amount.IsPositive() {
			return domain.Sale{}, domain.ErrNonPositiveAmount
		}
		if _, ok := e.methods.Policy(p.Method); !ok {
			return domain.Sale{}, fmt.Errorf("%q: %w", p.Method, domain.ErrUnknownPaymentMethod)
		}
	}

	ids := make([]int64, 0, len(merged))
	for _, line := range merged {
		ids = append(ids, line.ProductID)
	}
	unlock := e.locks.LockAll(ids...)
	defer unlock()

	live, stockBefore, err := e.snapshotLines(ctx, merged)
	if err != nil {
		return domain.Sale{}, err
	}

	total := domain.LinesTotal(live)
	paid := domain.PaymentsTotal(payments)
	if !domain.IsFullyPaid(total, paid) {
		return domain.Sale{}, &domain.IncompletePaymentError{Total: total, Paid: paid}
	}
	normalized, err := e.methods.ValidateTender(total, payments)
	if err != nil {
		return domain.Sale{}, err
	}

	sale, err = e.sales.Append(ctx, live, normalized)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("append sale: %w", err)
	}

	logger := e.logger.WithFields(log.Fields{
		"sale_id":      sale.ID,
		"order_number": sale.OrderNumber,
	})

	debited := make([]domain.Product, 0, len(live))
	for _, line := range live {
		product, debitErr := e.products.ApplyStockDelta(ctx, line.ProductID, -line.Quantity)
		if debitErr != nil {
			logger.WithError(debitErr).WithField("product_id", line.ProductID).Error("stock debit failed, compensating")
			e.compensate(ctx, sale, live[:len(debited)], debitErr)
			compensated = true
			return domain.Sale{}, fmt.Errorf("debit product %d: %w", line.ProductID, debitErr)
		}
		if product.Stock != stockBefore[line.ProductID]-line.Quantity {
			e.metrics.RecordStockClamped()
			logger.WithField("product_id", line.ProductID).Warn("stock debit clamped at zero")
		}
		debited = append(debited, product)
	}

	e.appendTimeline(sale.ID, domain.TimelineSaleCommitted, "")
	e.emitSale(sale, domain.EventSaleCommitted)
	for _, product := range debited {
		e.emitStock(product)
	}
	e.metrics.RecordSale(sale.Units(), sale.Total.InexactFloat64())

	logger.WithFields(log.Fields{
		"total":  sale.Total.StringFixed(2),
		"change": sale.Change.StringFixed(2),
		"items":  len(sale.Items),
	}).Info("sale committed")
	return sale, nil
}

// snapshotLines перечитывает товары под блокировкой и проверяет остатки.
// Позиции получают актуальные название, цену и категорию.
func (e *Engine) snapshotLines(ctx context.Context, lines []domain.CartLine) ([]domain.CartLine, map[int64]int, error) {
	live := make([]domain.CartLine, 0, len(lines))
	stock := make(map[int64]int, len(lines))
	for _, line := range lines {
		product, err := e.products.Get(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, nil, domain.ProductNotFound(line.ProductID)
			}
			return nil, nil, fmt.Errorf("load product %d: %w", line.ProductID, err)
		}
		if line.Quantity > product.Stock {
			return nil, nil, &domain.InsufficientStockError{
				ProductID: product.ID,
				Name:      product.Name,
				Requested: line.Quantity,
				Available: product.Stock,
			}
		}
		stock[product.ID] = product.Stock
		live = append(live, domain.LineFromProduct(product, line.Quantity))
	}
	return live, stock, nil
}

// compensate откатывает частично проведённую продажу.
func (e *Engine) compensate(ctx context.Context, sale domain.Sale, debited []domain.CartLine, cause error) {
	e.metrics.RecordCompensation()
	logger := e.logger.WithField("sale_id", sale.ID)

	for _, line := range debited {
		if _, err := e.products.ApplyStockDelta(ctx, line.ProductID, line.Quantity); err != nil {
			logger.WithError(err).WithField("product_id", line.ProductID).Error("failed to restore stock during compensation")
		}
	}
	if err := e.sales.Delete(ctx, sale.ID); err != nil {
		logger.WithError(err).Error("failed to remove sale during compensation")
	}
	e.appendTimeline(sale.ID, domain.TimelineSaleCompensated, cause.Error())
}

// Void аннулирует продажу и возвращает остатки. Повторный вызов ничего не меняет.
func (e *Engine) Void(ctx context.Context, id string) (sale domain.Sale, err error) {
	start := time.Now()
	result := metrics.ResultVoided
	defer func() {
		if err != nil {
			result = resultFor(err)
		}
		e.metrics.RecordVoid(result, time.Since(start))
	}()

	current, err := e.sales.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Sale{}, domain.SaleNotFound(id)
		}
		return domain.Sale{}, fmt.Errorf("load sale %s: %w", id, err)
	}

	unlock := e.locks.LockAll(current.ProductIDs()...)
	defer unlock()

	sale, changed, err := e.sales.SetStatus(ctx, id, domain.SaleStatusVoid)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Sale{}, domain.SaleNotFound(id)
		}
		return domain.Sale{}, fmt.Errorf("void sale %s: %w", id, err)
	}
	if !changed {
		result = metrics.ResultNoop
		return sale, nil
	}

	logger := e.logger.WithFields(log.Fields{
		"sale_id":      sale.ID,
		"order_number": sale.OrderNumber,
	})

	var creditErrs []error
	credited := make([]domain.Product, 0, len(sale.Items))
	for _, item := range sale.Items {
		product, creditErr := e.products.ApplyStockDelta(ctx, item.ProductID, item.Quantity)
		switch {
		case creditErr == nil:
			credited = append(credited, product)
		case errors.Is(creditErr, domain.ErrNotFound):
			logger.WithField("product_id", item.ProductID).Warn("product no longer exists, stock not restored")
		default:
			logger.WithError(creditErr).WithField("product_id", item.ProductID).Error("stock credit failed")
			creditErrs = append(creditErrs, fmt.Errorf("credit product %d: %w", item.ProductID, creditErr))
		}
	}

	e.appendTimeline(sale.ID, domain.TimelineSaleVoided, "")
	e.emitSale(sale, domain.EventSaleVoided)
	for _, product := range credited {
		e.emitStock(product)
	}

	if len(creditErrs) > 0 {
		return sale, errors.Join(creditErrs...)
	}

	logger.Info("sale voided")
	return sale, nil
}

// ListSales возвращает журнал продаж от новых к старым.
func (e *Engine) ListSales(ctx context.Context) ([]domain.Sale, error) {
	sales, err := e.sales.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	return sales, nil
}

// GetSale возвращает продажу по id.
func (e *Engine) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := e.sales.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Sale{}, domain.SaleNotFound(id)
		}
		return domain.Sale{}, fmt.Errorf("load sale %s: %w", id, err)
	}
	return sale, nil
}

// Timeline возвращает историю продажи. Без подключённого хранилища истории список пуст.
func (e *Engine) Timeline(id string) ([]domain.TimelineEvent, error) {
	if e.timeline == nil {
		return nil, nil
	}
	return e.timeline.List(id)
}

func (e *Engine) appendTimeline(saleID, eventType, reason string) {
	if e.timeline == nil {
		return
	}
	if err := e.timeline.Append(domain.TimelineEvent{
		SaleID:   saleID,
		Type:     eventType,
		Reason:   reason,
		Occurred: e.now(),
	}); err != nil {
		e.logger.WithError(err).WithFields(log.Fields{
			"sale_id": saleID,
			"type":    eventType,
		}).Warn("failed to append timeline event")
	}
}

func (e *Engine) emitSale(sale domain.Sale, eventType string) {
	e.emitter.Emit(notify.Change{
		Kind:          domain.ChangeSales,
		AggregateType: domain.AggregateSale,
		AggregateID:   sale.ID,
		EventType:     eventType,
		Payload: domain.SaleEventPayload{
			SaleID:      sale.ID,
			OrderNumber: sale.OrderNumber,
			Status:      string(sale.Status),
			Total:       sale.Total.StringFixed(2),
			ProductIDs:  sale.ProductIDs(),
			Origin:      e.emitter.Origin(),
			Occurred:    e.now(),
		},
	})
}

func (e *Engine) emitStock(product domain.Product) {
	e.emitter.Emit(notify.Change{
		Kind:          domain.ChangeProducts,
		AggregateType: domain.AggregateProduct,
		AggregateID:   strconv.FormatInt(product.ID, 10),
		EventType:     domain.EventProductUpdated,
		Payload: domain.ProductEventPayload{
			ProductID: product.ID,
			Name:      product.Name,
			Stock:     product.Stock,
			Origin:    e.emitter.Origin(),
			Occurred:  e.now(),
		},
	})
}

func commitResult(err error) string {
	if err == nil {
		return metrics.ResultCompleted
	}
	return resultFor(err)
}

func resultFor(err error) string {
	switch domain.ErrorKind(err) {
	case domain.KindValidation:
		return metrics.ResultValidation
	case domain.KindNotFound:
		return metrics.ResultNotFound
	case domain.KindInsufficientStock:
		return metrics.ResultInsufficientStock
	case domain.KindIncompletePayment:
		return metrics.ResultIncompletePayment
	default:
		return metrics.ResultError
	}
}

var _ Committer = (*Engine)(nil)
