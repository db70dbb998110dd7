package domain

import (
	"context"
	"time"
)

// ProductRepository — хранилище каталога. Единственный владелец карточек товаров:
// наружу отдаются только копии.
type ProductRepository interface {
	// List возвращает снимок каталога.
	List(ctx context.Context) ([]Product, error)
	// Get возвращает товар или ErrProductNotFound.
	Get(ctx context.Context, id int64) (Product, error)
	// Create сохраняет новый товар и назначает ему идентификатор.
	Create(ctx context.Context, product Product) (Product, error)
	// Update применяет переданные поля patch.
	Update(ctx context.Context, id int64, patch ProductPatch) (Product, error)
	// Delete удаляет товар. Удаление отсутствующего товара не ошибка.
	Delete(ctx context.Context, id int64) error
	// ApplyStockDelta выставляет stock = max(0, stock+delta).
	ApplyStockDelta(ctx context.Context, id int64, delta int) (Product, error)
}

// SaleRepository — журнал проведённых продаж.
type SaleRepository interface {
	// List возвращает продажи от новых к старым.
	List(ctx context.Context) ([]Sale, error)
	// Get возвращает продажу или ErrSaleNotFound.
	Get(ctx context.Context, id string) (Sale, error)
	// Append считает итоги, назначает id, номер заказа, дату и статус COMPLETED.
	Append(ctx context.Context, lines []CartLine, payments []Payment) (Sale, error)
	// SetStatus переводит продажу в новый статус. changed=false, если статус уже такой.
	SetStatus(ctx context.Context, id string, status SaleStatus) (sale Sale, changed bool, err error)
	// Delete убирает запись. Используется только при компенсации неудачного проведения;
	// номер заказа повторно не выдаётся.
	Delete(ctx context.Context, id string) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит историю событий продажи.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(saleID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
