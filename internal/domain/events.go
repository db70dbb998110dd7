package domain

import "time"

// Агрегаты и типы событий, которые уходят в outbox.
const (
	AggregateProduct = "product"
	AggregateSale    = "sale"

	EventProductCreated = "product.created"
	EventProductUpdated = "product.updated"
	EventProductDeleted = "product.deleted"
	EventSaleCommitted  = "sale.committed"
	EventSaleVoided     = "sale.voided"
)

// ChangeKind — канал уведомлений об изменениях.
type ChangeKind string

const (
	// ChangeProducts — изменился каталог или остатки.
	ChangeProducts ChangeKind = "products.changed"
	// ChangeSales — изменился журнал продаж.
	ChangeSales ChangeKind = "sales.changed"
)

// ChangeEvent — уведомление "данные изменились, перечитайте". Носит рекомендательный характер.
type ChangeEvent struct {
	Kind      ChangeKind
	EventType string
	EntityID  string
	// Origin — идентификатор экземпляра сервиса, породившего событие.
	Origin   string
	Occurred time.Time
}

// ChangeNotifier рассылает уведомления подписчикам. Не блокирует и не возвращает ошибок.
type ChangeNotifier interface {
	Notify(event ChangeEvent)
}

// ProductEventPayload — тело outbox-события по товару.
type ProductEventPayload struct {
	ProductID int64     `json:"product_id"`
	Name      string    `json:"name,omitempty"`
	Stock     int       `json:"stock"`
	Origin    string    `json:"origin,omitempty"`
	Occurred  time.Time `json:"occurred"`
}

// SaleEventPayload — тело outbox-события по продаже.
type SaleEventPayload struct {
	SaleID      string    `json:"sale_id"`
	OrderNumber int64     `json:"order_number"`
	Status      string    `json:"status"`
	Total       string    `json:"total"`
	ProductIDs  []int64   `json:"product_ids"`
	Origin      string    `json:"origin,omitempty"`
	Occurred    time.Time `json:"occurred"`
}
