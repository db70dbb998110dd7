package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// Топики событий кассы.
const (
	TopicCatalogEvents = "pos.catalog.events"
	TopicSaleEvents    = "pos.sale.events"
	TopicDeadLetter    = "pos.dlq"
)

// Заголовки сообщений.
const (
	HeaderEventType  = "x-event-type"
	HeaderOrigin     = "x-origin"
	HeaderRetryCount = "x-retry-count"
	HeaderFailedAt   = "x-failed-at"
)

// Envelope — сообщение outbox в том виде, в каком оно уходит в Kafka.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Origin        string          `json:"origin,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// NewEnvelope упаковывает сообщение outbox.
func NewEnvelope(msg domain.OutboxMessage, origin string, now time.Time) Envelope {
	payload := json.RawMessage(msg.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return Envelope{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Origin:        origin,
		Payload:       payload,
		PublishedAt:   now,
	}
}

// ParseEnvelope разбирает сообщение из Kafka.
func ParseEnvelope(message *sarama.ConsumerMessage) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(message.Value, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Origin == "" {
		env.Origin = headerValue(message, HeaderOrigin)
	}
	return env, nil
}

// TopicFor выбирает топик по типу агрегата.
func TopicFor(aggregateType string) string {
	switch aggregateType {
	case domain.AggregateProduct:
		return TopicCatalogEvents
	default:
		return TopicSaleEvents
	}
}

// ChangeKindFor сопоставляет агрегат и канал уведомлений.
func ChangeKindFor(aggregateType string) (domain.ChangeKind, bool) {
	switch aggregateType {
	case domain.AggregateProduct:
		return domain.ChangeProducts, true
	case domain.AggregateSale:
		return domain.ChangeSales, true
	default:
		return "", false
	}
}

func headerValue(message *sarama.ConsumerMessage, key string) string {
	for _, h := range message.Headers {
		if h != nil && string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}
