package kafka

import (
	"errors"
	"strconv"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

var errPublisherNotReady = errors.New("kafka publisher is not initialized")

// OutboxPublisher раскладывает сообщения outbox по топикам каталога и продаж.
type OutboxPublisher struct {
	producer *Producer
	origin   string
	// topic, если задан, перекрывает выбор по типу агрегата.
	topic string
}

// NewOutboxPublisher создаёт publisher. origin помечает сообщения этого экземпляра.
func NewOutboxPublisher(producer *Producer, origin string) *OutboxPublisher {
	return &OutboxPublisher{producer: producer, origin: origin}
}

// NewTopicPublisher публикует все сообщения в один топик.
func NewTopicPublisher(producer *Producer, topic, origin string) *OutboxPublisher {
	return &OutboxPublisher{producer: producer, origin: origin, topic: topic}
}

func (p *OutboxPublisher) Publish(msg domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errPublisherNotReady
	}

	topic := p.topic
	if topic == "" {
		topic = TopicFor(msg.AggregateType)
	}
	key := msg.AggregateID
	if key == "" {
		key = msg.ID
	}

	return p.producer.PublishJSON(topic, key, NewEnvelope(msg, p.origin, time.Now().UTC()), map[string]string{
		HeaderEventType: msg.EventType,
		HeaderOrigin:    p.origin,
	})
}

// DeadLetterPublisher отправляет конверты DeadLetter в топик DLQ как есть.
type DeadLetterPublisher struct {
	producer *Producer
	topic    string
}

// NewDeadLetterPublisher создаёт publisher для DLQ.
func NewDeadLetterPublisher(producer *Producer, topic string) *DeadLetterPublisher {
	if topic == "" {
		topic = TopicDeadLetter
	}
	return &DeadLetterPublisher{producer: producer, topic: topic}
}

func (p *DeadLetterPublisher) Publish(msg domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errPublisherNotReady
	}
	key := msg.AggregateID
	if key == "" {
		key = msg.ID
	}
	return p.producer.Send(p.topic, key, msg.Payload, map[string]string{
		HeaderEventType: msg.EventType,
		HeaderFailedAt:  strconv.FormatInt(time.Now().UTC().Unix(), 10),
	})
}

var (
	_ domain.OutboxPublisher = (*OutboxPublisher)(nil)
	_ domain.OutboxPublisher = (*DeadLetterPublisher)(nil)
)
