package notify

import (
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// Emitter публикует изменение сразу в два канала: в transactional outbox для
// других экземпляров и в локальный notifier для подписчиков этого процесса.
// Любой из каналов может отсутствовать. Ошибки только логируются.
type Emitter struct {
	outbox   domain.OutboxRepository
	notifier domain.ChangeNotifier
	origin   string
	logger   *log.Entry
}

// NewEmitter создаёт Emitter.
func NewEmitter(outbox domain.OutboxRepository, notifier domain.ChangeNotifier, origin string, logger *log.Entry) *Emitter {
	if logger == nil {
		logger = log.WithField("component", "change-emitter")
	}
	return &Emitter{
		outbox:   outbox,
		notifier: notifier,
		origin:   origin,
		logger:   logger,
	}
}

// Origin возвращает идентификатор экземпляра, который пишется в события.
func (e *Emitter) Origin() string {
	if e == nil {
		return ""
	}
	return e.origin
}

// Change описывает одно изменение для Emit.
type Change struct {
	Kind          domain.ChangeKind
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       any
}

// Emit ставит событие в outbox и уведомляет локальных подписчиков.
func (e *Emitter) Emit(change Change) {
	if e == nil {
		return
	}

	if e.outbox != nil && change.Payload != nil {
		payload, err := json.Marshal(change.Payload)
		if err != nil {
			e.logger.WithError(err).WithField("event_type", change.EventType).Warn("failed to marshal outbox payload")
		} else if _, err := e.outbox.Enqueue(domain.OutboxMessage{
			AggregateType: change.AggregateType,
			AggregateID:   change.AggregateID,
			EventType:     change.EventType,
			Payload:       payload,
		}); err != nil {
			e.logger.WithError(err).WithFields(log.Fields{
				"event_type":   change.EventType,
				"aggregate_id": change.AggregateID,
			}).Warn("failed to enqueue outbox event")
		}
	}

	if e.notifier != nil {
		e.notifier.Notify(domain.ChangeEvent{
			Kind:      change.Kind,
			EventType: change.EventType,
			EntityID:  change.AggregateID,
			Origin:    e.origin,
			Occurred:  time.Now().UTC(),
		})
	}
}
