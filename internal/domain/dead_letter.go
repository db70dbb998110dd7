package domain

import "time"

// DeadLetter — конверт сообщения, которое не удалось опубликовать после всех попыток.
type DeadLetter struct {
	OutboxID      string    `json:"outbox_id"`
	AggregateType string    `json:"aggregate_type"`
	AggregateID   string    `json:"aggregate_id"`
	EventType     string    `json:"event_type"`
	Payload       []byte    `json:"payload"`
	PublishError  string    `json:"publish_error"`
	Attempts      int       `json:"attempts"`
	FailedAt      time.Time `json:"failed_at"`
}

// NewDeadLetter упаковывает сообщение outbox вместе с причиной отказа.
func NewDeadLetter(msg OutboxMessage, cause error, attempts int, now time.Time) DeadLetter {
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	return DeadLetter{
		OutboxID:      msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       append([]byte(nil), msg.Payload...),
		PublishError:  reason,
		Attempts:      attempts,
		FailedAt:      now,
	}
}

// Message восстанавливает исходное сообщение outbox для повторной публикации.
func (d DeadLetter) Message() OutboxMessage {
	return OutboxMessage{
		ID:            d.OutboxID,
		AggregateType: d.AggregateType,
		AggregateID:   d.AggregateID,
		EventType:     d.EventType,
		Payload:       append([]byte(nil), d.Payload...),
	}
}
