// Package notify рассылает рекомендательные уведомления об изменении каталога и журнала продаж.
package notify

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

const defaultSubscriberBuffer = 16

var (
	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_notify_events_total",
		Help: "Total number of change notifications grouped by kind.",
	}, []string{"kind"})
	notificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_notify_dropped_total",
		Help: "Total number of notifications dropped because a subscriber was slow.",
	})
	subscribersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pos_notify_subscribers",
		Help: "Current number of change notification subscribers.",
	})
)

// BrokerOption настраивает Broker.
type BrokerOption func(*Broker)

// WithBrokerLogger задаёт logger брокера.
func WithBrokerLogger(logger *log.Entry) BrokerOption {
	return func(b *Broker) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithSubscriberBuffer задаёт размер буфера канала подписчика.
func WithSubscriberBuffer(size int) BrokerOption {
	return func(b *Broker) {
		if size > 0 {
			b.buffer = size
		}
	}
}

// Broker — in-process pub/sub. Отправка не блокирует: медленный подписчик теряет
// уведомление, а не тормозит кассу.
type Broker struct {
	mu     sync.RWMutex
	subs   map[int]*subscription
	nextID int
	origin string
	buffer int
	logger *log.Entry
}

type subscription struct {
	ch    chan domain.ChangeEvent
	kinds map[domain.ChangeKind]struct{}
}

// NewBroker создаёт брокер. origin подставляется в события без источника.
func NewBroker(origin string, opts ...BrokerOption) *Broker {
	b := &Broker{
		subs:   make(map[int]*subscription),
		origin: origin,
		buffer: defaultSubscriberBuffer,
		logger: log.WithField("component", "notify-broker"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Origin возвращает идентификатор экземпляра сервиса.
func (b *Broker) Origin() string {
	return b.origin
}

// Notify рассылает событие всем подписчикам нужного вида.
func (b *Broker) Notify(event domain.ChangeEvent) {
	if event.Origin == "" {
		event.Origin = b.origin
	}
	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}
	notificationsTotal.WithLabelValues(string(event.Kind)).Inc()

	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, sub := range b.subs {
		if len(sub.kinds) > 0 {
			if _, ok := sub.kinds[event.Kind]; !ok {
				continue
			}
		}
		select {
		case sub.ch <- event:
		default:
			notificationsDropped.Inc()
			b.logger.WithFields(log.Fields{
				"subscriber": id,
				"kind":       event.Kind,
			}).Debug("subscriber is slow, notification dropped")
		}
	}
}

// Subscribe возвращает канал уведомлений и функцию отписки.
// Без kinds подписчик получает все события.
func (b *Broker) Subscribe(kinds ...domain.ChangeKind) (<-chan domain.ChangeEvent, func()) {
	sub := &subscription{
		ch:    make(chan domain.ChangeEvent, b.buffer),
		kinds: make(map[domain.ChangeKind]struct{}, len(kinds)),
	}
	for _, kind := range kinds {
		sub.kinds[kind] = struct{}{}
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()
	subscribersGauge.Inc()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.ch)
			subscribersGauge.Dec()
		})
	}
}

// Subscribers возвращает текущее число подписчиков.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

var _ domain.ChangeNotifier = (*Broker)(nil)
