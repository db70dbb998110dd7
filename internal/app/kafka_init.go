package app

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/pos/internal/health"
	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/pos/internal/service/notify"
)

var errKafkaUnavailable = errors.New("kafka producer is not connected")

// initKafkaProducer подключает producer, если брокеры заданы.
// Пустой список даёт nil, nil: касса работает без Kafka.
func initKafkaProducer(brokers []string, logger *log.Entry) (*kafka.Producer, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer, nil
}

// newOutboxPublisher выбирает раскладку по топикам: один общий топик из
// POS_KAFKA_TOPIC или отдельные топики каталога и продаж.
func newOutboxPublisher(producer *kafka.Producer, cfg Config) domain.OutboxPublisher {
	if cfg.KafkaTopic != "" {
		return kafka.NewTopicPublisher(producer, cfg.KafkaTopic, cfg.InstanceID)
	}
	return kafka.NewOutboxPublisher(producer, cfg.InstanceID)
}

// consumerTopics — топики, из которых принимаются изменения других экземпляров.
func consumerTopics(cfg Config) []string {
	if cfg.KafkaTopic != "" {
		return []string{cfg.KafkaTopic}
	}
	return []string{kafka.TopicCatalogEvents, kafka.TopicSaleEvents}
}

// startChangeConsumer подписывает локальный broker на изменения других касс.
// У каждого экземпляра своя consumer group: события нужны всем, а не одному.
func startChangeConsumer(ctx context.Context, cfg Config, broker *notify.Broker, dlq *kafka.Producer, logger *log.Entry) (*kafka.Consumer, error) {
	handler := kafka.NewChangeHandler(broker, cfg.InstanceID, logger.WithField("layer", "kafka-change-handler"))
	consumer, err := kafka.NewConsumer(
		cfg.KafkaBrokers,
		cfg.KafkaGroupID+"-"+cfg.InstanceID,
		consumerTopics(cfg),
		handler,
		kafka.WithConsumerLogger(logger.WithField("layer", "kafka-consumer")),
		kafka.WithDeadLetterProducer(dlq),
	)
	if err != nil {
		return nil, err
	}
	consumer.Start(ctx)
	return consumer, nil
}

// kafkaChecker — необязательная проверка: без Kafka касса работает, но деградирует.
func kafkaChecker(cfg Config, producer *kafka.Producer) healthcheck.Checker {
	return healthcheck.NewOptionalChecker("kafka", func(context.Context) error {
		if cfg.KafkaEnabled() && producer == nil {
			return errKafkaUnavailable
		}
		return nil
	})
}

// closeKafka закрывает producer, если он был создан.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
		return
	}
	logger.Info("kafka producer closed")
}

func stopConsumer(consumer *kafka.Consumer, logger *log.Entry) {
	if consumer == nil {
		return
	}
	if err := consumer.Stop(); err != nil {
		logger.WithError(err).Warn("failed to stop kafka consumer")
	}
}
