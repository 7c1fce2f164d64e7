package kafka_middleware

import (
	"context"
	"time"

	"slotkeeper/pkg/kafka"
	"slotkeeper/pkg/metrics"
)

const (
	directionPublish = "publish"
	directionConsume = "consume"
)

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// MetricsProducerMiddleware tracks producer metrics
func MetricsProducerMiddleware(m *metrics.Collector) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()

		err := next(ctx, msg)

		m.KafkaDuration.WithLabelValues(directionPublish, msg.Topic).Observe(time.Since(start).Seconds())
		m.KafkaMessagesTotal.WithLabelValues(directionPublish, msg.Topic, result(err)).Inc()

		return err
	}
}

// MetricsConsumerMiddleware tracks consumer metrics
func MetricsConsumerMiddleware(m *metrics.Collector) kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()

		err := next(ctx, msg)

		m.KafkaDuration.WithLabelValues(directionConsume, msg.Topic).Observe(time.Since(start).Seconds())
		m.KafkaMessagesTotal.WithLabelValues(directionConsume, msg.Topic, result(err)).Inc()

		return err
	}
}
