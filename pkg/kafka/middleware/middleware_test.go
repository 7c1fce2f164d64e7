package kafka_middleware

import (
	"bytes"
	"context"
	"errors"
	"slotkeeper/pkg/kafka"
	"slotkeeper/pkg/logger"
	"slotkeeper/pkg/metrics"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsConsumerMiddleware(t *testing.T) {
	m := metrics.NewCollector("test")
	mw := MetricsConsumerMiddleware(m)
	msg := kafka.Message{Topic: "payments.events", Headers: map[string]string{}}

	_ = mw(context.Background(), msg, func(context.Context, kafka.Message) error { return nil })
	_ = mw(context.Background(), msg, func(context.Context, kafka.Message) error { return errors.New("boom") })

	if got := testutil.ToFloat64(m.KafkaMessagesTotal.WithLabelValues("consume", "payments.events", "ok")); got != 1 {
		t.Errorf("expected 1 ok message, got %v", got)
	}
	if got := testutil.ToFloat64(m.KafkaMessagesTotal.WithLabelValues("consume", "payments.events", "error")); got != 1 {
		t.Errorf("expected 1 failed message, got %v", got)
	}
}

func TestLoggingProducerMiddlewarePassesErrorThrough(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Level: "debug", Format: logger.JSON, Output: &buf, Service: "test"})
	mw := LoggingProducerMiddleware(log)
	boom := errors.New("boom")

	err := mw(context.Background(), kafka.Message{Topic: "slots.events", Key: "s1", Headers: map[string]string{}},
		func(context.Context, kafka.Message) error { return boom })

	if !errors.Is(err, boom) {
		t.Fatalf("expected the publish error to be returned, got %v", err)
	}
	if !strings.Contains(buf.String(), "Failed to publish Kafka message") {
		t.Errorf("expected a failure log line, got %s", buf.String())
	}
}
