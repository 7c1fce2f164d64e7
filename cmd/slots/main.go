package main

import (
	"context"

	"slotkeeper/internal/bookings/events"
	bookingshandler "slotkeeper/internal/bookings/handler"
	bookingsservice "slotkeeper/internal/bookings/service"
	"slotkeeper/internal/bookings/sweeper"
	slotshandler "slotkeeper/internal/slots/handler"
	"slotkeeper/internal/slots/lock"
	"slotkeeper/internal/slots/repository"
	slotsservice "slotkeeper/internal/slots/service"
	"slotkeeper/internal/slots/validator"
	"slotkeeper/pkg/app"
	"slotkeeper/pkg/clock"
	"slotkeeper/pkg/config"
	"slotkeeper/pkg/contracts"
	"slotkeeper/pkg/kafka"
	kafka_config "slotkeeper/pkg/kafka/config"
	kafka_middleware "slotkeeper/pkg/kafka/middleware"
	"slotkeeper/pkg/metrics"
	"slotkeeper/pkg/sealer"
)

const ServiceName = "slotkeeper"

func main() {
	cfg := config.Load(ServiceName)
	collector := metrics.NewCollector(ServiceName)
	serverApp := app.NewApplication(cfg, collector)

	if cfg.NeedsMongo() {
		cfg.SetMongo()
	}
	if cfg.LockBackend == config.BackendRedis {
		cfg.SetRedis()
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	publisher := initPublisher(cfg, kafkaCfg, collector, serverApp)

	clk := clock.System()
	slotValidator := validator.NewSlotValidator(cfg.Log)
	repo := initRepository(cfg)
	locker := initLocker(cfg, collector)

	tokenSealer, err := sealer.New(cfg.TokenKey)
	if err != nil {
		cfg.Log.Fatal("Invalid reservation token key", "error", err)
	}

	slotService := slotsservice.NewSlotService(repo, slotValidator, locker, publisher, collector, clk, cfg)
	coordinator := bookingsservice.NewCoordinator(repo, slotValidator, tokenSealer, publisher, collector, clk, cfg)

	serverApp.AddWorker("reservation-sweeper", sweeper.NewRunner(coordinator, cfg.SweepInterval, cfg.Log.Component("reservation-sweeper")))
	if kafkaCfg.Enabled {
		initPaymentConsumer(cfg, kafkaCfg, coordinator, collector, serverApp)
	}

	serverApp.SetApp(
		slotshandler.NewHealthHandler(healthChecks(cfg), cfg.Log),
		slotshandler.NewSlotHandler(slotService, cfg.Log),
		bookingshandler.NewBookingHandler(coordinator, slotValidator, cfg.PaymentWebhookSecret, cfg.Log),
	)
	cfg.Log.Info("Slot service initialized",
		"storage_backend", cfg.StorageBackend,
		"lock_backend", cfg.LockBackend,
		"kafka_enabled", kafkaCfg.Enabled,
	)
	serverApp.Run()
}

func initRepository(cfg *config.Config) repository.SlotRepository {
	if cfg.StorageBackend == config.BackendMemory {
		cfg.Log.Warn("Using in-memory slot storage, data is lost on restart")
		return repository.NewMemorySlotRepository()
	}
	return repository.NewMongoSlotRepository(cfg)
}

func initLocker(cfg *config.Config, m *metrics.Collector) lock.Locker {
	var locker lock.Locker
	switch cfg.LockBackend {
	case config.BackendRedis:
		locker = lock.NewRedisLocker(cfg.Client.Redis, cfg.RedisKeyPrefix, cfg.SlotLockLease, cfg.SlotLockWait)
	case config.BackendMemory:
		locker = lock.NewMemoryLocker(cfg.SlotLockWait)
	default:
		db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
		locker = lock.NewMongoLocker(db, cfg.SlotLockLease, cfg.SlotLockWait)
	}
	return lock.WithMetrics(locker, cfg.LockBackend, m)
}

func initPublisher(cfg *config.Config, kafkaCfg *kafka_config.Config, m *metrics.Collector, serverApp *app.Application) events.Publisher {
	if !kafkaCfg.Enabled {
		cfg.Log.Info("Kafka disabled, slot events are not published")
		return events.NoopPublisher{}
	}

	producer, err := kafka.NewProducer(kafkaCfg, cfg.Log, kafkaCfg.SlotEventsTopic, "")
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	producer.Use(kafka_middleware.MetricsProducerMiddleware(m))
	serverApp.AddCloser("kafka-producer", producer.Close)

	return events.NewKafkaPublisher(producer, kafkaCfg.SlotEventsTopic)
}

func initPaymentConsumer(cfg *config.Config, kafkaCfg *kafka_config.Config, settler events.Settler, m *metrics.Collector, serverApp *app.Application) {
	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		cfg.Log,
		kafkaCfg.PaymentEventsTopic,
		kafkaCfg.PaymentEventsGroup,
		kafkaCfg.PaymentEventsDLQ,
		events.NewPaymentMessageHandler(settler, cfg.Log.Component("payment-consumer")),
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	consumer.Use(kafka_middleware.MetricsConsumerMiddleware(m))

	serverApp.AddWorker("payment-consumer", contracts.WorkerFunc(func(ctx context.Context) {
		if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
			cfg.Log.Error("Payment consumer stopped", "error", err)
		}
	}))
	serverApp.AddCloser("kafka-consumer", consumer.Close)
}

func healthChecks(cfg *config.Config) map[string]slotshandler.Check {
	checks := map[string]slotshandler.Check{}
	if cfg.Client.Mongo != nil {
		checks["mongo"] = func(ctx context.Context) error {
			return cfg.Client.Mongo.Ping(ctx, nil)
		}
	}
	if cfg.Client.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return cfg.Client.Redis.Ping(ctx).Err()
		}
	}
	return checks
}
