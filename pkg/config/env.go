package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvRedisAddr      = "REDIS_ADDR"
	EnvRedisPassword  = "REDIS_PASSWORD"
	EnvRedisDB        = "REDIS_DB"
	EnvRedisKeyPrefix = "REDIS_KEY_PREFIX"

	EnvStorageBackend = "STORAGE_BACKEND"
	EnvLockBackend    = "LOCK_BACKEND"

	EnvPort      = "PORT"
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"

	EnvPaymentWebhookSecret = "PAYMENT_WEBHOOK_SECRET"
	EnvTokenKey             = "RESERVATION_TOKEN_KEY"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvTimezone          = "TIMEZONE"
	EnvReservationTTL    = "RESERVATION_TTL"
	EnvSweepInterval     = "SWEEP_INTERVAL"
	EnvSweepBatchSize    = "SWEEP_BATCH_SIZE"
	EnvSlotLockWait      = "SLOT_LOCK_WAIT"
	EnvSlotLockLease     = "SLOT_LOCK_LEASE"
	EnvMaxOccurrences    = "MAX_OCCURRENCES"
	EnvMaxQueryRangeDays = "MAX_QUERY_RANGE_DAYS"
)
