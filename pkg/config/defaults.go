package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "slotkeeper"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisDB        = 0
	DefaultRedisKeyPrefix = "slotkeeper:"

	DefaultStorageBackend = "mongo"
	DefaultLockBackend    = "mongo"

	DefaultPort = "8080"

	// DefaultTokenKey is for local development only.
	DefaultTokenKey = "lfQVRuulcL2iOhOJ2r8BYTweoSKwVAJnIF9U+AL+M60="

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultTimezone          = "UTC"
	DefaultReservationTTL    = 15 * time.Minute
	DefaultSweepInterval     = 1 * time.Minute
	DefaultSweepBatchSize    = 100
	DefaultSlotLockWait      = 3 * time.Second
	DefaultSlotLockLease     = 10 * time.Second
	DefaultMaxOccurrences    = 90
	DefaultMaxQueryRangeDays = 93
)
