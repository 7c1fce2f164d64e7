package config

import (
	"fmt"
	"os"
	"regexp"
	"slotkeeper/pkg/client"
	"slotkeeper/pkg/logger"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendMongo  = "mongo"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string

	// StorageBackend is mongo or memory; LockBackend is mongo, redis or memory.
	StorageBackend string
	LockBackend    string

	Port string

	PaymentWebhookSecret string
	TokenKey             string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Timezone          string
	Location          *time.Location
	ReservationTTL    time.Duration
	SweepInterval     time.Duration
	SweepBatchSize    int
	SlotLockWait      time.Duration
	SlotLockLease     time.Duration
	MaxOccurrences    int
	MaxQueryRangeDays int

	LogLevel  string
	LogFormat string
	Log       *logger.Logger
	Client    *client.Client
}

func Load(serviceName string) *Config {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		RedisAddr:      getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword:  getEnvStr(EnvRedisPassword, ""),
		RedisDB:        getEnvNum(EnvRedisDB, DefaultRedisDB),
		RedisKeyPrefix: getEnvStr(EnvRedisKeyPrefix, DefaultRedisKeyPrefix),

		StorageBackend: getEnvStr(EnvStorageBackend, DefaultStorageBackend),
		LockBackend:    getEnvStr(EnvLockBackend, DefaultLockBackend),

		Port: getEnvStr(EnvPort, DefaultPort),

		PaymentWebhookSecret: getEnvStr(EnvPaymentWebhookSecret, ""),
		TokenKey:             getEnvStr(EnvTokenKey, DefaultTokenKey),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		Timezone:          getEnvStr(EnvTimezone, DefaultTimezone),
		ReservationTTL:    getEnvDuration(EnvReservationTTL, DefaultReservationTTL),
		SweepInterval:     getEnvDuration(EnvSweepInterval, DefaultSweepInterval),
		SweepBatchSize:    getEnvNum(EnvSweepBatchSize, DefaultSweepBatchSize),
		SlotLockWait:      getEnvDuration(EnvSlotLockWait, DefaultSlotLockWait),
		SlotLockLease:     getEnvDuration(EnvSlotLockLease, DefaultSlotLockLease),
		MaxOccurrences:    getEnvNum(EnvMaxOccurrences, DefaultMaxOccurrences),
		MaxQueryRangeDays: getEnvNum(EnvMaxQueryRangeDays, DefaultMaxQueryRangeDays),

		LogLevel:  getEnvStr(EnvLogLevel, logger.INFO),
		LogFormat: getEnvStr(EnvLogFormat, logger.JSON),
		Client:    client.NewClient(),
	}
	cfg.Log = logger.New(logger.Config{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		AddSource: true,
		Service:   serviceName,
	})

	err := cfg.Validate()
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.MongoConnTimeout)
}

// NeedsMongo reports whether any configured backend stores data in MongoDB.
func (cfg *Config) NeedsMongo() bool {
	return cfg.StorageBackend == BackendMongo || cfg.LockBackend == BackendMongo
}

// Validate checks every setting and resolves Location. All problems are
// reported together.
func (cfg *Config) Validate() error {
	var errors []string

	if _, err := logger.ParseLevel(cfg.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("LogLevel must be one of [debug, info, warn, error], got: %s", cfg.LogLevel))
	}
	switch cfg.LogFormat {
	case logger.JSON, logger.TEXT:
	default:
		errors = append(errors, fmt.Sprintf("LogFormat must be one of [json, text], got: %s", cfg.LogFormat))
	}

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StorageBackend {
	case BackendMongo, BackendMemory:
	default:
		errors = append(errors, fmt.Sprintf("StorageBackend must be one of [mongo, memory], got: %s", cfg.StorageBackend))
	}
	switch cfg.LockBackend {
	case BackendMongo, BackendRedis, BackendMemory:
	default:
		errors = append(errors, fmt.Sprintf("LockBackend must be one of [mongo, redis, memory], got: %s", cfg.LockBackend))
	}
	if cfg.StorageBackend == BackendMongo && cfg.LockBackend == BackendMemory {
		errors = append(errors, "LockBackend memory cannot guard a shared mongo store; use mongo or redis")
	}

	if cfg.NeedsMongo() {
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
	}
	if cfg.MongoConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}

	if cfg.LockBackend == BackendRedis && cfg.RedisAddr == "" {
		errors = append(errors, "RedisAddr cannot be empty when LockBackend is redis")
	}
	if cfg.RedisDB < 0 {
		errors = append(errors, fmt.Sprintf("RedisDB cannot be negative, got: %d", cfg.RedisDB))
	}

	if cfg.TokenKey == "" {
		errors = append(errors, "TokenKey cannot be empty")
	}

	if loc, err := time.LoadLocation(cfg.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("Timezone must be an IANA zone name, got: %s", cfg.Timezone))
	} else {
		cfg.Location = loc
	}

	positiveDurations := []struct {
		name  string
		value time.Duration
	}{
		{"RateLimitWindow", cfg.RateLimitWindow},
		{"RequestTimeout", cfg.RequestTimeout},
		{"IdempotencyTTL", cfg.IdempotencyTTL},
		{"ReadTimeout", cfg.ReadTimeout},
		{"WriteTimeout", cfg.WriteTimeout},
		{"IdleTimeout", cfg.IdleTimeout},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
		{"ReservationTTL", cfg.ReservationTTL},
		{"SweepInterval", cfg.SweepInterval},
		{"SlotLockWait", cfg.SlotLockWait},
		{"SlotLockLease", cfg.SlotLockLease},
	}
	for _, d := range positiveDurations {
		if d.value <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", d.name, d.value))
		}
	}
	if cfg.SlotLockLease > 0 && cfg.SlotLockLease < cfg.SlotLockWait {
		errors = append(errors, fmt.Sprintf("SlotLockLease (%s) must be >= SlotLockWait (%s)", cfg.SlotLockLease, cfg.SlotLockWait))
	}

	positiveNumbers := []struct {
		name  string
		value int
	}{
		{"RateLimitRequests", cfg.RateLimitRequests},
		{"MaxRequestSize", cfg.MaxRequestSize},
		{"SweepBatchSize", cfg.SweepBatchSize},
		{"MaxOccurrences", cfg.MaxOccurrences},
		{"MaxQueryRangeDays", cfg.MaxQueryRangeDays},
	}
	for _, n := range positiveNumbers {
		if n.value <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %d", n.name, n.value))
		}
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"redis_addr", cfg.RedisAddr,
		"redis_db", cfg.RedisDB,
		"storage_backend", cfg.StorageBackend,
		"lock_backend", cfg.LockBackend,
		"port", cfg.Port,
		"payment_webhook_secret_set", cfg.PaymentWebhookSecret != "",
		"token_key_is_default", cfg.TokenKey == DefaultTokenKey,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"log_level", cfg.LogLevel,
		"log_format", cfg.LogFormat,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"timezone", cfg.Timezone,
		"reservation_ttl", cfg.ReservationTTL,
		"sweep_interval", cfg.SweepInterval,
		"sweep_batch_size", cfg.SweepBatchSize,
		"slot_lock_wait", cfg.SlotLockWait,
		"slot_lock_lease", cfg.SlotLockLease,
		"max_occurrences", cfg.MaxOccurrences,
		"max_query_range_days", cfg.MaxQueryRangeDays,
	)
	if cfg.TokenKey == DefaultTokenKey {
		cfg.Log.Warn("Using the built-in reservation token key; set " + EnvTokenKey + " outside development")
	}
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}
