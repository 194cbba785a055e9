package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the gateway.
type Config struct {
	HTTPPort      string
	Database      DatabaseConfig
	Redis         RedisConfig
	Cache         CacheConfig
	Admission     AdmissionConfig
	Orchestrator  OrchestratorConfig
	Usage         UsageConfig
	ProvidersFile string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	QuotaCacheSize int
	QuotaCacheTTL  time.Duration

	MaintenanceInterval time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// CacheConfig holds translation cache settings
type CacheConfig struct {
	FastTTL       time.Duration
	SweepInterval time.Duration
	StaleAfter    time.Duration
	MinHits       int64
	LowHitAfter   time.Duration
}

// AdmissionConfig holds rate limit settings for the non-tier scopes
type AdmissionConfig struct {
	UserRequestsPerMinute int
	IPRequestsPerMinute   int
	Window                time.Duration
}

// OrchestratorConfig holds per-attempt timeout and cost estimate settings
type OrchestratorConfig struct {
	BaseTimeout             time.Duration
	PerCharTimeout          time.Duration
	MaxTimeout              time.Duration
	EstimatedCostPerCharUSD float64
	FlightTTL               time.Duration
}

// UsageConfig holds the usage pipeline settings
type UsageConfig struct {
	UseRedisQueue bool
	BatchSize     int
	BatchTimeout  time.Duration
	MaxRetries    int
	RetryBackoff  time.Duration

	ArchiveEnabled bool
	S3Bucket       string
	S3Region       string
	S3Prefix       string
	Instance       string
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvInt64(key string, defaultValue int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	intVal, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return defaultValue
	}
	return intVal
}

func getEnvFloat(key string, defaultValue float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	floatVal, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultValue
	}
	return floatVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort: getEnvString("HTTP_PORT", "8080"),
		Database: DatabaseConfig{
			Host:     getEnvString("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			Database: getEnvString("DB_NAME", "translations"),
			User:     getEnvString("DB_USER", "postgres"),
			Password: getEnvString("DB_PASSWORD", ""),
			SSLMode:  getEnvString("DB_SSLMODE", "disable"),

			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),

			QuotaCacheSize: getEnvInt("QUOTA_CACHE_SIZE", 1000),
			QuotaCacheTTL:  getEnvDuration("QUOTA_CACHE_TTL", 30*time.Second),

			MaintenanceInterval: getEnvDuration("DB_MAINTENANCE_INTERVAL", time.Minute),
		},
		Redis: RedisConfig{
			Address:      getEnvString("REDIS_ADDRESS", "localhost:6379"),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Cache: CacheConfig{
			FastTTL:       getEnvDuration("CACHE_FAST_TTL", 1*time.Hour),
			SweepInterval: getEnvDuration("CACHE_SWEEP_INTERVAL", 1*time.Hour),
			StaleAfter:    getEnvDuration("CACHE_STALE_AFTER", 30*24*time.Hour),
			MinHits:       getEnvInt64("CACHE_MIN_HITS", 5),
			LowHitAfter:   getEnvDuration("CACHE_LOW_HIT_AFTER", 7*24*time.Hour),
		},
		Admission: AdmissionConfig{
			UserRequestsPerMinute: getEnvInt("RATE_LIMIT_USER_PER_MINUTE", 30),
			IPRequestsPerMinute:   getEnvInt("RATE_LIMIT_IP_PER_MINUTE", 20),
			Window:                getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Orchestrator: OrchestratorConfig{
			BaseTimeout:             getEnvDuration("PROVIDER_BASE_TIMEOUT", 2*time.Second),
			PerCharTimeout:          getEnvDuration("PROVIDER_PER_CHAR_TIMEOUT", 10*time.Millisecond),
			MaxTimeout:              getEnvDuration("PROVIDER_MAX_TIMEOUT", 30*time.Second),
			EstimatedCostPerCharUSD: getEnvFloat("ESTIMATED_COST_PER_CHAR_USD", 0.00005),
			FlightTTL:               getEnvDuration("FLIGHT_TTL", 30*time.Second),
		},
		Usage: UsageConfig{
			UseRedisQueue: getEnvString("USAGE_QUEUE_BACKEND", "memory") == "redis",
			BatchSize:     getEnvInt("USAGE_BATCH_SIZE", 100),
			BatchTimeout:  getEnvDuration("USAGE_BATCH_TIMEOUT", 5*time.Second),
			MaxRetries:    getEnvInt("USAGE_MAX_RETRIES", 3),
			RetryBackoff:  getEnvDuration("USAGE_RETRY_BACKOFF", 1*time.Second),

			ArchiveEnabled: getEnvString("USAGE_ARCHIVE_ENABLED", "false") == "true",
			S3Bucket:       getEnvString("USAGE_ARCHIVE_S3_BUCKET", ""),
			S3Region:       getEnvString("USAGE_ARCHIVE_S3_REGION", "us-east-1"),
			S3Prefix:       getEnvString("USAGE_ARCHIVE_S3_PREFIX", "usage/"),
			Instance:       getEnvString("POD_NAME", "gateway-0"),
		},
		ProvidersFile: getEnvString("PROVIDERS_FILE", "providers.yaml"),
	}

	return cfg, nil
}
