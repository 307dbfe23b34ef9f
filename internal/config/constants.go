package config

import "time"

const (
	envPort          = "PORT"
	envStoreDriver   = "STORE_DRIVER"
	envDatabaseURL   = "DATABASE_URL"
	envRedisURL      = "REDIS_URL"
	envRetryAttempts = "STORE_RETRY_ATTEMPTS"
	envRetryBackoff  = "STORE_RETRY_BACKOFF"
	envCORSOrigins   = "CORS_ALLOWED_ORIGINS"
	envMetricsPort   = "METRICS_PORT"
	envMetricsOn     = "METRICS_ENABLED"
	envOtelEndpoint  = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envOtelService   = "OTEL_SERVICE_NAME"
	envOtelInsecure  = "OTEL_EXPORTER_OTLP_INSECURE"
	envSweepEnabled  = "SWEEP_ENABLED"
	envSweepInterval = "SWEEP_INTERVAL"
	envRetention     = "SQUAD_RETENTION"
	envLogLevel      = "LOG_LEVEL"
	envLogFormat     = "LOG_FORMAT"
	envAPIURL        = "GAFFER_API_URL"
	envSquadID       = "GAFFER_SQUAD_ID"
	envSaveDelay     = "GAFFER_SAVE_DELAY"

	defaultPort = "3000"
	// DefaultSQLitePath is used when DATABASE_URL is empty or not a postgres URL.
	DefaultSQLitePath  = "squad.db"
	defaultRetention   = 30 * 24 * time.Hour
	defaultSweepPeriod = 24 * time.Hour
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverAuto     = "auto"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)
