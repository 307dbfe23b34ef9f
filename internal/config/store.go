package config

import (
	"strings"

	"github.com/preston-bernstein/gaffer-service/internal/store/postgres"
)

// StoreConfig selects and tunes the persistence backend.
type StoreConfig struct {
	Driver        string   `env:"STORE_DRIVER" envDefault:"auto"`
	DatabaseURL   string   `env:"DATABASE_URL"`
	RedisURL      string   `env:"REDIS_URL"`
	RetryAttempts int      `env:"STORE_RETRY_ATTEMPTS" envDefault:"2"`
	RetryBackoff  Duration `env:"STORE_RETRY_BACKOFF" envDefault:"200ms"`
}

// Backend is a resolved driver and its connection string.
type Backend struct {
	Driver string
	DSN    string
	// Warning explains a fallback the caller should log.
	Warning string
}

// Resolve picks the concrete backend. In auto mode a postgres DATABASE_URL
// selects postgres, a REDIS_URL selects redis and anything else uses sqlite.
// A DATABASE_URL that looks like a URL for another database is ignored in
// favour of the default sqlite file.
func (s StoreConfig) Resolve() Backend {
	dbURL := strings.TrimSpace(s.DatabaseURL)
	driver := strings.ToLower(strings.TrimSpace(s.Driver))

	switch driver {
	case DriverMemory:
		return Backend{Driver: DriverMemory}
	case DriverPostgres:
		return Backend{Driver: DriverPostgres, DSN: dbURL}
	case DriverRedis:
		return Backend{Driver: DriverRedis, DSN: strings.TrimSpace(s.RedisURL)}
	case DriverSQLite:
		return sqliteBackend(dbURL)
	}

	if postgres.IsURL(dbURL) {
		return Backend{Driver: DriverPostgres, DSN: dbURL}
	}
	if redisURL := strings.TrimSpace(s.RedisURL); redisURL != "" && dbURL == "" {
		return Backend{Driver: DriverRedis, DSN: redisURL}
	}
	return sqliteBackend(dbURL)
}

func sqliteBackend(dbURL string) Backend {
	switch {
	case dbURL == "":
		return Backend{Driver: DriverSQLite, DSN: DefaultSQLitePath}
	case strings.Contains(dbURL, "://"):
		return Backend{
			Driver:  DriverSQLite,
			DSN:     DefaultSQLitePath,
			Warning: "DATABASE_URL is not a postgres URL; falling back to " + DefaultSQLitePath,
		}
	default:
		return Backend{Driver: DriverSQLite, DSN: dbURL}
	}
}
