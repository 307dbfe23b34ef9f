package config

import (
	"fmt"
	"strings"

	"github.com/preston-bernstein/gaffer-service/internal/domain/squads"
	"github.com/preston-bernstein/gaffer-service/internal/store/postgres"
)

// Config holds runtime configuration for the server.
type Config struct {
	Port    string `env:"PORT" envDefault:"3000"`
	Log     LogConfig
	Store   StoreConfig
	CORS    CORSConfig
	Metrics MetricsConfig
	Sweep   SweepConfig
}

// LogConfig selects the log level and handler format.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// CORSConfig lists origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

// SweepConfig controls clearing of lapsed trial rosters.
type SweepConfig struct {
	Enabled   bool      `env:"SWEEP_ENABLED" envDefault:"true"`
	Interval  Duration  `env:"SWEEP_INTERVAL" envDefault:"24h"`
	Retention Retention `env:"SQUAD_RETENTION" envDefault:"720h"`
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var problems []string
	if strings.TrimSpace(c.Port) == "" {
		problems = append(problems, envPort+" is required")
	}
	driver := strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch driver {
	case DriverAuto, DriverSQLite, DriverMemory, DriverPostgres, DriverRedis:
	default:
		problems = append(problems, fmt.Sprintf("%s %q is not one of auto, sqlite, memory, postgres, redis", envStoreDriver, c.Store.Driver))
	}
	if driver == DriverPostgres && !postgres.IsURL(c.Store.DatabaseURL) {
		problems = append(problems, envDatabaseURL+" must be a postgres URL for the postgres driver")
	}
	if driver == DriverRedis && strings.TrimSpace(c.Store.RedisURL) == "" {
		problems = append(problems, envRedisURL+" is required for the redis driver")
	}
	if c.Store.RetryAttempts < 1 {
		problems = append(problems, envRetryAttempts+" must be at least 1")
	}
	if c.Store.RetryBackoff < 0 {
		problems = append(problems, envRetryBackoff+" must not be negative")
	}
	if c.Sweep.Interval <= 0 {
		problems = append(problems, envSweepInterval+" must be positive")
	}
	if c.Sweep.Retention.Duration() < squads.TrialPeriod {
		problems = append(problems, envRetention+" must be at least the trial period ("+squads.TrialPeriod.String()+")")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
