package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config is shared by all three processes (API, runner, scheduler) since
// their env surfaces overlap heavily (database, limiter defaults, logging).
// Each cmd reads only the fields it needs.
type Config struct {
	Env  string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port string `env:"PORT" envDefault:"8080" validate:"required"`

	DatabaseURL     string `env:"DATABASE_URL,required" validate:"required"`
	DBMaxConns      int    `env:"DB_MAX_CONNS" envDefault:"20" validate:"min=1,max=500"`
	DBMinConns      int    `env:"DB_MIN_CONNS" envDefault:"2" validate:"min=0"`
	DBConnLifetimeMin int  `env:"DB_CONN_LIFETIME_MINUTES" envDefault:"30" validate:"min=1"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"required,oneof=debug info warn error"`

	JWTSecret          string `env:"JWT_SECRET,required" validate:"required,min=32"`
	JWTExpirationHours int    `env:"JWT_EXPIRATION_HOURS" envDefault:"24" validate:"min=1,max=720"`

	// EncryptionKey is the base64-encoded 32-byte master key used to derive
	// per-ciphertext keys for data source credentials (§3, crypto package).
	EncryptionKey string `env:"ENCRYPTION_KEY,required" validate:"required"`

	// RedisURL is optional; an empty value disables the cache and the
	// system falls back to reading straight through to Postgres (§5).
	RedisURL string `env:"REDIS_URL"`

	RunnerID     string `env:"RUNNER_ID"`
	SchedulerID  string `env:"SCHEDULER_ID"`

	SchedulerPollIntervalSec int `env:"SCHEDULER_POLL_INTERVAL_SECONDS" envDefault:"10" validate:"min=1,max=300"`
	RunnerPollIntervalSec    int `env:"RUNNER_POLL_INTERVAL_SECONDS" envDefault:"1" validate:"min=1,max=60"`
	RunnerConcurrency        int `env:"RUNNER_CONCURRENCY" envDefault:"5" validate:"min=1,max=200"`
	WatchdogIntervalSec      int `env:"WATCHDOG_INTERVAL_SECONDS" envDefault:"30" validate:"min=5,max=600"`
	// RunLeaseGraceSeconds is added on top of each run's own
	// timeout_seconds to form its lease (spec §4.1: max_claim_lease =
	// timeout_seconds + grace); it is not itself the lease.
	RunLeaseGraceSeconds int `env:"RUN_LEASE_GRACE_SECONDS" envDefault:"30" validate:"min=5"`

	PerOrgMaxConcurrent int `env:"PER_ORG_MAX_CONCURRENT" envDefault:"5" validate:"min=1,max=1000"`
	GlobalMaxConcurrent int `env:"GLOBAL_MAX_CONCURRENT" envDefault:"50" validate:"min=1,max=10000"`
	AdmissionTimeoutSec int `env:"ADMISSION_TIMEOUT_SECONDS" envDefault:"30" validate:"min=1,max=300"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"40"`

	// RateLimitIPPerMinute is the global per-remote-address budget
	// (spec §6 default: 100 requests/minute) applied ahead of the
	// per-org budget above, so unauthenticated or cross-org traffic
	// from one address cannot exhaust the global budget alone.
	RateLimitIPPerMinute int `env:"RATE_LIMIT_IP_PER_MINUTE" envDefault:"100" validate:"min=1"`
	RateLimitIPBurst     int `env:"RATE_LIMIT_IP_BURST" envDefault:"20" validate:"min=1"`

	// RateLimitAuthPerMinute is the tighter per-remote-address budget
	// reserved for /auth/login and /auth/register specifically (spec
	// §6), well below ordinary API traffic to slow credential
	// stuffing and account-spam attempts.
	RateLimitAuthPerMinute int `env:"RATE_LIMIT_AUTH_PER_MINUTE" envDefault:"5" validate:"min=1"`
	RateLimitAuthBurst     int `env:"RATE_LIMIT_AUTH_BURST" envDefault:"5" validate:"min=1"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SlogLevel converts the LOG_LEVEL string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
