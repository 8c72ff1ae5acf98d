package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	id "profilereg/pkg/domain"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// database/sql drivers for the postgres store.
const (
	DriverPQ  = "postgres"
	DriverPGX = "pgx"
)

// Slash sinks.
const (
	SinkBurn     = "burn"
	SinkTreasury = "treasury"
)

// Server captures process level configuration.
type Server struct {
	Addr             string            `env:"REGISTRY_ADDR" envDefault:":8080"`
	ShutdownTimeout  time.Duration     `env:"REGISTRY_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxLength        int               `env:"REGISTRY_MAX_LENGTH" envDefault:"32"`
	DepositValue     uint64            `env:"REGISTRY_DEPOSIT_VALUE" envDefault:"100"`
	ForceSetReserves bool              `env:"REGISTRY_FORCE_SET_RESERVES"`
	StoreKind        string            `env:"REGISTRY_STORE" envDefault:"memory"`
	DatabaseURL      string            `env:"DATABASE_URL"`
	DatabaseDriver   string            `env:"DATABASE_DRIVER" envDefault:"postgres"`
	AdminToken       string            `env:"ADMIN_TOKEN"`
	AdminTokenHash   string            `env:"ADMIN_TOKEN_HASH"`
	AdminAccounts    []string          `env:"ADMIN_ACCOUNTS" envSeparator:","`
	AccountAliases   map[string]string `env:"ACCOUNT_ALIASES" envSeparator:"," envKeyValSeparator:"="`
	JWTSigningKey    string            `env:"JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	LogLevel         string            `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat        string            `env:"LOG_FORMAT" envDefault:"json"`
	SlashSink        string            `env:"SLASH_SINK" envDefault:"burn"`
	TreasuryAccount  string            `env:"TREASURY_ACCOUNT"`
	EventBuffer      int               `env:"EVENT_BUFFER"`
	Redis            Redis
	Kafka            Kafka
	Tracing          Tracing
}

// Tracing configures span export. Empty Endpoint disables it.
type Tracing struct {
	Endpoint    string  `env:"OTEL_ENDPOINT"`
	ServiceName string  `env:"OTEL_SERVICE_NAME" envDefault:"profilereg"`
	SampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// Redis configures the go-redis client used by the redis store.
type Redis struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// Kafka configures the event stream. Empty Brokers disables it.
type Kafka struct {
	Brokers    []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic      string   `env:"KAFKA_EVENTS_TOPIC" envDefault:"profile-registry-events"`
	Partitions int32    `env:"KAFKA_EVENTS_PARTITIONS" envDefault:"3"`
	Replicas   int16    `env:"KAFKA_EVENTS_REPLICAS" envDefault:"1"`
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.StoreKind = strings.ToLower(strings.TrimSpace(cfg.StoreKind))
	cfg.SlashSink = strings.ToLower(strings.TrimSpace(cfg.SlashSink))
	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the registry cannot start with.
func (c Server) Validate() error {
	var errs []error
	if c.MaxLength <= 0 {
		errs = append(errs, fmt.Errorf("REGISTRY_MAX_LENGTH must be positive, got %d", c.MaxLength))
	}
	switch c.StoreKind {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
		if c.DatabaseDriver != DriverPQ && c.DatabaseDriver != DriverPGX {
			errs = append(errs, fmt.Errorf("unknown DATABASE_DRIVER %q", c.DatabaseDriver))
		}
	case StoreRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown REGISTRY_STORE %q", c.StoreKind))
	}
	switch c.SlashSink {
	case SinkBurn:
	case SinkTreasury:
		if _, err := id.ParseAccountID(c.TreasuryAccount); err != nil {
			errs = append(errs, fmt.Errorf("TREASURY_ACCOUNT: %w", err))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SLASH_SINK %q", c.SlashSink))
	}
	if _, err := c.AdminAccountIDs(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.AliasIDs(); err != nil {
		errs = append(errs, err)
	}
	if c.AdminToken != "" && c.AdminTokenHash != "" {
		errs = append(errs, errors.New("set only one of ADMIN_TOKEN and ADMIN_TOKEN_HASH"))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATIO must be within [0, 1], got %v", c.Tracing.SampleRatio))
	}
	if c.EventBuffer < 0 {
		errs = append(errs, errors.New("EVENT_BUFFER must not be negative"))
	}
	return errors.Join(errs...)
}

// AdminAccountIDs parses ADMIN_ACCOUNTS.
func (c Server) AdminAccountIDs() ([]id.AccountID, error) {
	out := make([]id.AccountID, 0, len(c.AdminAccounts))
	for _, raw := range c.AdminAccounts {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		acct, err := id.ParseAccountID(raw)
		if err != nil {
			return nil, fmt.Errorf("ADMIN_ACCOUNTS %q: %w", raw, err)
		}
		out = append(out, acct)
	}
	return out, nil
}

// AliasIDs parses ACCOUNT_ALIASES (name=account pairs).
func (c Server) AliasIDs() (map[string]id.AccountID, error) {
	out := make(map[string]id.AccountID, len(c.AccountAliases))
	for name, raw := range c.AccountAliases {
		acct, err := id.ParseAccountID(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("ACCOUNT_ALIASES %q: %w", name, err)
		}
		out[name] = acct
	}
	return out, nil
}

// Treasury returns the treasury account; only valid when SlashSink is treasury.
func (c Server) Treasury() id.AccountID {
	acct, _ := id.ParseAccountID(c.TreasuryAccount)
	return acct
}
