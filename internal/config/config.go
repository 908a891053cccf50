package config

import (
	"fmt"
	"time"

	"github.com/utafrali/gomarketplace/internal/store"
	pkgconfig "github.com/utafrali/gomarketplace/pkg/config"
	"github.com/utafrali/gomarketplace/pkg/database"
	"github.com/utafrali/gomarketplace/pkg/tracing"
)

// Storage backends.
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all configuration for the cart.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"cart"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort    int      `env:"CART_HTTP_PORT" envDefault:"8003"`
	CORSOrigins []string `env:"CART_CORS_ORIGINS" envDefault:"*" envSeparator:","`

	// Persistence
	StorageBackend    string `env:"STORAGE_BACKEND" envDefault:"redis"`
	StorageKey        string `env:"CART_STORAGE_KEY" envDefault:"@GoMarketPlace:products"`
	PersistDebounceMS int    `env:"CART_PERSIST_DEBOUNCE_MS" envDefault:"50"`
	PersistRetryMS    int    `env:"CART_PERSIST_RETRY_MS" envDefault:"250"`
	StorageTimeoutMS  int    `env:"CART_STORAGE_TIMEOUT_MS" envDefault:"5000"`
	SlowCallMS        int    `env:"CART_SLOW_CALL_MS" envDefault:"200"`

	// Redis
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Stored cart TTL in hours, 0 keeps it forever.
	CartTTL int `env:"CART_TTL_HOURS" envDefault:"0"`

	// PostgreSQL
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"marketplace"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"marketplace_secret"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"marketplace"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load cart config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom is like Load but reads vars instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadFrom(cfg, vars); err != nil {
		return nil, fmt.Errorf("load cart config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch c.StorageBackend {
	case BackendRedis, BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("invalid storage backend %q: want redis, postgres or memory", c.StorageBackend)
	}
	if c.StorageKey == "" {
		return fmt.Errorf("storage key must not be empty")
	}
	if c.PersistDebounceMS < 0 {
		return fmt.Errorf("invalid persist debounce: %dms", c.PersistDebounceMS)
	}
	if c.PersistRetryMS <= 0 {
		return fmt.Errorf("invalid persist retry delay: %dms", c.PersistRetryMS)
	}
	if c.StorageTimeoutMS <= 0 {
		return fmt.Errorf("invalid storage timeout: %dms", c.StorageTimeoutMS)
	}
	if c.CartTTL < 0 {
		return fmt.Errorf("invalid cart TTL: %dh", c.CartTTL)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("invalid OTEL sample rate: %v", c.OTELSampleRate)
	}
	return nil
}

// StoreOptions returns the options for the cart store.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Key:          c.StorageKey,
		Debounce:     time.Duration(c.PersistDebounceMS) * time.Millisecond,
		WriteTimeout: time.Duration(c.StorageTimeoutMS) * time.Millisecond,
		RetryDelay:   time.Duration(c.PersistRetryMS) * time.Millisecond,
	}
}

// TTL returns how long a stored cart lives in Redis.
func (c *Config) TTL() time.Duration {
	return time.Duration(c.CartTTL) * time.Hour
}

// SlowCallThreshold returns the duration above which storage calls are logged.
func (c *Config) SlowCallThreshold() time.Duration {
	return time.Duration(c.SlowCallMS) * time.Millisecond
}

func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Addr:     c.RedisAddr,
		Password: c.RedisPass,
		DB:       c.RedisDB,
	}
}

func (c *Config) Postgres() database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPassword
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSLMode
	return pg
}

func (c *Config) Tracing() tracing.Config {
	tc := tracing.DefaultConfig(c.ServiceName)
	tc.Environment = c.Environment
	tc.OTLPEndpoint = c.OTELEndpoint
	tc.SampleRate = c.OTELSampleRate
	tc.Enabled = c.OTELEnabled
	return tc
}
