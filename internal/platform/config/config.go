package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// envPrefix namespaces every variable, e.g. BUREAU_ADDR.
const envPrefix = "BUREAU"

const devJWTSigningKey = "dev-secret-key-change-in-production"

// Storage drivers.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr           string        `envconfig:"ADDR" default:":8080"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	JWTSigningKey  string        `envconfig:"JWT_SIGNING_KEY"`
	JWTIssuer      string        `envconfig:"JWT_ISSUER" default:"bureau"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	TxTimeout      time.Duration `envconfig:"TX_TIMEOUT" default:"5s"`

	Storage StorageConfig `envconfig:"STORAGE"`
	Cache   CacheConfig   `envconfig:"CACHE"`
	Redis   RedisConfig   `envconfig:"REDIS"`
}

// StorageConfig selects and locates the mandate store.
type StorageConfig struct {
	Driver      string `envconfig:"DRIVER" default:"memory"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"bureau.db"`
	// SeedMembers pre-registers member ids 1..n in the memory store.
	SeedMembers int `envconfig:"SEED_MEMBERS" default:"0"`
}

// CacheConfig controls the read-path response cache.
type CacheConfig struct {
	Backend     string        `envconfig:"BACKEND" default:"memory"`
	TTL         time.Duration `envconfig:"TTL" default:"300s"`
	CheckPeriod time.Duration `envconfig:"CHECK_PERIOD" default:"60s"`
	// KeyPrefix namespaces entries in a shared redis.
	KeyPrefix string `envconfig:"KEY_PREFIX" default:"bureau:cache:"`
}

// RedisConfig configures the shared cache connection.
type RedisConfig struct {
	URL          string        `envconfig:"URL"`
	PoolSize     int           `envconfig:"POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
}

// FromEnv builds a Server config from BUREAU_* environment variables so main stays lean.
func FromEnv() (Server, error) {
	var cfg Server
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Server{}, fmt.Errorf("load config: %w", err)
	}
	if cfg.JWTSigningKey == "" {
		// Use a default for development - should be overridden in production
		cfg.JWTSigningKey = devJWTSigningKey
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate rejects unknown drivers and missing connection settings.
func (c Server) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite:
	case StoragePostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("config: BUREAU_STORAGE_DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Cache.Backend {
	case CacheMemory:
	case CacheRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("config: BUREAU_REDIS_URL is required for the redis cache")
		}
	default:
		return fmt.Errorf("config: unknown cache backend %q", c.Cache.Backend)
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("config: cache TTL must be positive")
	}
	if c.RequestTimeout <= 0 || c.TxTimeout <= 0 {
		return fmt.Errorf("config: timeouts must be positive")
	}
	return nil
}

// UsingDevSigningKey reports whether tokens are signed with the built-in key.
func (c Server) UsingDevSigningKey() bool {
	return c.JWTSigningKey == devJWTSigningKey
}
