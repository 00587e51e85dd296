package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config holds application configuration from environment.
type Config struct {
	HTTPPort string `env:"HTTP_PORT" env-default:"8080"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`

	StoreDriver string `env:"STORE_DRIVER" env-default:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	DBPoolSize  int    `env:"DB_POOL_SIZE" env-default:"20"`
	SQLitePath  string `env:"SQLITE_PATH" env-default:"todos.db"`

	RedisURL      string `env:"REDIS_URL"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" env-default:"50"`
	CacheTTL      int    `env:"CACHE_TTL_SEC" env-default:"30"` // seconds

	KafkaBrokers    []string `env:"KAFKA_BROKERS" env-separator:","`
	KafkaTopic      string   `env:"KAFKA_TODO_TOPIC" env-default:"todo-commands"`
	KafkaPartitions int      `env:"KAFKA_PARTITIONS" env-default:"4"`
	KafkaGroupID    string   `env:"KAFKA_GROUP_ID" env-default:"todo-workers"`

	SweepInterval time.Duration `env:"SWEEP_INTERVAL" env-default:"1m"`
	JWTSecret     string        `env:"JWT_SECRET"`
}

var (
	cfg     *Config
	cfgErr  error
	cfgOnce sync.Once
)

// LoadDotEnv loads variables from a .env file without overriding ones already
// set in the process environment. A missing file is not an error.
func LoadDotEnv(path string) {
	_ = godotenv.Load(path)
}

// Load reads and validates configuration from the environment.
func Load() (*Config, error) {
	var c Config
	if err := cleanenv.ReadEnv(&c); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	c.KafkaBrokers = compact(c.KafkaBrokers)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for store driver %q", c.StoreDriver)
		}
	case DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}
	return nil
}

// CacheTTLDuration returns the cache TTL as a duration.
func (c *Config) CacheTTLDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// Get returns the application config (loads once from env). It panics if the
// environment is invalid; call Load first to handle that case.
func Get() *Config {
	cfgOnce.Do(func() {
		cfg, cfgErr = Load()
	})
	if cfgErr != nil {
		panic(cfgErr)
	}
	return cfg
}

func compact(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
