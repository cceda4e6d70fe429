package config

import (
	"strings"
	"time"
)

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"rpc"`
	Password string `env:"PASSWORD" envDefault:"rpc"`
	Name     string `env:"NAME"     envDefault:"rpc"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // Use 'disable' for local dev, 'require' for production

	MaxOpenConns    int           `env:"MAX_OPEN_CONNS"    envDefault:"25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS"    envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`

	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// RedisConfig contains Redis configuration. URI accepts a redis:// or rediss://
// URL as well as a bare host:port.
type RedisConfig struct {
	URI      string `env:"URI"      envDefault:"localhost:6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB"       envDefault:"0"`
}

// CacheConfig controls the Redis-backed permission hierarchy cache.
type CacheConfig struct {
	// Enabled turns the hierarchy cache on. Without it every resolution reads the hierarchy table.
	Enabled bool `env:"CACHE_ENABLED" envDefault:"false"`

	// KeyPrefix namespaces cache keys.
	KeyPrefix string `env:"CACHE_KEY_PREFIX" envDefault:"rpc:"`

	// HierarchyTTL bounds how long a hierarchy snapshot may be served.
	HierarchyTTL time.Duration `env:"CACHE_HIERARCHY_TTL" envDefault:"5m"`
}

// Sanitize applies guardrails to cache configuration values.
func (c *CacheConfig) Sanitize() {
	c.KeyPrefix = strings.TrimSpace(c.KeyPrefix)
	if c.HierarchyTTL <= 0 {
		c.HierarchyTTL = 5 * time.Minute
	}
}
