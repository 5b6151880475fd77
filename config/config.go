package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	ModeServer = "SERVER"
	ModeWorker = "WORKER"

	StorageMongo  = "mongo"
	StorageMemory = "memory"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	AppMode     string        `envconfig:"APP_MODE" default:"SERVER"`
	AppStorage  string        `envconfig:"APP_STORAGE" default:"mongo"`
	ServerPort  string        `envconfig:"SERVER_PORT" default:"8080"`
	MongoURL    string        `envconfig:"MONGO_URL"`
	MongoDBName string        `envconfig:"MONGO_DBNAME" default:"memories"`
	RedisURL    string        `envconfig:"REDIS_URL"`
	CacheTTL    time.Duration `envconfig:"CACHE_TTL" default:"5m"`
	JWTSecret   string        `envconfig:"JWT_SECRET"`
	LogLevel    string        `envconfig:"LOG_LEVEL" default:"info"`

	// LikeUnauthLegacy answers unauthenticated likes with 200 instead of 401.
	LikeUnauthLegacy bool `envconfig:"LIKE_UNAUTH_LEGACY" default:"false"`
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.AppMode {
	case ModeServer, ModeWorker:
	default:
		return fmt.Errorf("%w: unexpected app mode %q", ErrInvalidConfig, c.AppMode)
	}

	switch c.AppStorage {
	case StorageMongo:
		if c.MongoURL == "" {
			return fmt.Errorf("%w: empty mongo url", ErrInvalidConfig)
		}
	case StorageMemory:
		if c.AppMode == ModeWorker {
			return fmt.Errorf("%w: worker mode needs mongo storage", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unexpected storage %q", ErrInvalidConfig, c.AppStorage)
	}

	if c.AppMode == ModeWorker && c.RedisURL == "" {
		return fmt.Errorf("%w: empty broker url", ErrInvalidConfig)
	}
	if c.JWTSecret == "" && c.AppMode == ModeServer {
		return fmt.Errorf("%w: empty jwt secret", ErrInvalidConfig)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("%w: negative cache ttl", ErrInvalidConfig)
	}
	return nil
}

// CacheEnabled reports whether posts are cached in redis.
func (c *Config) CacheEnabled() bool {
	return c.RedisURL != "" && c.CacheTTL > 0 && c.AppStorage == StorageMongo
}

// TagStatsEnabled reports whether tag statistics are maintained by workers.
func (c *Config) TagStatsEnabled() bool {
	return c.RedisURL != "" && c.AppStorage == StorageMongo
}
