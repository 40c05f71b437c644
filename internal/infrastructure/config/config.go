package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// State backends accepted by STATE_BACKEND.
const (
	StateMemory = "memory"
	StateRedis  = "redis"
	StateMongo  = "mongo"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`
	LogFile  string `env:"LOG_FILE"`

	API     APIConfig
	Refresh RefreshConfig
	State   StateConfig
	Mongo   MongoConfig
	Redis   RedisConfig
}

type APIConfig struct {
	BaseURL    string        `env:"API_BASE_URL,    default=http://localhost:3000/api/v1"`
	Timeout    time.Duration `env:"API_TIMEOUT,     default=10s"`
	Attempts   uint          `env:"API_ATTEMPTS,    default=3"`
	RetryDelay time.Duration `env:"API_RETRY_DELAY, default=200ms"`
}

type RefreshConfig struct {
	// Delay defers the sweep after a switch; a negative value disables it.
	Delay         time.Duration `env:"REFRESH_DELAY,   default=100ms"`
	Workers       int           `env:"REFRESH_WORKERS, default=8"`
	ConfirmSwitch bool          `env:"CONFIRM_SWITCH,  default=true"`
}

type StateConfig struct {
	Backend         string `env:"STATE_BACKEND,    default=memory"`
	Namespace       string `env:"STATE_NAMESPACE,  default=finance-client"`
	DefaultCurrency string `env:"DEFAULT_CURRENCY, default=USD"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=finance_client"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.State.Backend = strings.ToLower(strings.TrimSpace(c.State.Backend))
	switch c.State.Backend {
	case StateMemory, StateRedis, StateMongo:
	default:
		return fmt.Errorf("unknown STATE_BACKEND %q", c.State.Backend)
	}
	if c.Refresh.Workers < 0 {
		return fmt.Errorf("REFRESH_WORKERS must not be negative")
	}
	return nil
}

// IsDevelopment enables console-friendly logs.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
