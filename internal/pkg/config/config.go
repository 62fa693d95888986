package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

type Config struct {
	Port           string        `env:"PORT,            default=8080"`
	Env            string        `env:"ENV,             default=development"`
	JWTSecret      string        `env:"JWT_SECRET,      required"`
	TokenTTL       time.Duration `env:"TOKEN_TTL,       default=24h"`
	LogLevel       string        `env:"LOG_LEVEL,       default=info"`
	StorageBackend string        `env:"STORAGE_BACKEND, default=mongo"`

	Admin     AdminConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
	Engine    EngineConfig
}

// AdminConfig bootstraps the first admin account. Empty email skips it.
type AdminConfig struct {
	Email    string `env:"ADMIN_EMAIL"`
	Password string `env:"ADMIN_PASSWORD"`
	Name     string `env:"ADMIN_NAME, default=Administrator"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017/?replicaSet=rs0"`
	Database string `env:"MONGO_DB,  default=auction_engine"`
}

type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED,  default=false"`
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

type SchedulerConfig struct {
	Interval    time.Duration `env:"SCHEDULER_INTERVAL,    default=2s"`
	BatchSize   int           `env:"SCHEDULER_BATCH_SIZE,  default=100"`
	Concurrency int           `env:"SCHEDULER_CONCURRENCY, default=4"`
}

type EngineConfig struct {
	MaxRetries          int           `env:"ENGINE_MAX_RETRIES,    default=3"`
	LockTTL             time.Duration `env:"LOCK_TTL,              default=15s"`
	LockWait            time.Duration `env:"LOCK_WAIT,             default=2s"`
	DispatchWorkers     int           `env:"DISPATCH_WORKERS,      default=8"`
	StatsTTL            time.Duration `env:"STATS_TTL,             default=30s"`
	DefaultAuctionHours int           `env:"DEFAULT_AUCTION_HOURS, default=24"`
}

// IsDevelopment reports whether human-friendly logging should be used.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Load reads an optional .env file, then configuration from environment
// variables using go-envconfig. Variables already set in the environment win
// over the file.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(fmt.Sprintf("config: failed to read .env: %v", err))
	}

	cfg, err := Process(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// Process resolves and validates configuration from lookuper.
func Process(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageBackend {
	case BackendMongo, BackendMemory:
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", BackendMongo, BackendMemory, c.StorageBackend)
	}
	if c.Admin.Email != "" && c.Admin.Password == "" {
		return errors.New("ADMIN_PASSWORD is required when ADMIN_EMAIL is set")
	}
	if c.Engine.DispatchWorkers <= 0 {
		return errors.New("DISPATCH_WORKERS must be positive")
	}
	return nil
}
