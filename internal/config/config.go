package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env      string `yaml:"env" env:"APP_ENV" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	DB         DBConfig         `yaml:"db"`
	HTTP       HTTPConfig       `yaml:"http_server"`
	GRPC       GRPCConfig       `yaml:"grpc"`
	Redis      RedisConfig      `yaml:"redis"`
	Travel     TravelConfig     `yaml:"travel"`
	Scheduling SchedulingConfig `yaml:"scheduling"`
}

type DBConfig struct {
	// postgres or sqlite
	Driver string `yaml:"driver" env:"DB_DRIVER" env-default:"postgres"`

	Host     string `yaml:"host" env:"DB_HOST" env-default:"postgres"`
	Port     int    `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"DB_USER" env-default:"offleash"`
	Password string `yaml:"password" env:"DB_PASSWORD" env-default:"offleash"`
	Name     string `yaml:"name" env:"DB_NAME" env-default:"offleash"`
	SSLMode  string `yaml:"sslmode" env:"DB_SSLMODE" env-default:"disable"`
	TimeZone string `yaml:"timezone" env:"DB_TIMEZONE" env-default:"UTC"`

	SQLitePath string `yaml:"sqlite_path" env:"DB_SQLITE_PATH" env-default:"offleash.db"`

	AutoMigrate bool `yaml:"auto_migrate" env:"DB_AUTO_MIGRATE" env-default:"true"`

	MaxOpenConns    int `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	MaxIdleConns    int `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifeTime int `yaml:"conn_max_lifetime_min" env:"DB_CONN_MAX_LIFETIME_MIN" env-default:"30"` // minutes
}

type HTTPConfig struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout         time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"10s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"15s"`
}

type GRPCConfig struct {
	Address string `yaml:"address" env:"GRPC_ADDRESS" env-default:":9090"`
}

// RedisConfig: an empty Addr disables Redis; the travel cache and booking
// locks then fall back to the database and in-process variants.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type TravelConfig struct {
	// database, redis or memory
	CacheBackend string        `yaml:"cache_backend" env:"TRAVEL_CACHE_BACKEND" env-default:"database"`
	CacheTTL     time.Duration `yaml:"cache_ttl" env:"TRAVEL_CACHE_TTL" env-default:"72h"`

	// http or haversine
	Router        string        `yaml:"router" env:"TRAVEL_ROUTER" env-default:"haversine"`
	RouterURL     string        `yaml:"router_url" env:"TRAVEL_ROUTER_URL"`
	RouterAPIKey  string        `yaml:"router_api_key" env:"TRAVEL_ROUTER_API_KEY"`
	RouterTimeout time.Duration `yaml:"router_timeout" env:"TRAVEL_ROUTER_TIMEOUT" env-default:"5s"`

	// Used by the haversine estimate.
	AverageSpeedKmh float64 `yaml:"average_speed_kmh" env:"TRAVEL_AVERAGE_SPEED_KMH" env-default:"25"`
}

type SchedulingConfig struct {
	SlotGranularity      time.Duration `yaml:"slot_granularity" env:"SLOT_GRANULARITY" env-default:"15m"`
	TravelBuffer         time.Duration `yaml:"travel_buffer" env:"TRAVEL_BUFFER" env-default:"15m"`
	SafetyMargin         time.Duration `yaml:"safety_margin" env:"TRAVEL_SAFETY_MARGIN" env-default:"0s"`
	WalkerConcurrency    int           `yaml:"walker_concurrency" env:"WALKER_CONCURRENCY" env-default:"4"`
	BookingLockTTL       time.Duration `yaml:"booking_lock_ttl" env:"BOOKING_LOCK_TTL" env-default:"10s"`
	SeriesLockTTL        time.Duration `yaml:"series_lock_ttl" env:"SERIES_LOCK_TTL" env-default:"10m"`
	MaxSeriesOccurrences int           `yaml:"max_series_occurrences" env:"MAX_SERIES_OCCURRENCES" env-default:"104"`
}

// Load reads an optional .env file, then the YAML file at CONFIG_PATH when
// set, then the environment.
func Load() (*Config, error) {
	const op = "config.Load"

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: read .env: %w", op, err)
	}

	var cfg Config
	var err error
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) validate() error {
	switch c.DB.Driver {
	case "postgres":
		if c.DB.Host == "" || c.DB.User == "" || c.DB.Name == "" {
			return errors.New("invalid DB config: host/user/name must not be empty")
		}
	case "sqlite":
		if c.DB.SQLitePath == "" {
			return errors.New("invalid DB config: sqlite_path must not be empty")
		}
	default:
		return fmt.Errorf("invalid DB config: unknown driver %q", c.DB.Driver)
	}

	switch c.Travel.CacheBackend {
	case "database", "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return errors.New("travel cache backend redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown travel cache backend %q", c.Travel.CacheBackend)
	}

	switch c.Travel.Router {
	case "haversine":
	case "http":
		if c.Travel.RouterURL == "" {
			return errors.New("travel router http requires TRAVEL_ROUTER_URL")
		}
	default:
		return fmt.Errorf("unknown travel router %q", c.Travel.Router)
	}

	if c.Scheduling.SlotGranularity <= 0 {
		return errors.New("slot granularity must be positive")
	}
	if c.Scheduling.WalkerConcurrency < 1 {
		return errors.New("walker concurrency must be at least 1")
	}
	if c.Scheduling.MaxSeriesOccurrences < 1 {
		return errors.New("max series occurrences must be at least 1")
	}
	return nil
}
