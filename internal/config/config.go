package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "CART"

const (
	PricerReference = "reference"
	PricerCatalog   = "catalog"
	PricerRemote    = "remote"
)

type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	GRPC     GRPCConfig     `mapstructure:"grpc"`
	Log      LogConfig      `mapstructure:"log"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Pricer   PricerConfig   `mapstructure:"pricer"`
	Sessions SessionsConfig `mapstructure:"sessions"`
	Currency string         `mapstructure:"currency"`
}

type HTTPConfig struct {
	Port               string        `mapstructure:"port"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	MaxRequestBodySize int64         `mapstructure:"max_request_body_size"`
	AllowedOrigins     []string      `mapstructure:"allowed_origins"`
}

type GRPCConfig struct {
	HealthPort string `mapstructure:"health_port"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// RedisConfig with an empty Addr disables cart snapshots.
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type SQLiteConfig struct {
	Path           string `mapstructure:"path"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type PricerConfig struct {
	Mode    string        `mapstructure:"mode"`
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SessionsConfig struct {
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	EvictInterval time.Duration `mapstructure:"evict_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", "8080")
	v.SetDefault("http.request_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.max_request_body_size", 1<<20) // 1MB
	v.SetDefault("http.allowed_origins", []string{"*"})
	v.SetDefault("grpc.health_port", "50051")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.snapshot_ttl", 15*time.Minute)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "food_cart")
	v.SetDefault("sqlite.path", "./catalog.db")
	v.SetDefault("sqlite.migrations_path", "./internal/repository/migrations")
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "cart-checkouts")
	v.SetDefault("pricer.mode", PricerReference)
	v.SetDefault("pricer.url", "")
	v.SetDefault("pricer.timeout", 2*time.Second)
	v.SetDefault("sessions.idle_timeout", 30*time.Minute)
	v.SetDefault("sessions.evict_interval", time.Minute)
	v.SetDefault("currency", "INR")
}

// Load reads dir/.env and dir/config.yaml when present, then applies
// CART_* environment variables on top, e.g. CART_HTTP_PORT.
func Load(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error while loading .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error while reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true) // CART_REDIS_ADDR= disables snapshots
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Pricer.Mode {
	case PricerReference, PricerCatalog:
	case PricerRemote:
		if c.Pricer.URL == "" {
			return errors.New("pricer.url is required for the remote pricer")
		}
	default:
		return fmt.Errorf("unknown pricer mode %q", c.Pricer.Mode)
	}

	if c.HTTP.Port == "" {
		return errors.New("http.port is required")
	}
	if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
		return errors.New("kafka brokers and topic are required")
	}
	if c.Sessions.EvictInterval <= 0 || c.Sessions.IdleTimeout <= 0 {
		return errors.New("session eviction interval and idle timeout must be positive")
	}
	return nil
}
