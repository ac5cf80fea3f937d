// Package config loads the server configuration.
//
// Values are layered: struct defaults, then an optional YAML file named by
// CONFIG_FILE, then CARTSYNC_* environment variables. Nested keys use a double
// underscore, e.g. CARTSYNC_MONGO__URI sets mongo.uri. A .env file in the
// working directory is loaded into the environment first.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	EnvPrefix        = "CARTSYNC_"
	ConfigPathEnvVar = "CONFIG_FILE"
)

type Config struct {
	HTTP  HTTPConfig  `koanf:"http"`
	Mongo MongoConfig `koanf:"mongo"`
	Redis RedisConfig `koanf:"redis"`
	Kafka KafkaConfig `koanf:"kafka"`
	Log   LogConfig   `koanf:"log"`
	Cache CacheConfig `koanf:"cache"`
}

type HTTPConfig struct {
	Port               int           `koanf:"port" validate:"min=1,max=65535"`
	RequestTimeout     time.Duration `koanf:"request_timeout" validate:"gt=0"`
	ShutdownTimeout    time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	MaxRequestBodySize int64         `koanf:"max_request_body_size" validate:"gt=0"`
	// AllowedOrigins for the websocket upgrade; empty means same origin only.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type MongoConfig struct {
	URI            string        `koanf:"uri" validate:"required"`
	Database       string        `koanf:"database" validate:"required"`
	ConnectTimeout time.Duration `koanf:"connect_timeout" validate:"gt=0"`
}

type RedisConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Addr     string `koanf:"addr" validate:"required_if=Enabled true"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"gte=0"`
	// Channel carries realtime events between instances.
	Channel string `koanf:"channel" validate:"required_if=Enabled true"`
}

type KafkaConfig struct {
	Enabled bool     `koanf:"enabled"`
	Brokers []string `koanf:"brokers" validate:"required_if=Enabled true"`
	Topic   string   `koanf:"topic" validate:"required_if=Enabled true"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

type CacheConfig struct {
	ProductTTL time.Duration `koanf:"product_ttl" validate:"gt=0"`
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:               8080,
			RequestTimeout:     30 * time.Second,
			ShutdownTimeout:    10 * time.Second,
			MaxRequestBodySize: 1 << 20,
		},
		Mongo: MongoConfig{
			URI:            "mongodb://localhost:27017",
			Database:       "cartsync",
			ConnectTimeout: 10 * time.Second,
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Channel: "cartsync:events",
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "cart-finalized",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Cache: CacheConfig{
			ProductTTL: 15 * time.Minute,
		},
	}
}

// sliceConfigPaths arrive from the environment as comma-separated strings.
var sliceConfigPaths = []string{
	"http.allowed_origins",
	"kafka.brokers",
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	return validator.New(validator.WithRequiredStructEnabled()).Struct(c)
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTP.Port)
}

// envTransform maps CARTSYNC_MONGO__URI to mongo.uri.
func envTransform(key string) string {
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}

func splitSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := make([]string, 0)
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}
