package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "ORGVERIFY_"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Auth     AuthConfig     `koanf:"auth"`
	Kafka    KafkaConfig    `koanf:"kafka"`
	RabbitMQ RabbitMQConfig `koanf:"rabbitmq"`
	Chat     ChatConfig     `koanf:"chat"`
	Log      LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Addr           string        `koanf:"addr"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
	AuthTimeout    time.Duration `koanf:"auth_timeout"` // 建连鉴权超时
}

type DatabaseConfig struct {
	Driver string `koanf:"driver"` // postgres, sqlite
	DSN    string `koanf:"dsn"`
}

// RedisConfig 关闭时在线状态和限流只在本实例内生效
type RedisConfig struct {
	Enabled     bool          `koanf:"enabled"`
	Addr        string        `koanf:"addr"`
	Password    string        `koanf:"password"`
	DB          int           `koanf:"db"`
	PoolSize    int           `koanf:"pool_size"`
	PresenceTTL time.Duration `koanf:"presence_ttl"`
}

type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
}

type KafkaConfig struct {
	Enabled       bool     `koanf:"enabled"`
	Brokers       []string `koanf:"brokers"`
	Username      string   `koanf:"username"`
	Password      string   `koanf:"password"`
	Mechanism     string   `koanf:"mechanism"` // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	UseTLS        bool     `koanf:"use_tls"`
	CertFile      string   `koanf:"cert_file"`
	KeyFile       string   `koanf:"key_file"`
	CAFile        string   `koanf:"ca_file"`
	EventsTopic   string   `koanf:"events_topic"`  // 本服务发布的领域事件
	InboundTopic  string   `koanf:"inbound_topic"` // 协作方推送的通知事件
	ConsumerGroup string   `koanf:"consumer_group"`
}

type RabbitMQConfig struct {
	Enabled       bool          `koanf:"enabled"`
	URL           string        `koanf:"url"`
	Exchange      string        `koanf:"exchange"`
	RetryAttempts int           `koanf:"retry_attempts"`
	RetryDelay    time.Duration `koanf:"retry_delay"`
}

type ChatConfig struct {
	MaxBodyLength   int           `koanf:"max_body_length"`
	SendBuffer      int           `koanf:"send_buffer"`
	RateLimit       int           `koanf:"rate_limit"`
	RateWindow      time.Duration `koanf:"rate_window"`
	RateStrategy    string        `koanf:"rate_strategy"` // fixed_window, token_bucket
	APIRateLimit    int           `koanf:"api_rate_limit"`
	APIRateWindow   time.Duration `koanf:"api_rate_window"`
	ConversationMax int           `koanf:"conversation_max"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

var defaults = map[string]interface{}{
	"server.addr":             ":8080",
	"server.allowed_origins":  []string{"http://localhost:5173"},
	"server.auth_timeout":     "5s",
	"database.driver":         "postgres",
	"redis.enabled":           true,
	"redis.addr":              "localhost:6379",
	"redis.db":                0,
	"redis.pool_size":         10,
	"redis.presence_ttl":      "90s",
	"kafka.mechanism":         "PLAIN",
	"kafka.events_topic":      "orgverify.chat.events",
	"kafka.inbound_topic":     "orgverify.notifications.inbound",
	"kafka.consumer_group":    "orgverify-notifier",
	"rabbitmq.exchange":       "orgverify.events",
	"rabbitmq.retry_attempts": 5,
	"rabbitmq.retry_delay":    "1s",
	"chat.max_body_length":    4000,
	"chat.send_buffer":        256,
	"chat.rate_limit":         20,
	"chat.rate_window":        "10s",
	"chat.rate_strategy":      "fixed_window",
	"chat.api_rate_limit":     120,
	"chat.api_rate_window":    "1m",
	"chat.conversation_max":   200,
	"log.level":               "info",
}

// LoadConfig layers defaults, the JSON file (if present) and ORGVERIFY_* env vars.
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if path == "" {
		path = "config/config.json"
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), json.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	// ORGVERIFY_SERVER_ADDR -> server.addr; only the first underscore is a separator
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.Replace(key, "_", ".", 1)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	return &cfg, nil
}

func Validate(cfg *Config) error {
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	switch cfg.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	if cfg.RabbitMQ.Enabled && cfg.RabbitMQ.URL == "" {
		return fmt.Errorf("rabbitmq.url is required when rabbitmq is enabled")
	}
	if cfg.Server.AuthTimeout <= 0 {
		return fmt.Errorf("server.auth_timeout must be positive")
	}
	return nil
}
