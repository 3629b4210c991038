package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"macdlab/broker"
)

// AppConfig configures the long-running daemon.
type AppConfig struct {
	Server  ServerConfig
	Data    DataConfig
	Kafka   KafkaConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// RateLimit is requests per second per process; Burst is the bucket size.
	RateLimit float64
	Burst     int
	// MaxPoints caps inline price arrays in API requests.
	MaxPoints int
}

type DataConfig struct {
	Dir      string
	Encoding string
}

type KafkaConfig struct {
	Enabled    bool
	Brokers    []string
	Topic      string
	ClientID   string
	MaxRetries uint64
	RetryWait  time.Duration
}

func (k KafkaConfig) Broker() broker.KafkaConfig {
	return broker.KafkaConfig{
		Brokers:    k.Brokers,
		Topic:      k.Topic,
		ClientID:   k.ClientID,
		MaxRetries: k.MaxRetries,
		RetryWait:  k.RetryWait,
	}
}

type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig reads an optional .env, then the config file at path (skipped
// when empty), then MACDLAB_* environment variables.
func LoadConfig(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("macdlab")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid server.port %d", cfg.Server.Port)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8088)
	v.SetDefault("server.readTimeout", "30s")
	v.SetDefault("server.writeTimeout", "120s")
	v.SetDefault("server.rateLimit", 5.0)
	v.SetDefault("server.burst", 10)
	v.SetDefault("server.maxPoints", 20000)

	// Data defaults
	v.SetDefault("data.dir", "data")
	v.SetDefault("data.encoding", "")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "macd-target-weights")
	v.SetDefault("kafka.clientID", "macdlab")
	v.SetDefault("kafka.maxRetries", 3)
	v.SetDefault("kafka.retryWait", "200ms")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
