// Package config loads process configuration from the environment. A .env file
// in the working directory is loaded first when present.
package config

import (
	"fmt"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// StoreDriver selects persistence: "postgres" or "memory".
	StoreDriver string `envconfig:"STORE_DRIVER" default:"postgres"`

	PostgresUser     string `envconfig:"POSTGRES_USER" default:"postgres"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD"`
	PGHost           string `envconfig:"PG_HOST" default:"localhost"`
	PGPort           string `envconfig:"PG_PORT" default:"5432"`
	PGDatabase       string `envconfig:"PG_DATABASE" default:"postgres"`
	PGMaxConns       int32  `envconfig:"PG_MAX_CONNS" default:"10"`

	// RedisAddr empty disables the activity publisher.
	RedisAddr         string `envconfig:"REDIS_ADDR"`
	RedisDB           int    `envconfig:"REDIS_DB" default:"0"`
	ActivityQueueName string `envconfig:"ACTIVITY_QUEUE_NAME" default:"olympics_activity"`
	ActivityBuffer    int    `envconfig:"ACTIVITY_BUFFER_SIZE" default:"1024"`

	TokenExpireTime string `envconfig:"TOKEN_EXPIRE_TIME" default:"72h"`
	JWTPrivateKey   string `envconfig:"JWT_PRIVATE_KEY_PATH"`
	JWTPublicKey    string `envconfig:"JWT_PUBLIC_KEY_PATH"`

	BootstrapAdminEmail    string `envconfig:"BOOTSTRAP_ADMIN_EMAIL"`
	BootstrapAdminPassword string `envconfig:"BOOTSTRAP_ADMIN_PASSWORD"`

	OutboxSize           int           `envconfig:"OUTBOX_SIZE" default:"1024"`
	ConnectionBufferSize int           `envconfig:"CONNECTION_BUFFER_SIZE" default:"64"`
	PingInterval         time.Duration `envconfig:"PING_INTERVAL" default:"30s"`
	WriteTimeout         time.Duration `envconfig:"WRITE_TIMEOUT" default:"5s"`
	IdleTimeout          time.Duration `envconfig:"IDLE_TIMEOUT" default:"2m"`
	LeaderboardSize      int           `envconfig:"LEADERBOARD_SIZE" default:"10"`
	AllowedOrigins       []string      `envconfig:"ALLOWED_ORIGINS" default:"*"`

	HistorianBatchSize int `envconfig:"HISTORIAN_BATCH_SIZE" default:"20"`
	HistorianFlushMS   int `envconfig:"HISTORIAN_FLUSH_MS" default:"500"`
}

// Load reads Config from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q: want postgres or memory", c.StoreDriver)
	}
	if c.OutboxSize <= 0 || c.ConnectionBufferSize <= 0 {
		return fmt.Errorf("OUTBOX_SIZE and CONNECTION_BUFFER_SIZE must be positive")
	}
	if c.IdleTimeout > 0 && c.IdleTimeout <= c.PingInterval {
		return fmt.Errorf("IDLE_TIMEOUT (%s) must exceed PING_INTERVAL (%s)", c.IdleTimeout, c.PingInterval)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return nil
}

// Logger builds the process logger at the configured level.
func (c *Config) Logger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}
	return logger
}

func (c *Config) HistorianFlushDelay() time.Duration {
	return time.Duration(c.HistorianFlushMS) * time.Millisecond
}
