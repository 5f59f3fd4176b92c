package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"whalewatch/pkg/errors"
)

type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Telegram      TelegramConfig
	ErrorTracking ErrorTrackingConfig
	Tracker       TrackerConfig
	Aggregator    AggregatorConfig
	PriceFeed     PriceFeedConfig
	API           APIConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"whalewatch"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type PostgresConfig struct {
	Enabled  bool   `envconfig:"POSTGRES_ENABLED" default:"true"`
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"whalewatch"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	Database string `envconfig:"POSTGRES_DB" default:"whalewatch"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Enabled bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
}

type TelegramConfig struct {
	Enabled          bool    `envconfig:"TELEGRAM_ENABLED" default:"false"`
	BotToken         string  `envconfig:"TELEGRAM_BOT_TOKEN"`
	ChatID           int64   `envconfig:"TELEGRAM_CHAT_ID"`
	AlertNotionalUSD float64 `envconfig:"TELEGRAM_ALERT_NOTIONAL_USD" default:"5000000"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// TrackerConfig contains tunables for the whale-order lifecycle pipeline.
// The defaults mirror production behavior: each exchange polls on its own
// jittered interval so request bursts stay decorrelated.
type TrackerConfig struct {
	PollInterval     time.Duration `envconfig:"TRACKER_POLL_INTERVAL" default:"20s"`
	PollJitter       time.Duration `envconfig:"TRACKER_POLL_JITTER" default:"7s"`
	FillInterval     time.Duration `envconfig:"TRACKER_FILL_INTERVAL" default:"10s"`
	ReapInterval     time.Duration `envconfig:"TRACKER_REAP_INTERVAL" default:"1h"`
	GracePeriod      time.Duration `envconfig:"TRACKER_GRACE_PERIOD" default:"60s"`
	Retention        time.Duration `envconfig:"TRACKER_RETENTION" default:"168h"`
	BreakerThreshold int           `envconfig:"TRACKER_BREAKER_THRESHOLD" default:"3"`
	BreakerCooldown  time.Duration `envconfig:"TRACKER_BREAKER_COOLDOWN" default:"2m"`
}

// AggregatorConfig tunes snapshot building. The whale notional floors are
// per exchange and live with the adapter registry, not here.
type AggregatorConfig struct {
	Interval   time.Duration `envconfig:"AGGREGATOR_INTERVAL" default:"15s"`
	BucketSize float64       `envconfig:"AGGREGATOR_BUCKET_SIZE" default:"100"`
}

type PriceFeedConfig struct {
	Interval      time.Duration `envconfig:"PRICEFEED_INTERVAL" default:"5s"`
	FallbackPrice float64       `envconfig:"PRICEFEED_FALLBACK_PRICE" default:"90000"`
}

type APIConfig struct {
	Addr string `envconfig:"API_ADDR" default:":8080"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
