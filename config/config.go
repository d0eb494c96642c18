package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	JWT          JWTConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Ledger       LedgerConfig
	Interest     InterestConfig
	Cancellation CancellationConfig
	Log          LogConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RatePerMinute  int
	RateBurst      int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Driver          string // mysql | sqlite
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
	Issuer       string
}

// RedisConfig is optional; an empty Addr disables the balance cache,
// redis event fan-out and the sweep lock.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	BalanceTTL time.Duration
	Channel    string
}

// KafkaConfig is optional; no brokers means ledger events are not streamed.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type LedgerConfig struct {
	MaxRetries int
	Currency   string
}

type InterestConfig struct {
	DailyRate     string
	MinBalance    string
	SweepInterval time.Duration
}

type CancellationConfig struct {
	SweepInterval time.Duration
}

type LogConfig struct {
	Level  string
	Format string // json | console
}

// Load reads config.{yaml,json,toml} from the working directory or ./config
// when present, then applies FUNDHUB_* environment overrides
// (e.g. FUNDHUB_DATABASE_DSN).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("FUNDHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("server.port"),
			Env:            v.GetString("server.env"),
			ReadTimeout:    v.GetDuration("server.read_timeout"),
			WriteTimeout:   v.GetDuration("server.write_timeout"),
			RatePerMinute:  v.GetInt("server.rate_per_minute"),
			RateBurst:      v.GetInt("server.rate_burst"),
			AllowedOrigins: v.GetStringSlice("server.allowed_origins"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			DSN:             v.GetString("database.dsn"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		JWT: JWTConfig{
			AccessSecret: v.GetString("jwt.access_secret"),
			AccessExpiry: v.GetDuration("jwt.access_expiry"),
			Issuer:       v.GetString("jwt.issuer"),
		},
		Redis: RedisConfig{
			Addr:       v.GetString("redis.addr"),
			Password:   v.GetString("redis.password"),
			DB:         v.GetInt("redis.db"),
			BalanceTTL: v.GetDuration("redis.balance_ttl"),
			Channel:    v.GetString("redis.channel"),
		},
		Kafka: KafkaConfig{
			Brokers: v.GetStringSlice("kafka.brokers"),
			Topic:   v.GetString("kafka.topic"),
		},
		Ledger: LedgerConfig{
			MaxRetries: v.GetInt("ledger.max_retries"),
			Currency:   v.GetString("ledger.currency"),
		},
		Interest: InterestConfig{
			DailyRate:     v.GetString("interest.daily_rate"),
			MinBalance:    v.GetString("interest.min_balance"),
			SweepInterval: v.GetDuration("interest.sweep_interval"),
		},
		Cancellation: CancellationConfig{
			SweepInterval: v.GetDuration("cancellation.sweep_interval"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8099")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.rate_per_minute", 120)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.dsn", "fundhub:fundhub@tcp(localhost:3306)/fundhub?charset=utf8mb4&parseTime=True&loc=UTC")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("jwt.access_secret", "change-me-in-production")
	v.SetDefault("jwt.access_expiry", 15*time.Minute)
	v.SetDefault("jwt.issuer", "fundhub")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.balance_ttl", 5*time.Minute)
	v.SetDefault("redis.channel", "ledger_events")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "ledger.transactions")

	v.SetDefault("ledger.max_retries", 5)
	v.SetDefault("ledger.currency", "USD")

	v.SetDefault("interest.daily_rate", "0.0001")
	v.SetDefault("interest.min_balance", "100")
	v.SetDefault("interest.sweep_interval", 24*time.Hour)

	v.SetDefault("cancellation.sweep_interval", 5*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
