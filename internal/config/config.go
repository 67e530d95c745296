// Package config loads application configuration. Values come from an
// optional .env file, an optional config.yaml and environment variables, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration values.
type Config struct {
	Env       string // application environment (dev, test, prod)
	Port      string // HTTP port to listen on
	DB        DBConfig
	JWTSecret string // HS256 signing secret
	Location  *time.Location
	LogLevel  string

	Outbox OutboxConfig

	RabbitURL       string // empty disables the admin notification publisher
	BookingConsumer bool   // also run the notification consumer in-process

	Cache     CacheConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
}

// DBConfig holds MySQL connection settings. LockWait bounds how long a
// reservation waits for another transaction's slot locks.
type DBConfig struct {
	User     string
	Pass     string
	Host     string
	Port     string
	Name     string
	LockWait time.Duration
}

// OutboxConfig sizes the post-commit worker pool.
type OutboxConfig struct {
	Workers     int
	Buffer      int
	TaskTimeout time.Duration
}

var required = []string{"app.port", "db.user", "db.host", "db.port", "db.name", "jwt.secret"}

// New returns a viper instance with every default registered and env
// binding enabled. A key such as db.lock_wait_timeout is read from
// DB_LOCK_WAIT_TIMEOUT.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("app.port", "")
	v.SetDefault("db.user", "")
	v.SetDefault("db.pass", "")
	v.SetDefault("db.host", "")
	v.SetDefault("db.port", "")
	v.SetDefault("db.name", "")
	v.SetDefault("db.lock_wait_timeout", 5)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("lounge.tz", "Asia/Kolkata")
	v.SetDefault("log.level", "info")
	v.SetDefault("outbox.workers", 4)
	v.SetDefault("outbox.buffer", 64)
	v.SetDefault("outbox.task_timeout", "10s")
	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("booking.consumer", false)

	cacheDefaults(v)
	rateLimitDefaults(v)
	redisDefaults(v)
	return v
}

// Load reads .env and config.yaml when present and builds a Config.
func Load() (Config, error) {
	_ = godotenv.Load()
	v := New()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	var missing []string
	for _, k := range required {
		if strings.TrimSpace(v.GetString(k)) == "" {
			missing = append(missing, strings.ToUpper(strings.ReplaceAll(k, ".", "_")))
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	loc, err := time.LoadLocation(v.GetString("lounge.tz"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid LOUNGE_TZ %q: %w", v.GetString("lounge.tz"), err)
	}
	lockWait := v.GetInt("db.lock_wait_timeout")
	if lockWait < 1 {
		lockWait = 1
	}
	outbox := OutboxConfig{
		Workers:     v.GetInt("outbox.workers"),
		Buffer:      v.GetInt("outbox.buffer"),
		TaskTimeout: v.GetDuration("outbox.task_timeout"),
	}
	if outbox.Workers < 1 {
		outbox.Workers = 1
	}
	if outbox.Buffer < 0 {
		outbox.Buffer = 0
	}
	if outbox.TaskTimeout <= 0 {
		outbox.TaskTimeout = 10 * time.Second
	}

	return Config{
		Env:  v.GetString("app.env"),
		Port: v.GetString("app.port"),
		DB: DBConfig{
			User:     v.GetString("db.user"),
			Pass:     v.GetString("db.pass"),
			Host:     v.GetString("db.host"),
			Port:     v.GetString("db.port"),
			Name:     v.GetString("db.name"),
			LockWait: time.Duration(lockWait) * time.Second,
		},
		JWTSecret:       v.GetString("jwt.secret"),
		Location:        loc,
		LogLevel:        v.GetString("log.level"),
		Outbox:          outbox,
		RabbitURL:       v.GetString("rabbitmq.url"),
		BookingConsumer: v.GetBool("booking.consumer"),
		Cache:           loadCache(v),
		RateLimit:       loadRateLimit(v),
		Redis:           loadRedis(v),
	}, nil
}
