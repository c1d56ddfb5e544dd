package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Payments PaymentsConfig `mapstructure:"payments"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Bank     BankConfig     `mapstructure:"bank"`
	AES      AESConfig      `mapstructure:"aes"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type AuthConfig struct {
	ReplayWindow      time.Duration `mapstructure:"replay_window"`
	MaxFailedAttempts int           `mapstructure:"max_failed_attempts"`
	LockoutDuration   time.Duration `mapstructure:"lockout_duration"`
	AdminToken        string        `mapstructure:"admin_token"`
	FormSessionSecret string        `mapstructure:"form_session_secret"`
	FormSessionTTL    time.Duration `mapstructure:"form_session_ttl"`
	RateLimitPerMin   int           `mapstructure:"rate_limit_per_min"`
}

type PaymentsConfig struct {
	DefaultExpiry time.Duration `mapstructure:"default_expiry"`
	MinExpiry     time.Duration `mapstructure:"min_expiry"`
	MaxExpiry     time.Duration `mapstructure:"max_expiry"`
	MinAmount     int64         `mapstructure:"min_amount"`
	MaxAmount     int64         `mapstructure:"max_amount"`
	FormBaseURL   string        `mapstructure:"form_base_url"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	SweepBatch    int           `mapstructure:"sweep_batch"`
}

type CacheConfig struct {
	NonTerminalTTL time.Duration `mapstructure:"non_terminal_ttl"`
	TerminalTTL    time.Duration `mapstructure:"terminal_ttl"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

type BankConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	BreakerThreshold uint32        `mapstructure:"breaker_threshold"`
	BreakerTimeout   time.Duration `mapstructure:"breaker_timeout"`
	BreakerInterval  time.Duration `mapstructure:"breaker_interval"`
}

type AESConfig struct {
	Key string `mapstructure:"key"` // 32-byte hex-encoded key for AES-256
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: HPG_ (Hosted Payment Gateway).
// Nested keys use underscore: HPG_DATABASE_HOST, HPG_AUTH_ADMIN_TOKEN, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "payment_gateway")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.replay_window", "10m")
	v.SetDefault("auth.max_failed_attempts", 5)
	v.SetDefault("auth.lockout_duration", "15m")
	v.SetDefault("auth.admin_token", "")
	v.SetDefault("auth.form_session_secret", "")
	v.SetDefault("auth.form_session_ttl", "15m")
	v.SetDefault("auth.rate_limit_per_min", 120)
	v.SetDefault("payments.default_expiry", "30m")
	v.SetDefault("payments.min_expiry", "5m")
	v.SetDefault("payments.max_expiry", "168h")
	v.SetDefault("payments.min_amount", 100)
	v.SetDefault("payments.max_amount", 100000000)
	v.SetDefault("payments.form_base_url", "http://localhost:8080")
	v.SetDefault("payments.sweep_interval", "1m")
	v.SetDefault("payments.sweep_batch", 100)
	v.SetDefault("cache.non_terminal_ttl", "30s")
	v.SetDefault("cache.terminal_ttl", "5m")
	v.SetDefault("cache.idempotency_ttl", "30m")
	v.SetDefault("bank.timeout", "10s")
	v.SetDefault("bank.breaker_threshold", 5)
	v.SetDefault("bank.breaker_timeout", "30s")
	v.SetDefault("bank.breaker_interval", "60s")
	v.SetDefault("aes.key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: HPG_DATABASE_HOST -> database.host
	v.SetEnvPrefix("HPG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required — env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
