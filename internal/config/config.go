package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application settings.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Email    EmailConfig
	Otp      OtpConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig contains PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig contains unified Redis connection settings.
// Supported modes: single, sentinel, cluster.
type RedisConfig struct {
	// Mode: "single", "sentinel" or "cluster". Defaults to "single".
	Mode string `mapstructure:"mode"`

	// Addrs: list of host:port addresses, used for all modes.
	// For 'single', the first address wins when non-empty.
	Addrs []string `mapstructure:"addrs"`

	// Addr: alternative single-mode address, used when Addrs is empty.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: Redis master name (sentinel mode only).
	MasterName string `mapstructure:"master_name"`

	// MaxRetries: reconnect attempts (-1 means unlimited). Default 0 (no retries).
	MaxRetries int `mapstructure:"max_retries"`

	// MinRetryBackoff / MaxRetryBackoff: retry intervals in milliseconds.
	MinRetryBackoff int `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"`
}

// EmailConfig contains outbound email settings (Resend).
type EmailConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ResendAPIKey string `mapstructure:"resend_api_key"`
	From         string `mapstructure:"from"`
}

// OtpConfig contains OTP lifecycle and abuse-control settings.
// Zero values fall back to the defaults below.
type OtpConfig struct {
	// CodeTTLSec: lifetime of an issued code. Default 300.
	CodeTTLSec int `mapstructure:"code_ttl_sec"`

	// CooldownSec: minimum spacing between issuances. Default 60.
	CooldownSec int `mapstructure:"cooldown_sec"`

	// RequestLimit: issuance requests allowed per window before the spam
	// lock engages. Default 2 (the third request locks).
	RequestLimit int `mapstructure:"request_limit"`

	// RequestWindowSec: fixed counting window for issuance requests and the
	// spam lock duration. Default 3600.
	RequestWindowSec int `mapstructure:"request_window_sec"`

	// AttemptLimit: failed verifications allowed before the hard lock
	// engages. Default 2 (the third failure locks).
	AttemptLimit int `mapstructure:"attempt_limit"`

	// LockDurationSec: hard lock duration after exceeding AttemptLimit.
	// Default 1800.
	LockDurationSec int `mapstructure:"lock_duration_sec"`
}

const (
	defaultCodeTTL         = 300 * time.Second
	defaultCooldown        = 60 * time.Second
	defaultRequestLimit    = 2
	defaultRequestWindow   = 3600 * time.Second
	defaultAttemptLimit    = 2
	defaultLockDuration    = 1800 * time.Second
	defaultServerPort      = "6001"
	defaultServerReadWrite = 15
)

// CodeTTL returns the OTP lifetime as a duration.
func (o *OtpConfig) CodeTTL() time.Duration {
	if o.CodeTTLSec <= 0 {
		return defaultCodeTTL
	}
	return time.Duration(o.CodeTTLSec) * time.Second
}

// Cooldown returns the issuance cooldown as a duration.
func (o *OtpConfig) Cooldown() time.Duration {
	if o.CooldownSec <= 0 {
		return defaultCooldown
	}
	return time.Duration(o.CooldownSec) * time.Second
}

// RequestWindow returns the fixed issuance-count window as a duration.
func (o *OtpConfig) RequestWindow() time.Duration {
	if o.RequestWindowSec <= 0 {
		return defaultRequestWindow
	}
	return time.Duration(o.RequestWindowSec) * time.Second
}

// LockDuration returns the hard-lock duration.
func (o *OtpConfig) LockDuration() time.Duration {
	if o.LockDurationSec <= 0 {
		return defaultLockDuration
	}
	return time.Duration(o.LockDurationSec) * time.Second
}

// Requests returns the issuance request limit.
func (o *OtpConfig) Requests() int {
	if o.RequestLimit <= 0 {
		return defaultRequestLimit
	}
	return o.RequestLimit
}

// Attempts returns the failed-verification limit.
func (o *OtpConfig) Attempts() int {
	if o.AttemptLimit <= 0 {
		return defaultAttemptLimit
	}
	return o.AttemptLimit
}

// PostgresConnectionString builds the PostgreSQL DSN.
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// Load reads configuration from an optional file and from environment variables.
// Environment variables always win over file values.
func Load(configPath string) (*Config, error) {
	vip := viper.New() // fresh instance, no global state

	vip.SetDefault("server.port", defaultServerPort)
	vip.SetDefault("server.readtimeout", defaultServerReadWrite)
	vip.SetDefault("server.writetimeout", defaultServerReadWrite)

	// Bind environment variables explicitly.
	vip.BindEnv("server.port", "SERVER_PORT")
	vip.BindEnv("server.readtimeout", "SERVER_READTIMEOUT")
	vip.BindEnv("server.writetimeout", "SERVER_WRITETIMEOUT")

	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	vip.BindEnv("email.enabled", "EMAIL_ENABLED")
	vip.BindEnv("email.resend_api_key", "RESEND_API_KEY")
	vip.BindEnv("email.from", "EMAIL_FROM")

	vip.BindEnv("otp.code_ttl_sec", "OTP_CODE_TTL_SEC")
	vip.BindEnv("otp.cooldown_sec", "OTP_COOLDOWN_SEC")
	vip.BindEnv("otp.request_limit", "OTP_REQUEST_LIMIT")
	vip.BindEnv("otp.request_window_sec", "OTP_REQUEST_WINDOW_SEC")
	vip.BindEnv("otp.attempt_limit", "OTP_ATTEMPT_LIMIT")
	vip.BindEnv("otp.lock_duration_sec", "OTP_LOCK_DURATION_SEC")

	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("Config file '%s' not found, using environment variables and defaults.", configPath)
			} else {
				log.Printf("Warning: failed to read config file '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Loaded configuration ---")
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Addr: %s", cfg.Redis.Addr)
		log.Printf("Email Enabled: %v", cfg.Email.Enabled)
	}

	return &cfg, nil
}
