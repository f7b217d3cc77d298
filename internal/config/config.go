package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the fees engine
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Health    HealthConfig    `mapstructure:"health"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"SERVER_PORT"`
	Host         string        `mapstructure:"SERVER_HOST"`
	Env          string        `mapstructure:"ENV"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"DATABASE_URL"`
	MaxOpenConns    int           `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
}

type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     string `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

// GatewayConfig configures the payment gateway adapter. SaltKey is the
// shared secret the request checksum is derived from.
type GatewayConfig struct {
	BaseURL     string        `mapstructure:"GATEWAY_BASE_URL"`
	MerchantID  string        `mapstructure:"GATEWAY_MERCHANT_ID"`
	SaltKey     string        `mapstructure:"GATEWAY_SALT_KEY"`
	SaltIndex   string        `mapstructure:"GATEWAY_SALT_INDEX"`
	RedirectURL string        `mapstructure:"GATEWAY_REDIRECT_URL"`
	CallbackURL string        `mapstructure:"GATEWAY_CALLBACK_URL"`
	Timeout     time.Duration `mapstructure:"GATEWAY_TIMEOUT"`
}

type SchedulerConfig struct {
	Timezone        string        `mapstructure:"SCHEDULER_TIMEZONE"`
	StalePaymentAge time.Duration `mapstructure:"SCHEDULER_STALE_PAYMENT_AGE"`
	PollSpec        string        `mapstructure:"SCHEDULER_POLL_SPEC"`
	OverdueSpec     string        `mapstructure:"SCHEDULER_OVERDUE_SPEC"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

type HealthConfig struct {
	Timeout time.Duration `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("SERVER_READ_TIMEOUT", "15s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "30s")
	viper.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DATABASE_CONN_MAX_LIFETIME", "30m")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("GATEWAY_TIMEOUT", "30s")
	viper.SetDefault("SCHEDULER_TIMEZONE", "Asia/Kolkata")
	viper.SetDefault("SCHEDULER_STALE_PAYMENT_AGE", "15m")
	viper.SetDefault("SCHEDULER_POLL_SPEC", "0 */5 * * * *")
	viper.SetDefault("SCHEDULER_OVERDUE_SPEC", "0 0 0 * * *")
	viper.SetDefault("HEALTH_CHECK_TIMEOUT", "5s")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read from .env file (optional)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./deployments")

	// Don't fail if .env file doesn't exist
	_ = viper.ReadInConfig()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("GATEWAY_BASE_URL is required")
	}

	if c.Gateway.MerchantID == "" {
		return fmt.Errorf("GATEWAY_MERCHANT_ID is required")
	}

	if c.Gateway.SaltKey == "" {
		return fmt.Errorf("GATEWAY_SALT_KEY is required")
	}

	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be a positive duration")
	}

	if c.Scheduler.StalePaymentAge <= 0 {
		return fmt.Errorf("SCHEDULER_STALE_PAYMENT_AGE must be a positive duration")
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}
