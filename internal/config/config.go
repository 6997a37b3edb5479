package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the installment engine
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Business  BusinessConfig  `mapstructure:"business"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port           string        `mapstructure:"SERVER_PORT"`
	Host           string        `mapstructure:"SERVER_HOST"`
	Env            string        `mapstructure:"ENV"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"DATABASE_URL"`
	MaxOpenConns    int           `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
	MigrationsPath  string        `mapstructure:"DATABASE_MIGRATIONS_PATH"`
}

type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     string `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

type BusinessConfig struct {
	MinDepositPercent       int `mapstructure:"MIN_DEPOSIT_PERCENT"`
	RescheduleLimit         int `mapstructure:"RESCHEDULE_LIMIT"`
	RescheduleMinNoticeDays int `mapstructure:"RESCHEDULE_MIN_NOTICE_DAYS"`
	DueSoonDays             int `mapstructure:"DUE_SOON_DAYS"`
}

type SyncConfig struct {
	RefreshInterval time.Duration `mapstructure:"REFRESH_INTERVAL"`
	SnapshotTTL     time.Duration `mapstructure:"SNAPSHOT_TTL"`
	ReminderTTL     time.Duration `mapstructure:"REMINDER_TTL"`
}

type SchedulerConfig struct {
	Timezone     string `mapstructure:"SCHEDULER_TIMEZONE"`
	OverdueSpec  string `mapstructure:"SCHEDULER_OVERDUE_SPEC"`
	ReminderSpec string `mapstructure:"SCHEDULER_REMINDER_SPEC"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("REQUEST_TIMEOUT", "20s")
	viper.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DATABASE_CONN_MAX_LIFETIME", "5m")
	viper.SetDefault("DATABASE_MIGRATIONS_PATH", "migrations")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("MIN_DEPOSIT_PERCENT", 10)
	viper.SetDefault("RESCHEDULE_LIMIT", 2)
	viper.SetDefault("RESCHEDULE_MIN_NOTICE_DAYS", 3)
	viper.SetDefault("DUE_SOON_DAYS", 3)
	viper.SetDefault("REFRESH_INTERVAL", "30s")
	viper.SetDefault("SNAPSHOT_TTL", "5m")
	viper.SetDefault("REMINDER_TTL", "24h")
	viper.SetDefault("SCHEDULER_TIMEZONE", "Africa/Nairobi")
	viper.SetDefault("SCHEDULER_OVERDUE_SPEC", "0 0 0 * * *")
	viper.SetDefault("SCHEDULER_REMINDER_SPEC", "0 0 9 * * *")

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

	if c.Business.RescheduleLimit < 0 {
		return fmt.Errorf("RESCHEDULE_LIMIT cannot be negative")
	}

	if c.Business.RescheduleMinNoticeDays < 0 {
		return fmt.Errorf("RESCHEDULE_MIN_NOTICE_DAYS cannot be negative")
	}

	if c.Sync.RefreshInterval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL must be greater than zero")
	}

	if c.Sync.ReminderTTL <= 0 {
		return fmt.Errorf("REMINDER_TTL must be greater than zero")
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
