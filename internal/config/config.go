package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/kobofin/loan-engine/pkg/daycount"
)

// Config holds all configuration for the engine
type Config struct {
	Server    ServerConfig    `mapstructure:",squash"`
	Database  DatabaseConfig  `mapstructure:",squash"`
	Redis     RedisConfig     `mapstructure:",squash"`
	Scheduler SchedulerConfig `mapstructure:",squash"`
	Logging   LoggingConfig   `mapstructure:",squash"`
	Business  BusinessConfig  `mapstructure:",squash"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"SERVER_PORT"`
	Host         string        `mapstructure:"SERVER_HOST"`
	Env          string        `mapstructure:"ENV"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
}

type DatabaseConfig struct {
	URL          string        `mapstructure:"DATABASE_URL"`
	MaxOpenConns int           `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns int           `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnLifetime time.Duration `mapstructure:"DATABASE_CONN_LIFETIME"`
}

type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     string `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

type SchedulerConfig struct {
	CronSpec string `mapstructure:"SCHEDULER_CRON"`
	Timezone string `mapstructure:"SCHEDULER_TIMEZONE"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

type BusinessConfig struct {
	DayCountConvention  string        `mapstructure:"DAY_COUNT_CONVENTION"`
	WatchProvisionRate  string        `mapstructure:"WATCH_PROVISION_RATE"`
	SubstdProvisionRate string        `mapstructure:"SUBSTANDARD_PROVISION_RATE"`
	CurePeriods         int           `mapstructure:"CURE_PERIODS"`
	NetCollateral       bool          `mapstructure:"NET_COLLATERAL"`
	DefaultGracePolicy  string        `mapstructure:"DEFAULT_GRACE_POLICY"`
	LoanLockTTL         time.Duration `mapstructure:"LOAN_LOCK_TTL"`
	ReportCacheTTL      time.Duration `mapstructure:"REPORT_CACHE_TTL"`
}

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("SERVER_READ_TIMEOUT", "15s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "15s")
	viper.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DATABASE_CONN_LIFETIME", "30m")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("SCHEDULER_CRON", "0 0 1 * * *")
	viper.SetDefault("SCHEDULER_TIMEZONE", "Africa/Lagos")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("DAY_COUNT_CONVENTION", string(daycount.Actual365))
	viper.SetDefault("WATCH_PROVISION_RATE", "0.05")
	viper.SetDefault("SUBSTANDARD_PROVISION_RATE", "0.20")
	viper.SetDefault("CURE_PERIODS", 0)
	viper.SetDefault("NET_COLLATERAL", false)
	viper.SetDefault("DEFAULT_GRACE_POLICY", "interest_only")
	viper.SetDefault("LOAN_LOCK_TTL", "30s")
	viper.SetDefault("REPORT_CACHE_TTL", "10m")

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

	conv := daycount.Convention(c.Business.DayCountConvention)
	if conv != daycount.Actual365 && conv != daycount.Actual360 {
		return fmt.Errorf("DAY_COUNT_CONVENTION must be actual/365 or actual/360")
	}

	watch, err := decimal.NewFromString(c.Business.WatchProvisionRate)
	if err != nil {
		return fmt.Errorf("WATCH_PROVISION_RATE must be a valid decimal: %w", err)
	}
	if watch.LessThan(decimal.NewFromFloat(0.01)) || watch.GreaterThan(decimal.NewFromFloat(0.05)) {
		return fmt.Errorf("WATCH_PROVISION_RATE must be between 0.01 and 0.05")
	}

	substd, err := decimal.NewFromString(c.Business.SubstdProvisionRate)
	if err != nil {
		return fmt.Errorf("SUBSTANDARD_PROVISION_RATE must be a valid decimal: %w", err)
	}
	if substd.LessThan(decimal.NewFromFloat(0.10)) || substd.GreaterThan(decimal.NewFromFloat(0.25)) {
		return fmt.Errorf("SUBSTANDARD_PROVISION_RATE must be between 0.10 and 0.25")
	}

	if c.Business.CurePeriods < 0 {
		return fmt.Errorf("CURE_PERIODS cannot be negative")
	}

	if c.Business.LoanLockTTL <= 0 {
		return fmt.Errorf("LOAN_LOCK_TTL must be a positive duration")
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// DayCount returns the configured day-count convention
func (c *Config) DayCount() daycount.Convention {
	return daycount.Convention(c.Business.DayCountConvention)
}

// WatchRate returns the watch-class provision rate as decimal
func (c *Config) WatchRate() decimal.Decimal {
	rate, _ := decimal.NewFromString(c.Business.WatchProvisionRate)
	return rate
}

// SubstandardRate returns the substandard-class provision rate as decimal
func (c *Config) SubstandardRate() decimal.Decimal {
	rate, _ := decimal.NewFromString(c.Business.SubstdProvisionRate)
	return rate
}
