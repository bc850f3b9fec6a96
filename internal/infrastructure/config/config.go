package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Scheduler backends
const (
	SchedulerTimer = "timer"
	SchedulerAsynq = "asynq"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Sentry  SentryConfig  `mapstructure:"sentry"`
	Billing BillingConfig `mapstructure:"billing"`
	IAP     IAPConfig     `mapstructure:"iap"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port               int           `mapstructure:"port"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	PurchaseTimeout    time.Duration `mapstructure:"purchase_timeout"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	Password     string        `mapstructure:"password"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
}

// SentryConfig holds Sentry configuration
type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
	Release     string `mapstructure:"release"`
}

// BillingConfig holds billing client configuration
type BillingConfig struct {
	PackageName      string        `mapstructure:"package_name"`
	ServiceAction    string        `mapstructure:"service_action"`
	ServicePackage   string        `mapstructure:"service_package"`
	RequestCode      int           `mapstructure:"request_code"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	StaleRetryPolicy string        `mapstructure:"stale_retry_policy"`
	DecodeTimeout    time.Duration `mapstructure:"decode_timeout"`
	TestOrderPattern string        `mapstructure:"test_order_pattern"`
	MaxPurchasePages int           `mapstructure:"max_purchase_pages"`
	Scheduler        string        `mapstructure:"scheduler"`
}

// IAPConfig holds purchase verification configuration
type IAPConfig struct {
	// PublicKey is the base64 encoded RSA key of the application license
	PublicKey     string `mapstructure:"public_key"`
	GoogleKeyJSON string `mapstructure:"google_key_json"`
}

// SandboxConfig holds the emulated billing platform configuration
type SandboxConfig struct {
	BindDelay    time.Duration `mapstructure:"bind_delay"`
	ProductsFile string        `mapstructure:"products_file"`
}

// Load loads configuration from .env and environment variables
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	v.AddConfigPath("../..")

	if err := v.ReadInConfig(); err != nil {
		// .env file is optional for production (env vars are used)
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	// BILLING_PACKAGE_NAME -> billing.package_name
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 2*time.Minute)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.purchase_timeout", 90*time.Second)
	v.SetDefault("server.rate_limit_per_minute", 60)

	// Redis defaults
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 3)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("redis.pool_timeout", 4*time.Second)

	// Sentry defaults
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")
	v.SetDefault("sentry.release", "")

	// Billing defaults
	v.SetDefault("billing.package_name", "com.badlogic.gdx.pay.android.test")
	v.SetDefault("billing.service_action", "com.android.vending.billing.InAppBillingService.BIND")
	v.SetDefault("billing.service_package", "com.android.vending")
	v.SetDefault("billing.request_code", 1002)
	v.SetDefault("billing.retry_delay", 3*time.Second)
	v.SetDefault("billing.stale_retry_policy", "drop")
	v.SetDefault("billing.decode_timeout", 10*time.Second)
	v.SetDefault("billing.test_order_pattern", `^$|^transactionId\.android\.test`)
	v.SetDefault("billing.max_purchase_pages", 10)
	v.SetDefault("billing.scheduler", SchedulerTimer)

	// IAP defaults
	v.SetDefault("iap.public_key", "")
	v.SetDefault("iap.google_key_json", "")

	// Sandbox defaults
	v.SetDefault("sandbox.bind_delay", 50*time.Millisecond)
	v.SetDefault("sandbox.products_file", "")
}

func validate(cfg *Config) error {
	if cfg.Billing.PackageName == "" {
		return fmt.Errorf("BILLING_PACKAGE_NAME is required")
	}
	if cfg.Billing.RequestCode <= 0 {
		return fmt.Errorf("BILLING_REQUEST_CODE must be positive")
	}
	switch cfg.Billing.StaleRetryPolicy {
	case "drop", "attempt":
	default:
		return fmt.Errorf("BILLING_STALE_RETRY_POLICY must be 'drop' or 'attempt', got '%s'", cfg.Billing.StaleRetryPolicy)
	}
	if _, err := regexp.Compile(cfg.Billing.TestOrderPattern); err != nil {
		return fmt.Errorf("BILLING_TEST_ORDER_PATTERN is invalid: %w", err)
	}
	switch cfg.Billing.Scheduler {
	case SchedulerTimer:
	case SchedulerAsynq:
		if cfg.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required for the asynq scheduler")
		}
	default:
		return fmt.Errorf("BILLING_SCHEDULER must be '%s' or '%s', got '%s'", SchedulerTimer, SchedulerAsynq, cfg.Billing.Scheduler)
	}
	return nil
}
