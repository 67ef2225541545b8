// Package config provides application configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store backends supported by the rate store.
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds the complete application configuration.
type Config struct {
	Stage      string `mapstructure:"stage"`
	Server     ServerConfig
	Log        LogConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Store      StoreConfig
	Provider   ProviderConfig
	Conversion ConversionConfig
	Auth       AuthConfig
	Worker     WorkerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port          int    `mapstructure:"port"`
	ServiceName   string `mapstructure:"service_name"`
	ServeSwagger  bool   `mapstructure:"serve_swagger"`
	ServeAsynqmon bool   `mapstructure:"serve_asynqmon"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	Name               string `mapstructure:"name"`
	SSLMode            string `mapstructure:"sslmode"`
	MaxOpenConns       int    `mapstructure:"max_open_conns"`
	MaxIdleConns       int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSec int    `mapstructure:"conn_max_lifetime_sec"`
	DSN                string
}

// RedisConfig holds connection settings for both Redis instances.
type RedisConfig struct {
	AsynqAddr string `mapstructure:"asynq_addr"` // Redis instance for the warm-up task queue.
	CacheAddr string `mapstructure:"cache_addr"` // Redis instance backing the rate store.
}

// StoreConfig holds rate store settings.
type StoreConfig struct {
	Backend          string `mapstructure:"backend"`
	Table            string `mapstructure:"table"`
	TTLHours         int    `mapstructure:"ttl_hours"`
	MemoryMaxItems   int64  `mapstructure:"memory_max_items"`
	SweepIntervalSec int    `mapstructure:"sweep_interval_sec"`
}

// ProviderConfig holds settings for the upstream rate provider.
type ProviderConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
}

// ConversionConfig holds request validation limits.
type ConversionConfig struct {
	Currencies string  `mapstructure:"currencies"`
	MinAmount  float64 `mapstructure:"min_amount"`
	MaxAmount  float64 `mapstructure:"max_amount"`
}

// AuthConfig holds Basic authentication settings for the conversion endpoints.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Realm   string `mapstructure:"realm"`
}

// WorkerConfig holds background worker and task queue settings.
type WorkerConfig struct {
	Concurrency      int `mapstructure:"concurrency"`
	MaxRetry         int `mapstructure:"max_retry"`
	TimeoutSec       int `mapstructure:"timeout_sec"`
	CheckIntervalSec int `mapstructure:"check_interval_sec"`
}

// CurrencyList returns the configured currency codes, upper-cased and de-duplicated.
func (c ConversionConfig) CurrencyList() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, code := range strings.Split(c.Currencies, ",") {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}

// IsProduction reports whether stage names a production environment.
func IsProduction(stage string) bool {
	switch strings.ToLower(strings.TrimSpace(stage)) {
	case "prod", "production":
		return true
	}
	return false
}

// LoadConfig reads configuration from config files, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		fmt.Printf("No .env file found or error loading it: %v\n", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./internal/config")

	v.SetEnvPrefix("RATESVC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// It's okay if no config file, we have defaults and env
		fmt.Printf("Config file not found: %v\n", err)
	}

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.applyFallbacks()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers defaults. Environment-specific values are only
// defaulted outside production so a production deploy must set them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("stage", "dev")
	stage := v.GetString("stage")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.service_name", "rate-service")
	v.SetDefault("server.serve_swagger", true)
	v.SetDefault("server.serve_asynqmon", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("database.host", "db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "ratesdb")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime_sec", 300)
	v.SetDefault("redis.asynq_addr", "redis_asynq:6380")
	v.SetDefault("redis.cache_addr", "redis_cache:6381")
	v.SetDefault("store.backend", BackendRedis)
	v.SetDefault("store.table", "currency-rates-"+stage)
	v.SetDefault("store.ttl_hours", 1)
	v.SetDefault("store.memory_max_items", 10000)
	v.SetDefault("store.sweep_interval_sec", 300)
	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.realm", "rate-service")
	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.max_retry", 3)
	v.SetDefault("worker.timeout_sec", 30)
	v.SetDefault("worker.check_interval_sec", 5)

	if IsProduction(stage) {
		return
	}
	v.SetDefault("provider.base_url", "https://api.exchangerate-api.com/v4/latest")
	v.SetDefault("provider.timeout_sec", 5)
	v.SetDefault("conversion.currencies", "USD,BRL,EUR,GBP,JPY")
	v.SetDefault("conversion.min_amount", 0.01)
	v.SetDefault("conversion.max_amount", 1_000_000_000)
}

func (c *Config) applyFallbacks() {
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetimeSec <= 0 {
		c.Database.ConnMaxLifetimeSec = 300
	}
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	c.Provider.BaseURL = strings.TrimSuffix(c.Provider.BaseURL, "/")

	c.Database.DSN = fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User, c.Database.Password,
		c.Database.Host, c.Database.Port,
		c.Database.Name, c.Database.SSLMode)
}

// Validate checks that all required configuration fields are set and valid.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be positive, got %d", c.Server.Port))
	}

	if c.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if c.Database.Port <= 0 {
		errs = append(errs, fmt.Errorf("database.port must be positive, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, fmt.Errorf("database.user is required"))
	}
	if c.Database.Name == "" {
		errs = append(errs, fmt.Errorf("database.name is required"))
	}

	switch c.Store.Backend {
	case BackendRedis:
		if c.Redis.CacheAddr == "" {
			errs = append(errs, fmt.Errorf("redis.cache_addr is required for the redis store (set RATESVC_REDIS_CACHE_ADDR)"))
		}
	case BackendPostgres:
		if c.Store.SweepIntervalSec <= 0 {
			errs = append(errs, fmt.Errorf("store.sweep_interval_sec must be positive, got %d", c.Store.SweepIntervalSec))
		}
	case BackendMemory:
		if c.Store.MemoryMaxItems <= 0 {
			errs = append(errs, fmt.Errorf("store.memory_max_items must be positive, got %d", c.Store.MemoryMaxItems))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend must be one of redis, postgres, memory, got %q", c.Store.Backend))
	}
	if c.Store.Table == "" {
		errs = append(errs, fmt.Errorf("store.table is required"))
	}
	if c.Store.TTLHours <= 0 {
		errs = append(errs, fmt.Errorf("store.ttl_hours must be positive, got %d", c.Store.TTLHours))
	}

	if c.Provider.BaseURL == "" {
		errs = append(errs, fmt.Errorf("provider.base_url is required (set RATESVC_PROVIDER_BASE_URL)"))
	}
	if c.Provider.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("provider.timeout_sec must be positive, got %d (set RATESVC_PROVIDER_TIMEOUT_SEC)", c.Provider.TimeoutSec))
	}

	if len(c.Conversion.CurrencyList()) == 0 {
		errs = append(errs, fmt.Errorf("conversion.currencies is required (set RATESVC_CONVERSION_CURRENCIES)"))
	}
	if c.Conversion.MinAmount <= 0 {
		errs = append(errs, fmt.Errorf("conversion.min_amount must be positive, got %v", c.Conversion.MinAmount))
	}
	if c.Conversion.MaxAmount < c.Conversion.MinAmount {
		errs = append(errs, fmt.Errorf("conversion.max_amount (%v) must not be below conversion.min_amount (%v)", c.Conversion.MaxAmount, c.Conversion.MinAmount))
	}

	if c.Redis.AsynqAddr == "" {
		errs = append(errs, fmt.Errorf("redis.asynq_addr is required (set RATESVC_REDIS_ASYNQ_ADDR)"))
	}
	if c.Worker.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("worker.concurrency must be positive, got %d", c.Worker.Concurrency))
	}
	if c.Worker.MaxRetry < 0 {
		errs = append(errs, fmt.Errorf("worker.max_retry must be non-negative, got %d", c.Worker.MaxRetry))
	}
	if c.Worker.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("worker.timeout_sec must be positive, got %d", c.Worker.TimeoutSec))
	}
	if c.Worker.CheckIntervalSec <= 0 {
		errs = append(errs, fmt.Errorf("worker.check_interval_sec must be positive, got %d", c.Worker.CheckIntervalSec))
	}

	return errors.Join(errs...)
}
