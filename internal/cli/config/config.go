package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/cattools/cattools/internal/budget"
	"github.com/cattools/cattools/internal/categories"
	"github.com/cattools/cattools/internal/finder"
	"github.com/cattools/cattools/internal/store"
	"github.com/cattools/cattools/internal/tracing"
)

// EnvPrefix prefixes every environment override, e.g. CATTOOLS_SERVER_PORT
const EnvPrefix = "CATTOOLS"

// Budget backends
const (
	BudgetMemory = "memory"
	BudgetRedis  = "redis"
)

// Config represents the cattools configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Budget   BudgetConfig   `mapstructure:"budget"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// DatabaseConfig represents the wiki replica connection
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	URL             string        `mapstructure:"url"`
	Prefix          string        `mapstructure:"prefix"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LimitsConfig bounds category queries
type LimitsConfig struct {
	Default   int `mapstructure:"default"`
	Max       int `mapstructure:"max"`
	BatchSize int `mapstructure:"batch_size"`
}

// BudgetConfig selects where the expensive-call budget is kept
type BudgetConfig struct {
	Backend string        `mapstructure:"backend"`
	Limit   int           `mapstructure:"limit"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// RedisConfig represents the Redis connection used by the redis budget
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// LoggingConfig represents logger configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TracingConfig represents OpenTelemetry configuration
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Environment  string  `mapstructure:"environment"`
}

func setDefaults(v *viper.Viper) {
	db := store.DefaultConfig()
	v.SetDefault("database.driver", db.Driver)
	v.SetDefault("database.url", "")
	v.SetDefault("database.prefix", "")
	v.SetDefault("database.max_open_conns", db.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", db.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", db.ConnMaxLifetime)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("limits.default", categories.DefaultLimit)
	v.SetDefault("limits.max", categories.MaxLimit)
	v.SetDefault("limits.batch_size", finder.DefaultBatchSize)

	v.SetDefault("budget.backend", BudgetMemory)
	v.SetDefault("budget.limit", budget.DefaultLimit)
	v.SetDefault("budget.ttl", 5*time.Minute)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "cattools:expensive:")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	tc := tracing.DefaultConfig()
	v.SetDefault("tracing.enabled", tc.Enabled)
	v.SetDefault("tracing.otlp_endpoint", "")
	v.SetDefault("tracing.sample_rate", tc.SampleRate)
	v.SetDefault("tracing.environment", tc.Environment)
}

// Load loads the configuration from cattools.yml or cattools.yaml in the
// working directory, or from path when it is not empty. A .env file is
// loaded first; CATTOOLS_* variables override file values.
func Load(path string) (*Config, error) {
	// Missing .env is fine
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("cattools")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Database.URL == "" {
		config.Database.URL = os.Getenv("DATABASE_URL")
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if _, err := store.DialectFor(cfg.Database.Driver); err != nil {
		return fmt.Errorf("database.driver: %w", err)
	}
	if err := (store.Schema{Prefix: cfg.Database.Prefix}).Validate(); err != nil {
		return fmt.Errorf("database.prefix: %w", err)
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got: %d", cfg.Server.Port)
	}

	if cfg.Limits.Default < 1 {
		return fmt.Errorf("limits.default must be positive, got: %d", cfg.Limits.Default)
	}
	if cfg.Limits.Max < cfg.Limits.Default {
		return fmt.Errorf("limits.max (%d) must not be below limits.default (%d)", cfg.Limits.Max, cfg.Limits.Default)
	}
	if cfg.Limits.BatchSize < 1 {
		return fmt.Errorf("limits.batch_size must be positive, got: %d", cfg.Limits.BatchSize)
	}

	switch cfg.Budget.Backend {
	case BudgetMemory:
	case BudgetRedis:
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when budget.backend is %q", BudgetRedis)
		}
		if cfg.Budget.TTL < time.Second {
			return fmt.Errorf("budget.ttl must be at least one second, got: %s", cfg.Budget.TTL)
		}
	default:
		return fmt.Errorf("budget.backend must be %q or %q, got: %q", BudgetMemory, BudgetRedis, cfg.Budget.Backend)
	}

	switch cfg.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got: %s", cfg.Logging.Format)
	}

	if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing.sample_rate must be between 0 and 1, got: %v", cfg.Tracing.SampleRate)
	}
	return nil
}

// StoreConfig converts the database section for store.Open
func (c *Config) StoreConfig() store.Config {
	sc := store.DefaultConfig()
	sc.Driver = c.Database.Driver
	sc.DSN = c.Database.URL
	sc.Prefix = c.Database.Prefix
	sc.MaxOpenConns = c.Database.MaxOpenConns
	sc.MaxIdleConns = c.Database.MaxIdleConns
	sc.ConnMaxLifetime = c.Database.ConnMaxLifetime
	return sc
}

// CategoryLimits converts the limits section
func (c *Config) CategoryLimits() categories.Limits {
	return categories.Limits{Default: c.Limits.Default, Max: c.Limits.Max}
}

// TracingSetup converts the tracing section for tracing.Setup
func (c *Config) TracingSetup(version string) tracing.Config {
	tc := tracing.DefaultConfig()
	tc.ServiceVersion = version
	tc.Enabled = c.Tracing.Enabled
	tc.OTLPEndpoint = c.Tracing.OTLPEndpoint
	tc.SampleRate = c.Tracing.SampleRate
	tc.Environment = c.Tracing.Environment
	return tc
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
