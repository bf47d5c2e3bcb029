package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Approvals ApprovalsConfig `mapstructure:"approvals"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	Mode           string        `mapstructure:"mode"` // gin mode: debug, release, test
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration. An empty DSN falls back to a
// local SQLite file.
type DatabaseConfig struct {
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// ApprovalsConfig tunes the query layer and action engine.
type ApprovalsConfig struct {
	PageSize      int           `mapstructure:"page_size"`
	MaxBulk       int           `mapstructure:"max_bulk"`
	StatsCacheTTL time.Duration `mapstructure:"stats_cache_ttl"`
}

// RedisConfig enables the shared stats cache when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

// KafkaConfig enables decision event publishing when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// RateLimitConfig limits decision calls per user.
type RateLimitConfig struct {
	DecisionsPerMinute int `mapstructure:"decisions_per_minute"`
	Burst              int `mapstructure:"burst"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`      // json or console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr or a file path
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Load reads configs/.env (if present), then the optional YAML file at
// configPath, then environment variables. Later sources win.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173", "http://127.0.0.1:5173"})
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("approvals.page_size", 10)
	v.SetDefault("approvals.max_bulk", 100)
	v.SetDefault("approvals.stats_cache_ttl", 30*time.Second)

	v.SetDefault("redis.key", "approvals:stats")
	v.SetDefault("kafka.topic", "approval-decisions")

	v.SetDefault("rate_limit.decisions_per_minute", 120)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.max_size_mb", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age_days", 28)
}

// bindEnvVars keeps the variable names the deployment already uses.
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("server.mode", "GIN_MODE")
	_ = v.BindEnv("database.dsn", "DATABASE_URL")
	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	_ = v.BindEnv("logger.level", "LOG_LEVEL")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		if c.Server.Mode == "release" {
			return fmt.Errorf("auth.jwt_secret is required in release mode")
		}
		c.Auth.JWTSecret = "development_only_secret"
	}
	if c.Approvals.PageSize < 1 || c.Approvals.PageSize > 100 {
		return fmt.Errorf("approvals.page_size must be between 1 and 100")
	}
	if c.Approvals.MaxBulk < 1 {
		return fmt.Errorf("approvals.max_bulk must be positive")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required when kafka.brokers is set")
	}
	return nil
}
