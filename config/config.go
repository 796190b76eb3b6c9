package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	FDC       FDCConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	Environment    string        `mapstructure:"environment"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds persistence configuration
type DatabaseConfig struct {
	Type         string `mapstructure:"type"` // "sqlite" or "postgres"
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogLevel     string `mapstructure:"log_level"` // silent, error, warn, info
}

// FDCConfig holds FoodData Central import configuration.
// Empty id lists and datasets fall back to the importer's defaults.
type FDCConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	DataDir      string        `mapstructure:"data_dir"`
	Datasets     []string      `mapstructure:"datasets"`
	ExceptionIDs []int         `mapstructure:"exception_ids"`
	PreferredIDs []int         `mapstructure:"preferred_ids"`
	AdditiveIDs  []int         `mapstructure:"additive_ids"`
	BatchSize    int           `mapstructure:"batch_size"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
	FDC   int `mapstructure:"fdc"`    // requests per hour
}

// LogConfig holds logger configuration
type LogConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	return LoadWithFlags(nil)
}

// LoadWithFlags loads configuration like Load, letting command-line flags
// override the matching keys. Flag names use the config keys, e.g. "fdc.batch_size".
func LoadWithFlags(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/nutritrack/")

	// Environment variable settings
	v.SetEnvPrefix("NUTRITRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("error binding flags: %w", err)
		}
	}

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")

	// Database defaults
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "nutritrack.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.log_level", "warn")

	// FDC defaults
	v.SetDefault("fdc.base_url", "https://api.nal.usda.gov/fdc")
	v.SetDefault("fdc.data_dir", "./fdc_data")
	v.SetDefault("fdc.datasets", []string{})
	v.SetDefault("fdc.exception_ids", []int{})
	v.SetDefault("fdc.preferred_ids", []int{})
	v.SetDefault("fdc.additive_ids", []int{})
	v.SetDefault("fdc.batch_size", 0)
	v.SetDefault("fdc.cache_ttl", "24h")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 120)
	v.SetDefault("ratelimit.fdc", 1000)

	// Log defaults
	v.SetDefault("log.mode", "development")
	v.SetDefault("log.level", "info")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Database.Type != "sqlite" && config.Database.Type != "postgres" {
		return fmt.Errorf("database type must be 'sqlite' or 'postgres', got: %s", config.Database.Type)
	}

	if config.Database.DSN == "" {
		return fmt.Errorf("database DSN is required (set NUTRITRACK_DATABASE_DSN)")
	}

	switch config.Database.LogLevel {
	case "silent", "error", "warn", "info":
	default:
		return fmt.Errorf("database log level must be silent, error, warn or info, got: %s", config.Database.LogLevel)
	}

	if config.FDC.BatchSize < 0 {
		return fmt.Errorf("FDC batch size must not be negative, got: %d", config.FDC.BatchSize)
	}

	if config.RateLimit.PerIP < 0 || config.RateLimit.FDC < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}

	return nil
}
