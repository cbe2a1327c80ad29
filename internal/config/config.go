package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DotEnvFile is read (when present) before environment variables are bound.
const DotEnvFile = ".env"

// Empty multi-select policies.
const (
	EmptySelectionAll  = "all"
	EmptySelectionNone = "none"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Data      DataConfig
	Database  DatabaseConfig
	CORS      CORSConfig
	Dashboard DashboardConfig
	RateLimit RateLimitConfig
	Metrics   MetricsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host     string
	Port     string
	Env      string
	LogLevel string
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// DataConfig describes where the listings table is loaded from.
type DataConfig struct {
	Source       string
	Table        string
	Sheet        string
	FetchTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL connection configuration, used when
// DATA_SOURCE is "postgres".
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int
}

// DSN builds a postgres:// connection string.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// DashboardConfig holds the view and widget settings.
type DashboardConfig struct {
	DefaultNeighbourhoods []string
	EmptySelection        string
	HistogramBuckets      int
	PropertyTypeOptions   int
}

// RateLimitConfig configures the token bucket in front of the API.
// An RPS of zero disables rate limiting.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

// Load reads configuration from .env (if present) and environment variables.
func Load() (*Config, error) {
	return LoadWithEnvFile(DotEnvFile)
}

// LoadWithEnvFile is Load with an explicit dotenv path.
// Variables already present in the environment win over the file.
func LoadWithEnvFile(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
		}
	}

	v := viper.New()

	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("DATA_SOURCE", "data/listings.csv")
	v.SetDefault("DATA_TABLE", "listings")
	v.SetDefault("DATA_SHEET", "")
	v.SetDefault("DATA_FETCH_TIMEOUT", "30s")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "staylens")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 1)
	v.SetDefault("DB_POOL_MAX", 4)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001")
	v.SetDefault("HISTOGRAM_BUCKETS", 50)
	v.SetDefault("PROPERTY_TYPE_OPTIONS", 15)
	v.SetDefault("DEFAULT_NEIGHBOURHOODS", "City of London")
	v.SetDefault("EMPTY_SELECTION", EmptySelectionAll)
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("METRICS_ENABLED", true)

	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host:     v.GetString("HOST"),
			Port:     v.GetString("PORT"),
			Env:      v.GetString("ENV"),
			LogLevel: strings.ToLower(v.GetString("LOG_LEVEL")),
		},
		Data: DataConfig{
			Source:       v.GetString("DATA_SOURCE"),
			Table:        v.GetString("DATA_TABLE"),
			Sheet:        v.GetString("DATA_SHEET"),
			FetchTimeout: v.GetDuration("DATA_FETCH_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		CORS: CORSConfig{
			Origins: parseList(v.GetString("CORS_ORIGINS")),
		},
		Dashboard: DashboardConfig{
			HistogramBuckets:      v.GetInt("HISTOGRAM_BUCKETS"),
			PropertyTypeOptions:   v.GetInt("PROPERTY_TYPE_OPTIONS"),
			DefaultNeighbourhoods: parseList(v.GetString("DEFAULT_NEIGHBOURHOODS")),
			EmptySelection:        strings.ToLower(v.GetString("EMPTY_SELECTION")),
		},
		RateLimit: RateLimitConfig{
			RPS:   v.GetFloat64("RATE_LIMIT_RPS"),
			Burst: v.GetInt("RATE_LIMIT_BURST"),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("METRICS_ENABLED"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a number between 1 and 65535")
	}
	if c.Server.Env == "" {
		return fmt.Errorf("ENV is required")
	}
	switch c.Server.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}

	if strings.TrimSpace(c.Data.Source) == "" {
		return fmt.Errorf("DATA_SOURCE is required")
	}
	if c.Data.FetchTimeout <= 0 {
		return fmt.Errorf("DATA_FETCH_TIMEOUT must be positive")
	}
	if c.usesDatabaseTable() && c.Data.Table == "" {
		return fmt.Errorf("DATA_TABLE is required for database sources")
	}

	// Connection settings only matter when listings come from DB_* settings
	if c.Data.Source == "postgres" {
		if c.Database.Host == "" {
			return fmt.Errorf("DB_HOST is required")
		}
		if c.Database.Port == "" {
			return fmt.Errorf("DB_PORT is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("DB_NAME is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("DB_USER is required")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
	}
	if c.Database.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if c.Database.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}

	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	if c.Dashboard.HistogramBuckets < 1 {
		return fmt.Errorf("HISTOGRAM_BUCKETS must be at least 1")
	}
	if c.Dashboard.PropertyTypeOptions < 1 {
		return fmt.Errorf("PROPERTY_TYPE_OPTIONS must be at least 1")
	}
	if c.Dashboard.EmptySelection != EmptySelectionAll && c.Dashboard.EmptySelection != EmptySelectionNone {
		return fmt.Errorf("EMPTY_SELECTION must be %q or %q", EmptySelectionAll, EmptySelectionNone)
	}

	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be non-negative")
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst < 1 {
		return fmt.Errorf("RATE_LIMIT_BURST must be at least 1 when rate limiting is enabled")
	}

	return nil
}

func (c *Config) usesDatabaseTable() bool {
	s := c.Data.Source
	return s == "postgres" ||
		strings.HasPrefix(s, "postgres://") ||
		strings.HasPrefix(s, "postgresql://") ||
		strings.HasPrefix(s, "sqlite://")
}

// parseList splits a comma-separated string into trimmed, non-empty values.
func parseList(raw string) []string {
	if raw == "" {
		return []string{}
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
