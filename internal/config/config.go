// Package config provides configuration management for the Live Vibe backend.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Cache      CacheConfig
	RateLimit  RateLimitConfig
	Logging    LoggingConfig
	Supabase   SupabaseConfig
	Square     SquareConfig
	Kling      KlingConfig
	Commission CommissionConfig
	Nats       NatsConfig
	Metrics    MetricsConfig
	Scheduler  SchedulerConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           string
	Host           string
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	SSLMode        string
	MaxConnections int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	TTL     time.Duration
	PlanTTL time.Duration
}

// RateLimitConfig holds per-user API request limits (requests per second)
type RateLimitConfig struct {
	AnonymousRPS     int
	AuthenticatedRPS int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// SupabaseConfig holds Supabase project settings.
// JWTSecret verifies access tokens issued by Supabase Auth; ServiceKey is
// used for storage uploads on behalf of users.
type SupabaseConfig struct {
	URL                string
	AnonKey            string
	ServiceKey         string
	JWTSecret          string
	ProfilePhotoBucket string
	ArtPieceBucket     string
	AIStudioBucket     string
}

// SquareConfig holds Square payments configuration
type SquareConfig struct {
	Environment string // sandbox or production
	BaseURL     string
	AccessToken string
	LocationID  string
	APIVersion  string
	Currency    string
	Timeout     time.Duration
}

// KlingConfig holds Kling AI video generation configuration
type KlingConfig struct {
	BaseURL         string
	AccessKey       string
	SecretKey       string
	Timeout         time.Duration
	PollInterval    time.Duration
	MaxPollAttempts int
	// Requests per second shared by the API and worker processes
	RequestBudget  int
	ReservedBudget int
}

// CommissionConfig holds the platform commission used when a plan has no rate
type CommissionConfig struct {
	DefaultRate float64
}

// NatsConfig holds NATS connection settings. An empty URL disables publishing.
type NatsConfig struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// MetricsConfig holds the metrics endpoint configuration for the worker
type MetricsConfig struct {
	Listen string
}

// SchedulerConfig holds cron specs for periodic jobs
type SchedulerConfig struct {
	SubscriptionExpirySpec string
	StaleSubmissionSpec    string
}

const (
	squareSandboxURL    = "https://connect.squareupsandbox.com"
	squareProductionURL = "https://connect.squareup.com"
)

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	squareEnv := getEnv("SQUARE_ENVIRONMENT", "sandbox")

	config := &Config{
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			AllowedOrigins: getEnvAsList("SERVER_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "live_vibe"),
				User:           getEnv("POSTGRES_USER", "postgres"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				SSLMode:        getEnv("POSTGRES_SSLMODE", "disable"),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
		},
		Cache: CacheConfig{
			TTL:     getEnvAsDuration("CACHE_TTL", 20*time.Second),
			PlanTTL: getEnvAsDuration("CACHE_PLAN_TTL", 10*time.Minute),
		},
		RateLimit: RateLimitConfig{
			AnonymousRPS:     getEnvAsInt("RATE_LIMIT_ANONYMOUS_RPS", 5),
			AuthenticatedRPS: getEnvAsInt("RATE_LIMIT_AUTHENTICATED_RPS", 20),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Supabase: SupabaseConfig{
			URL:                strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
			AnonKey:            getEnv("SUPABASE_ANON_KEY", ""),
			ServiceKey:         getEnv("SUPABASE_SERVICE_KEY", ""),
			JWTSecret:          getEnv("SUPABASE_JWT_SECRET", ""),
			ProfilePhotoBucket: getEnv("SUPABASE_PROFILE_PHOTO_BUCKET", "profile-photos"),
			ArtPieceBucket:     getEnv("SUPABASE_ART_PIECE_BUCKET", "art-pieces"),
			AIStudioBucket:     getEnv("SUPABASE_AI_STUDIO_BUCKET", "ai-studio"),
		},
		Square: SquareConfig{
			Environment: squareEnv,
			BaseURL:     getEnv("SQUARE_BASE_URL", squareBaseURL(squareEnv)),
			AccessToken: getEnv("SQUARE_ACCESS_TOKEN", ""),
			LocationID:  getEnv("SQUARE_LOCATION_ID", ""),
			APIVersion:  getEnv("SQUARE_API_VERSION", "2023-10-18"),
			Currency:    getEnv("SQUARE_CURRENCY", "USD"),
			Timeout:     getEnvAsDuration("SQUARE_TIMEOUT", 30*time.Second),
		},
		Kling: KlingConfig{
			BaseURL:         getEnv("KLING_BASE_URL", "https://api.klingai.com"),
			AccessKey:       getEnv("KLING_ACCESS_KEY", ""),
			SecretKey:       getEnv("KLING_SECRET_KEY", ""),
			Timeout:         getEnvAsDuration("KLING_TIMEOUT", 30*time.Second),
			PollInterval:    getEnvAsDuration("KLING_POLL_INTERVAL", 10*time.Second),
			MaxPollAttempts: getEnvAsInt("KLING_MAX_POLL_ATTEMPTS", 30),
			RequestBudget:   getEnvAsInt("KLING_REQUEST_BUDGET", 10),
			ReservedBudget:  getEnvAsInt("KLING_RESERVED_BUDGET", 4),
		},
		Commission: CommissionConfig{
			DefaultRate: getEnvAsFloat("COMMISSION_DEFAULT_RATE", 0.10),
		},
		Nats: NatsConfig{
			URL:           getEnv("NATS_URL", ""),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "livevibe"),
			MaxReconnects: getEnvAsInt("NATS_MAX_RECONNECTS", 10),
			ReconnectWait: getEnvAsDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		},
		Metrics: MetricsConfig{
			Listen: getEnv("METRICS_LISTEN", ":2112"),
		},
		Scheduler: SchedulerConfig{
			SubscriptionExpirySpec: getEnv("SCHEDULER_SUBSCRIPTION_EXPIRY", "@hourly"),
			StaleSubmissionSpec:    getEnv("SCHEDULER_STALE_SUBMISSIONS", "@every 5m"),
		},
	}

	return config, nil
}

// Validate checks settings the server cannot start without
func (c *Config) Validate() error {
	if c.Supabase.JWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	if c.Commission.DefaultRate < 0 || c.Commission.DefaultRate >= 1 {
		return fmt.Errorf("COMMISSION_DEFAULT_RATE must be in [0, 1), got %v", c.Commission.DefaultRate)
	}
	if c.Kling.ReservedBudget > c.Kling.RequestBudget {
		return fmt.Errorf("KLING_RESERVED_BUDGET (%d) exceeds KLING_REQUEST_BUDGET (%d)",
			c.Kling.ReservedBudget, c.Kling.RequestBudget)
	}
	return nil
}

// PostgresURL returns the Postgres connection URL used by migrations
func (c PostgresConfig) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

func squareBaseURL(environment string) string {
	if environment == "production" {
		return squareProductionURL
	}
	return squareSandboxURL
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated variable, dropping empty entries
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
