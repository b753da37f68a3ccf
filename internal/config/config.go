// Package config provides application configuration management using environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Bot       BotConfig
	Database  DatabaseConfig
	Security  SecurityConfig
	Fanout    FanoutConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPPort string
	Host     string
	Env      string
}

// BotConfig holds the bot endpoint configuration used by the liveness client
type BotConfig struct {
	StatusURL      string
	FallbackURLs   []string
	StatusPath     string
	ControlPath    string
	Token          string
	StatusCacheTTL time.Duration
	NegativeTTL    time.Duration
	CooldownWindow time.Duration
	AttemptTimeout time.Duration
	LocalFallback  bool
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// SecurityConfig holds ingestion and read authorization configuration
type SecurityConfig struct {
	IngestSecrets  []string
	ReadSecrets    []string
	AuthBypass     bool
	AllowLocalhost bool
}

// FanoutConfig holds realtime fanout configuration
type FanoutConfig struct {
	Enabled    bool
	BufferSize int
}

// RateLimitConfig holds per-client ingestion rate limit configuration
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables
// It optionally loads from a .env file if it exists
func Load() (*Config, error) {
	// Try to load .env file (optional, ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}

	// Load Server Config
	cfg.Server = ServerConfig{
		HTTPPort: getEnv("HTTP_PORT", "8080"),
		Host:     getEnv("SERVER_HOST", "localhost"),
		Env:      getEnv("ENVIRONMENT", "development"),
	}

	// Load Bot Config
	statusTTL, _ := time.ParseDuration(getEnv("BOT_STATUS_CACHE_TTL", "15s"))
	negativeTTL, _ := time.ParseDuration(getEnv("BOT_STATUS_NEGATIVE_TTL", "5s"))
	cooldown, _ := time.ParseDuration(getEnv("BOT_ENDPOINT_COOLDOWN", "30s"))
	attemptTimeout, _ := time.ParseDuration(getEnv("BOT_ATTEMPT_TIMEOUT", "3s"))

	cfg.Bot = BotConfig{
		StatusURL:      getEnv("BOT_STATUS_URL", ""),
		FallbackURLs:   splitList(getEnv("BOT_FALLBACK_URLS", "")),
		StatusPath:     getEnv("BOT_STATUS_PATH", "/status"),
		ControlPath:    getEnv("BOT_CONTROL_PATH", "/control"),
		Token:          getEnv("BOT_API_TOKEN", ""),
		StatusCacheTTL: statusTTL,
		NegativeTTL:    negativeTTL,
		CooldownWindow: cooldown,
		AttemptTimeout: attemptTimeout,
		LocalFallback:  getEnvBool("BOT_LOCAL_FALLBACK", false),
	}

	// Load Database Config
	maxOpenConns, _ := strconv.Atoi(getEnv("DB_MAX_OPEN_CONNS", "25"))
	maxIdleConns, _ := strconv.Atoi(getEnv("DB_MAX_IDLE_CONNS", "5"))

	cfg.Database = DatabaseConfig{
		Host:         getEnv("DB_HOST", "localhost"),
		Port:         getEnv("DB_PORT", "5432"),
		User:         getEnv("DB_USER", "botbridge"),
		Password:     getEnv("DB_PASSWORD", ""),
		Name:         getEnv("DB_NAME", "botbridge_db"),
		SSLMode:      getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns: maxOpenConns,
		MaxIdleConns: maxIdleConns,
	}

	// Load Security Config
	cfg.Security = SecurityConfig{
		IngestSecrets:  splitList(getEnv("QUEUE_INGEST_SECRETS", "")),
		ReadSecrets:    splitList(getEnv("QUEUE_READ_SECRETS", "")),
		AuthBypass:     getEnvBool("AUTH_BYPASS", false),
		AllowLocalhost: getEnvBool("AUTH_ALLOW_LOCALHOST", false),
	}

	// Load Fanout Config
	bufferSize, _ := strconv.Atoi(getEnv("FANOUT_BUFFER_SIZE", "16"))
	cfg.Fanout = FanoutConfig{
		Enabled:    getEnvBool("FANOUT_ENABLED", true),
		BufferSize: bufferSize,
	}

	// Load Rate Limit Config
	rlRequests, _ := strconv.Atoi(getEnv("RATE_LIMIT_REQUESTS", "60"))
	rlWindow, _ := time.ParseDuration(getEnv("RATE_LIMIT_WINDOW", "1m"))
	cfg.RateLimit = RateLimitConfig{
		Requests: rlRequests,
		Window:   rlWindow,
	}

	// Load Logging Config
	cfg.Logging = LoggingConfig{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "json"),
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate Bot Config
	if c.Bot.StatusURL == "" && !c.Bot.LocalFallback {
		return fmt.Errorf("BOT_STATUS_URL is required unless BOT_LOCAL_FALLBACK is enabled")
	}
	if c.Bot.LocalFallback && c.IsProduction() {
		return fmt.Errorf("BOT_LOCAL_FALLBACK must not be enabled in production")
	}
	if c.Bot.StatusCacheTTL <= 0 {
		return fmt.Errorf("BOT_STATUS_CACHE_TTL must be positive")
	}
	if c.Bot.CooldownWindow <= 0 {
		return fmt.Errorf("BOT_ENDPOINT_COOLDOWN must be positive")
	}
	if c.Bot.AttemptTimeout <= 0 {
		return fmt.Errorf("BOT_ATTEMPT_TIMEOUT must be positive")
	}

	// Validate Database Config
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}

	// Validate Rate Limit Config
	if c.RateLimit.Requests <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be positive")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}

	// Validate Logging Config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}
	validLogFormats := map[string]bool{"json": true, "console": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}

	return nil
}

// IsProduction reports whether the server runs in the production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// getEnv retrieves an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvBool retrieves a boolean environment variable with a fallback default
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// splitList splits a comma-joined env value into trimmed non-empty entries
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
