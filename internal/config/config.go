package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"salon-loyalty-api/internal/models"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Database  DatabaseConfig  `json:"database" yaml:"database"`
	Security  SecurityConfig  `json:"security" yaml:"security"`
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	Auth      AuthConfig      `json:"auth" yaml:"auth"`
	Loyalty   LoyaltyConfig   `json:"loyalty" yaml:"loyalty"`
	Redis     RedisConfig     `json:"redis" yaml:"redis"`
	Tracing   TracingConfig   `json:"tracing" yaml:"tracing"`
	Log       LogConfig       `json:"log" yaml:"log"`
	Features  FeaturesConfig  `json:"features" yaml:"features"`
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port      string `json:"port" yaml:"port"`
	Host      string `json:"host" yaml:"host"`
	EnableTLS bool   `json:"enable_tls" yaml:"enable_tls"`
	CertFile  string `json:"cert_file" yaml:"cert_file"`
	KeyFile   string `json:"key_file" yaml:"key_file"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Path string `json:"path" yaml:"path"`
}

// SecurityConfig holds security-related configuration.
type SecurityConfig struct {
	// Max request body size in bytes (default: 10MB)
	MaxRequestBodySize int64 `json:"max_request_body_size" yaml:"max_request_body_size"`
	// Allowed CORS origins (comma-separated)
	AllowedOrigins string `json:"allowed_origins" yaml:"allowed_origins"`
}

// Origins splits AllowedOrigins into a list.
func (s SecurityConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(s.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// RateLimitConfig holds rate limiting configuration for the login and
// check-in endpoints.
type RateLimitConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Rate    int  `json:"rate" yaml:"rate"`
	Window  int  `json:"window" yaml:"window"` // in seconds
}

// AuthConfig configures session tokens.
type AuthConfig struct {
	JWTSecret     string `json:"jwt_secret" yaml:"jwt_secret"`
	TokenTTLHours int    `json:"token_ttl_hours" yaml:"token_ttl_hours"`
	SecureCookies bool   `json:"secure_cookies" yaml:"secure_cookies"`
}

// TokenTTL returns the token lifetime.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLHours) * time.Hour
}

// LoyaltyConfig configures check-in codes and the defaults used when a
// business record is created.
type LoyaltyConfig struct {
	CodePrefix             string                  `json:"code_prefix" yaml:"code_prefix"`
	CodeWindowMinutes      int                     `json:"code_window_minutes" yaml:"code_window_minutes"`
	JanitorIntervalSeconds int                     `json:"janitor_interval_seconds" yaml:"janitor_interval_seconds"`
	DefaultSettings        models.BusinessSettings `json:"default_settings" yaml:"default_settings"`
}

// CodeWindow returns how long a generated code stays valid.
func (l LoyaltyConfig) CodeWindow() time.Duration {
	return time.Duration(l.CodeWindowMinutes) * time.Minute
}

// JanitorInterval returns how often expired codes are purged.
func (l LoyaltyConfig) JanitorInterval() time.Duration {
	return time.Duration(l.JanitorIntervalSeconds) * time.Second
}

// RedisConfig configures the optional Redis cache.
type RedisConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Endpoint    string `json:"endpoint" yaml:"endpoint"`
	ServiceName string `json:"service_name" yaml:"service_name"`
	Environment string `json:"environment" yaml:"environment"`
}

// LogConfig configures the zerolog logger.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json or console
}

// FeaturesConfig seeds the feature flag manager.
type FeaturesConfig struct {
	CodeCache  bool `json:"code_cache" yaml:"code_cache"`
	EventHooks bool `json:"event_hooks" yaml:"event_hooks"`
	QRImages   bool `json:"qr_images" yaml:"qr_images"`
}

// LoadConfig loads configuration from environment variables and/or config file.
// Environment variables take precedence over config file values.
func LoadConfig(configFile string) (*Config, error) {
	defaults := models.DefaultSettings()
	cfg := &Config{
		Server: ServerConfig{
			Port:      getEnv("SERVER_PORT", "8080"),
			Host:      getEnv("SERVER_HOST", ""),
			EnableTLS: getEnvBool("SERVER_ENABLE_TLS", false),
			CertFile:  getEnv("SERVER_CERT_FILE", ""),
			KeyFile:   getEnv("SERVER_KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./salon_loyalty.db"),
		},
		Security: SecurityConfig{
			MaxRequestBodySize: getEnvInt64("MAX_REQUEST_BODY_SIZE", 10<<20), // 10MB default
			AllowedOrigins:     getEnv("ALLOWED_ORIGINS", "*"),
		},
		RateLimit: RateLimitConfig{
			Enabled: getEnvBool("RATE_LIMIT_ENABLED", true),
			Rate:    getEnvInt("RATE_LIMIT_RATE", 100),
			Window:  getEnvInt("RATE_LIMIT_WINDOW", 60),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("JWT_SECRET", ""),
			TokenTTLHours: getEnvInt("JWT_TTL_HOURS", 7*24),
			SecureCookies: getEnvBool("SECURE_COOKIES", false),
		},
		Loyalty: LoyaltyConfig{
			CodePrefix:             getEnv("CODE_PREFIX", "FADESBRAIDS"),
			CodeWindowMinutes:      getEnvInt("CODE_WINDOW_MINUTES", 5),
			JanitorIntervalSeconds: getEnvInt("CODE_JANITOR_INTERVAL", 60),
			DefaultSettings:        defaults,
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvBool("TRACING_ENABLED", false),
			Endpoint:    getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
			ServiceName: getEnv("TRACING_SERVICE_NAME", "salon-loyalty-api"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Features: FeaturesConfig{
			CodeCache:  getEnvBool("FEATURE_CODE_CACHE", true),
			EventHooks: getEnvBool("FEATURE_EVENT_HOOKS", true),
			QRImages:   getEnvBool("FEATURE_QR_IMAGES", true),
		},
	}

	// Load from config file if provided
	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with environment variables (they take precedence)
	overrideFromEnv(cfg)

	return cfg, nil
}

// loadFromFile loads configuration from a YAML or JSON file, chosen by
// extension.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

// overrideFromEnv overrides configuration with environment variables.
func overrideFromEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = strings.ToLower(v) == "true" || v == "1"
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				*dst = i
			}
		}
	}

	setString("SERVER_PORT", &cfg.Server.Port)
	setString("SERVER_HOST", &cfg.Server.Host)
	setBool("SERVER_ENABLE_TLS", &cfg.Server.EnableTLS)
	setString("SERVER_CERT_FILE", &cfg.Server.CertFile)
	setString("SERVER_KEY_FILE", &cfg.Server.KeyFile)
	setString("DATABASE_PATH", &cfg.Database.Path)
	if maxBodySize := os.Getenv("MAX_REQUEST_BODY_SIZE"); maxBodySize != "" {
		if size, err := strconv.ParseInt(maxBodySize, 10, 64); err == nil {
			cfg.Security.MaxRequestBodySize = size
		}
	}
	setString("ALLOWED_ORIGINS", &cfg.Security.AllowedOrigins)
	setBool("RATE_LIMIT_ENABLED", &cfg.RateLimit.Enabled)
	setInt("RATE_LIMIT_RATE", &cfg.RateLimit.Rate)
	setInt("RATE_LIMIT_WINDOW", &cfg.RateLimit.Window)
	setString("JWT_SECRET", &cfg.Auth.JWTSecret)
	setInt("JWT_TTL_HOURS", &cfg.Auth.TokenTTLHours)
	setBool("SECURE_COOKIES", &cfg.Auth.SecureCookies)
	setString("CODE_PREFIX", &cfg.Loyalty.CodePrefix)
	setInt("CODE_WINDOW_MINUTES", &cfg.Loyalty.CodeWindowMinutes)
	setInt("CODE_JANITOR_INTERVAL", &cfg.Loyalty.JanitorIntervalSeconds)
	setBool("REDIS_ENABLED", &cfg.Redis.Enabled)
	setString("REDIS_ADDR", &cfg.Redis.Addr)
	setString("REDIS_PASSWORD", &cfg.Redis.Password)
	setInt("REDIS_DB", &cfg.Redis.DB)
	setBool("TRACING_ENABLED", &cfg.Tracing.Enabled)
	setString("JAEGER_ENDPOINT", &cfg.Tracing.Endpoint)
	setString("TRACING_SERVICE_NAME", &cfg.Tracing.ServiceName)
	setString("APP_ENV", &cfg.Tracing.Environment)
	setString("LOG_LEVEL", &cfg.Log.Level)
	setString("LOG_FORMAT", &cfg.Log.Format)
	setBool("FEATURE_CODE_CACHE", &cfg.Features.CodeCache)
	setBool("FEATURE_EVENT_HOOKS", &cfg.Features.EventHooks)
	setBool("FEATURE_QR_IMAGES", &cfg.Features.QRImages)
}

// getEnv gets an environment variable or returns the default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns the default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvInt64 gets an int64 environment variable or returns the default value.
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Server.EnableTLS && (c.Server.CertFile == "" || c.Server.KeyFile == "") {
		return fmt.Errorf("cert_file and key_file are required when TLS is enabled")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Rate <= 0 {
			return fmt.Errorf("rate limit rate must be positive")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("jwt secret must be at least 16 characters")
	}
	if c.Auth.TokenTTLHours <= 0 {
		return fmt.Errorf("token ttl must be positive")
	}
	if c.Loyalty.CodePrefix == "" {
		return fmt.Errorf("code prefix is required")
	}
	if c.Loyalty.CodeWindowMinutes <= 0 {
		return fmt.Errorf("code window must be positive")
	}
	if c.Loyalty.JanitorIntervalSeconds <= 0 {
		return fmt.Errorf("janitor interval must be positive")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required when redis is enabled")
	}
	return nil
}
