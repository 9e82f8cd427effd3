package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Storage  StorageConfig
	Lockout  LockoutConfig
	Session  SessionConfig
	Consent  ConsentConfig
	Metrics  MetricsConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	TrustedProxies []string
	// RequestsPerMinute caps login-attempt API calls per client IP
	RequestsPerMinute int
}

type StorageConfig struct {
	Backend         string
	CleanupInterval time.Duration
	CleanupEnabled  bool
}

type LockoutConfig struct {
	MaxAttempts     int
	ResetWindow     time.Duration
	LockoutDuration time.Duration
	// FailureDelay and FailureJitter pad failed login-flow responses
	FailureDelay  time.Duration
	FailureJitter time.Duration
}

type SessionConfig struct {
	CookieName string
	HashKey    []byte
	BlockKey   []byte
	Secure     bool
	Domain     string
}

type ConsentConfig struct {
	// ApprovalTTL is how long a remembered consent decision stays valid. Zero never expires.
	ApprovalTTL time.Duration
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "amgate"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:              getEnv("PORT", "8080"),
			Env:               env,
			LogLevel:          getEnv("LOG_LEVEL", "info"),
			ReadTimeout:       getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:      getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			TrustedProxies:    getEnvAsList("TRUSTED_PROXIES"),
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 120),
		},
		Storage: StorageConfig{
			Backend:         strings.ToLower(getEnv("STORAGE_BACKEND", BackendPostgres)),
			CleanupInterval: getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
			CleanupEnabled:  getEnvAsBool("CLEANUP_ENABLED", true),
		},
		Lockout: LockoutConfig{
			MaxAttempts:     getEnvAsInt("LOCKOUT_MAX_ATTEMPTS", 10),
			ResetWindow:     getEnvAsDuration("LOCKOUT_RESET_WINDOW", 12*time.Hour),
			LockoutDuration: getEnvAsDuration("LOCKOUT_DURATION", 2*time.Hour),
			FailureDelay:    getEnvAsDuration("LOGIN_FAILURE_DELAY", 250*time.Millisecond),
			FailureJitter:   getEnvAsDuration("LOGIN_FAILURE_JITTER", 100*time.Millisecond),
		},
		Session: SessionConfig{
			CookieName: getEnv("SESSION_COOKIE_NAME", "amgate_session"),
			Secure:     getEnvAsBool("SESSION_COOKIE_SECURE", env == "production"),
			Domain:     getEnv("SESSION_COOKIE_DOMAIN", ""),
		},
		Consent: ConsentConfig{
			ApprovalTTL: getEnvAsDuration("CONSENT_APPROVAL_TTL", 30*24*time.Hour),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	switch cfg.Storage.Backend {
	case BackendPostgres:
		if cfg.Database.Password == "" {
			return nil, fmt.Errorf("DB_PASSWORD is required")
		}
	case BackendMemory:
	default:
		return nil, fmt.Errorf("STORAGE_BACKEND must be %q or %q (got %q)", BackendPostgres, BackendMemory, cfg.Storage.Backend)
	}

	if cfg.Lockout.MaxAttempts < 1 {
		return nil, fmt.Errorf("LOCKOUT_MAX_ATTEMPTS must be at least 1")
	}

	if cfg.Consent.ApprovalTTL < 0 {
		return nil, fmt.Errorf("CONSENT_APPROVAL_TTL must not be negative")
	}

	hashKey, err := getEnvAsKey("SESSION_HASH_KEY")
	if err != nil {
		return nil, err
	}
	blockKey, err := getEnvAsKey("SESSION_BLOCK_KEY")
	if err != nil {
		return nil, err
	}
	if err := validateSessionKey(hashKey, env); err != nil {
		return nil, err
	}
	cfg.Session.HashKey = hashKey
	cfg.Session.BlockKey = blockKey

	return cfg, nil
}

// validateSessionKey enforces minimum strength for the cookie signing key
func validateSessionKey(key []byte, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(key) < minLength {
		return fmt.Errorf("SESSION_HASH_KEY must be at least %d bytes in %s environment (got %d)",
			minLength, env, len(key))
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return []string{}
	}
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getEnvAsKey reads a base64 encoded key. Unset keys return nil.
func getEnvAsKey(key string) ([]byte, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return nil, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be base64 encoded: %w", key, err)
	}
	return decoded, nil
}
