package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig encapsulates all runtime configuration knobs.
type AppConfig struct {
	App          AppSettings
	HTTP         HTTPSettings
	Auth         AuthSettings
	Log          LogSettings
	Database     DatabaseSettings
	Sefaz        SefazSettings
	Notification NotificationSettings
	BlobStorage  BlobStorageSettings
}

type AppSettings struct {
	Name        string
	Version     string
	Environment string
}

type HTTPSettings struct {
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	WriteTimeoutMassive time.Duration // extended timeout for long-running authority calls
	IdleTimeout         time.Duration
	ShutdownTimeout     time.Duration
}

type AuthSettings struct {
	Enabled     bool
	IssuerURI   string
	JWKSetURI   string
	ClockSkew   time.Duration
	BypassPaths []string
}

type LogSettings struct {
	Level string
}

type DatabaseSettings struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SefazSettings configures the transport against the municipal
// authority. Endpoints themselves are fixed per environment; only the
// transport knobs are tunable.
type SefazSettings struct {
	Timeout         time.Duration
	SchemaVersion   string
	MaxConnsPerHost int
	// Circuit breaker: the circuit opens after BreakerMaxFailures
	// consecutive failures or once the failure rate crosses
	// BreakerFailureRate, and probes again after BreakerCooldown.
	BreakerMaxFailures int
	BreakerFailureRate float64
	BreakerCooldown    time.Duration
}

// NotificationSettings configures the authorization e-mail dispatch.
// An empty Recipients list disables outbound mail entirely.
type NotificationSettings struct {
	MailBaseURL string
	MailAPIKey  string
	Recipients  []string
	Workers     int
	JobTimeout  time.Duration
}

// BlobStorageSettings points at the object store used for generated
// invoice PDFs. An empty BaseURL disables uploads; notifications then
// go out without an attachment link.
type BlobStorageSettings struct {
	BaseURL string
	APIKey  string
}

// Load resolves the application configuration from environment variables.
// It first attempts to load variables from a .env file if it exists.
// Environment variables set in the system take precedence over .env file values.
func Load() (AppConfig, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	// This allows the application to work both with .env files (local dev)
	// and environment variables (Docker, production)
	_ = godotenv.Load()

	cfg := AppConfig{
		App: AppSettings{
			Name:        getEnv("APP_NAME", "ms_nfse_core"),
			Version:     getEnv("APP_VERSION", "0.1.0"),
			Environment: getEnv("APP_ENV", "local"),
		},
		HTTP: HTTPSettings{
			Port:                getEnvAsInt("APP_PORT", 8080),
			ReadTimeout:         getEnvAsDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:        getEnvAsDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
			WriteTimeoutMassive: getEnvAsDuration("HTTP_WRITE_TIMEOUT_MASSIVE", 2*time.Minute),
			IdleTimeout:         getEnvAsDuration("HTTP_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:     getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Auth: AuthSettings{
			Enabled:     getEnvAsBool("AUTH_ENABLED", true),
			IssuerURI:   strings.TrimSpace(os.Getenv("JWT_ISSUER_URI")),
			JWKSetURI:   strings.TrimSpace(os.Getenv("JWT_JWK_SET_URI")),
			ClockSkew:   getEnvAsDuration("AUTH_CLOCK_SKEW", 2*time.Minute),
			BypassPaths: getEnvAsCSV("AUTH_BYPASS_PATHS", []string{"/health"}),
		},
		Log: LogSettings{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseSettings{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Database:        getEnv("DB_NAME", "ms_nfse_core"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Sefaz: SefazSettings{
			Timeout:            getEnvAsDuration("SEFAZ_TIMEOUT", 30*time.Second),
			SchemaVersion:      getEnv("SEFAZ_SCHEMA_VERSION", "1"),
			MaxConnsPerHost:    getEnvAsInt("SEFAZ_MAX_CONNS_PER_HOST", 10),
			BreakerMaxFailures: getEnvAsInt("SEFAZ_BREAKER_MAX_FAILURES", 10),
			BreakerFailureRate: getEnvAsFloat("SEFAZ_BREAKER_FAILURE_RATE", 0.5),
			BreakerCooldown:    getEnvAsDuration("SEFAZ_BREAKER_COOLDOWN", 30*time.Second),
		},
		Notification: NotificationSettings{
			MailBaseURL: strings.TrimSpace(os.Getenv("MAIL_API_BASE_URL")),
			MailAPIKey:  strings.TrimSpace(os.Getenv("MAIL_API_KEY")),
			Recipients:  getEnvAsCSV("NOTIFICATION_RECIPIENTS", nil),
			Workers:     getEnvAsInt("NOTIFICATION_WORKERS", 2),
			JobTimeout:  getEnvAsDuration("NOTIFICATION_JOB_TIMEOUT", 30*time.Second),
		},
		BlobStorage: BlobStorageSettings{
			BaseURL: strings.TrimSpace(os.Getenv("BLOB_STORAGE_BASE_URL")),
			APIKey:  strings.TrimSpace(os.Getenv("BLOB_STORAGE_API_KEY")),
		},
	}

	if cfg.Sefaz.Timeout <= 0 {
		return cfg, errors.New("invalid config: SEFAZ_TIMEOUT must be greater than 0")
	}
	if cfg.Sefaz.BreakerFailureRate <= 0 || cfg.Sefaz.BreakerFailureRate > 1 {
		return cfg, errors.New("invalid config: SEFAZ_BREAKER_FAILURE_RATE must be in (0, 1]")
	}
	if cfg.Notification.Workers <= 0 {
		return cfg, errors.New("invalid config: NOTIFICATION_WORKERS must be greater than 0")
	}
	if len(cfg.Notification.Recipients) > 0 && cfg.Notification.MailBaseURL == "" {
		return cfg, errors.New("invalid config: MAIL_API_BASE_URL is required when NOTIFICATION_RECIPIENTS is set")
	}

	if cfg.Auth.Enabled {
		if cfg.Auth.IssuerURI == "" {
			return cfg, errors.New("invalid config: JWT_ISSUER_URI is required when AUTH_ENABLED=true")
		}
		if cfg.Auth.JWKSetURI == "" {
			return cfg, errors.New("invalid config: JWT_JWK_SET_URI is required when AUTH_ENABLED=true")
		}
	}

	return cfg, nil
}

// Address returns the HTTP listen address in host:port form.
func (h HTTPSettings) Address() string {
	return fmt.Sprintf(":%d", h.Port)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsCSV(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return fallback
	}
	return values
}
