// Package config provides environment-based configuration loading
// for all services in the repository.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

func init() {
	// Best-effort .env loading for local development; real deployments
	// set the environment directly.
	_ = godotenv.Load()
}

// Base holds configuration common to every service.
type Base struct {
	Port        int
	LogLevel    string
	DatabaseURL string
}

// Upstream holds the connection settings for the IoT platform API.
type Upstream struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	MaxRetries   int
	Timezone     string
	RegistryPath string
}

// Poller holds configuration for the polling service.
type Poller struct {
	Base
	Upstream
	PollInterval        time.Duration
	BaseLookbackMinutes int
	MaxLookbackMinutes  int
	MigrationsDir       string
}

// Exporter holds configuration for the daily CSV export job.
type Exporter struct {
	Upstream
	LogLevel      string
	ExportDir     string
	RetentionDays int
}

// API holds configuration for the read API service.
type API struct {
	Base
}

// LoadBase reads the common configuration from environment variables.
// DATABASE_URL is required; a missing value is a fatal configuration error.
func LoadBase(defaultPort int) (Base, error) {
	dsn := GetEnv("DATABASE_URL", "")
	if dsn == "" {
		return Base{}, fmt.Errorf("config: DATABASE_URL is not set")
	}
	return Base{
		Port:        GetEnvInt("PORT", defaultPort),
		LogLevel:    GetEnv("LOG_LEVEL", "info"),
		DatabaseURL: dsn,
	}, nil
}

// loadUpstream reads the IoT platform connection settings.
// API_KEY is required; a missing value is a fatal configuration error.
func loadUpstream() (Upstream, error) {
	key := GetEnv("API_KEY", "")
	if key == "" {
		return Upstream{}, fmt.Errorf("config: API_KEY is not set")
	}
	return Upstream{
		BaseURL:      GetEnv("API_BASE_URL", "https://apis.smartcity.hn/bildungscampus/iotplatform/digitalbeehive/v1"),
		APIKey:       key,
		Timeout:      GetEnvDuration("API_TIMEOUT", 15*time.Second),
		MaxRetries:   GetEnvInt("API_MAX_RETRIES", 3),
		Timezone:     GetEnv("TIMEZONE", "Europe/Berlin"),
		RegistryPath: GetEnv("REGISTRY_PATH", "config/registry.json"),
	}, nil
}

// LoadPoller returns the polling service configuration.
func LoadPoller() (Poller, error) {
	base, err := LoadBase(8080)
	if err != nil {
		return Poller{}, err
	}
	up, err := loadUpstream()
	if err != nil {
		return Poller{}, err
	}
	return Poller{
		Base:                base,
		Upstream:            up,
		PollInterval:        GetEnvDuration("POLL_INTERVAL", 5*time.Minute),
		BaseLookbackMinutes: GetEnvInt("BASE_LOOKBACK_MINUTES", 5),
		MaxLookbackMinutes:  GetEnvInt("MAX_LOOKBACK_MINUTES", 60),
		MigrationsDir:       GetEnv("MIGRATIONS_DIR", "migrations"),
	}, nil
}

// LoadExporter returns the CSV export job configuration.  The exporter
// talks only to the upstream API and the filesystem, so DATABASE_URL is
// not required.
func LoadExporter() (Exporter, error) {
	up, err := loadUpstream()
	if err != nil {
		return Exporter{}, err
	}
	return Exporter{
		Upstream:      up,
		LogLevel:      GetEnv("LOG_LEVEL", "info"),
		ExportDir:     GetEnv("EXPORT_DIR", "data"),
		RetentionDays: GetEnvInt("EXPORT_RETENTION_DAYS", 7),
	}, nil
}

// LoadAPI returns the read API service configuration.
func LoadAPI() (API, error) {
	base, err := LoadBase(8081)
	if err != nil {
		return API{}, err
	}
	return API{Base: base}, nil
}

// SlogLevel parses the configured log level string into an slog.Level.
func (b Base) SlogLevel() slog.Level {
	return ParseLevel(b.LogLevel)
}

// ParseLevel maps a level string to an slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Addr returns the listen address as ":PORT".
func (b Base) Addr() string {
	return fmt.Sprintf(":%d", b.Port)
}

// ---------------------------------------------------------------------------
// Env helpers
// ---------------------------------------------------------------------------

// GetEnv returns the value of the environment variable or fallback.
func GetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable or fallback.
func GetEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// GetEnvDuration returns the duration value of the environment variable or
// fallback.  The env value is parsed via time.ParseDuration (e.g. "30s", "5m").
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
