package app

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIURL string // Platform API base URL (default: http://localhost:8081)

	DatabaseFile string // Path to the SQLite session file (default: <user config dir>/examadmin/session.db)
	StoreKey     string // Optional: literal key material for sealing the session file
	StoreKeyPath string // Optional: key file for sealing the session file, created on first use (default: next to DatabaseFile)

	ListenPort           int           // Console gateway port (default: 8080)
	DevListenPort        int           // Dev identity server port (default: 8081)
	LoginRate            int           // Client-side login attempts per minute, 0 disables (default: 5)
	HTTPTimeout          time.Duration // Timeout for platform calls (default: 10s)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Dev server sweep interval (default: 1m)

	DevMode              bool     // Enables the devserver command (default: false)
	CORSOrigins          []string // Browser origins allowed to call the gateway (default: none)
	UnrestrictedSections []string // Sections that only need a signed-in operator (default: none)

	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: text)
}

// LoadConfig reads the configuration from the environment after loading an
// optional .env file from the working directory.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}

	cfg := Config{
		APIURL:               strings.TrimSuffix(getEnvOrDefault("EXAMADMIN_API_URL", "http://localhost:8081"), "/"),
		DatabaseFile:         getEnvOrDefault("EXAMADMIN_DATABASE_FILE", defaultDataPath("session.db")),
		StoreKey:             os.Getenv("EXAMADMIN_STORE_KEY"),
		StoreKeyPath:         os.Getenv("EXAMADMIN_STORE_KEY_PATH"),
		ListenPort:           getEnvIntOrDefault("EXAMADMIN_LISTEN_PORT", 8080),
		DevListenPort:        getEnvIntOrDefault("EXAMADMIN_DEV_LISTEN_PORT", 8081),
		LoginRate:            getEnvIntOrDefault("EXAMADMIN_LOGIN_RATE", 5),
		HTTPTimeout:          getEnvDurationOrDefault("EXAMADMIN_HTTP_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("EXAMADMIN_HOUSEKEEPING_INTERVAL", time.Minute),
		DevMode:              getEnvBoolOrDefault("EXAMADMIN_DEV_MODE", false),
		CORSOrigins:          getEnvListOrDefault("EXAMADMIN_CORS_ORIGINS", nil),
		UnrestrictedSections: getEnvListOrDefault("EXAMADMIN_UNRESTRICTED_SECTIONS", nil),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "text"),
	}

	if cfg.StoreKey == "" && cfg.StoreKeyPath == "" {
		cfg.StoreKeyPath = filepath.Join(filepath.Dir(cfg.DatabaseFile), "store.key")
	}

	return cfg, nil
}

// defaultDataPath places name under the user's config directory, or the
// working directory when there is none.
func defaultDataPath(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return name
	}
	return filepath.Join(dir, "examadmin", name)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}

// getEnvListOrDefault splits a comma-separated value, dropping blanks.
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
