// Package procconfig loads AuraRouter's process configuration: the
// environment-variable settings that govern the running binary (data
// directory, Redis address, admin listen address, graceful shutdown
// timeout), as distinct from the domain configuration in auraconfig.yaml
// owned by the config package.
package procconfig

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every process-level setting AuraRouter's entry point needs.
type Config struct {
	Env                   string
	DomainConfigPath      string
	DataDir               string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	AdminAddr             string
	SessionsEnabled       bool
	AutoGist              bool
	CondensationThreshold float64
	GracefulTimeout       time.Duration
}

// Load reads an optional .env file, then environment variables, falling
// back to built-in defaults for anything unset.
func Load() *Config {
	_ = godotenv.Load()

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	defaultDataDir := filepath.Join(home, ".auracore", "aurarouter")

	return &Config{
		Env:                   getEnv("AURAROUTER_ENV", "development"),
		DomainConfigPath:      getEnv("AURACORE_ROUTER_CONFIG", ""),
		DataDir:               getEnv("AURAROUTER_DATA_DIR", defaultDataDir),
		RedisAddr:             getEnv("AURAROUTER_REDIS_ADDR", "localhost:6379"),
		RedisPassword:         getEnv("AURAROUTER_REDIS_PASSWORD", ""),
		RedisDB:               getEnvInt("AURAROUTER_REDIS_DB", 0),
		AdminAddr:             getEnv("AURAROUTER_ADMIN_ADDR", ""),
		SessionsEnabled:       getEnvBool("AURAROUTER_SESSIONS_ENABLED", true),
		AutoGist:              getEnvBool("AURAROUTER_AUTO_GIST", true),
		CondensationThreshold: getEnvFloat("AURAROUTER_CONDENSATION_THRESHOLD", 0.8),
		GracefulTimeout:       time.Duration(getEnvInt("AURAROUTER_GRACEFUL_TIMEOUT_SEC", 15)) * time.Second,
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
