package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// LoadEnv loads environment variables from a .env file when present.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found, using system environment variables")
	}
}

// GetEnv gets an environment variable or returns a default value if not present.
func GetEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// GetEnvInt reads an integer environment variable, falling back on
// absence. A present but malformed value is returned as an error by the
// caller-facing resolver, so this reports parse success separately.
func GetEnvInt(key string, fallback int) (int, bool, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, false, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, true, err
	}
	return n, true, nil
}

// GetEnvDuration reads a duration environment variable ("90s", "5m").
func GetEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	return time.ParseDuration(value)
}

// GetEnvBool reads a boolean environment variable. Returns the fallback
// when unset, and whether the variable was explicitly set.
func GetEnvBool(key string, fallback bool) (bool, bool, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, true, err
	}
	return b, true, nil
}
