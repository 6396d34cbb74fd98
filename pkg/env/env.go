package env

import (
	"os"
	"strconv"
	"time"

	"github.com/drfintrack/fintrack-auth/pkg/debug"
)

// GetOrDefault returns the environment variable value or the default if not set
func GetOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	debug.Debug("%s not set, using default: %s", key, defaultValue)
	return defaultValue
}

// GetBool returns the environment variable as a boolean
// Returns false if the variable is not set or is not "true", "1", "yes", or "y" (case insensitive)
func GetBool(key string) bool {
	value := os.Getenv(key)
	switch value {
	case "true", "1", "yes", "y", "TRUE", "YES", "Y":
		return true
	default:
		return false
	}
}

// GetBoolOrDefault returns the environment variable as a boolean or the default value if not set
func GetBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return GetBool(key)
	}
	return defaultValue
}

// GetInt returns the environment variable as an int, or the default when
// unset or unparsable.
func GetInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		debug.Warning("Invalid integer for %s (%q), using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

// GetDuration parses a Go duration string ("30s", "15m") from the environment.
func GetDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		debug.Warning("Invalid duration for %s (%q), using default: %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}
