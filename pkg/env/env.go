package env

import (
	"os"
	"strings"
)

// Get returns the named environment variable or the fallback when unset/blank.
func Get(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

// Bool reports whether the named variable is set to a truthy value.
func Bool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
