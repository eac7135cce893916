package env

import "os"

// Prefix matches the envconfig prefix used by pkg/config.
const Prefix = "THREADKART_"

// Get returns the value of the given environment variable or a fallback.
// The prefixed form of the name takes precedence over the bare one.
func Get(key, fallback string) string {
	if val := os.Getenv(Prefix + key); val != "" {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
