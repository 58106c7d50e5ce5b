package utils

import "os"

// GetEnv returns the value of the environment variable key, or fallback when
// it is unset or empty.
func GetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
