package config

import (
	"os"

	"github.com/joho/godotenv"
)

// loadEnvFile loads .env and .env.local from the working directory.
// Variables already present in the environment are never overridden.
func loadEnvFile() error {
	var loaded bool
	var lastErr error
	for _, path := range []string{".env", ".env.local"} {
		if _, err := os.Stat(path); err != nil {
			lastErr = err
			continue
		}
		if err := godotenv.Load(path); err != nil {
			lastErr = err
			continue
		}
		loaded = true
	}
	if loaded {
		return nil
	}
	return lastErr
}
