package config

import (
	"os"
	"strings"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// GetEnv returns the value of an environment variable or a default value if not set.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvironment returns the current environment (development, staging, production).
// Defaults to development if not set.
func GetEnvironment() string {
	return strings.ToLower(GetEnv("PHARMAPSY_SERVER_ENVIRONMENT", EnvDevelopment))
}

// IsProductionLike reports whether env enforces production configuration rules.
func IsProductionLike(env string) bool {
	return env == EnvStaging || env == EnvProduction
}
