package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port        string
	Environment string
	MongoURI    string
	RedisURL    string
	JWTSecret   string

	// AppName scopes every session this instance creates
	AppName string

	// Session lifecycle
	SessionMaxAge time.Duration // inactivity cutoff before a session is marked inactive

	// Message delivery dedup window (at-least-once transport guard)
	MessageDedupWindow time.Duration
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "3001"),
		Environment: getEnv("ENVIRONMENT", "development"),
		MongoURI:    getEnv("MONGODB_URI", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		JWTSecret:   getEnv("JWT_SECRET", ""),

		AppName: getEnv("APP_NAME", "taskpilot"),

		SessionMaxAge:      time.Duration(getIntEnv("SESSION_MAX_AGE_HOURS", 24)) * time.Hour,
		MessageDedupWindow: time.Duration(getIntEnv("MESSAGE_DEDUP_WINDOW_SECONDS", 5)) * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
