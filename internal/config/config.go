// Package config handles loading and validation of application configuration
// from environment variables. Supports .env files via godotenv.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port        int
	Environment string // "development" | "staging" | "production"

	// Database
	DatabaseURL string

	// Object storage (Supabase Storage REST)
	StorageURL    string
	StorageKey    string
	StorageBucket string

	// Best-effort notification endpoint (edge function). Empty disables it.
	NotifyURL string
	NotifyKey string

	// Security
	JWTSecret         string
	AdminPasswordHash string // bcrypt hash; empty disables admin login
	AllowedOrigins    []string
	RateLimitRPM      int

	// Redis (rate limiting & latest-feed cache)
	RedisURL string

	// Claim auto-release
	ClaimTTLHours        int
	ReaperIntervalMinute int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		Environment: getEnv("ENVIRONMENT", "development"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		StorageURL:    getEnv("STORAGE_URL", ""),
		StorageKey:    getEnv("STORAGE_KEY", ""),
		StorageBucket: getEnv("STORAGE_BUCKET", "photos"),

		NotifyURL: getEnv("NOTIFY_URL", ""),
		NotifyKey: getEnv("NOTIFY_KEY", ""),

		JWTSecret:         getEnv("JWT_SECRET", "dev-secret-change-in-production"),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		AllowedOrigins:    strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000"), ","),
		RateLimitRPM:      getEnvInt("RATE_LIMIT_RPM", 60),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),

		ClaimTTLHours:        getEnvInt("CLAIM_TTL_HOURS", 48),
		ReaperIntervalMinute: getEnvInt("REAPER_INTERVAL_MINUTES", 15),
	}

	// Validate required fields in production
	if cfg.Environment == "production" {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required in production")
		}
		if cfg.StorageURL == "" {
			return nil, fmt.Errorf("STORAGE_URL is required in production")
		}
		if cfg.JWTSecret == "dev-secret-change-in-production" {
			return nil, fmt.Errorf("JWT_SECRET must be set in production")
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}
