package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	HTTPPort    string
	FrontendURI string
	DBPath      string
	UploadsDir  string
	JWTSecret   string
	LogLevel    string

	TURNEnabled bool
	TURNPort    int
	TURNRealm   string

	VAPIDKeys *VAPIDKeys
}

type VAPIDKeys struct {
	PublicKey  string
	PrivateKey string
	Subject    string
}

// Load builds the configuration from environment variables with sensible
// development defaults. JWT_SECRET has no default: refusing to boot beats
// silently signing tokens with a known key.
func Load() (*Config, error) {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	cfg := &Config{
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		FrontendURI: getEnv("FRONTEND_URI", ""),
		DBPath:      getEnv("DB_PATH", "bruinsplit.db"),
		UploadsDir:  getEnv("UPLOADS_DIR", "uploads"),
		JWTSecret:   jwtSecret,
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		TURNEnabled: getEnvBool("TURN_ENABLED", false),
		TURNPort:    getEnvInt("TURN_PORT", 3478),
		TURNRealm:   getEnv("TURN_REALM", "bruinsplit"),
	}

	// Web push is optional; without VAPID keys notifications are skipped.
	if pub := os.Getenv("VAPID_PUBLIC_KEY"); pub != "" {
		cfg.VAPIDKeys = &VAPIDKeys{
			PublicKey:  pub,
			PrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
			Subject:    getEnv("VAPID_SUBJECT", "mailto:admin@bruinsplit.app"),
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
