package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the signal bridge.
type Config struct {
	Port string

	// Database
	DBPath string

	// Auth
	JWTSecret string

	// Venue pacing: heuristic waits between dependent orders and between
	// accounts so the venue registers one order before the next arrives.
	OrderDelay   time.Duration
	AccountDelay time.Duration

	// Signed-request receive window tolerance (ms).
	RecvWindow int64

	// Optional YAML file of strategies imported at startup.
	StrategySeedPath string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:             getEnv("PORT", "8080"),
		DBPath:           getEnv("DB_PATH", "./data/signal-bridge.db"),
		JWTSecret:        getEnv("JWT_SECRET", "dev-secret"),
		OrderDelay:       time.Duration(getEnvInt("ORDER_DELAY_MS", 500)) * time.Millisecond,
		AccountDelay:     time.Duration(getEnvInt("ACCOUNT_DELAY_MS", 1000)) * time.Millisecond,
		RecvWindow:       int64(getEnvInt("RECV_WINDOW_MS", 5000)),
		StrategySeedPath: getEnv("STRATEGY_SEED_PATH", ""),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
