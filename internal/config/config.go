package config

import (
	"os"
	"strconv"
	"time"
)

// Chat tuning.
const (
	// TypingWindow is how long a typing flag stays up without new keystrokes.
	TypingWindow = 3 * time.Second
	// MessagePreviewLength bounds the room preview copied from a message body.
	MessagePreviewLength = 80
	// MessageWindowLimit is how many recent messages a room subscription streams.
	MessageWindowLimit = 50
	// SessionTokenTTL is the lifetime of an issued session token.
	SessionTokenTTL = 72 * time.Hour
	// ReplicationChannel is the Redis pub/sub channel the store bridge uses.
	ReplicationChannel = "brandlink:rt"
)

// Config is the environment-driven server configuration.
type Config struct {
	Addr        string
	DatabaseDSN string
	// RedisAddr empty disables cross-instance replication (single-node dev).
	RedisAddr  string
	RedisDB    int
	JWTSecret  string
	LocalesDir string
}

// Load reads the configuration from the environment, with development
// defaults matching docker-compose.
func Load() *Config {
	return &Config{
		Addr:        getenv("ADDR", ":8080"),
		DatabaseDSN: getenv("DATABASE_DSN", "host=localhost user=user password=password dbname=brandlinkdb port=5432 sslmode=disable"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		RedisDB:     getenvInt("REDIS_DB", 0),
		JWTSecret:   getenv("JWT_SECRET", "dev-only-secret"),
		LocalesDir:  os.Getenv("LOCALES_DIR"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
