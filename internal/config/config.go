package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries process-level settings resolved from the environment.
// REDIS_URL is optional: when empty the server runs single-process with no
// cross-node relay, no unread cache and no background queue.
type Config struct {
	Port           string
	Env            string
	DatabaseURL    string
	RedisURL       string
	JWTSecret      string
	AccessTokenTTL time.Duration

	// Realtime tuning
	FocusedRooms    bool
	InflightTimeout time.Duration
	PageSize        int
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getbool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Load reads configuration from the environment, applying defaults suitable
// for local development.
func Load() Config {
	return Config{
		Port:            getenv("APP_PORT", "8080"),
		Env:             getenv("APP_ENV", "dev"),
		DatabaseURL:     getenv("DB_URL", ""),
		RedisURL:        getenv("REDIS_URL", ""),
		JWTSecret:       getenv("JWT_SECRET", "dev-secret-change-me"),
		AccessTokenTTL:  time.Duration(getint("ACCESS_TOKEN_TTL_MINUTES", 60)) * time.Minute,
		FocusedRooms:    getbool("WS_FOCUSED_ROOMS", true),
		InflightTimeout: time.Duration(getint("WS_INFLIGHT_TIMEOUT_SECONDS", 5)) * time.Second,
		PageSize:        getint("MESSAGES_PAGE_SIZE", 50),
	}
}
