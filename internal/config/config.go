package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"steadystream/internal/database"

	"github.com/joho/godotenv"
)

// Realtime backends
const (
	RealtimeMemory   = "memory"
	RealtimeRedis    = "redis"
	RealtimePostgres = "postgres"
)

// Config holds the service configuration loaded from the environment
type Config struct {
	Port     string
	GinMode  string
	Database *database.Config

	RedisURL      string
	RedisPassword string
	RedisDB       int

	JWTSecret       string
	RealtimeBackend string

	AnalyticsEnabled bool
	InvitesEnabled   bool

	SlowFeedThreshold   time.Duration
	ConnectionsCacheTTL time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads .env (if present) and the process environment
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	return &Config{
		Port:                getEnv("PORT", "8080"),
		GinMode:             getEnv("GIN_MODE", "debug"),
		Database:            database.LoadConfig(),
		RedisURL:            getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             redisDB,
		JWTSecret:           os.Getenv("JWT_SECRET"),
		RealtimeBackend:     strings.ToLower(getEnv("REALTIME_BACKEND", RealtimeMemory)),
		AnalyticsEnabled:    getBool("ANALYTICS_ENABLED", false),
		InvitesEnabled:      getBool("INVITES_ENABLED", false),
		SlowFeedThreshold:   getDuration("SLOW_FEED_THRESHOLD", 2*time.Second),
		ConnectionsCacheTTL: getDuration("CONNECTIONS_CACHE_TTL", 5*time.Minute),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "text"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}
