package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort            string
	AppMode            string
	DBHost             string
	DBUser             string
	DBPassword         string
	DBName             string
	DBPort             string
	JWTSecret          string
	RedisHost          string
	RedisPort          string
	RedisPassword      string
	TypingQuietWindow  time.Duration
	OfferSweepInterval time.Duration
	DefaultOfferTTL    time.Duration
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:            getEnv("APP_PORT", "8080"),
		AppMode:            getEnv("APP_MODE", "debug"),
		DBHost:             getEnv("DB_HOST", "localhost"),
		DBUser:             getEnv("DB_USER", "postgres"),
		DBPassword:         getEnv("DB_PASSWORD", "postgres"),
		DBName:             getEnv("DB_NAME", "bazaar_chat"),
		DBPort:             getEnv("DB_PORT", "5432"),
		JWTSecret:          getEnv("JWT_SECRET", "change-me"),
		RedisHost:          getEnv("REDIS_HOST", "localhost"),
		RedisPort:          getEnv("REDIS_PORT", "6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		TypingQuietWindow:  getEnvAsDuration("TYPING_QUIET_WINDOW_MS", 3000),
		OfferSweepInterval: getEnvAsDuration("OFFER_SWEEP_INTERVAL_MS", 30000),
		DefaultOfferTTL:    getEnvAsDuration("DEFAULT_OFFER_TTL_MS", 24*60*60*1000),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallbackMillis int) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(value) * time.Millisecond
	}
	return time.Duration(fallbackMillis) * time.Millisecond
}
