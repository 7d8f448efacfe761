package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port      string
	Env       string
	LogLevel  string
	Timezone  string
	JWTSecret string
	TokenTTL  time.Duration

	DatabaseURL string

	// Singleton admin account reconciled at startup.
	AdminEmail    string
	AdminPassword string

	RedisAddr         string
	RedisPassword     string
	RedisTLS          bool
	DirectoryCacheTTL time.Duration

	CORSAllowedOrigins []string
	AuthRateLimitRPS   float64
	AuthRateLimitBurst int

	// Appointment events (optional, SQS)
	AWSRegion                 string
	AWSAccessKeyID            string
	AWSSecretAccessKey        string
	AWSEndpointOverride       string
	AppointmentEventsQueueURL string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:      getEnv("PORT", "8080"),
		Env:       getEnv("ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		Timezone:  getEnv("TIMEZONE", "UTC"),
		JWTSecret: getEnv("JWT_SECRET", ""),
		TokenTTL:  getEnvAsDuration("TOKEN_TTL", 24*time.Hour),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		AdminEmail:    strings.ToLower(strings.TrimSpace(getEnv("ADMIN_EMAIL", ""))),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisTLS:          getEnvAsBool("REDIS_TLS", false),
		DirectoryCacheTTL: getEnvAsDuration("DIRECTORY_CACHE_TTL", 5*time.Minute),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		AuthRateLimitRPS:   getEnvAsFloat("AUTH_RATE_LIMIT_RPS", 5),
		AuthRateLimitBurst: getEnvAsInt("AUTH_RATE_LIMIT_BURST", 10),

		AWSRegion:                 getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:            getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:        getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride:       getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		AppointmentEventsQueueURL: getEnv("APPOINTMENT_EVENTS_QUEUE_URL", ""),
	}
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (c *Config) Location() *time.Location {
	if c == nil || c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
