package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	CORSAllowedOrigins []string

	// Upstream CRM API (agents, meetings, chat, emails)
	CRMBaseURL string
	CRMTimeout time.Duration

	// Redis chat transcript store (optional; transcripts disabled when empty)
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Booking widget defaults
	DefaultTimezone string

	// Automation pacing
	SlotWaitAttempts     int
	SlotWaitInterval     time.Duration
	TypingMinDelay       time.Duration
	TypingMaxDelay       time.Duration
	AutomationClearDelay time.Duration

	TranscriptMaxMessages int64

	// Chat endpoint rate limiting, per client IP. Zero disables it.
	ChatRateLimit float64
	ChatRateBurst int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: splitAndTrim(getEnv("CORS_ALLOWED_ORIGINS", "")),

		CRMBaseURL: getEnv("CRM_BASE_URL", "http://localhost:3001"),
		CRMTimeout: getEnvAsDuration("CRM_TIMEOUT", 30*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		DefaultTimezone: getEnv("DEFAULT_TIMEZONE", "Asia/Kuala_Lumpur"),

		SlotWaitAttempts:     getEnvAsInt("SLOT_WAIT_ATTEMPTS", 10),
		SlotWaitInterval:     getEnvAsDuration("SLOT_WAIT_INTERVAL", 500*time.Millisecond),
		TypingMinDelay:       getEnvAsDuration("TYPING_MIN_DELAY", 40*time.Millisecond),
		TypingMaxDelay:       getEnvAsDuration("TYPING_MAX_DELAY", 120*time.Millisecond),
		AutomationClearDelay: getEnvAsDuration("AUTOMATION_CLEAR_DELAY", 4*time.Second),

		TranscriptMaxMessages: int64(getEnvAsInt("TRANSCRIPT_MAX_MESSAGES", 250)),

		ChatRateLimit: getEnvAsFloat("CHAT_RATE_LIMIT", 1),
		ChatRateBurst: getEnvAsInt("CHAT_RATE_BURST", 5),
	}
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

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
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

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
