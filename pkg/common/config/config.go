package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64
	RateLimitRPS   int
	RateLimitBurst int

	// Store
	StoreDriver string

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers       []string
	KafkaGroupID       string
	ReminderKafkaTopic string

	// LLM
	LLMAPIKey    string
	LLMBaseURL   string
	LLMModelName string
	LLMTimeout   time.Duration
	LLMRetries   int

	// Telex
	TelexAPIURL    string
	TelexBotToken  string
	TelexChannelID string
	TelexTimeout   time.Duration

	// Reminders
	RemindersEnabled    bool
	ReminderJobsFile    string
	ReminderLockEnabled bool
	ReminderLockTTL     time.Duration

	// Message log
	AuditRedact         bool
	AuditRedactionRules string
}

// Load reads configuration from the environment. A .env file in the working
// directory, when present, is applied first without overriding set variables.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerPort:     getEnv("SERVER_PORT", getEnv("PORT", "8000")),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 60*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 1024*1024)),
		RateLimitRPS:   getIntEnv("RATE_LIMIT_RPS", 0),
		RateLimitBurst: getIntEnv("RATE_LIMIT_BURST", 20),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", "postgres")),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "nurse"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "nurse123"),
		PostgresDB:       getEnv("POSTGRES_DB", "nurse_etr"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:       getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "nurse-etr-assistant"),
		ReminderKafkaTopic: getEnv("REMINDER_KAFKA_TOPIC", ""),

		LLMAPIKey:    getEnv("LLM_API_KEY", getEnv("GEMINI_API_KEY", "")),
		LLMBaseURL:   getEnv("LLM_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai"),
		LLMModelName: getEnv("LLM_MODEL_NAME", "gemini-2.5-flash"),
		LLMTimeout:   getDuration("LLM_TIMEOUT", 20*time.Second),
		LLMRetries:   getIntEnv("LLM_RETRIES", 2),

		TelexAPIURL:    getEnv("TELEX_API_URL", "https://api.telex.im"),
		TelexBotToken:  getEnv("TELEX_BOT_TOKEN", ""),
		TelexChannelID: getEnv("TELEX_CHANNEL_ID", ""),
		TelexTimeout:   getDuration("TELEX_TIMEOUT", 10*time.Second),

		RemindersEnabled:    getBoolEnv("REMINDERS_ENABLED", true),
		ReminderJobsFile:    getEnv("REMINDER_JOBS_FILE", ""),
		ReminderLockEnabled: getBoolEnv("REMINDER_LOCK_ENABLED", false),
		ReminderLockTTL:     getDuration("REMINDER_LOCK_TTL", 10*time.Minute),

		AuditRedact:         getBoolEnv("AUDIT_REDACT", true),
		AuditRedactionRules: getEnv("AUDIT_REDACTION_RULES", ""),
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
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
