// Package config provides centralized default values for GramSender
package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var envLoaded sync.Once

// loadEnvFile loads environment variables from .env file
func loadEnvFile() {
	envLoaded.Do(func() {
		// .env file is optional, don't error if it doesn't exist
		if err := godotenv.Load(); err != nil {
			return
		}
	})
}

// getEnvInt reads environment variable with fallback to default
func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseBool(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%t (default: %t)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseFloat(valStr, 64); err == nil {
			return val
		}
	}
	return defaultValue
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration

	// Data directories
	HomeDir     string
	SessionsDir string
	LeadsDir    string
	LogDir      string

	// Database
	DBDriver           string
	DBPath             string
	LibSQLURL          string
	SlowQueryThreshold time.Duration

	// Platform client
	PlatformBaseURL       string
	PlatformRequestTimeout time.Duration

	// Poller / monitor intervals
	CampaignPollInterval time.Duration
	ReplyPollInterval    time.Duration
	ReplyMonitorEnabled  bool

	// Lead lookup pacing
	LeadLookupDelayMin float64
	LeadLookupDelayMax float64

	// Login / verification
	VerificationWaitTimeout time.Duration
	FallbackProxies         []string
	TwoFactorCode           string

	// Anti-detection
	AntiDetectionEnabled bool

	// Inference API (name/gender)
	InferenceAPIKey  string
	InferenceAPIBase string

	// Webhooks
	GlobalWebhookURL string
	WebhookSecret    string
	WebhookEvents    []string
	WebhookTimeout   time.Duration

	// Operator notifications
	ResendAPIKey  string
	AlertEmail    string
	AlertFromAddr string

	// Redis (optional shared dedup backend)
	RedisAddr     string
	RedisPassword string

	// Operator auth
	AdminUsername string
	AdminPassword string
	JWTSecret     string

	// Encryption at rest
	EncryptionKey string
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second)

	// Data directories
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	HomeDir = getEnvString("GRAMSENDER_HOME", filepath.Join(home, ".gramsender"))
	SessionsDir = getEnvString("SESSIONS_DIR", filepath.Join(HomeDir, "sessions"))
	LeadsDir = getEnvString("LEADS_DIR", filepath.Join(HomeDir, "leads"))
	LogDir = getEnvString("LOG_DIR", filepath.Join(HomeDir, "logs"))

	// Database
	DBDriver = getEnvString("DB_DRIVER", "sqlite3")
	DBPath = getEnvString("DB_PATH", filepath.Join(HomeDir, "gramsender.db"))
	LibSQLURL = getEnvString("LIBSQL_URL", "")
	SlowQueryThreshold = getEnvDuration("SLOW_QUERY_THRESHOLD", 500*time.Millisecond)

	// Platform client
	PlatformBaseURL = getEnvString("PLATFORM_BASE_URL", "https://i.instagram.com")
	PlatformRequestTimeout = getEnvDuration("PLATFORM_REQUEST_TIMEOUT", 30*time.Second)

	// Poller / monitor intervals
	CampaignPollInterval = getEnvDuration("CAMPAIGN_POLL_INTERVAL", 10*time.Second)
	ReplyPollInterval = getEnvDuration("REPLY_POLL_INTERVAL", 45*time.Second)
	ReplyMonitorEnabled = getEnvBool("REPLY_MONITOR_ENABLED", true)

	// Lead lookup pacing (seconds between consecutive lead lookups)
	LeadLookupDelayMin = getEnvFloat("LEAD_LOOKUP_DELAY_MIN", 8)
	LeadLookupDelayMax = getEnvFloat("LEAD_LOOKUP_DELAY_MAX", 15)

	// Login / verification
	VerificationWaitTimeout = getEnvDuration("VERIFICATION_WAIT_TIMEOUT", 300*time.Second)
	FallbackProxies = splitCSV(getEnvString("FALLBACK_PROXIES", ""))
	TwoFactorCode = strings.TrimSpace(getEnvString("TWO_FACTOR_CODE", ""))

	// Anti-detection
	AntiDetectionEnabled = getEnvBool("ANTI_DETECTION_ENABLED", true)

	// Inference API
	InferenceAPIKey = getEnvString("INFERENCE_API_KEY", "")
	InferenceAPIBase = getEnvString("INFERENCE_API_BASE", "https://api.x.ai/v1")

	// Webhooks
	GlobalWebhookURL = getEnvString("GLOBAL_WEBHOOK_URL", "")
	WebhookSecret = getEnvString("WEBHOOK_SECRET", "")
	WebhookEvents = splitCSV(getEnvString("WEBHOOK_EVENTS", "campaign_started,message_sent,worker_completed,new_lead"))
	WebhookTimeout = getEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second)

	// Operator notifications
	ResendAPIKey = getEnvString("RESEND_API_KEY", "")
	AlertEmail = getEnvString("ALERT_EMAIL", "")
	AlertFromAddr = getEnvString("ALERT_FROM_ADDR", "alerts@gramsender.local")

	// Redis
	RedisAddr = getEnvString("REDIS_ADDR", "")
	RedisPassword = getEnvString("REDIS_PASSWORD", "")

	// Operator auth
	AdminUsername = getEnvString("ADMIN_USERNAME", "admin")
	AdminPassword = getEnvString("ADMIN_PASSWORD", "")
	JWTSecret = getEnvString("JWT_SECRET", "")

	// Encryption at rest
	EncryptionKey = getEnvString("ENCRYPTION_KEY", "")
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
