package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/opswell/gatekeep/pkg/httpx"
	"github.com/opswell/gatekeep/pkg/passpolicy"
)

type Config struct {
	Issuer    string // Issuer claim for tokens (default: gatekeep)
	JWTSecret string // Required: HS256 signing secret, at least 32 bytes

	DatabaseFile string // Path to SQLite database file (default: ./gatekeep.db)
	PepperFile   string // Path to the password-hashing pepper file (default: ./pepper)

	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: json)
	Port      int    // HTTP server port (default: 8080)

	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)

	// Token lifetimes and limits.
	AccessTokenTTL  time.Duration // Access JWT lifetime (default: 15m)
	RefreshTokenTTL time.Duration // Refresh token lifetime (default: 30 days)
	StepUpTokenTTL  time.Duration // Verification token lifetime (default: 5m)
	MaxActiveTokens int           // Active sessions per admin (default: 5)

	// Account lockout.
	LockoutThreshold int           // Failures before lockout (default: 5)
	LockoutDuration  time.Duration // Lockout length (default: 30m)

	// Brute force and suspicious IP heuristics.
	BruteForceThreshold      int           // Failures per email/IP (default: 5)
	BruteForceWindow         time.Duration // Window for the above (default: 15m)
	SuspiciousWindow         time.Duration // Suspicious IP window (default: 24h)
	SuspiciousFailureLimit   int           // Failures per IP in window (default: 20)
	SuspiciousDistinctEmails int           // Distinct emails per IP in window (default: 5)

	// IP reputation cache.
	IPBlockThreshold int           // Failures before an auto block (default: 10)
	IPBlockWindow    time.Duration // Failure window (default: 15m)
	IPBlockDuration  time.Duration // Auto block length (default: 1h)
	RedisAddr        string        // Optional: redis address; empty means in-memory cache
	RedisPassword    string        // Optional: redis password
	RedisDB          int           // Optional: redis database index

	// Retention for housekeeping.
	TokenRetention time.Duration // Keep retired tokens this long (default: 30 days)
	EventRetention time.Duration // Keep security events this long (default: 90 days)

	// Alerting. Empty brokers means alerts only go to the structured log.
	KafkaBrokers    []string // Optional: broker addresses
	KafkaAlertTopic string   // Alert topic (default: gatekeep.security-alerts)

	// Per-route throttles.
	RateLimitStrict   httpx.RateLimitConfig // Credential endpoints (default: 5/min)
	RateLimitModerate httpx.RateLimitConfig // Everything else (default: 30/min)

	// Password policy. Defaults to passpolicy.DefaultConfig.
	PasswordPolicy passpolicy.Config
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:    getEnvOrDefault("GATEKEEP_ISSUER", "gatekeep"),
		JWTSecret: os.Getenv("GATEKEEP_JWT_SECRET"),

		DatabaseFile: getEnvOrDefault("GATEKEEP_DATABASE_FILE", "gatekeep.db"),
		PepperFile:   getEnvOrDefault("GATEKEEP_PEPPER_FILE", "pepper"),

		Env:       getEnvOrDefault("ENV", "dev"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
		Port:      getEnvIntOrDefault("PORT", 8080),

		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),

		AccessTokenTTL:  getEnvDurationOrDefault("GATEKEEP_ACCESS_TTL", 15*time.Minute),
		RefreshTokenTTL: getEnvDurationOrDefault("GATEKEEP_REFRESH_TTL", 30*24*time.Hour),
		StepUpTokenTTL:  getEnvDurationOrDefault("GATEKEEP_STEP_UP_TTL", 5*time.Minute),
		MaxActiveTokens: getEnvIntOrDefault("GATEKEEP_MAX_ACTIVE_TOKENS", 5),

		LockoutThreshold: getEnvIntOrDefault("GATEKEEP_LOCKOUT_THRESHOLD", 5),
		LockoutDuration:  getEnvDurationOrDefault("GATEKEEP_LOCKOUT_DURATION", 30*time.Minute),

		BruteForceThreshold:      getEnvIntOrDefault("GATEKEEP_BRUTE_FORCE_THRESHOLD", 5),
		BruteForceWindow:         getEnvDurationOrDefault("GATEKEEP_BRUTE_FORCE_WINDOW", 15*time.Minute),
		SuspiciousWindow:         getEnvDurationOrDefault("GATEKEEP_SUSPICIOUS_WINDOW", 24*time.Hour),
		SuspiciousFailureLimit:   getEnvIntOrDefault("GATEKEEP_SUSPICIOUS_FAILURES", 20),
		SuspiciousDistinctEmails: getEnvIntOrDefault("GATEKEEP_SUSPICIOUS_EMAILS", 5),

		IPBlockThreshold: getEnvIntOrDefault("GATEKEEP_IP_BLOCK_THRESHOLD", 10),
		IPBlockWindow:    getEnvDurationOrDefault("GATEKEEP_IP_BLOCK_WINDOW", 15*time.Minute),
		IPBlockDuration:  getEnvDurationOrDefault("GATEKEEP_IP_BLOCK_DURATION", 1*time.Hour),
		RedisAddr:        os.Getenv("GATEKEEP_REDIS_ADDR"),
		RedisPassword:    os.Getenv("GATEKEEP_REDIS_PASSWORD"),
		RedisDB:          getEnvIntOrDefault("GATEKEEP_REDIS_DB", 0),

		TokenRetention: getEnvDurationOrDefault("GATEKEEP_TOKEN_RETENTION", 30*24*time.Hour),
		EventRetention: getEnvDurationOrDefault("GATEKEEP_EVENT_RETENTION", 90*24*time.Hour),

		KafkaAlertTopic: getEnvOrDefault("GATEKEEP_KAFKA_ALERT_TOPIC", "gatekeep.security-alerts"),

		RateLimitStrict: httpx.RateLimitConfig{
			RequestsPerWindow: getEnvIntOrDefault("RATELIMIT_STRICT_REQUESTS", httpx.StrictLimit.RequestsPerWindow),
			Window:            getEnvDurationOrDefault("RATELIMIT_STRICT_WINDOW", httpx.StrictLimit.Window),
			Burst:             getEnvIntOrDefault("RATELIMIT_STRICT_BURST", httpx.StrictLimit.Burst),
		},
		RateLimitModerate: httpx.RateLimitConfig{
			RequestsPerWindow: getEnvIntOrDefault("RATELIMIT_MODERATE_REQUESTS", httpx.ModerateLimit.RequestsPerWindow),
			Window:            getEnvDurationOrDefault("RATELIMIT_MODERATE_WINDOW", httpx.ModerateLimit.Window),
			Burst:             getEnvIntOrDefault("RATELIMIT_MODERATE_BURST", httpx.ModerateLimit.Burst),
		},

		PasswordPolicy: passpolicy.Config{
			MinLength:      getEnvIntOrDefault("GATEKEEP_PASSWORD_MIN_LENGTH", passpolicy.DefaultConfig().MinLength),
			MaxLength:      getEnvIntOrDefault("GATEKEEP_PASSWORD_MAX_LENGTH", passpolicy.DefaultConfig().MaxLength),
			RequireUpper:   getEnvBoolOrDefault("GATEKEEP_PASSWORD_REQUIRE_UPPER", true),
			RequireLower:   getEnvBoolOrDefault("GATEKEEP_PASSWORD_REQUIRE_LOWER", true),
			RequireDigit:   getEnvBoolOrDefault("GATEKEEP_PASSWORD_REQUIRE_DIGIT", true),
			RequireSpecial: getEnvBoolOrDefault("GATEKEEP_PASSWORD_REQUIRE_SPECIAL", true),
		},
	}

	if brokers := os.Getenv("GATEKEEP_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Plain integers are read as minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
