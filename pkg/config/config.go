package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	StoreFirestore = "firestore"
	StorePostgres  = "postgres"
	StoreMemory    = "memory"

	AuthFirebase = "firebase"
	AuthJWT      = "jwt"

	MailSMTP   = "smtp"
	MailResend = "resend"
)

type Config struct {
	Port        string
	Environment string
	SiteURL     string
	Brand       string
	LogLevel    string

	StoreBackend string
	DatabaseURL  string

	// Firebase service account, either as individual fields or as a JSON blob
	FirebaseProjectID       string
	FirebaseClientEmail     string
	FirebasePrivateKey      string
	FirebasePrivateKeyID    string
	FirebaseClientID        string
	FirebaseServiceAccount  string
	FirebaseCredentialsFile string

	AuthProvider string
	JWTSecret    string
	JWTIssuer    string
	JWTExpiry    time.Duration

	MailTransport      string
	ResendAPIKey       string
	ResendAPIURL       string
	MailFrom           string
	MailReplyTo        string
	SMTPHost           string
	SMTPPort           int
	SMTPUsername       string
	EmailSubjectPrefix string
	MailSendTimeout    time.Duration
	BroadcastBatchSize int

	UnsubscribeSecret string
	SeedSecret        string
	SeedAdminEmail    string

	BroadcastRateLimitMax    int
	BroadcastRateLimitWindow time.Duration
	RateLimitRetention       time.Duration
	RateLimitCleanupSchedule string
	RateLimitCleanupBatch    int
	PublicRateLimitPerMinute int

	RedisAddr     string
	RedisUsername string
	RedisPassword string

	PubSubProjectID string
	PubSubTopic     string

	MetricsUsername string
	MetricsPassword string

	CORSAllowedOrigins  []string
	NotificationWorkers int
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("APP_ENV", EnvDevelopment),
		SiteURL:     strings.TrimRight(getEnv("SITE_URL", "http://localhost:8080"), "/"),
		Brand:       getEnv("BRAND_NAME", "GoAiMEX"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", StoreFirestore)),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseClientEmail:     getEnv("FIREBASE_CLIENT_EMAIL", ""),
		FirebasePrivateKey:      getEnv("FIREBASE_PRIVATE_KEY", ""),
		FirebasePrivateKeyID:    getEnv("FIREBASE_PRIVATE_KEY_ID", ""),
		FirebaseClientID:        getEnv("FIREBASE_CLIENT_ID", ""),
		FirebaseServiceAccount:  getEnv("FIREBASE_SERVICE_ACCOUNT", ""),
		FirebaseCredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),

		AuthProvider: strings.ToLower(getEnv("AUTH_PROVIDER", AuthFirebase)),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		JWTIssuer:    getEnv("JWT_ISSUER", "investor-portal"),
		JWTExpiry:    getDuration("JWT_EXPIRY", 24*time.Hour),

		MailTransport:      strings.ToLower(getEnv("MAIL_TRANSPORT", MailSMTP)),
		ResendAPIKey:       getEnv("RESEND_API_KEY", ""),
		ResendAPIURL:       getEnv("RESEND_API_URL", "https://api.resend.com"),
		MailFrom:           getEnv("RESEND_FROM", ""),
		MailReplyTo:        getEnv("RESEND_REPLY_TO", ""),
		SMTPHost:           getEnv("RESEND_SMTP_HOST", "smtp.resend.com"),
		SMTPPort:           getInt("RESEND_SMTP_PORT", 587),
		SMTPUsername:       getEnv("RESEND_SMTP_USERNAME", "resend"),
		EmailSubjectPrefix: getEnv("EMAIL_SUBJECT_PREFIX", "GoAiMEX Update"),
		MailSendTimeout:    getDuration("MAIL_SEND_TIMEOUT", 15*time.Second),
		BroadcastBatchSize: getInt("BROADCAST_BATCH_SIZE", 50),

		UnsubscribeSecret: getEnv("UNSUBSCRIBE_SECRET", ""),
		SeedSecret:        getEnv("SEED_SECRET", ""),
		SeedAdminEmail:    strings.ToLower(strings.TrimSpace(getEnv("SEED_ADMIN_EMAIL", ""))),

		BroadcastRateLimitMax:    getInt("BROADCAST_RATE_LIMIT_MAX", 10),
		BroadcastRateLimitWindow: getDuration("BROADCAST_RATE_LIMIT_WINDOW", time.Hour),
		RateLimitRetention:       getDuration("RATE_LIMIT_RETENTION", 24*time.Hour),
		RateLimitCleanupSchedule: getEnv("RATE_LIMIT_CLEANUP_SCHEDULE", "@every 15m"),
		RateLimitCleanupBatch:    getInt("RATE_LIMIT_CLEANUP_BATCH", 500),
		PublicRateLimitPerMinute: getInt("PUBLIC_RATE_LIMIT_PER_MINUTE", 30),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		PubSubProjectID: getEnv("PUBSUB_PROJECT_ID", ""),
		PubSubTopic:     getEnv("PUBSUB_TOPIC", ""),

		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),

		CORSAllowedOrigins:  getList("CORS_ALLOWED_ORIGINS"),
		NotificationWorkers: getInt("NOTIFICATION_WORKERS", 3),
	}
}

// Validate reports every missing value required by the selected backends.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreBackend {
	case StoreFirestore:
		if !c.HasFirebaseCredentials() {
			errs = append(errs, errors.New("firestore store requires Firebase credentials"))
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("postgres store requires DATABASE_URL"))
		}
	case StoreMemory:
		if c.IsProduction() {
			errs = append(errs, errors.New("memory store is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	switch c.AuthProvider {
	case AuthFirebase:
		if !c.HasFirebaseCredentials() {
			errs = append(errs, errors.New("firebase auth requires Firebase credentials"))
		}
	case AuthJWT:
		if c.JWTSecret == "" {
			errs = append(errs, errors.New("jwt auth requires JWT_SECRET"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_PROVIDER %q", c.AuthProvider))
	}

	switch c.MailTransport {
	case MailSMTP, MailResend:
	default:
		errs = append(errs, fmt.Errorf("unknown MAIL_TRANSPORT %q", c.MailTransport))
	}

	if c.BroadcastRateLimitMax <= 0 {
		errs = append(errs, errors.New("BROADCAST_RATE_LIMIT_MAX must be positive"))
	}
	if c.BroadcastRateLimitWindow <= 0 {
		errs = append(errs, errors.New("BROADCAST_RATE_LIMIT_WINDOW must be positive"))
	}
	if c.BroadcastBatchSize <= 0 {
		errs = append(errs, errors.New("BROADCAST_BATCH_SIZE must be positive"))
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func (c *Config) HasFirebaseCredentials() bool {
	if c.FirebaseServiceAccount != "" || c.FirebaseCredentialsFile != "" {
		return true
	}
	return c.FirebaseProjectID != "" && c.FirebaseClientEmail != "" && c.FirebasePrivateKey != ""
}

// MailConfigured reports whether outbound email can be sent at all.
func (c *Config) MailConfigured() bool {
	return c.ResendAPIKey != "" && c.MailFrom != ""
}

func (c *Config) RedisConfigured() bool {
	return c.RedisAddr != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
