package app

import (
	"os"
	"strconv"
	"time"

	"github.com/lockstead/authgate/internal/auth/notify"
	"github.com/lockstead/authgate/internal/auth/service"
	"github.com/lockstead/authgate/pkg/jwtx"
)

// Config is the single immutable knob set for the whole service, resolved
// once at startup. Everything downstream receives values from here instead of
// reading the environment itself.
type Config struct {
	Issuer string // Issuer claim for session assertions

	DatabaseFile   string // Path to the SQLite database file (default: ./auth.db)
	PepperFile     string // Path to the password-hash pepper file (default: ./pepper)
	WrapKeyFile    string // Path to the secret-wrapping key file (default: ./wrapkey)
	SigningKeyFile string // Optional: path to the Ed25519 signing key; empty means a fresh ephemeral key each boot

	LoginRetries    int           // Attempt budget for the password phase (default: 3)
	ValidateRetries int           // Attempt budget for the code phase (default: 3)
	CodeLifetime    time.Duration // One-time code validity (default: 5m)
	LockoutWindow   time.Duration // Block duration after an exhausted budget (default: 5m)
	AssertionTTL    time.Duration // Session assertion validity (default: 1h)

	RegistrationRetention time.Duration // How long unactivated registrations are kept (default: 24h)
	SweepInterval         time.Duration // Housekeeping cadence (default: 5m)

	SMTP notify.SMTPConfig // Mail relay; empty host means codes are logged instead of mailed

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:         getEnvOrDefault("AUTH_ISSUER", "authgate"),
		DatabaseFile:   getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		PepperFile:     getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),
		WrapKeyFile:    getEnvOrDefault("AUTH_WRAP_KEY_FILE", "wrapkey"),
		SigningKeyFile: os.Getenv("AUTH_SIGNING_KEY_FILE"),

		LoginRetries:    getEnvIntOrDefault("AUTH_LOGIN_RETRIES", service.DefaultLoginRetries),
		ValidateRetries: getEnvIntOrDefault("AUTH_VALIDATE_RETRIES", service.DefaultValidateRetries),
		CodeLifetime:    getEnvDurationOrDefault("AUTH_CODE_LIFETIME", service.DefaultCodeLifetime),
		LockoutWindow:   getEnvDurationOrDefault("AUTH_LOCKOUT_WINDOW", service.DefaultLockoutWindow),
		AssertionTTL:    getEnvDurationOrDefault("AUTH_ASSERTION_TTL", jwtx.DefaultAssertionTTL),

		RegistrationRetention: getEnvDurationOrDefault("AUTH_REGISTRATION_RETENTION", service.DefaultRegistrationRetention),
		SweepInterval:         getEnvDurationOrDefault("AUTH_SWEEP_INTERVAL", service.DefaultSweepInterval),

		SMTP: notify.SMTPConfig{
			Host:     os.Getenv("AUTH_SMTP_HOST"),
			Port:     getEnvIntOrDefault("AUTH_SMTP_PORT", 587),
			From:     os.Getenv("AUTH_SMTP_FROM"),
			Password: os.Getenv("AUTH_SMTP_PASSWORD"),
			Subject:  getEnvOrDefault("AUTH_SMTP_SUBJECT", "Your confirmation code"),
		},

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
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

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Integer values are taken as minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
