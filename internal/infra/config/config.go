package config

import (
	"fmt"
	"net"
	"os"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	HTTPAddr    string
	DatabaseURL string
	LogLevel    string
	Environment string

	// Shared secret for unattended callers. REMINDER_SECRET wins over CRON_SECRET.
	ReminderSecret string

	MessagingAPIBaseURL string // Twilio credentials themselves are read by messaging.CredentialResolver

	IntrospectionURL     string
	IdentityClientID     string
	IdentityClientSecret string
	IdentityJWTSecret    string

	DispatchBaseURL    string
	SchedulerInterval  time.Duration
	OutboundTimeout    time.Duration
	DefaultTimezone    string
	CORSAllowedOrigins []string
	MarkerLease        time.Duration
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	cfg.ReminderSecret = os.Getenv("REMINDER_SECRET")
	if cfg.ReminderSecret == "" {
		cfg.ReminderSecret = os.Getenv("CRON_SECRET")
	}

	cfg.MessagingAPIBaseURL = os.Getenv("TWILIO_API_BASE_URL")
	if cfg.MessagingAPIBaseURL == "" {
		cfg.MessagingAPIBaseURL = "https://api.twilio.com"
	}

	cfg.IntrospectionURL = os.Getenv("IDENTITY_INTROSPECTION_URL")
	cfg.IdentityClientID = os.Getenv("IDENTITY_CLIENT_ID")
	cfg.IdentityClientSecret = os.Getenv("IDENTITY_CLIENT_SECRET")
	cfg.IdentityJWTSecret = os.Getenv("IDENTITY_JWT_SECRET")
	if cfg.IntrospectionURL == "" && cfg.IdentityJWTSecret == "" {
		return nil, fmt.Errorf("either IDENTITY_INTROSPECTION_URL or IDENTITY_JWT_SECRET must be set")
	}

	cfg.DispatchBaseURL = os.Getenv("DISPATCH_BASE_URL")
	if cfg.DispatchBaseURL == "" {
		cfg.DispatchBaseURL = loopbackURL(cfg.HTTPAddr)
	}

	if cfg.SchedulerInterval, err = durationEnv("SCHEDULER_INTERVAL", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.OutboundTimeout, err = durationEnv("OUTBOUND_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.MarkerLease, err = durationEnv("MARKER_LEASE", 2*time.Minute); err != nil {
		return nil, err
	}

	cfg.DefaultTimezone = os.Getenv("DEFAULT_TIMEZONE")
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "Europe/Berlin"
	}
	if _, err := time.LoadLocation(cfg.DefaultTimezone); err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_TIMEZONE: %w", err)
	}

	origins := os.Getenv("CORS_ALLOWED_ORIGINS")
	if origins == "" {
		origins = "*"
	}
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	return cfg, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

// loopbackURL points the scheduler at this process's own listener.
func loopbackURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil || port == "" {
		return "http://127.0.0.1:8080"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}
