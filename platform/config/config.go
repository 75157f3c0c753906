// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq task scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// MessagingConfig provides settings for the messaging platform collaborator.
type MessagingConfig interface {
	GetMessagingAPIURL() string
	GetMessagingAccessToken() string
	GetMessagingChannelSecret() string
	GetCollaboratorTimeout() time.Duration
}

// PaymentConfig provides settings for the payment provider collaborator.
type PaymentConfig interface {
	GetPaymentAPIURL() string
	GetPaymentAPIKey() string
	GetPaymentWebhookSecret() string
	GetPaymentSignatureTolerance() time.Duration
	GetPaymentSuccessURL() string
	GetPaymentCancelURL() string
	GetAllowedCurrencies() []string
	GetPaymentDeadline() time.Duration
	GetCollaboratorTimeout() time.Duration
}

// CalendarConfig provides settings for the calendar collaborator.
type CalendarConfig interface {
	GetCalendarAPIURL() string
	GetCalendarAPIKey() string
	GetCollaboratorTimeout() time.Duration
}

// BookingConfig provides slot grid settings for the booking module.
type BookingConfig interface {
	GetSlotDuration() time.Duration
	GetBookingDayStartHour() int
	GetBookingDayEndHour() int
}

// RewardConfig provides the feedback reward policy.
type RewardConfig interface {
	GetFeedbackRewardPoints() int
}

// LinkTokenConfig provides settings for signed lead-facing links.
type LinkTokenConfig interface {
	GetPublicLinkSecret() string
	GetPublicLinkTTL() time.Duration
}

// EmailConfig provides settings for email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// NotificationConfig provides settings for the notification module.
type NotificationConfig interface {
	GetAppBaseURL() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env      string
	HTTPAddr string

	DatabaseURL string

	CORSAllowAll   bool
	CORSOrigins    []string
	CORSAllowCreds bool
	AppBaseURL     string

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	MessagingAPIURL        string
	MessagingAccessToken   string
	MessagingChannelSecret string

	PaymentAPIURL             string
	PaymentAPIKey             string
	PaymentWebhookSecret      string
	PaymentSignatureTolerance time.Duration
	PaymentSuccessURL         string
	PaymentCancelURL          string
	AllowedCurrencies         []string
	PaymentDeadline           time.Duration

	CalendarAPIURL      string
	CalendarAPIKey      string
	CollaboratorTimeout time.Duration

	SlotDuration        time.Duration
	BookingDayStartHour int
	BookingDayEndHour   int

	FeedbackRewardPoints int

	PublicLinkSecret string
	PublicLinkTTL    time.Duration

	EmailEnabled     bool
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	EmailFromName    string
	EmailFromAddress string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string      { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// MessagingConfig implementation
func (c *Config) GetMessagingAPIURL() string        { return c.MessagingAPIURL }
func (c *Config) GetMessagingAccessToken() string   { return c.MessagingAccessToken }
func (c *Config) GetMessagingChannelSecret() string { return c.MessagingChannelSecret }

// PaymentConfig implementation
func (c *Config) GetPaymentAPIURL() string                  { return c.PaymentAPIURL }
func (c *Config) GetPaymentAPIKey() string                  { return c.PaymentAPIKey }
func (c *Config) GetPaymentWebhookSecret() string           { return c.PaymentWebhookSecret }
func (c *Config) GetPaymentSignatureTolerance() time.Duration { return c.PaymentSignatureTolerance }
func (c *Config) GetPaymentSuccessURL() string              { return c.PaymentSuccessURL }
func (c *Config) GetPaymentCancelURL() string               { return c.PaymentCancelURL }
func (c *Config) GetAllowedCurrencies() []string            { return c.AllowedCurrencies }
func (c *Config) GetPaymentDeadline() time.Duration         { return c.PaymentDeadline }

// CalendarConfig implementation
func (c *Config) GetCalendarAPIURL() string            { return c.CalendarAPIURL }
func (c *Config) GetCalendarAPIKey() string            { return c.CalendarAPIKey }
func (c *Config) GetCollaboratorTimeout() time.Duration { return c.CollaboratorTimeout }

// BookingConfig implementation
func (c *Config) GetSlotDuration() time.Duration { return c.SlotDuration }
func (c *Config) GetBookingDayStartHour() int    { return c.BookingDayStartHour }
func (c *Config) GetBookingDayEndHour() int      { return c.BookingDayEndHour }

// RewardConfig implementation
func (c *Config) GetFeedbackRewardPoints() int { return c.FeedbackRewardPoints }

// LinkTokenConfig implementation
func (c *Config) GetPublicLinkSecret() string     { return c.PublicLinkSecret }
func (c *Config) GetPublicLinkTTL() time.Duration { return c.PublicLinkTTL }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// NotificationConfig implementation
func (c *Config) GetAppBaseURL() string { return c.AppBaseURL }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "false"), "true")

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		CORSAllowAll:   corsAllowAll,
		CORSOrigins:    corsOrigins,
		CORSAllowCreds: strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		AppBaseURL:     getEnv("APP_BASE_URL", "http://localhost:5173"),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "funnel"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),

		MessagingAPIURL:        getEnv("MESSAGING_API_URL", "https://api.line.me"),
		MessagingAccessToken:   getEnv("MESSAGING_ACCESS_TOKEN", ""),
		MessagingChannelSecret: getEnv("MESSAGING_CHANNEL_SECRET", ""),

		PaymentAPIURL:             getEnv("PAYMENT_API_URL", ""),
		PaymentAPIKey:             getEnv("PAYMENT_API_KEY", ""),
		PaymentWebhookSecret:      getEnv("PAYMENT_WEBHOOK_SECRET", ""),
		PaymentSignatureTolerance: mustDuration(getEnv("PAYMENT_SIGNATURE_TOLERANCE", "5m")),
		PaymentSuccessURL:         getEnv("PAYMENT_SUCCESS_URL", "http://localhost:5173/success"),
		PaymentCancelURL:          getEnv("PAYMENT_CANCEL_URL", "http://localhost:5173/cancel"),
		AllowedCurrencies:         splitCSV(strings.ToLower(getEnv("ALLOWED_CURRENCIES", "jpy"))),
		PaymentDeadline:           mustDuration(getEnv("PAYMENT_DEADLINE", "24h")),

		CalendarAPIURL:      getEnv("CALENDAR_API_URL", ""),
		CalendarAPIKey:      getEnv("CALENDAR_API_KEY", ""),
		CollaboratorTimeout: mustDuration(getEnv("COLLABORATOR_TIMEOUT", "10s")),

		SlotDuration:        mustDuration(getEnv("SLOT_DURATION", "1h")),
		BookingDayStartHour: mustInt(getEnv("BOOKING_DAY_START_HOUR", "10")),
		BookingDayEndHour:   mustInt(getEnv("BOOKING_DAY_END_HOUR", "17")),

		FeedbackRewardPoints: mustInt(getEnv("FEEDBACK_REWARD_POINTS", "100")),

		PublicLinkSecret: getEnv("PUBLIC_LINK_SECRET", ""),
		PublicLinkTTL:    mustDuration(getEnv("PUBLIC_LINK_TTL", "336h")),

		EmailEnabled:     emailEnabled,
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Funnel"),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.MessagingChannelSecret == "" {
		return nil, fmt.Errorf("MESSAGING_CHANNEL_SECRET is required")
	}
	if cfg.PaymentWebhookSecret == "" {
		return nil, fmt.Errorf("PAYMENT_WEBHOOK_SECRET is required")
	}
	if cfg.PublicLinkSecret == "" {
		return nil, fmt.Errorf("PUBLIC_LINK_SECRET is required")
	}
	if len(cfg.AllowedCurrencies) == 0 {
		return nil, fmt.Errorf("ALLOWED_CURRENCIES must not be empty")
	}
	if cfg.BookingDayStartHour < 0 || cfg.BookingDayEndHour > 24 || cfg.BookingDayStartHour >= cfg.BookingDayEndHour {
		return nil, fmt.Errorf("invalid booking day hours: start=%d end=%d", cfg.BookingDayStartHour, cfg.BookingDayEndHour)
	}
	if emailEnabled && (cfg.SMTPHost == "" || cfg.EmailFromAddress == "") {
		return nil, fmt.Errorf("SMTP_HOST and EMAIL_FROM_ADDRESS are required when EMAIL_ENABLED is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
