package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
)

type Config struct {
	// HTTP Server
	Port               string
	AppURL             string
	CORSAllowedOrigins []string
	RateLimitPerMinute int

	// Backend selection
	DataBackend  string
	SQLiteDBPath string
	DatabaseURL  string

	// AMQP (optional; reminders are sent inline when empty)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Auth
	AuthJWTSecret string
	CronSecret    string

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	StripePriceID       string

	// Email
	ResendAPIKey string
	MailFrom     string

	// Exchange rate
	FXAPIURL      string
	FXJSONPath    string
	FXCacheTTL    time.Duration
	FXDefaultRate float64

	// Billing engine
	AnnualDiscountRate float64
	BillingAnchorMode  string
	UpcomingOrder      string
	UpcomingWindowDays int

	// Reminder jobs
	BillingReminderSchedule string
	TrialReminderSchedule   string
	MonthlyReportSchedule   string
	Timezone                string

	// Google Sheets export
	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleCredentialsJSON string
	GoogleCredentialsFile string

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		AppURL:             getEnv("APP_URL", "http://localhost:3000"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/mysubs.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "mysubs"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "email_jobs"),

		AuthJWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		CronSecret:    getEnv("CRON_SECRET", ""),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripePriceID:       getEnv("STRIPE_PRICE_ID", ""),

		ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		MailFrom:     getEnv("MAIL_FROM", "MySubs <noreply@mysubs.app>"),

		FXAPIURL:      getEnv("FX_API_URL", "https://api.exchangerate-api.com/v4/latest/USD"),
		FXJSONPath:    getEnv("FX_JSON_PATH", "$.rates.KRW"),
		FXCacheTTL:    getEnvDuration("FX_CACHE_TTL", time.Hour),
		FXDefaultRate: getEnvFloat("FX_DEFAULT_RATE", 1350),

		AnnualDiscountRate: getEnvFloat("ANNUAL_DISCOUNT_RATE", 0.20),
		BillingAnchorMode:  getEnv("BILLING_ANCHOR_MODE", "compat"),
		UpcomingOrder:      getEnv("UPCOMING_ORDER", "billing_day"),
		UpcomingWindowDays: getEnvInt("UPCOMING_WINDOW_DAYS", 7),

		BillingReminderSchedule: getEnv("BILLING_REMINDER_SCHEDULE", "0 9 * * *"),
		TrialReminderSchedule:   getEnv("TRIAL_REMINDER_SCHEDULE", "0 9 * * *"),
		MonthlyReportSchedule:   getEnv("MONTHLY_REPORT_SCHEDULE", "0 8 * * *"),
		Timezone:                getEnv("TIMEZONE", "Asia/Seoul"),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:       getEnv("GOOGLE_SHEET_NAME", "Subscriptions"),
		GoogleCredentialsJSON: getEnv("GOOGLE_CREDENTIALS_JSON", ""),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	validBackends := []string{"memory", "sqlite", "postgres"}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.DataBackend == "postgres" {
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, "invalid DATABASE_URL: must be a postgres:// URL")
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	// Exchange rate
	if c.FXDefaultRate <= 0 {
		errors = append(errors, fmt.Sprintf("invalid default exchange rate %v: must be positive", c.FXDefaultRate))
	}
	if c.FXCacheTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid exchange rate cache TTL %v: must be at least 1 minute", c.FXCacheTTL))
	}
	if c.FXAPIURL != "" {
		if u, err := url.Parse(c.FXAPIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid exchange rate API URL '%s'", c.FXAPIURL))
		}
	}
	if !strings.HasPrefix(c.FXJSONPath, "$") {
		errors = append(errors, fmt.Sprintf("invalid exchange rate JSON path '%s': must start with '$'", c.FXJSONPath))
	}

	// Billing engine
	if c.AnnualDiscountRate < 0 || c.AnnualDiscountRate >= 1 {
		errors = append(errors, fmt.Sprintf("invalid annual discount rate %v: must be in [0, 1)", c.AnnualDiscountRate))
	}
	if c.BillingAnchorMode != "compat" && c.BillingAnchorMode != "calendar" {
		errors = append(errors, fmt.Sprintf("invalid billing anchor mode '%s': must be 'compat' or 'calendar'", c.BillingAnchorMode))
	}
	if c.UpcomingOrder != "billing_day" && c.UpcomingOrder != "days_until" {
		errors = append(errors, fmt.Sprintf("invalid upcoming order '%s': must be 'billing_day' or 'days_until'", c.UpcomingOrder))
	}
	if c.UpcomingWindowDays < 0 || c.UpcomingWindowDays > 31 {
		errors = append(errors, fmt.Sprintf("invalid upcoming window %d: must be between 0 and 31 days", c.UpcomingWindowDays))
	}

	// Schedules
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{
		"BILLING_REMINDER_SCHEDULE": c.BillingReminderSchedule,
		"TRIAL_REMINDER_SCHEDULE":   c.TrialReminderSchedule,
		"MONTHLY_REPORT_SCHEDULE":   c.MonthlyReportSchedule,
	} {
		if spec == "" {
			continue
		}
		if _, err := parser.Parse(spec); err != nil {
			errors = append(errors, fmt.Sprintf("invalid %s '%s': %v", name, spec, err))
		}
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	// Google Sheets export is optional, but a spreadsheet needs credentials
	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet ID is set")
		}
		if c.GoogleCredentialsJSON == "" && c.GoogleCredentialsFile == "" {
			errors = append(errors, "either GOOGLE_CREDENTIALS_FILE or GOOGLE_CREDENTIALS_JSON must be provided for sheets export")
		}
		if c.GoogleCredentialsFile != "" {
			if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google credentials file does not exist: %s", c.GoogleCredentialsFile))
			}
		}
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	// Return combined errors
	if len(errors) > 0 {
		slices.Sort(errors)
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Location returns the configured time zone, or UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StripeEnabled reports whether payment endpoints can be served.
func (c *Config) StripeEnabled() bool {
	return c.StripeSecretKey != "" && c.StripePriceID != ""
}

// SheetsEnabled reports whether Google Sheets export is configured.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
