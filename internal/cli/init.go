// Package cli provides common initialization shared by cmd/mysubs,
// cmd/mysubs-worker and cmd/mysubsctl.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"mysubs/internal/amqp"
	"mysubs/internal/backend"
	"mysubs/internal/billing"
	"mysubs/internal/config"
	"mysubs/internal/fx"
	applog "mysubs/internal/log"
	"mysubs/internal/mail"
	"mysubs/internal/ports"
	"mysubs/internal/services"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the application logger from LOG_LEVEL and LOG_FORMAT,
// writing to out, and installs it as the slog default.
func SetupLogger(cfg *config.Config, out io.Writer) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Component: applog.ComponentApp,
		Handler:   applog.NewHandler(out, cfg.LogLevel, cfg.LogFormat),
	})
	applog.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logOut io.Writer) (*config.Config, *applog.Logger) {
	cfg := config.Load()
	logger := SetupLogger(cfg, logOut)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// OpenStore creates the storage backend selected by DATA_BACKEND.
func OpenStore(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(ctx, bcfg)
}

// NewRateProvider returns the cached exchange rate provider.
func NewRateProvider(cfg *config.Config, logger *applog.Logger) *fx.Provider {
	return fx.NewProvider(fx.NewHTTPSource(cfg.FXAPIURL, cfg.FXJSONPath), fx.Config{
		TTL:         cfg.FXCacheTTL,
		DefaultRate: cfg.FXDefaultRate,
		Logger:      logger.WithComponent(applog.ComponentFX).Logger,
	})
}

// SubscriptionConfig maps the billing engine settings onto the service.
func SubscriptionConfig(cfg *config.Config) (services.SubscriptionConfig, error) {
	sc := services.DefaultSubscriptionConfig()
	anchor, err := billing.GetAnchor(billing.AnchorMode(cfg.BillingAnchorMode))
	if err != nil {
		return sc, err
	}
	order, err := billing.ParseOrder(cfg.UpcomingOrder)
	if err != nil {
		return sc, err
	}
	sc.Anchor = anchor
	sc.Order = order
	sc.AnnualDiscount = cfg.AnnualDiscountRate
	if cfg.UpcomingWindowDays > 0 {
		sc.UpcomingWithin = cfg.UpcomingWindowDays
	}
	return sc, nil
}

// NewMailer returns the Resend mailer, or a mailer that only logs when no
// API key is configured.
func NewMailer(cfg *config.Config, logger *applog.Logger) ports.Mailer {
	if cfg.ResendAPIKey == "" {
		logger.Warn("RESEND_API_KEY not set, emails are logged instead of sent")
		return mail.LogMailer{Logger: logger.WithComponent(applog.ComponentMail).Logger}
	}
	return mail.NewResendMailer(cfg.ResendAPIKey, cfg.MailFrom)
}

// Notifier sends reminder emails through the queue when AMQP is
// configured and inline otherwise. The returned close func is never nil.
func Notifier(cfg *config.Config, logger *applog.Logger) (services.Notifier, func() error, error) {
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return nil, nil, fmt.Errorf("connect amqp: %w", err)
		}
		logger.Info("Reminder emails go through AMQP", "queue", cfg.AMQPQueue)
		return services.NewQueueNotifier(client), client.Close, nil
	}
	renderer, err := mail.NewRenderer(cfg.AppURL)
	if err != nil {
		return nil, nil, err
	}
	return services.NewDirectNotifier(renderer, NewMailer(cfg, logger)), func() error { return nil }, nil
}

// NewReminderService wires the reminder jobs over store.
func NewReminderService(cfg *config.Config, store ports.Store, rates ports.RateSource, notifier services.Notifier, logger *applog.Logger) (*services.ReminderService, error) {
	anchor, err := billing.GetAnchor(billing.AnchorMode(cfg.BillingAnchorMode))
	if err != nil {
		return nil, err
	}
	return services.NewReminderService(store, store, rates, notifier, anchor, logger), nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
