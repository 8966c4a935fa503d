package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"mysubs/internal/auth"
	"mysubs/internal/cache"
	"mysubs/internal/cli"
	"mysubs/internal/config"
	apphttp "mysubs/internal/http"
	applog "mysubs/internal/log"
	"mysubs/internal/payments"
	"mysubs/internal/scheduler"
	"mysubs/internal/services"
	gsheet "mysubs/internal/sheets/google"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(os.Stdout)

	ctx, stop := cli.SignalContext()
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server exited with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *applog.Logger) error {
	if cfg.AuthJWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET is required")
	}

	store, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Warn("Failed to close storage", applog.FieldError, err)
		}
	}()

	rates := cli.NewRateProvider(cfg, logger)
	subCfg, err := cli.SubscriptionConfig(cfg)
	if err != nil {
		return err
	}
	subs := services.NewSubscriptionService(store.Backend, rates, subCfg, logger)

	notifier, closeNotifier, err := cli.Notifier(cfg, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()
	reminders, err := cli.NewReminderService(cfg, store.Backend, rates, notifier, logger)
	if err != nil {
		return err
	}

	deps := apphttp.Dependencies{
		Subscriptions: subs,
		Profiles:      store.Backend,
		Rates:         rates,
		Jobs:          reminders,
		Verifier:      auth.NewVerifier(cfg.AuthJWTSecret),
		Ready:         store.Backend.Ping,
	}
	if cfg.StripeEnabled() {
		deps.Billing = payments.NewService(payments.Config{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			PriceID:       cfg.StripePriceID,
			AppURL:        cfg.AppURL,
		}, store.Backend, logger.Logger)
	} else {
		logger.Info("Stripe disabled, payment endpoints answer 503")
	}
	if cfg.SheetsEnabled() {
		sheets, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleCredentialsJSON,
			CredentialsFile: cfg.GoogleCredentialsFile,
		}, logger.Logger)
		if err != nil {
			return err
		}
		deps.Sheets = sheets
	}

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		AllowedOrigins:     cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CronSecret:         cfg.CronSecret,
		Location:           cfg.Location(),
		UpcomingWithin:     subCfg.UpcomingWithin,
	}, deps, logger)
	srv.BaseContext = func(net.Listener) context.Context { return ctx }

	caches := cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger)
	caches.Register(rates.Cache())
	caches.Register(subs.OverviewCache())
	for _, c := range srv.Caches() {
		caches.Register(c)
	}
	caches.StartCleanup(5 * time.Minute)
	defer caches.Stop()

	sched := scheduler.New(reminders, scheduler.Config{
		BillingReminder: cfg.BillingReminderSchedule,
		TrialReminder:   cfg.TrialReminderSchedule,
		MonthlyReport:   cfg.MonthlyReportSchedule,
		Location:        cfg.Location(),
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting mysubs server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := sched.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		<-sched.Stop().Done()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", applog.FieldOperation, applog.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
