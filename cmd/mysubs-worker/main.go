package main

import (
	"context"
	"errors"
	"os"

	"mysubs/internal/amqp"
	"mysubs/internal/cli"
	applog "mysubs/internal/log"
	"mysubs/internal/mail"
	"mysubs/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(os.Stdout)
	logger.Info("Starting mysubs-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the mail worker")
		os.Exit(1)
	}

	renderer, err := mail.NewRenderer(cfg.AppURL)
	if err != nil {
		logger.Error("Failed to load email templates", applog.FieldError, err)
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, stop := cli.SignalContext()
	defer stop()

	w := worker.NewMailWorker(renderer, cli.NewMailer(cfg, logger), logger)
	if err := client.ConsumeEmailJobs(ctx, w.HandleEmailJob); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
