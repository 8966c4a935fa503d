// Package worker consumes queued email jobs and delivers them.
package worker

import (
	"context"
	"fmt"

	"mysubs/internal/amqp"
	applog "mysubs/internal/log"
	"mysubs/internal/mail"
	"mysubs/internal/metrics"
	"mysubs/internal/ports"
)

// MailWorker renders and sends the email jobs published by the reminder
// jobs when the queue notifier is in use.
type MailWorker struct {
	renderer *mail.Renderer
	mailer   ports.Mailer
	logger   *applog.Logger
	sl       *applog.StructuredLogger
}

func NewMailWorker(renderer *mail.Renderer, mailer ports.Mailer, logger *applog.Logger) *MailWorker {
	logger = logger.WithComponent(applog.ComponentWorker)
	return &MailWorker{
		renderer: renderer,
		mailer:   mailer,
		logger:   logger,
		sl:       applog.NewStructuredLogger(logger),
	}
}

// HandleEmailJob delivers one job. Payloads that cannot be decoded or
// rendered are dropped, since retrying them cannot succeed; send failures
// are returned so the consumer requeues the job.
func (w *MailWorker) HandleEmailJob(ctx context.Context, msg *amqp.EmailJobMessage) error {
	data, err := mail.DecodePayload(msg.Kind, msg.Payload)
	if err != nil {
		w.drop(ctx, msg, err)
		return nil
	}
	email, err := w.renderer.Render(msg.Kind, data)
	if err != nil {
		w.drop(ctx, msg, err)
		return nil
	}

	if err := w.mailer.Send(ctx, msg.To, email.Subject, email.HTML); err != nil {
		metrics.Notifications.WithLabelValues(string(msg.Kind), "failed").Inc()
		return fmt.Errorf("send %s to user %s: %w", msg.Kind, msg.UserID, err)
	}
	metrics.Notifications.WithLabelValues(string(msg.Kind), "sent").Inc()
	w.logger.InfoContext(ctx, "Email job delivered",
		applog.FieldUserID, msg.UserID,
		"kind", msg.Kind,
		"attempt", msg.Attempt)
	return nil
}

func (w *MailWorker) drop(ctx context.Context, msg *amqp.EmailJobMessage, err error) {
	metrics.Notifications.WithLabelValues(string(msg.Kind), "dropped").Inc()
	w.sl.LogError(ctx, "Dropping undeliverable email job", err, applog.ComponentWorker, applog.OpNotify,
		applog.NewFields().WithUser(msg.UserID))
}
