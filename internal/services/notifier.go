package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mysubs/internal/amqp"
	"mysubs/internal/core"
	"mysubs/internal/mail"
	"mysubs/internal/ports"
)

// Notification is one email to deliver. Data is the template payload of Kind.
type Notification struct {
	Kind   core.NotificationKind
	To     string
	UserID string
	Data   any
}

// Notifier delivers notifications, either immediately or through a queue.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// DirectNotifier renders and sends in the caller's goroutine, retrying
// failed sends with exponential backoff.
type DirectNotifier struct {
	renderer *mail.Renderer
	mailer   ports.Mailer
	attempts int
	backoff  func(attempt int) time.Duration
}

func NewDirectNotifier(renderer *mail.Renderer, mailer ports.Mailer) *DirectNotifier {
	return &DirectNotifier{
		renderer: renderer,
		mailer:   mailer,
		attempts: 3,
		backoff:  sendBackoff,
	}
}

func (d *DirectNotifier) Notify(ctx context.Context, n Notification) error {
	email, err := d.renderer.Render(n.Kind, n.Data)
	if err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		err = d.mailer.Send(ctx, n.To, email.Subject, email.HTML)
		if err == nil {
			return nil
		}
		if attempt+1 >= d.attempts {
			return fmt.Errorf("send %s after %d attempts: %w", n.Kind, d.attempts, err)
		}
		wait := d.backoff(attempt)
		slog.WarnContext(ctx, "Email send failed, retrying", "kind", n.Kind, "attempt", attempt+1, "backoff", wait, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Outcome reports a successful Notify as delivered.
func (d *DirectNotifier) Outcome() string { return "sent" }

// sendBackoff returns 500ms, 1s, 2s... capped at 10s.
func sendBackoff(attempt int) time.Duration {
	d := 500 * time.Millisecond << min(attempt, 5)
	return min(d, 10*time.Second)
}

// JobPublisher queues email jobs for the mail worker.
type JobPublisher interface {
	PublishEmailJob(ctx context.Context, msg *amqp.EmailJobMessage) error
}

// QueueNotifier hands notifications to the mail worker over AMQP.
type QueueNotifier struct {
	publisher JobPublisher
}

func NewQueueNotifier(p JobPublisher) *QueueNotifier {
	return &QueueNotifier{publisher: p}
}

func (q *QueueNotifier) Notify(ctx context.Context, n Notification) error {
	msg, err := amqp.NewEmailJobMessage(n.Kind, n.To, n.UserID, n.Data)
	if err != nil {
		return fmt.Errorf("build email job: %w", err)
	}
	return q.publisher.PublishEmailJob(ctx, msg)
}

// Outcome reports a successful Notify as handed to the worker.
func (q *QueueNotifier) Outcome() string { return "queued" }
