package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// DefaultFrom is the sender used when MAIL_FROM is unset.
const DefaultFrom = "MySubs <noreply@mysubs.app>"

// ResendMailer delivers email through the Resend API.
type ResendMailer struct {
	client *resend.Client
	from   string
}

func NewResendMailer(apiKey, from string) *ResendMailer {
	if from == "" {
		from = DefaultFrom
	}
	return &ResendMailer{client: resend.NewClient(apiKey), from: from}
}

func (m *ResendMailer) Send(ctx context.Context, to, subject, html string) error {
	resp, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	})
	if err != nil {
		return fmt.Errorf("resend send: %w", err)
	}
	slog.DebugContext(ctx, "Email accepted by Resend", "email_id", resp.Id, "subject", subject)
	return nil
}

// LogMailer only logs outgoing email. Used when no API key is configured.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) Send(ctx context.Context, to, subject, _ string) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "Email delivery disabled, dropping message", "to", to, "subject", subject)
	return nil
}
