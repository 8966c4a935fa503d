package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"mysubs/internal/amqp"
	"mysubs/internal/core"
	applog "mysubs/internal/log"
	"mysubs/internal/mail"
)

type sentMail struct{ to, subject, html string }

type recordingMailer struct {
	sent []sentMail
	err  error
}

func (m *recordingMailer) Send(_ context.Context, to, subject, html string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to, subject, html})
	return nil
}

func newWorker(t *testing.T, mailer *recordingMailer) *MailWorker {
	t.Helper()
	r, err := mail.NewRenderer("https://mysubs.example/")
	if err != nil {
		t.Fatal(err)
	}
	logger := applog.New(applog.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	return NewMailWorker(r, mailer, logger)
}

func trialJob(t *testing.T) *amqp.EmailJobMessage {
	t.Helper()
	msg, err := amqp.NewEmailJobMessage(core.NotifyTrialEnding, "kim@example.com", "u1", mail.TrialEnding{
		UserName:         "kim",
		SubscriptionName: "Disney+",
		TrialEndDate:     "2024-03-17",
		DaysLeft:         3,
		Price:            9900,
		Currency:         core.KRW,
		Cycle:            core.Monthly,
	})
	if err != nil {
		t.Fatal(err)
	}
	return msg
}

func TestHandleEmailJobSends(t *testing.T) {
	mailer := &recordingMailer{}
	w := newWorker(t, mailer)

	if err := w.HandleEmailJob(context.Background(), trialJob(t)); err != nil {
		t.Fatalf("HandleEmailJob() error = %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(mailer.sent))
	}
	got := mailer.sent[0]
	if got.to != "kim@example.com" {
		t.Errorf("to = %q", got.to)
	}
	if !strings.Contains(got.html, "Disney+") {
		t.Errorf("body does not name the subscription: %s", got.html)
	}
}

func TestHandleEmailJobSendFailureIsRetryable(t *testing.T) {
	mailer := &recordingMailer{err: errors.New("resend: 503")}
	w := newWorker(t, mailer)

	if err := w.HandleEmailJob(context.Background(), trialJob(t)); err == nil {
		t.Fatal("expected error so the job is requeued")
	}
}

func TestHandleEmailJobDropsBadPayload(t *testing.T) {
	tests := []struct {
		name    string
		kind    core.NotificationKind
		payload string
	}{
		{"malformed json", core.NotifyBillingReminder, `{"items":`},
		{"wrong shape", core.NotifyMonthlyReport, `{"categories":"none"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailer := &recordingMailer{}
			w := newWorker(t, mailer)
			msg := &amqp.EmailJobMessage{Kind: tt.kind, To: "a@b.c", UserID: "u1", Payload: json.RawMessage(tt.payload)}
			if err := w.HandleEmailJob(context.Background(), msg); err != nil {
				t.Fatalf("HandleEmailJob() error = %v, want nil for a dropped job", err)
			}
			if len(mailer.sent) != 0 {
				t.Errorf("sent %d emails for an undecodable job", len(mailer.sent))
			}
		})
	}
}
