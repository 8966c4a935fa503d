package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"mysubs/internal/amqp"
	"mysubs/internal/core"
	applog "mysubs/internal/log"
)

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

type fixedRate struct {
	mu    sync.Mutex
	rate  float64
	calls int
}

func (f *fixedRate) Rate(context.Context) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.rate
}

type recordingNotifier struct {
	sent []Notification
	fail map[core.NotificationKind]bool
}

func (n *recordingNotifier) Notify(_ context.Context, msg Notification) error {
	if n.fail[msg.Kind] {
		return errors.New("smtp down")
	}
	n.sent = append(n.sent, msg)
	return nil
}

type flakyMailer struct {
	failures int
	calls    int
	subjects []string
}

func (m *flakyMailer) Send(_ context.Context, _, subject, _ string) error {
	m.calls++
	if m.calls <= m.failures {
		return errors.New("temporary failure")
	}
	m.subjects = append(m.subjects, subject)
	return nil
}

type capturePublisher struct {
	msgs []*amqp.EmailJobMessage
}

func (p *capturePublisher) PublishEmailJob(_ context.Context, msg *amqp.EmailJobMessage) error {
	p.msgs = append(p.msgs, msg)
	return nil
}
