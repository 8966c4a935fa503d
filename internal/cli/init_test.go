package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"mysubs/internal/billing"
	"mysubs/internal/config"
	"mysubs/internal/mail"
	"mysubs/internal/services"
)

func testConfig() *config.Config {
	return &config.Config{
		AppURL:             "https://mysubs.example",
		DataBackend:        "memory",
		AnnualDiscountRate: 0.2,
		BillingAnchorMode:  "calendar",
		UpcomingOrder:      "days_until",
		UpcomingWindowDays: 14,
		LogLevel:           "debug",
		LogFormat:          "json",
	}
}

func TestSubscriptionConfig(t *testing.T) {
	sc, err := SubscriptionConfig(testConfig())
	if err != nil {
		t.Fatalf("SubscriptionConfig() error = %v", err)
	}
	if _, ok := sc.Anchor.(billing.CalendarAnchor); !ok {
		t.Errorf("anchor = %T, want CalendarAnchor", sc.Anchor)
	}
	if sc.Order != billing.OrderDaysUntil || sc.UpcomingWithin != 14 || sc.AnnualDiscount != 0.2 {
		t.Errorf("config = %+v", sc)
	}

	bad := testConfig()
	bad.BillingAnchorMode = "lunar"
	if _, err := SubscriptionConfig(bad); err == nil {
		t.Error("expected error for unknown anchor mode")
	}
}

func TestSetupLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger(testConfig(), &buf)
	logger.Debug("hello", "k", "v")
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"k":"v"`) {
		t.Errorf("log output = %q", buf.String())
	}
}

func TestInlineNotifierWithoutBroker(t *testing.T) {
	var buf bytes.Buffer
	cfg := testConfig()
	logger := SetupLogger(cfg, &buf)

	if _, ok := NewMailer(cfg, logger).(mail.LogMailer); !ok {
		t.Error("expected LogMailer without RESEND_API_KEY")
	}
	n, closeFn, err := Notifier(cfg, logger)
	if err != nil {
		t.Fatalf("Notifier() error = %v", err)
	}
	defer closeFn()
	if _, ok := n.(*services.DirectNotifier); !ok {
		t.Errorf("notifier = %T, want *services.DirectNotifier", n)
	}
}

func TestOpenStoreMemory(t *testing.T) {
	var buf bytes.Buffer
	cfg := testConfig()
	res, err := OpenStore(context.Background(), cfg, SetupLogger(cfg, &buf))
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	defer res.Cleanup()
	if err := res.Backend.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
