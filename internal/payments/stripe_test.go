package payments

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	"mysubs/internal/core"
	"mysubs/internal/storage/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(Config{WebhookSecret: "whsec_test", AppURL: "https://mysubs.test"}, store, logger)
	return svc, store
}

func event(typ stripe.EventType, raw string) stripe.Event {
	return stripe.Event{ID: "evt_1", Type: typ, Data: &stripe.EventData{Raw: []byte(raw)}}
}

func TestHandleEventCheckoutCompleted(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	outcome, err := svc.HandleEvent(ctx, event(stripe.EventTypeCheckoutSessionCompleted,
		`{"id":"cs_1","customer":"cus_1","subscription":"sub_1","metadata":{"user_id":"u1"}}`))
	if err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if outcome != OutcomeApplied {
		t.Errorf("outcome = %q, want %q", outcome, OutcomeApplied)
	}

	p, err := store.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if !p.IsPro || p.StripeCustomerID != "cus_1" || p.StripeSubscriptionID != "sub_1" || p.SubscriptionStatus != core.StatusActive {
		t.Errorf("profile = %+v", p)
	}
}

func TestHandleEventCheckoutUserReference(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"legacy metadata key", `{"id":"cs_1","customer":"cus_1","metadata":{"userId":"u2"}}`, "u2"},
		{"client reference", `{"id":"cs_1","customer":"cus_1","client_reference_id":"u3"}`, "u3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			svc, store := newTestService(t)
			if _, err := svc.HandleEvent(ctx, event(stripe.EventTypeCheckoutSessionCompleted, tt.raw)); err != nil {
				t.Fatalf("HandleEvent() error = %v", err)
			}
			p, err := store.GetProfile(ctx, tt.want)
			if err != nil {
				t.Fatalf("GetProfile(%q) error = %v", tt.want, err)
			}
			if !p.IsPro {
				t.Errorf("IsPro = false, want true")
			}
		})
	}
}

func TestHandleEventCheckoutWithoutUser(t *testing.T) {
	svc, _ := newTestService(t)
	outcome, err := svc.HandleEvent(context.Background(), event(stripe.EventTypeCheckoutSessionCompleted, `{"id":"cs_1"}`))
	if err != nil || outcome != OutcomeIgnored {
		t.Errorf("HandleEvent() = %q, %v; want ignored", outcome, err)
	}
}

func TestHandleEventSubscriptionLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	if err := store.SaveMembership(ctx, "u1", core.Membership{IsPro: true, CustomerID: "cus_1", Status: core.StatusActive}); err != nil {
		t.Fatal(err)
	}

	end := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name       string
		typ        stripe.EventType
		raw        string
		wantPro    bool
		wantStatus string
	}{
		{
			name:       "past due",
			typ:        stripe.EventTypeCustomerSubscriptionUpdated,
			raw:        `{"id":"sub_1","customer":"cus_1","status":"past_due","current_period_end":1711929600}`,
			wantPro:    false,
			wantStatus: "past_due",
		},
		{
			name:       "trialing",
			typ:        stripe.EventTypeCustomerSubscriptionUpdated,
			raw:        `{"id":"sub_1","customer":"cus_1","status":"trialing","current_period_end":1711929600}`,
			wantPro:    true,
			wantStatus: core.StatusTrialing,
		},
		{
			name:       "deleted",
			typ:        stripe.EventTypeCustomerSubscriptionDeleted,
			raw:        `{"id":"sub_1","customer":"cus_1","status":"canceled"}`,
			wantPro:    false,
			wantStatus: core.StatusCanceled,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := svc.HandleEvent(ctx, event(tt.typ, tt.raw))
			if err != nil {
				t.Fatalf("HandleEvent() error = %v", err)
			}
			if outcome != OutcomeApplied {
				t.Errorf("outcome = %q, want %q", outcome, OutcomeApplied)
			}
			p, _ := store.GetProfile(ctx, "u1")
			if p.IsPro != tt.wantPro || p.SubscriptionStatus != tt.wantStatus {
				t.Errorf("profile = pro %v status %q, want pro %v status %q", p.IsPro, p.SubscriptionStatus, tt.wantPro, tt.wantStatus)
			}
			if p.CurrentPeriodEnd == nil || !p.CurrentPeriodEnd.Equal(end) {
				t.Errorf("CurrentPeriodEnd = %v, want %v", p.CurrentPeriodEnd, end)
			}
		})
	}
}

func TestHandleEventUnknownCustomer(t *testing.T) {
	svc, _ := newTestService(t)
	outcome, err := svc.HandleEvent(context.Background(), event(stripe.EventTypeCustomerSubscriptionUpdated,
		`{"id":"sub_9","customer":"cus_missing","status":"active"}`))
	if err != nil || outcome != OutcomeIgnored {
		t.Errorf("HandleEvent() = %q, %v; want ignored", outcome, err)
	}
}

func TestHandleEventIgnoresOtherTypes(t *testing.T) {
	svc, _ := newTestService(t)
	outcome, err := svc.HandleEvent(context.Background(), event("invoice.paid", `{"id":"in_1"}`))
	if err != nil || outcome != OutcomeIgnored {
		t.Errorf("HandleEvent() = %q, %v; want ignored", outcome, err)
	}
}

func TestHandleEventMalformedPayload(t *testing.T) {
	svc, _ := newTestService(t)
	outcome, err := svc.HandleEvent(context.Background(), event(stripe.EventTypeCheckoutSessionCompleted, `{"id":`))
	if err == nil || outcome != OutcomeFailed {
		t.Errorf("HandleEvent() = %q, %v; want failure", outcome, err)
	}
}

func TestHandleWebhookSignature(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	payload := []byte(`{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","object":"checkout.session","customer":"cus_1","metadata":{"user_id":"u1"}}}}`)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_test",
		Timestamp: time.Now(),
	})
	if err := svc.HandleWebhook(ctx, signed.Payload, signed.Header); err != nil {
		t.Fatalf("HandleWebhook() error = %v", err)
	}
	if p, err := store.GetProfile(ctx, "u1"); err != nil || !p.IsPro {
		t.Errorf("profile = %+v, %v; want Pro", p, err)
	}

	err := svc.HandleWebhook(ctx, payload, "t=1,v1=deadbeef")
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("HandleWebhook(bad signature) error = %v, want ErrInvalidSignature", err)
	}
}

func TestUnconfigured(t *testing.T) {
	ctx := context.Background()
	svc := NewService(Config{}, memory.New(), nil)
	if _, err := svc.CheckoutURL(ctx, "u1", "a@b.c"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("CheckoutURL() error = %v, want ErrNotConfigured", err)
	}
	if _, err := svc.PortalURL(ctx, "u1"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("PortalURL() error = %v, want ErrNotConfigured", err)
	}
	if err := svc.HandleWebhook(ctx, []byte("{}"), ""); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("HandleWebhook() error = %v, want ErrNotConfigured", err)
	}
}

func TestPortalRequiresCustomer(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	if _, err := store.EnsureProfile(ctx, "u1", "a@b.c"); err != nil {
		t.Fatal(err)
	}
	svc := NewService(Config{SecretKey: "sk_test_123"}, store, nil)
	for _, id := range []string{"u1", "nobody"} {
		if _, err := svc.PortalURL(ctx, id); !errors.Is(err, ErrNoCustomer) {
			t.Errorf("PortalURL(%q) error = %v, want ErrNoCustomer", id, err)
		}
	}
}
