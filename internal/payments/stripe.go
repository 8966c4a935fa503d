// Package payments sells the Pro plan through Stripe Checkout and keeps
// user profiles in step with Stripe webhook events.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"

	"mysubs/internal/core"
	applog "mysubs/internal/log"
	"mysubs/internal/metrics"
	"mysubs/internal/ports"
)

var (
	ErrNotConfigured    = errors.New("payments are not configured")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrNoCustomer       = errors.New("no billing customer for user")
)

// Webhook outcomes reported in metrics.
const (
	OutcomeApplied = "applied"
	OutcomeIgnored = "ignored"
	OutcomeFailed  = "failed"
)

type Config struct {
	SecretKey     string
	WebhookSecret string
	PriceID       string
	// AppURL is the public origin used for redirect urls.
	AppURL string
}

type Service struct {
	api      *client.API
	cfg      Config
	profiles ports.ProfileRepository
	logger   *slog.Logger
}

func NewService(cfg Config, profiles ports.ProfileRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		cfg:      cfg,
		profiles: profiles,
		logger:   logger.With(slog.String(applog.FieldComponent, applog.ComponentPayments)),
	}
	if cfg.SecretKey != "" {
		s.api = client.New(cfg.SecretKey, nil)
	}
	return s
}

// CheckoutURL opens a subscription Checkout session for the user and
// returns the hosted page url.
func (s *Service) CheckoutURL(ctx context.Context, userID, email string) (string, error) {
	if s.api == nil || s.cfg.PriceID == "" {
		return "", ErrNotConfigured
	}
	base := strings.TrimRight(s.cfg.AppURL, "/")
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(s.cfg.PriceID),
			Quantity: stripe.Int64(1),
		}},
		SuccessURL:        stripe.String(base + "/dashboard?success=true"),
		CancelURL:         stripe.String(base + "/pricing?canceled=true"),
		ClientReferenceID: stripe.String(userID),
	}
	if email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	s.logger.InfoContext(ctx, "Checkout session created", "user_id", userID, "session_id", sess.ID)
	return sess.URL, nil
}

// PortalURL opens a billing portal session for a user who already pays.
func (s *Service) PortalURL(ctx context.Context, userID string) (string, error) {
	if s.api == nil {
		return "", ErrNotConfigured
	}
	profile, err := s.profiles.GetProfile(ctx, userID)
	if errors.Is(err, core.ErrNotFound) || (err == nil && profile.StripeCustomerID == "") {
		return "", ErrNoCustomer
	}
	if err != nil {
		return "", err
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(profile.StripeCustomerID),
		ReturnURL: stripe.String(strings.TrimRight(s.cfg.AppURL, "/") + "/dashboard"),
	}
	params.Context = ctx
	sess, err := s.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return sess.URL, nil
}

// HandleWebhook verifies the Stripe signature of payload and applies the event.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.cfg.WebhookSecret == "" {
		return ErrNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		s.logger.WarnContext(ctx, "Webhook signature verification failed", "error", err)
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	_, err = s.HandleEvent(ctx, event)
	return err
}

// HandleEvent applies a verified event to the matching profile and reports
// whether it changed anything.
func (s *Service) HandleEvent(ctx context.Context, event stripe.Event) (string, error) {
	outcome, err := s.apply(ctx, event)
	if err != nil {
		outcome = OutcomeFailed
		s.logger.ErrorContext(ctx, "Failed to apply webhook event", "event_type", event.Type, "event_id", event.ID, "error", err)
	}
	metrics.StripeEvents.WithLabelValues(string(event.Type), outcome).Inc()
	return outcome, err
}

func (s *Service) apply(ctx context.Context, event stripe.Event) (string, error) {
	if event.Data == nil {
		return OutcomeIgnored, nil
	}
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return "", fmt.Errorf("decode checkout session: %w", err)
		}
		userID := sess.Metadata["user_id"]
		if userID == "" {
			userID = sess.Metadata["userId"]
		}
		if userID == "" {
			userID = sess.ClientReferenceID
		}
		if userID == "" {
			s.logger.WarnContext(ctx, "Checkout session without user reference", "session_id", sess.ID)
			return OutcomeIgnored, nil
		}
		m := core.Membership{IsPro: true, Status: core.StatusActive}
		if sess.Customer != nil {
			m.CustomerID = sess.Customer.ID
		}
		if sess.Subscription != nil {
			m.SubscriptionID = sess.Subscription.ID
		}
		if err := s.profiles.SaveMembership(ctx, userID, m); err != nil {
			return "", err
		}
		s.logger.InfoContext(ctx, "User upgraded to Pro", "user_id", userID)
		return OutcomeApplied, nil

	case stripe.EventTypeCustomerSubscriptionUpdated, stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return "", fmt.Errorf("decode subscription: %w", err)
		}
		if sub.Customer == nil || sub.Customer.ID == "" {
			return OutcomeIgnored, nil
		}
		m := membershipFor(event.Type, sub)
		err := s.profiles.SaveMembershipByCustomer(ctx, sub.Customer.ID, m)
		if errors.Is(err, core.ErrNotFound) {
			s.logger.WarnContext(ctx, "No profile for Stripe customer", "customer_id", sub.Customer.ID)
			return OutcomeIgnored, nil
		}
		if err != nil {
			return "", err
		}
		return OutcomeApplied, nil
	}
	return OutcomeIgnored, nil
}

func membershipFor(eventType stripe.EventType, sub stripe.Subscription) core.Membership {
	if eventType == stripe.EventTypeCustomerSubscriptionDeleted {
		return core.Membership{IsPro: false, Status: core.StatusCanceled}
	}
	status := string(sub.Status)
	m := core.Membership{
		IsPro:          status == core.StatusActive || status == core.StatusTrialing,
		SubscriptionID: sub.ID,
		Status:         status,
	}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		m.CurrentPeriodEnd = &end
	}
	return m
}
