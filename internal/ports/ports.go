// Package ports declares the interfaces between the services and their
// outbound adapters.
package ports

import (
	"context"

	"mysubs/internal/core"
)

type (
	// SubscriptionRepository stores subscriptions. Every call is scoped to
	// one owner; records of other users behave as if they did not exist and
	// yield core.ErrNotFound.
	SubscriptionRepository interface {
		// ListSubscriptions returns the user's records ordered by display
		// order (unset last), then newest first.
		ListSubscriptions(ctx context.Context, userID string) ([]core.Subscription, error)
		GetSubscription(ctx context.Context, userID, id string) (core.Subscription, error)
		CreateSubscription(ctx context.Context, s core.Subscription) (core.Subscription, error)
		UpdateSubscription(ctx context.Context, s core.Subscription) (core.Subscription, error)
		SetActive(ctx context.Context, userID, id string, active bool) (core.Subscription, error)
		// Reorder assigns display order 0..n-1 following ids. Every id must
		// belong to the user.
		Reorder(ctx context.Context, userID string, ids []string) error
		DeleteSubscription(ctx context.Context, userID, id string) error
	}

	// ProfileRepository stores account-level state.
	ProfileRepository interface {
		GetProfile(ctx context.Context, userID string) (core.UserProfile, error)
		// EnsureProfile returns the profile, creating it with default
		// settings when missing. A non-empty email is recorded.
		EnsureProfile(ctx context.Context, userID, email string) (core.UserProfile, error)
		ListProfiles(ctx context.Context) ([]core.UserProfile, error)
		// SaveMembership upserts the payment state of a user.
		SaveMembership(ctx context.Context, userID string, m core.Membership) error
		// SaveMembershipByCustomer updates the profile linked to a payment
		// customer, or returns core.ErrNotFound.
		SaveMembershipByCustomer(ctx context.Context, customerID string, m core.Membership) error
		UpdateSettings(ctx context.Context, userID string, s core.NotificationSettings) error
	}

	// Store is a complete storage backend.
	Store interface {
		SubscriptionRepository
		ProfileRepository
		Ping(ctx context.Context) error
		Close() error
	}

	// RateSource supplies the USD to KRW exchange rate.
	RateSource interface {
		Rate(ctx context.Context) float64
	}

	// Mailer delivers one HTML email.
	Mailer interface {
		Send(ctx context.Context, to, subject, html string) error
	}

	// SheetExporter writes tabular rows into an external spreadsheet and
	// returns a reference to the written range.
	SheetExporter interface {
		ExportRows(ctx context.Context, title string, rows [][]string) (string, error)
	}
)
