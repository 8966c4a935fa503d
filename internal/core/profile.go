package core

import (
	"errors"
	"time"
)

// Stripe subscription states mirrored onto a profile.
const (
	StatusActive   = "active"
	StatusTrialing = "trialing"
	StatusCanceled = "canceled"
)

var ErrInvalidSettings = errors.New("invalid notification settings")

type (
	// NotificationSettings holds a user's email preferences.
	NotificationSettings struct {
		BillingReminder     bool `json:"billingReminder"`
		BillingReminderDays int  `json:"billingReminderDays"`
		TrialEndingReminder bool `json:"trialEndingReminder"`
		TrialEndingDays     int  `json:"trialEndingDays"`
		MonthlyReport       bool `json:"monthlyReport"`
		MonthlyReportDay    int  `json:"monthlyReportDay"`
		EmailNotifications  bool `json:"emailNotifications"`
	}

	// UserProfile is the account-level state owned by this service. Identity
	// itself lives with the auth provider; ID is its subject.
	UserProfile struct {
		ID                   string               `json:"id"`
		Email                string               `json:"email"`
		IsPro                bool                 `json:"isPro"`
		StripeCustomerID     string               `json:"stripeCustomerId,omitempty"`
		StripeSubscriptionID string               `json:"stripeSubscriptionId,omitempty"`
		SubscriptionStatus   string               `json:"subscriptionStatus,omitempty"`
		CurrentPeriodEnd     *time.Time           `json:"currentPeriodEnd,omitempty"`
		Settings             NotificationSettings `json:"settings"`
		UpdatedAt            time.Time            `json:"updatedAt"`
	}
)

// DefaultNotificationSettings returns the settings a new account starts with.
func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		BillingReminder:     true,
		BillingReminderDays: 3,
		TrialEndingReminder: true,
		TrialEndingDays:     3,
		MonthlyReport:       true,
		MonthlyReportDay:    1,
		EmailNotifications:  true,
	}
}

func (n NotificationSettings) Validate() error {
	if n.BillingReminderDays < 0 || n.BillingReminderDays > 30 {
		return errors.Join(ErrInvalidSettings, errors.New("billingReminderDays must be between 0 and 30"))
	}
	if n.TrialEndingDays < 1 || n.TrialEndingDays > 30 {
		return errors.Join(ErrInvalidSettings, errors.New("trialEndingDays must be between 1 and 30"))
	}
	if n.MonthlyReportDay < 1 || n.MonthlyReportDay > 28 {
		return errors.Join(ErrInvalidSettings, errors.New("monthlyReportDay must be between 1 and 28"))
	}
	return nil
}

// Wants reports whether email of the given kind may be sent under these settings.
func (n NotificationSettings) Wants(kind NotificationKind) bool {
	if !n.EmailNotifications {
		return false
	}
	switch kind {
	case NotifyBillingReminder:
		return n.BillingReminder
	case NotifyTrialEnding:
		return n.TrialEndingReminder
	case NotifyMonthlyReport:
		return n.MonthlyReport
	}
	return false
}

// NotificationKind names an email the reminder jobs can send.
type NotificationKind string

const (
	NotifyBillingReminder NotificationKind = "billing_reminder"
	NotifyTrialEnding     NotificationKind = "trial_ending"
	NotifyMonthlyReport   NotificationKind = "monthly_report"
)

func (k NotificationKind) IsValid() bool {
	switch k {
	case NotifyBillingReminder, NotifyTrialEnding, NotifyMonthlyReport:
		return true
	}
	return false
}

// Membership is the paid-plan state pushed by the payment provider.
type Membership struct {
	IsPro            bool
	CustomerID       string
	SubscriptionID   string
	Status           string
	CurrentPeriodEnd *time.Time
}

// Apply copies the non-empty membership fields onto the profile.
func (p *UserProfile) Apply(m Membership) {
	p.IsPro = m.IsPro
	if m.CustomerID != "" {
		p.StripeCustomerID = m.CustomerID
	}
	if m.SubscriptionID != "" {
		p.StripeSubscriptionID = m.SubscriptionID
	}
	if m.Status != "" {
		p.SubscriptionStatus = m.Status
	}
	if m.CurrentPeriodEnd != nil {
		p.CurrentPeriodEnd = m.CurrentPeriodEnd
	}
}
