package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"mysubs/internal/billing"
	"mysubs/internal/core"
	applog "mysubs/internal/log"
	"mysubs/internal/mail"
	"mysubs/internal/metrics"
	"mysubs/internal/ports"
)

// Job names used in logs, metrics and the cron endpoints.
const (
	JobBillingReminder = "billing-reminder"
	JobTrialReminder   = "trial-reminder"
	JobMonthlyReport   = "monthly-report"
)

// JobResult summarizes one reminder batch. Processed counts the users the
// job looked at; Sent and Failed count emails.
type JobResult struct {
	Job       string   `json:"job"`
	Processed int      `json:"processed"`
	Sent      int      `json:"emailsSent"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// ReminderService runs the scheduled email jobs. Users are handled one at a
// time and a failure for one user never stops the batch.
type ReminderService struct {
	profiles ports.ProfileRepository
	subs     ports.SubscriptionRepository
	rates    ports.RateSource
	notifier Notifier
	anchor   billing.Anchor
	logger   *applog.Logger
	sl       *applog.StructuredLogger
}

func NewReminderService(profiles ports.ProfileRepository, subs ports.SubscriptionRepository, rates ports.RateSource, notifier Notifier, anchor billing.Anchor, logger *applog.Logger) *ReminderService {
	if anchor == nil {
		anchor = billing.CompatAnchor{}
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentJobs)
	return &ReminderService{
		profiles: profiles,
		subs:     subs,
		rates:    rates,
		notifier: notifier,
		anchor:   anchor,
		logger:   logger,
		sl:       applog.NewStructuredLogger(logger),
	}
}

// Run dispatches a job by name.
func (r *ReminderService) Run(ctx context.Context, job string, now time.Time) (JobResult, error) {
	switch job {
	case JobBillingReminder:
		return r.BillingReminders(ctx, now)
	case JobTrialReminder:
		return r.TrialReminders(ctx, now)
	case JobMonthlyReport:
		return r.MonthlyReports(ctx, now)
	}
	return JobResult{}, fmt.Errorf("unknown job %q", job)
}

// BillingReminders emails Pro users about active subscriptions charged
// within their reminder window, today included.
func (r *ReminderService) BillingReminders(ctx context.Context, now time.Time) (JobResult, error) {
	return r.forEachProfile(ctx, JobBillingReminder, func(p core.UserProfile, res *JobResult) error {
		if !p.IsPro || !p.Settings.Wants(core.NotifyBillingReminder) {
			return nil
		}
		subs, err := r.subs.ListSubscriptions(ctx, p.ID)
		if err != nil {
			return err
		}
		res.Processed++

		due := billing.UpcomingBillings(subs, now, p.Settings.BillingReminderDays, billing.WithAnchor(r.anchor), billing.ByDaysUntil())
		if len(due) == 0 {
			return nil
		}
		data := mail.BillingReminder{UserName: userName(p.Email)}
		for _, u := range due {
			data.Items = append(data.Items, mail.BillingItem{
				Name:       u.Subscription.Name,
				Price:      u.Subscription.Price,
				Currency:   u.Subscription.Currency,
				BillingDay: u.Subscription.BillingDay,
				DaysUntil:  u.DaysUntil,
			})
		}
		r.send(ctx, res, Notification{Kind: core.NotifyBillingReminder, To: p.Email, UserID: p.ID, Data: data})
		return nil
	})
}

// TrialReminders emails every user whose trial ends in exactly their
// configured number of days, or tomorrow.
func (r *ReminderService) TrialReminders(ctx context.Context, now time.Time) (JobResult, error) {
	return r.forEachProfile(ctx, JobTrialReminder, func(p core.UserProfile, res *JobResult) error {
		if !p.Settings.Wants(core.NotifyTrialEnding) {
			return nil
		}
		subs, err := r.subs.ListSubscriptions(ctx, p.ID)
		if err != nil {
			return err
		}
		res.Processed++

		for _, t := range billing.EndingTrials(subs, now, p.Settings.TrialEndingDays, 1) {
			s := t.Subscription
			r.send(ctx, res, Notification{
				Kind:   core.NotifyTrialEnding,
				To:     p.Email,
				UserID: p.ID,
				Data: mail.TrialEnding{
					UserName:         userName(p.Email),
					SubscriptionName: s.Name,
					TrialEndDate:     s.TrialEndDate.String(),
					DaysLeft:         t.DaysLeft,
					Price:            s.Price,
					Currency:         s.Currency,
					Cycle:            s.BillingCycle,
					CancelURL:        s.CancelURL,
				},
			})
		}
		return nil
	})
}

// MonthlyReports emails Pro users their previous month summary on their
// chosen report day.
func (r *ReminderService) MonthlyReports(ctx context.Context, now time.Time) (JobResult, error) {
	rate := 0.0
	return r.forEachProfile(ctx, JobMonthlyReport, func(p core.UserProfile, res *JobResult) error {
		if !p.IsPro || !p.Settings.Wants(core.NotifyMonthlyReport) || now.Day() != p.Settings.MonthlyReportDay {
			return nil
		}
		subs, err := r.subs.ListSubscriptions(ctx, p.ID)
		if err != nil {
			return err
		}
		res.Processed++

		active := billing.Active(subs)
		if len(active) == 0 {
			return nil
		}
		if rate == 0 {
			rate = r.rates.Rate(ctx)
		}
		r.send(ctx, res, Notification{
			Kind:   core.NotifyMonthlyReport,
			To:     p.Email,
			UserID: p.ID,
			Data:   MonthlyReportData(p, active, rate, now),
		})
		return nil
	})
}

// MonthlyReportData summarizes the active records for the month before now.
func MonthlyReportData(p core.UserProfile, active []core.Subscription, rate float64, now time.Time) mail.MonthlyReport {
	var krw, usd float64
	for _, s := range active {
		if s.Currency == core.USD {
			// raw USD per month, without conversion
			usd += billing.MonthlyEquivalent(s, 1)
		} else {
			krw += billing.MonthlyEquivalent(s, rate)
		}
	}
	prev := time.Date(now.Year(), now.Month()-1, 1, 0, 0, 0, 0, time.UTC)
	return mail.MonthlyReport{
		UserName:          userName(p.Email),
		Month:             fmt.Sprintf("%d년 %d월", prev.Year(), prev.Month()),
		TotalKRW:          core.RoundAmount(krw),
		TotalUSD:          math.Round(usd*100) / 100,
		SubscriptionCount: len(active),
		Categories:        roundCategories(billing.CategoryAggregate(active, rate)),
		UpcomingTotal:     core.RoundAmount(billing.MonthlyTotal(active, rate)),
	}
}

func (r *ReminderService) forEachProfile(ctx context.Context, job string, fn func(core.UserProfile, *JobResult) error) (JobResult, error) {
	metrics.JobRuns.WithLabelValues(job).Inc()
	res := JobResult{Job: job}

	profiles, err := r.profiles.ListProfiles(ctx)
	if err != nil {
		r.sl.LogError(ctx, "Failed to list profiles", err, applog.ComponentJobs, applog.OpNotify, applog.NewFields())
		return res, fmt.Errorf("list profiles: %w", err)
	}

	for _, p := range profiles {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if p.Email == "" {
			continue
		}
		if err := fn(p, &res); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("user %s: %v", p.ID, err))
			r.logger.WarnContext(ctx, "Reminder job skipped user", applog.FieldJob, job, applog.FieldUserID, p.ID, applog.FieldError, err)
		}
	}

	r.sl.LogJobResult(ctx, job, res.Processed, res.Sent, res.Failed)
	return res, nil
}

func (r *ReminderService) send(ctx context.Context, res *JobResult, n Notification) {
	if err := r.notifier.Notify(ctx, n); err != nil {
		res.Failed++
		res.Errors = append(res.Errors, fmt.Sprintf("send %s to user %s: %v", n.Kind, n.UserID, err))
		metrics.Notifications.WithLabelValues(string(n.Kind), "failed").Inc()
		return
	}
	res.Sent++
	metrics.Notifications.WithLabelValues(string(n.Kind), deliveryResult(r.notifier)).Inc()
}

// deliveryResult is the metric label for a successful Notify. Queued jobs
// are counted again as sent by the mail worker.
func deliveryResult(n Notifier) string {
	if o, ok := n.(interface{ Outcome() string }); ok {
		return o.Outcome()
	}
	return "sent"
}

// userName is the local part of an email address.
func userName(email string) string {
	name, _, _ := strings.Cut(email, "@")
	return name
}
