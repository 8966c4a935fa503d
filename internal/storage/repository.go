package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mysubs/internal/core"

	_ "modernc.org/sqlite"
)

// timestampLayout is fixed width so text ordering matches time ordering.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

const subscriptionColumns = `id, user_id, name, price, currency, billing_cycle, billing_day, category,
	start_date, is_active, memo, logo_url, cancel_url, is_trial, trial_end_date, is_shared,
	shared_with, auto_renewal, tags, display_order, created_at, updated_at`

const profileColumns = `id, email, is_pro, stripe_customer_id, stripe_subscription_id,
	subscription_status, current_period_end, notification_settings, updated_at`

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// modernc serializes writers per connection; one connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("SQLite schema ready", "path", dbPath, "version", version)

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) ListSubscriptions(ctx context.Context, userID string) ([]core.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE user_id = ?
		ORDER BY display_order IS NULL, display_order, created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []core.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetSubscription(ctx context.Context, userID, id string) (core.Subscription, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE id = ? AND user_id = ?`, id, userID)
	s, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Subscription{}, core.ErrNotFound
	}
	if err != nil {
		return core.Subscription{}, fmt.Errorf("get subscription: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) CreateSubscription(ctx context.Context, s core.Subscription) (core.Subscription, error) {
	now := r.now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	tags, err := encodeTags(s.Tags)
	if err != nil {
		return core.Subscription{}, err
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.Name, s.Price, string(s.Currency), string(s.BillingCycle), s.BillingDay,
		string(s.Category), s.StartDate.String(), s.IsActive, s.Memo, s.LogoURL, s.CancelURL,
		s.IsTrial, nullDate(s.TrialEndDate), s.IsShared, sharedWith(s), s.AutoRenewal, tags,
		nullInt(s.DisplayOrder), formatTime(now), formatTime(now))
	if err != nil {
		return core.Subscription{}, fmt.Errorf("create subscription: %w", err)
	}

	slog.InfoContext(ctx, "Subscription saved to SQLite",
		"subscription_id", s.ID,
		"user_id", s.UserID,
		"billing_cycle", s.BillingCycle,
		"billing_day", s.BillingDay)
	return s, nil
}

func (r *SQLiteRepository) UpdateSubscription(ctx context.Context, s core.Subscription) (core.Subscription, error) {
	tags, err := encodeTags(s.Tags)
	if err != nil {
		return core.Subscription{}, err
	}
	now := r.now().UTC()

	res, err := r.db.ExecContext(ctx, `UPDATE subscriptions SET
		name = ?, price = ?, currency = ?, billing_cycle = ?, billing_day = ?, category = ?,
		start_date = ?, is_active = ?, memo = ?, logo_url = ?, cancel_url = ?, is_trial = ?,
		trial_end_date = ?, is_shared = ?, shared_with = ?, auto_renewal = ?, tags = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		s.Name, s.Price, string(s.Currency), string(s.BillingCycle), s.BillingDay, string(s.Category),
		s.StartDate.String(), s.IsActive, s.Memo, s.LogoURL, s.CancelURL, s.IsTrial,
		nullDate(s.TrialEndDate), s.IsShared, sharedWith(s), s.AutoRenewal, tags, formatTime(now),
		s.ID, s.UserID)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("update subscription: %w", err)
	}
	if err := expectOne(res); err != nil {
		return core.Subscription{}, err
	}
	return r.GetSubscription(ctx, s.UserID, s.ID)
}

func (r *SQLiteRepository) SetActive(ctx context.Context, userID, id string, active bool) (core.Subscription, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE subscriptions SET is_active = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`, active, formatTime(r.now().UTC()), id, userID)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("set active: %w", err)
	}
	if err := expectOne(res); err != nil {
		return core.Subscription{}, err
	}
	return r.GetSubscription(ctx, userID, id)
}

func (r *SQLiteRepository) Reorder(ctx context.Context, userID string, ids []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reorder: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(r.now().UTC())
	for i, id := range ids {
		res, err := tx.ExecContext(ctx, `UPDATE subscriptions SET display_order = ?, updated_at = ?
			WHERE id = ? AND user_id = ?`, i, now, id, userID)
		if err != nil {
			return fmt.Errorf("reorder %s: %w", id, err)
		}
		if err := expectOne(res); err != nil {
			return fmt.Errorf("reorder %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reorder: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteSubscription(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return expectOne(res)
}

func (r *SQLiteRepository) GetProfile(ctx context.Context, userID string) (core.UserProfile, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE id = ?`, userID)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserProfile{}, core.ErrNotFound
	}
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (r *SQLiteRepository) EnsureProfile(ctx context.Context, userID, email string) (core.UserProfile, error) {
	settings, err := json.Marshal(core.DefaultNotificationSettings())
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("encode settings: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO user_profiles (id, email, notification_settings, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			email = CASE WHEN excluded.email <> '' THEN excluded.email ELSE user_profiles.email END`,
		userID, email, string(settings), formatTime(r.now().UTC()))
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("ensure profile: %w", err)
	}
	return r.GetProfile(ctx, userID)
}

func (r *SQLiteRepository) ListProfiles(ctx context.Context) ([]core.UserProfile, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM user_profiles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []core.UserProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SaveMembership(ctx context.Context, userID string, m core.Membership) error {
	settings, err := json.Marshal(core.DefaultNotificationSettings())
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO user_profiles
		(id, is_pro, stripe_customer_id, stripe_subscription_id, subscription_status, current_period_end, notification_settings, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			is_pro = excluded.is_pro,
			stripe_customer_id = COALESCE(excluded.stripe_customer_id, user_profiles.stripe_customer_id),
			stripe_subscription_id = COALESCE(excluded.stripe_subscription_id, user_profiles.stripe_subscription_id),
			subscription_status = COALESCE(excluded.subscription_status, user_profiles.subscription_status),
			current_period_end = COALESCE(excluded.current_period_end, user_profiles.current_period_end),
			updated_at = excluded.updated_at`,
		userID, m.IsPro, nullString(m.CustomerID), nullString(m.SubscriptionID), nullString(m.Status),
		nullTime(m.CurrentPeriodEnd), string(settings), formatTime(r.now().UTC()))
	if err != nil {
		return fmt.Errorf("save membership: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) SaveMembershipByCustomer(ctx context.Context, customerID string, m core.Membership) error {
	res, err := r.db.ExecContext(ctx, `UPDATE user_profiles SET
			is_pro = ?,
			stripe_subscription_id = COALESCE(?, stripe_subscription_id),
			subscription_status = COALESCE(?, subscription_status),
			current_period_end = COALESCE(?, current_period_end),
			updated_at = ?
		WHERE stripe_customer_id = ?`,
		m.IsPro, nullString(m.SubscriptionID), nullString(m.Status), nullTime(m.CurrentPeriodEnd),
		formatTime(r.now().UTC()), customerID)
	if err != nil {
		return fmt.Errorf("save membership by customer: %w", err)
	}
	return expectOne(res)
}

func (r *SQLiteRepository) UpdateSettings(ctx context.Context, userID string, s core.NotificationSettings) error {
	settings, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE user_profiles SET notification_settings = ?, updated_at = ?
		WHERE id = ?`, string(settings), formatTime(r.now().UTC()), userID)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return expectOne(res)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row scanner) (core.Subscription, error) {
	var (
		s                               core.Subscription
		currency, cycle, category       string
		startDate, createdAt, updatedAt string
		trialEnd                        sql.NullString
		displayOrder                    sql.NullInt64
		tags                            string
	)
	err := row.Scan(&s.ID, &s.UserID, &s.Name, &s.Price, &currency, &cycle, &s.BillingDay, &category,
		&startDate, &s.IsActive, &s.Memo, &s.LogoURL, &s.CancelURL, &s.IsTrial, &trialEnd, &s.IsShared,
		&s.SharedWith, &s.AutoRenewal, &tags, &displayOrder, &createdAt, &updatedAt)
	if err != nil {
		return core.Subscription{}, err
	}
	s.Currency = core.Currency(currency)
	s.BillingCycle = core.BillingCycle(cycle)
	s.Category = core.Category(category)
	if s.StartDate, err = core.ParseDate(startDate); err != nil {
		return core.Subscription{}, err
	}
	if trialEnd.Valid {
		if s.TrialEndDate, err = core.ParseDate(trialEnd.String); err != nil {
			return core.Subscription{}, err
		}
	}
	if displayOrder.Valid {
		order := int(displayOrder.Int64)
		s.DisplayOrder = &order
	}
	if err := json.Unmarshal([]byte(tags), &s.Tags); err != nil {
		return core.Subscription{}, fmt.Errorf("decode tags: %w", err)
	}
	if len(s.Tags) == 0 {
		s.Tags = nil
	}
	if !s.IsShared {
		s.SharedWith = 0
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Subscription{}, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.Subscription{}, err
	}
	return s, nil
}

func scanProfile(row scanner) (core.UserProfile, error) {
	var (
		p                              core.UserProfile
		customer, subscription, status sql.NullString
		periodEnd                      sql.NullString
		settings, updatedAt            string
	)
	err := row.Scan(&p.ID, &p.Email, &p.IsPro, &customer, &subscription, &status, &periodEnd, &settings, &updatedAt)
	if err != nil {
		return core.UserProfile{}, err
	}
	p.StripeCustomerID = customer.String
	p.StripeSubscriptionID = subscription.String
	p.SubscriptionStatus = status.String
	if periodEnd.Valid {
		t, err := parseTime(periodEnd.String)
		if err != nil {
			return core.UserProfile{}, err
		}
		p.CurrentPeriodEnd = &t
	}
	p.Settings = core.DefaultNotificationSettings()
	if err := json.Unmarshal([]byte(settings), &p.Settings); err != nil {
		return core.UserProfile{}, fmt.Errorf("decode settings: %w", err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.UserProfile{}, err
	}
	return p, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}

func sharedWith(s core.Subscription) int {
	if s.IsShared && s.SharedWith > 0 {
		return s.SharedWith
	}
	return 1
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		// rows written by hand or by older tools
		if t, err2 := time.Parse(time.RFC3339Nano, strings.TrimSpace(s)); err2 == nil {
			return t, nil
		}
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullDate(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
