// Package postgres stores subscriptions and profiles in PostgreSQL through
// pgx, with queries built by squirrel.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"mysubs/internal/core"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var subscriptionColumns = []string{
	"id", "user_id", "name", "price", "currency", "billing_cycle", "billing_day", "category",
	"start_date", "is_active", "memo", "logo_url", "cancel_url", "is_trial", "trial_end_date",
	"is_shared", "shared_with", "auto_renewal", "tags", "display_order", "created_at", "updated_at",
}

var profileColumns = []string{
	"id", "email", "is_pro", "stripe_customer_id", "stripe_subscription_id",
	"subscription_status", "current_period_end", "notification_settings", "updated_at",
}

type Store struct {
	db     DB
	logger *slog.Logger
	now    func() time.Time
}

// Open connects to databaseURL, applies migrations and returns a store.
func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (*Store, error) {
	if err := RunMigrations(databaseURL); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return New(pool, logger), nil
}

// New wraps an existing connection.
func New(db DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger.With(slog.String("component", "postgres")), now: time.Now}
}

// RunMigrations applies the embedded schema to databaseURL.
func RunMigrations(databaseURL string) error {
	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", d, migrateURL(databaseURL))
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// migrateURL rewrites a libpq style URL to the scheme of the pgx/v5 migrate driver.
func migrateURL(databaseURL string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, prefix)
		}
	}
	return databaseURL
}

func (s *Store) Ping(ctx context.Context) error { return s.db.Ping(ctx) }

func (s *Store) Close() error {
	s.db.Close()
	return nil
}

func (s *Store) ListSubscriptions(ctx context.Context, userID string) ([]core.Subscription, error) {
	query, args, err := psql.Select(subscriptionColumns...).
		From("subscriptions").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("display_order ASC NULLS LAST", "created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list subscriptions", slog.String("user_id", userID), slog.Any("error", err))
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []core.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read subscriptions: %w", err)
	}
	return out, nil
}

func (s *Store) GetSubscription(ctx context.Context, userID, id string) (core.Subscription, error) {
	query, args, err := psql.Select(subscriptionColumns...).
		From("subscriptions").
		Where(sq.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return core.Subscription{}, fmt.Errorf("build get query: %w", err)
	}
	sub, err := scanSubscription(s.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Subscription{}, core.ErrNotFound
	}
	if err != nil {
		return core.Subscription{}, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

func (s *Store) CreateSubscription(ctx context.Context, sub core.Subscription) (core.Subscription, error) {
	now := s.now().UTC()
	sub.CreatedAt, sub.UpdatedAt = now, now
	tags := sub.Tags
	if tags == nil {
		tags = []string{}
	}

	query, args, err := psql.Insert("subscriptions").
		Columns(subscriptionColumns...).
		Values(sub.ID, sub.UserID, sub.Name, sub.Price, string(sub.Currency), string(sub.BillingCycle),
			sub.BillingDay, string(sub.Category), sub.StartDate.Time, sub.IsActive, sub.Memo, sub.LogoURL,
			sub.CancelURL, sub.IsTrial, nullDate(sub.TrialEndDate), sub.IsShared, sharedWith(sub),
			sub.AutoRenewal, tags, sub.DisplayOrder, now, now).
		ToSql()
	if err != nil {
		return core.Subscription{}, fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		s.logger.ErrorContext(ctx, "Failed to insert subscription", slog.String("subscription_id", sub.ID), slog.Any("error", err))
		return core.Subscription{}, fmt.Errorf("create subscription: %w", err)
	}
	return sub, nil
}

func (s *Store) UpdateSubscription(ctx context.Context, sub core.Subscription) (core.Subscription, error) {
	tags := sub.Tags
	if tags == nil {
		tags = []string{}
	}
	query, args, err := psql.Update("subscriptions").
		SetMap(map[string]any{
			"name":           sub.Name,
			"price":          sub.Price,
			"currency":       string(sub.Currency),
			"billing_cycle":  string(sub.BillingCycle),
			"billing_day":    sub.BillingDay,
			"category":       string(sub.Category),
			"start_date":     sub.StartDate.Time,
			"is_active":      sub.IsActive,
			"memo":           sub.Memo,
			"logo_url":       sub.LogoURL,
			"cancel_url":     sub.CancelURL,
			"is_trial":       sub.IsTrial,
			"trial_end_date": nullDate(sub.TrialEndDate),
			"is_shared":      sub.IsShared,
			"shared_with":    sharedWith(sub),
			"auto_renewal":   sub.AutoRenewal,
			"tags":           tags,
			"updated_at":     s.now().UTC(),
		}).
		Where(sq.Eq{"id": sub.ID, "user_id": sub.UserID}).
		Suffix("RETURNING " + strings.Join(subscriptionColumns, ", ")).
		ToSql()
	if err != nil {
		return core.Subscription{}, fmt.Errorf("build update: %w", err)
	}
	updated, err := scanSubscription(s.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Subscription{}, core.ErrNotFound
	}
	if err != nil {
		return core.Subscription{}, fmt.Errorf("update subscription: %w", err)
	}
	return updated, nil
}

func (s *Store) SetActive(ctx context.Context, userID, id string, active bool) (core.Subscription, error) {
	query, args, err := psql.Update("subscriptions").
		Set("is_active", active).
		Set("updated_at", s.now().UTC()).
		Where(sq.Eq{"id": id, "user_id": userID}).
		Suffix("RETURNING " + strings.Join(subscriptionColumns, ", ")).
		ToSql()
	if err != nil {
		return core.Subscription{}, fmt.Errorf("build set active: %w", err)
	}
	updated, err := scanSubscription(s.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Subscription{}, core.ErrNotFound
	}
	if err != nil {
		return core.Subscription{}, fmt.Errorf("set active: %w", err)
	}
	return updated, nil
}

func (s *Store) Reorder(ctx context.Context, userID string, ids []string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reorder: %w", err)
	}
	defer tx.Rollback(ctx)

	now := s.now().UTC()
	for i, id := range ids {
		query, args, err := psql.Update("subscriptions").
			Set("display_order", i).
			Set("updated_at", now).
			Where(sq.Eq{"id": id, "user_id": userID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build reorder: %w", err)
		}
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("reorder %s: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("reorder %s: %w", id, core.ErrNotFound)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reorder: %w", err)
	}
	return nil
}

func (s *Store) DeleteSubscription(ctx context.Context, userID, id string) error {
	query, args, err := psql.Delete("subscriptions").
		Where(sq.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (core.UserProfile, error) {
	query, args, err := psql.Select(profileColumns...).
		From("user_profiles").
		Where(sq.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("build profile query: %w", err)
	}
	p, err := scanProfile(s.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.UserProfile{}, core.ErrNotFound
	}
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *Store) EnsureProfile(ctx context.Context, userID, email string) (core.UserProfile, error) {
	settings, err := json.Marshal(core.DefaultNotificationSettings())
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("encode settings: %w", err)
	}
	query, args, err := psql.Insert("user_profiles").
		Columns("id", "email", "notification_settings", "updated_at").
		Values(userID, email, settings, s.now().UTC()).
		Suffix(`ON CONFLICT (id) DO UPDATE SET email = CASE WHEN EXCLUDED.email <> '' THEN EXCLUDED.email ELSE user_profiles.email END
			RETURNING ` + strings.Join(profileColumns, ", ")).
		ToSql()
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("build ensure profile: %w", err)
	}
	p, err := scanProfile(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("ensure profile: %w", err)
	}
	return p, nil
}

func (s *Store) ListProfiles(ctx context.Context) ([]core.UserProfile, error) {
	query, args, err := psql.Select(profileColumns...).From("user_profiles").OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build profiles query: %w", err)
	}
	rows, err := s.db.Query(ctx, query, args...)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	return out, nil
}

func (s *Store) SaveMembership(ctx context.Context, userID string, m core.Membership) error {
	settings, err := json.Marshal(core.DefaultNotificationSettings())
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	query, args, err := psql.Insert("user_profiles").
		Columns("id", "is_pro", "stripe_customer_id", "stripe_subscription_id",
			"subscription_status", "current_period_end", "notification_settings", "updated_at").
		Values(userID, m.IsPro, nullString(m.CustomerID), nullString(m.SubscriptionID),
			nullString(m.Status), m.CurrentPeriodEnd, settings, s.now().UTC()).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			is_pro = EXCLUDED.is_pro,
			stripe_customer_id = COALESCE(EXCLUDED.stripe_customer_id, user_profiles.stripe_customer_id),
			stripe_subscription_id = COALESCE(EXCLUDED.stripe_subscription_id, user_profiles.stripe_subscription_id),
			subscription_status = COALESCE(EXCLUDED.subscription_status, user_profiles.subscription_status),
			current_period_end = COALESCE(EXCLUDED.current_period_end, user_profiles.current_period_end),
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build save membership: %w", err)
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("save membership: %w", err)
	}
	return nil
}

func (s *Store) SaveMembershipByCustomer(ctx context.Context, customerID string, m core.Membership) error {
	query, args, err := psql.Update("user_profiles").
		Set("is_pro", m.IsPro).
		Set("stripe_subscription_id", sq.Expr("COALESCE(?, stripe_subscription_id)", nullString(m.SubscriptionID))).
		Set("subscription_status", sq.Expr("COALESCE(?, subscription_status)", nullString(m.Status))).
		Set("current_period_end", sq.Expr("COALESCE(?, current_period_end)", m.CurrentPeriodEnd)).
		Set("updated_at", s.now().UTC()).
		Where(sq.Eq{"stripe_customer_id": customerID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build save membership by customer: %w", err)
	}
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("save membership by customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateSettings(ctx context.Context, userID string, settings core.NotificationSettings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	query, args, err := psql.Update("user_profiles").
		Set("notification_settings", raw).
		Set("updated_at", s.now().UTC()).
		Where(sq.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update settings: %w", err)
	}
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func scanSubscription(row pgx.Row) (core.Subscription, error) {
	var (
		sub                       core.Subscription
		currency, cycle, category string
		startDate                 time.Time
		trialEnd                  pgtype.Date
		displayOrder              pgtype.Int4
	)
	err := row.Scan(&sub.ID, &sub.UserID, &sub.Name, &sub.Price, &currency, &cycle, &sub.BillingDay,
		&category, &startDate, &sub.IsActive, &sub.Memo, &sub.LogoURL, &sub.CancelURL, &sub.IsTrial,
		&trialEnd, &sub.IsShared, &sub.SharedWith, &sub.AutoRenewal, &sub.Tags, &displayOrder,
		&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return core.Subscription{}, err
	}
	sub.Currency = core.Currency(currency)
	sub.BillingCycle = core.BillingCycle(cycle)
	sub.Category = core.Category(category)
	sub.StartDate = core.DateOf(startDate)
	if trialEnd.Valid {
		sub.TrialEndDate = core.DateOf(trialEnd.Time)
	}
	if displayOrder.Valid {
		order := int(displayOrder.Int32)
		sub.DisplayOrder = &order
	}
	if len(sub.Tags) == 0 {
		sub.Tags = nil
	}
	if !sub.IsShared {
		sub.SharedWith = 0
	}
	return sub, nil
}

func scanProfile(row pgx.Row) (core.UserProfile, error) {
	var (
		p                              core.UserProfile
		customer, subscription, status pgtype.Text
		periodEnd                      pgtype.Timestamptz
		settings                       []byte
	)
	err := row.Scan(&p.ID, &p.Email, &p.IsPro, &customer, &subscription, &status, &periodEnd, &settings, &p.UpdatedAt)
	if err != nil {
		return core.UserProfile{}, err
	}
	p.StripeCustomerID = customer.String
	p.StripeSubscriptionID = subscription.String
	p.SubscriptionStatus = status.String
	if periodEnd.Valid {
		t := periodEnd.Time
		p.CurrentPeriodEnd = &t
	}
	p.Settings = core.DefaultNotificationSettings()
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &p.Settings); err != nil {
			return core.UserProfile{}, fmt.Errorf("decode settings: %w", err)
		}
	}
	return p, nil
}

func sharedWith(s core.Subscription) int {
	if s.IsShared && s.SharedWith > 0 {
		return s.SharedWith
	}
	return 1
}

func nullDate(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.Time
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
