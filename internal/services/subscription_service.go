package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mysubs/internal/billing"
	"mysubs/internal/cache"
	"mysubs/internal/core"
	applog "mysubs/internal/log"
	"mysubs/internal/ports"
)

// SubscriptionConfig tunes the dashboard projections.
type SubscriptionConfig struct {
	AnnualDiscount float64
	Anchor         billing.Anchor
	Order          billing.Order
	UpcomingWithin int
	HistoryMonths  int
	CacheSize      int
	CacheTTL       time.Duration
}

// DefaultSubscriptionConfig returns the dashboard defaults.
func DefaultSubscriptionConfig() SubscriptionConfig {
	return SubscriptionConfig{
		AnnualDiscount: billing.DefaultAnnualDiscount,
		Anchor:         billing.CompatAnchor{},
		Order:          billing.OrderBillingDay,
		UpcomingWithin: 7,
		HistoryMonths:  12,
		CacheSize:      500,
		CacheTTL:       5 * time.Minute,
	}
}

// SubscriptionService validates and stores subscriptions and builds the
// dashboard overview from the billing engine.
type SubscriptionService struct {
	repo      ports.SubscriptionRepository
	rates     ports.RateSource
	cfg       SubscriptionConfig
	overviews *cache.LRUCache[core.Overview]
	logger    *applog.StructuredLogger
	newID     func() string

	// gens counts writes per user so an overview built from a read that
	// raced a write is not cached.
	mu   sync.Mutex
	gens map[string]uint64
}

func NewSubscriptionService(repo ports.SubscriptionRepository, rates ports.RateSource, cfg SubscriptionConfig, logger *applog.Logger) *SubscriptionService {
	def := DefaultSubscriptionConfig()
	if cfg.Anchor == nil {
		cfg.Anchor = def.Anchor
	}
	if cfg.Order == "" {
		cfg.Order = def.Order
	}
	if cfg.UpcomingWithin <= 0 {
		cfg.UpcomingWithin = def.UpcomingWithin
	}
	if cfg.HistoryMonths <= 0 {
		cfg.HistoryMonths = def.HistoryMonths
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &SubscriptionService{
		repo:      repo,
		rates:     rates,
		cfg:       cfg,
		overviews: cache.NewLRUCache[core.Overview](cfg.CacheSize, cfg.CacheTTL),
		logger:    applog.NewStructuredLogger(logger.WithComponent(applog.ComponentSubscription)),
		newID:     func() string { return uuid.NewString() },
		gens:      make(map[string]uint64),
	}
}

// OverviewCache exposes the overview cache for periodic cleanup.
func (s *SubscriptionService) OverviewCache() cache.Cleaner {
	return s.overviews
}

func (s *SubscriptionService) List(ctx context.Context, userID string) ([]core.Subscription, error) {
	subs, err := s.repo.ListSubscriptions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}

func (s *SubscriptionService) Get(ctx context.Context, userID, id string) (core.Subscription, error) {
	return s.repo.GetSubscription(ctx, userID, id)
}

// Create assigns an id and owner, fills defaults, validates and stores sub.
func (s *SubscriptionService) Create(ctx context.Context, userID string, sub core.Subscription, today time.Time) (core.Subscription, error) {
	sub.ID = s.newID()
	sub.UserID = userID
	sub.DisplayOrder = nil
	normalize(&sub, today)
	if err := sub.Validate(); err != nil {
		return core.Subscription{}, err
	}

	created, err := s.repo.CreateSubscription(ctx, sub)
	if err != nil {
		s.logger.LogError(ctx, "Failed to create subscription", err, applog.ComponentSubscription, applog.OpCreate, applog.NewFields().WithUser(userID))
		return core.Subscription{}, fmt.Errorf("create subscription: %w", err)
	}
	s.changed(ctx, applog.OpCreate, created)
	return created, nil
}

// Update replaces the editable fields of an existing subscription.
func (s *SubscriptionService) Update(ctx context.Context, userID, id string, sub core.Subscription, today time.Time) (core.Subscription, error) {
	existing, err := s.repo.GetSubscription(ctx, userID, id)
	if err != nil {
		return core.Subscription{}, err
	}
	sub.ID = existing.ID
	sub.UserID = existing.UserID
	if sub.StartDate.IsZero() {
		sub.StartDate = existing.StartDate
	}
	normalize(&sub, today)
	if err := sub.Validate(); err != nil {
		return core.Subscription{}, err
	}

	updated, err := s.repo.UpdateSubscription(ctx, sub)
	if err != nil {
		return core.Subscription{}, err
	}
	s.changed(ctx, applog.OpUpdate, updated)
	return updated, nil
}

// Toggle flips the active flag.
func (s *SubscriptionService) Toggle(ctx context.Context, userID, id string) (core.Subscription, error) {
	existing, err := s.repo.GetSubscription(ctx, userID, id)
	if err != nil {
		return core.Subscription{}, err
	}
	updated, err := s.repo.SetActive(ctx, userID, id, !existing.IsActive)
	if err != nil {
		return core.Subscription{}, err
	}
	s.changed(ctx, applog.OpToggle, updated)
	return updated, nil
}

// Reorder stores the display order given by ids. Duplicate ids are rejected.
func (s *SubscriptionService) Reorder(ctx context.Context, userID string, ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidOrder, id)
		}
		seen[id] = struct{}{}
	}
	if err := s.repo.Reorder(ctx, userID, ids); err != nil {
		return err
	}
	s.invalidate(userID)
	return nil
}

func (s *SubscriptionService) Delete(ctx context.Context, userID, id string) error {
	existing, err := s.repo.GetSubscription(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteSubscription(ctx, userID, id); err != nil {
		return err
	}
	s.changed(ctx, applog.OpDelete, existing)
	return nil
}

// Upcoming lists active subscriptions charged within the given number of
// days. Non-positive within uses the configured window, an empty order the
// configured order.
func (s *SubscriptionService) Upcoming(ctx context.Context, userID string, today time.Time, within int, order billing.Order) ([]core.UpcomingBilling, error) {
	subs, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if within <= 0 {
		within = s.cfg.UpcomingWithin
	}
	if order == "" {
		order = s.cfg.Order
	}
	return billing.UpcomingBillings(subs, today, within, billing.WithAnchor(s.cfg.Anchor), billing.WithOrder(order)), nil
}

// Overview builds the dashboard summary of userID for today. Results are
// cached per user and day until the next write.
func (s *SubscriptionService) Overview(ctx context.Context, userID string, today time.Time) (core.Overview, error) {
	day := core.DateOf(today)
	key := userID + "|" + day.String()
	if ov, ok := s.overviews.Get(key); ok {
		return ov, nil
	}

	s.mu.Lock()
	gen := s.gens[userID]
	s.mu.Unlock()

	subs, err := s.List(ctx, userID)
	if err != nil {
		return core.Overview{}, err
	}
	rate := s.rates.Rate(ctx)
	ov := BuildOverview(subs, rate, today, s.cfg)

	s.mu.Lock()
	if s.gens[userID] == gen {
		s.overviews.Set(key, ov)
	}
	s.mu.Unlock()
	return ov, nil
}

// BuildOverview combines the engine outputs for one set of records.
func BuildOverview(subs []core.Subscription, rate float64, today time.Time, cfg SubscriptionConfig) core.Overview {
	active := billing.Active(subs)
	return core.Overview{
		Date:         core.DateOf(today),
		Rate:         rate,
		MonthlyTotal: core.RoundAmount(billing.MonthlyTotal(subs, rate)),
		YearlyTotal:  core.RoundAmount(billing.YearlyTotal(subs, rate)),
		ActiveCount:  len(active),
		TotalCount:   len(subs),
		ByCategory:   roundCategories(billing.CategoryAggregate(subs, rate)),
		Upcoming: billing.UpcomingBillings(subs, today, cfg.UpcomingWithin,
			billing.WithAnchor(cfg.Anchor), billing.WithOrder(cfg.Order)),
		Savings: roundSavings(billing.AnnualSavings(subs, rate, cfg.AnnualDiscount)),
		History: roundHistory(billing.SpendingHistory(subs, rate, today, cfg.HistoryMonths)),
	}
}

func (s *SubscriptionService) changed(ctx context.Context, op string, sub core.Subscription) {
	s.invalidate(sub.UserID)
	s.logger.LogSubscriptionChanged(ctx, op, sub.UserID, sub.ID, sub.Name, string(sub.Category), string(sub.BillingCycle), sub.BillingDay)
}

func (s *SubscriptionService) invalidate(userID string) {
	s.mu.Lock()
	s.gens[userID]++
	s.mu.Unlock()
	s.overviews.DeletePrefix(userID + "|")
}

// normalize trims text fields and fills defaults for omitted values.
func normalize(sub *core.Subscription, today time.Time) {
	sub.Name = strings.TrimSpace(sub.Name)
	sub.Memo = strings.TrimSpace(sub.Memo)
	if sub.Currency == "" {
		sub.Currency = core.KRW
	}
	if sub.BillingCycle == "" {
		sub.BillingCycle = core.Monthly
	}
	if sub.Category == "" {
		sub.Category = core.CategoryOther
	}
	if sub.StartDate.IsZero() {
		sub.StartDate = core.DateOf(today)
	}
	if sub.BillingDay == 0 {
		sub.BillingDay = sub.StartDate.Day()
	}
	if !sub.IsTrial {
		sub.TrialEndDate = core.Date{}
	}
	if !sub.IsShared {
		sub.SharedWith = 0
	}
	sub.Tags = cleanTags(sub.Tags)
}

func cleanTags(tags []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func roundCategories(in []core.CategoryAmount) []core.CategoryAmount {
	for i := range in {
		in[i].Amount = core.RoundAmount(in[i].Amount)
	}
	return in
}

func roundSavings(s core.Savings) core.Savings {
	return core.Savings{Current: core.RoundAmount(s.Current), Potential: core.RoundAmount(s.Potential)}
}

func roundHistory(in []core.MonthSpend) []core.MonthSpend {
	for i := range in {
		in[i].Amount = core.RoundAmount(in[i].Amount)
	}
	return in
}
