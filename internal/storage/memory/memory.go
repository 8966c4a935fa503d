// Package memory is an in-process store used by tests and demo runs.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"mysubs/internal/core"
)

type Store struct {
	mu       sync.Mutex
	now      func() time.Time
	subs     map[string]core.Subscription
	profiles map[string]core.UserProfile
}

func New() *Store {
	return &Store{
		now:      time.Now,
		subs:     make(map[string]core.Subscription),
		profiles: make(map[string]core.UserProfile),
	}
}

// WithClock replaces the timestamp source, mainly for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) ListSubscriptions(_ context.Context, userID string) ([]core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Subscription
	for _, sub := range s.subs {
		if sub.UserID == userID {
			out = append(out, clone(sub))
		}
	}
	SortForDisplay(out)
	return out, nil
}

func (s *Store) GetSubscription(_ context.Context, userID, id string) (core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok || sub.UserID != userID {
		return core.Subscription{}, core.ErrNotFound
	}
	return clone(sub), nil
}

func (s *Store) CreateSubscription(_ context.Context, sub core.Subscription) (core.Subscription, error) {
	if sub.ID == "" || sub.UserID == "" {
		return core.Subscription{}, fmt.Errorf("create subscription: id and user id are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.subs[sub.ID]; exists {
		return core.Subscription{}, fmt.Errorf("create subscription: duplicate id %s", sub.ID)
	}
	now := s.now().UTC()
	sub.CreatedAt, sub.UpdatedAt = now, now
	s.subs[sub.ID] = clone(sub)
	return clone(sub), nil
}

func (s *Store) UpdateSubscription(_ context.Context, sub core.Subscription) (core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.subs[sub.ID]
	if !ok || existing.UserID != sub.UserID {
		return core.Subscription{}, core.ErrNotFound
	}
	sub.CreatedAt = existing.CreatedAt
	sub.DisplayOrder = existing.DisplayOrder
	sub.UpdatedAt = s.now().UTC()
	s.subs[sub.ID] = clone(sub)
	return clone(sub), nil
}

func (s *Store) SetActive(_ context.Context, userID, id string, active bool) (core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok || sub.UserID != userID {
		return core.Subscription{}, core.ErrNotFound
	}
	sub.IsActive = active
	sub.UpdatedAt = s.now().UTC()
	s.subs[id] = sub
	return clone(sub), nil
}

func (s *Store) Reorder(_ context.Context, userID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if sub, ok := s.subs[id]; !ok || sub.UserID != userID {
			return fmt.Errorf("reorder %s: %w", id, core.ErrNotFound)
		}
	}
	now := s.now().UTC()
	for i, id := range ids {
		sub := s.subs[id]
		order := i
		sub.DisplayOrder = &order
		sub.UpdatedAt = now
		s.subs[id] = sub
	}
	return nil
}

func (s *Store) DeleteSubscription(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok || sub.UserID != userID {
		return core.ErrNotFound
	}
	delete(s.subs, id)
	return nil
}

func (s *Store) GetProfile(_ context.Context, userID string) (core.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return core.UserProfile{}, core.ErrNotFound
	}
	return p, nil
}

func (s *Store) EnsureProfile(_ context.Context, userID, email string) (core.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		p = core.UserProfile{ID: userID, Settings: core.DefaultNotificationSettings()}
	}
	if email != "" {
		p.Email = email
	}
	if !ok || email != "" {
		p.UpdatedAt = s.now().UTC()
		s.profiles[userID] = p
	}
	return p, nil
}

func (s *Store) ListProfiles(context.Context) ([]core.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.UserProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveMembership(_ context.Context, userID string, m core.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		p = core.UserProfile{ID: userID, Settings: core.DefaultNotificationSettings()}
	}
	p.Apply(m)
	p.UpdatedAt = s.now().UTC()
	s.profiles[userID] = p
	return nil
}

func (s *Store) SaveMembershipByCustomer(_ context.Context, customerID string, m core.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.profiles {
		if p.StripeCustomerID == customerID {
			p.Apply(m)
			p.UpdatedAt = s.now().UTC()
			s.profiles[id] = p
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *Store) UpdateSettings(_ context.Context, userID string, settings core.NotificationSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return core.ErrNotFound
	}
	p.Settings = settings
	p.UpdatedAt = s.now().UTC()
	s.profiles[userID] = p
	return nil
}

// SortForDisplay orders subscriptions by display order with unset orders
// last, then by creation time, newest first.
func SortForDisplay(subs []core.Subscription) {
	sort.SliceStable(subs, func(i, j int) bool {
		a, b := subs[i].DisplayOrder, subs[j].DisplayOrder
		switch {
		case a != nil && b != nil && *a != *b:
			return *a < *b
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return subs[i].CreatedAt.After(subs[j].CreatedAt)
	})
}

func clone(s core.Subscription) core.Subscription {
	s.Tags = slices.Clone(s.Tags)
	if s.DisplayOrder != nil {
		order := *s.DisplayOrder
		s.DisplayOrder = &order
	}
	return s
}
