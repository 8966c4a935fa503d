// Package storagetest holds the behaviour every ports.Store must share.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"mysubs/internal/core"
	"mysubs/internal/ports"
)

// Factory builds an empty store for one subtest.
type Factory func(t *testing.T) ports.Store

func sample(id, user string, day int) core.Subscription {
	return core.Subscription{
		ID:           id,
		UserID:       user,
		Name:         "Sub " + id,
		Price:        9900,
		Currency:     core.KRW,
		BillingCycle: core.Monthly,
		BillingDay:   day,
		Category:     core.CategoryStreaming,
		StartDate:    core.NewDate(2024, 1, day),
		IsActive:     true,
		AutoRenewal:  true,
	}
}

// Run exercises the store contract against fresh stores from newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()
	ctx := context.Background()

	t.Run("create and get round trip", func(t *testing.T) {
		st := newStore(t)
		in := sample("a", "u1", 15)
		in.Currency = core.USD
		in.Price = 8.5
		in.Tags = []string{"video", "family"}
		in.IsTrial = true
		in.TrialEndDate = core.NewDate(2024, 2, 1)
		in.IsShared = true
		in.SharedWith = 3
		in.Memo = "memo"

		created, err := st.CreateSubscription(ctx, in)
		if err != nil {
			t.Fatalf("CreateSubscription: %v", err)
		}
		if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
			t.Fatalf("timestamps not set: %+v", created)
		}

		got, err := st.GetSubscription(ctx, "u1", "a")
		if err != nil {
			t.Fatalf("GetSubscription: %v", err)
		}
		if got.Name != in.Name || got.Price != 8.5 || got.Currency != core.USD {
			t.Errorf("got %+v", got)
		}
		if got.StartDate.String() != "2024-01-15" || got.TrialEndDate.String() != "2024-02-01" {
			t.Errorf("dates = %s, %s", got.StartDate, got.TrialEndDate)
		}
		if len(got.Tags) != 2 || got.Tags[0] != "video" {
			t.Errorf("tags = %v", got.Tags)
		}
		if !got.IsShared || got.SharedWith != 3 || got.Memo != "memo" {
			t.Errorf("share fields = %+v", got)
		}
		if got.DisplayOrder != nil {
			t.Errorf("display order = %v, want nil", *got.DisplayOrder)
		}
	})

	t.Run("records are scoped to their owner", func(t *testing.T) {
		st := newStore(t)
		if _, err := st.CreateSubscription(ctx, sample("a", "u1", 1)); err != nil {
			t.Fatal(err)
		}

		if _, err := st.GetSubscription(ctx, "u2", "a"); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("get by other user: err = %v", err)
		}
		other := sample("a", "u2", 2)
		if _, err := st.UpdateSubscription(ctx, other); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("update by other user: err = %v", err)
		}
		if _, err := st.SetActive(ctx, "u2", "a", false); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("set active by other user: err = %v", err)
		}
		if err := st.DeleteSubscription(ctx, "u2", "a"); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("delete by other user: err = %v", err)
		}
		list, err := st.ListSubscriptions(ctx, "u2")
		if err != nil || len(list) != 0 {
			t.Errorf("list for other user = %v, %v", list, err)
		}
	})

	t.Run("update and set active", func(t *testing.T) {
		st := newStore(t)
		if _, err := st.CreateSubscription(ctx, sample("a", "u1", 1)); err != nil {
			t.Fatal(err)
		}
		upd := sample("a", "u1", 20)
		upd.Name = "Renamed"
		upd.BillingCycle = core.Yearly
		got, err := st.UpdateSubscription(ctx, upd)
		if err != nil {
			t.Fatalf("UpdateSubscription: %v", err)
		}
		if got.Name != "Renamed" || got.BillingDay != 20 || got.BillingCycle != core.Yearly {
			t.Errorf("updated = %+v", got)
		}

		got, err = st.SetActive(ctx, "u1", "a", false)
		if err != nil {
			t.Fatalf("SetActive: %v", err)
		}
		if got.IsActive {
			t.Error("expected inactive")
		}
	})

	t.Run("reorder sets display order and list follows it", func(t *testing.T) {
		st := newStore(t)
		for _, id := range []string{"a", "b", "c"} {
			if _, err := st.CreateSubscription(ctx, sample(id, "u1", 1)); err != nil {
				t.Fatal(err)
			}
		}
		if err := st.Reorder(ctx, "u1", []string{"c", "a"}); err != nil {
			t.Fatalf("Reorder: %v", err)
		}
		list, err := st.ListSubscriptions(ctx, "u1")
		if err != nil {
			t.Fatal(err)
		}
		var ids []string
		for _, s := range list {
			ids = append(ids, s.ID)
		}
		want := []string{"c", "a", "b"}
		if len(ids) != len(want) {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
		for i := range want {
			if ids[i] != want[i] {
				t.Fatalf("ids = %v, want %v", ids, want)
			}
		}
		if list[0].DisplayOrder == nil || *list[0].DisplayOrder != 0 {
			t.Errorf("first display order = %v", list[0].DisplayOrder)
		}
	})

	t.Run("reorder rejects foreign ids", func(t *testing.T) {
		st := newStore(t)
		if _, err := st.CreateSubscription(ctx, sample("a", "u1", 1)); err != nil {
			t.Fatal(err)
		}
		if _, err := st.CreateSubscription(ctx, sample("b", "u2", 1)); err != nil {
			t.Fatal(err)
		}
		err := st.Reorder(ctx, "u1", []string{"a", "b"})
		if !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
		got, err := st.GetSubscription(ctx, "u1", "a")
		if err != nil {
			t.Fatal(err)
		}
		if got.DisplayOrder != nil {
			t.Errorf("partial reorder applied: %v", *got.DisplayOrder)
		}
	})

	t.Run("delete", func(t *testing.T) {
		st := newStore(t)
		if _, err := st.CreateSubscription(ctx, sample("a", "u1", 1)); err != nil {
			t.Fatal(err)
		}
		if err := st.DeleteSubscription(ctx, "u1", "a"); err != nil {
			t.Fatalf("DeleteSubscription: %v", err)
		}
		if err := st.DeleteSubscription(ctx, "u1", "a"); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("second delete err = %v", err)
		}
	})

	t.Run("profiles", func(t *testing.T) {
		st := newStore(t)
		if _, err := st.GetProfile(ctx, "u1"); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("missing profile err = %v", err)
		}
		p, err := st.EnsureProfile(ctx, "u1", "a@example.com")
		if err != nil {
			t.Fatalf("EnsureProfile: %v", err)
		}
		if p.Email != "a@example.com" || p.Settings != core.DefaultNotificationSettings() {
			t.Errorf("profile = %+v", p)
		}
		p, err = st.EnsureProfile(ctx, "u1", "")
		if err != nil || p.Email != "a@example.com" {
			t.Errorf("email lost: %+v, %v", p, err)
		}

		settings := core.DefaultNotificationSettings()
		settings.MonthlyReportDay = 15
		settings.BillingReminder = false
		if err := st.UpdateSettings(ctx, "u1", settings); err != nil {
			t.Fatalf("UpdateSettings: %v", err)
		}
		if err := st.UpdateSettings(ctx, "nobody", settings); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("update settings for missing user err = %v", err)
		}

		end := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
		m := core.Membership{IsPro: true, CustomerID: "cus_1", SubscriptionID: "sub_1", Status: core.StatusActive, CurrentPeriodEnd: &end}
		if err := st.SaveMembership(ctx, "u1", m); err != nil {
			t.Fatalf("SaveMembership: %v", err)
		}
		if err := st.SaveMembershipByCustomer(ctx, "cus_1", core.Membership{IsPro: false, Status: core.StatusCanceled}); err != nil {
			t.Fatalf("SaveMembershipByCustomer: %v", err)
		}
		if err := st.SaveMembershipByCustomer(ctx, "cus_missing", m); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("unknown customer err = %v", err)
		}

		p, err = st.GetProfile(ctx, "u1")
		if err != nil {
			t.Fatal(err)
		}
		if p.IsPro || p.SubscriptionStatus != core.StatusCanceled || p.StripeSubscriptionID != "sub_1" {
			t.Errorf("membership = %+v", p)
		}
		if p.CurrentPeriodEnd == nil || !p.CurrentPeriodEnd.Equal(end) {
			t.Errorf("period end = %v", p.CurrentPeriodEnd)
		}
		if p.Settings.MonthlyReportDay != 15 || p.Settings.BillingReminder {
			t.Errorf("settings = %+v", p.Settings)
		}

		// membership for a user who never signed in creates the profile
		if err := st.SaveMembership(ctx, "u2", core.Membership{IsPro: true}); err != nil {
			t.Fatal(err)
		}
		all, err := st.ListProfiles(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 2 || all[0].ID != "u1" || all[1].ID != "u2" || !all[1].IsPro {
			t.Errorf("profiles = %+v", all)
		}
	})
}
