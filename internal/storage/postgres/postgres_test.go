package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"

	"mysubs/internal/core"
)

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	st := New(mock, slog.New(slog.NewTextHandler(io.Discard, nil)))
	st.now = func() time.Time { return fixedNow }
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
	return st, mock
}

func subscriptionRow(mock pgxmock.PgxPoolIface) *pgxmock.Rows {
	return mock.NewRows(subscriptionColumns).AddRow(
		"s1", "u1", "Netflix", 17000.0, "KRW", "monthly", 15, "streaming",
		time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), true, "", "", "", false,
		nil, false, 1, true, []string{"video"}, nil, fixedNow, fixedNow,
	)
}

func TestListSubscriptions(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT id, user_id, .* FROM subscriptions WHERE user_id = \$1 ORDER BY display_order ASC NULLS LAST, created_at DESC`).
		WithArgs("u1").
		WillReturnRows(subscriptionRow(mock))

	subs, err := st.ListSubscriptions(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListSubscriptions: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("got %d subscriptions", len(subs))
	}
	got := subs[0]
	if got.Name != "Netflix" || got.Price != 17000 || got.BillingDay != 15 || got.Currency != core.KRW {
		t.Errorf("got %+v", got)
	}
	if got.StartDate.String() != "2024-01-15" || !got.TrialEndDate.IsZero() {
		t.Errorf("dates = %s, %s", got.StartDate, got.TrialEndDate)
	}
	if got.DisplayOrder != nil || got.SharedWith != 0 {
		t.Errorf("display order %v, shared with %d", got.DisplayOrder, got.SharedWith)
	}
}

func TestGetSubscriptionNotFound(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT .* FROM subscriptions WHERE id = \$1 AND user_id = \$2`).
		WithArgs("s1", "u2").
		WillReturnError(pgx.ErrNoRows)

	_, err := st.GetSubscription(context.Background(), "u2", "s1")
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateSubscription(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO subscriptions \(id,user_id,.*\) VALUES \(\$1,\$2,`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	sub := core.Subscription{
		ID: "s1", UserID: "u1", Name: "Netflix", Price: 17000, Currency: core.KRW,
		BillingCycle: core.Monthly, BillingDay: 15, Category: core.CategoryStreaming,
		StartDate: core.NewDate(2024, 1, 15), IsActive: true,
	}
	got, err := st.CreateSubscription(context.Background(), sub)
	if err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	if !got.CreatedAt.Equal(fixedNow) || !got.UpdatedAt.Equal(fixedNow) {
		t.Errorf("timestamps = %v, %v", got.CreatedAt, got.UpdatedAt)
	}
}

func TestReorder(t *testing.T) {
	const update = `UPDATE subscriptions SET display_order = \$1, updated_at = \$2 WHERE id = \$3 AND user_id = \$4`

	t.Run("commits when every id belongs to the user", func(t *testing.T) {
		st, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(update).WithArgs(0, fixedNow, "b", "u1").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(update).WithArgs(1, fixedNow, "a", "u1").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		if err := st.Reorder(context.Background(), "u1", []string{"b", "a"}); err != nil {
			t.Fatalf("Reorder: %v", err)
		}
	})

	t.Run("rolls back on a foreign id", func(t *testing.T) {
		st, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(update).WithArgs(0, fixedNow, "a", "u1").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(update).WithArgs(1, fixedNow, "other", "u1").WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectRollback()

		err := st.Reorder(context.Background(), "u1", []string{"a", "other"})
		if !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestDeleteSubscriptionMissing(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(`DELETE FROM subscriptions WHERE id = \$1 AND user_id = \$2`).
		WithArgs("s1", "u1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := st.DeleteSubscription(context.Background(), "u1", "s1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetProfileDecodesSettings(t *testing.T) {
	st, mock := newMockStore(t)
	rows := mock.NewRows(profileColumns).AddRow(
		"u1", "a@example.com", true, "cus_1", "sub_1", "active", nil,
		[]byte(`{"billingReminder":false,"billingReminderDays":5}`), fixedNow,
	)
	mock.ExpectQuery(`SELECT .* FROM user_profiles WHERE id = \$1`).WithArgs("u1").WillReturnRows(rows)

	p, err := st.GetProfile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if !p.IsPro || p.StripeCustomerID != "cus_1" || p.CurrentPeriodEnd != nil {
		t.Errorf("profile = %+v", p)
	}
	if p.Settings.BillingReminder || p.Settings.BillingReminderDays != 5 {
		t.Errorf("settings = %+v", p.Settings)
	}
	// keys absent from the stored document keep their defaults
	if !p.Settings.MonthlyReport || p.Settings.TrialEndingDays != 3 {
		t.Errorf("defaults lost: %+v", p.Settings)
	}
}

func TestSaveMembershipByCustomerUnknown(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE user_profiles SET is_pro = \$1, .* WHERE stripe_customer_id = \$\d+`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := st.SaveMembershipByCustomer(context.Background(), "cus_x", core.Membership{Status: core.StatusCanceled})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://u:p@localhost:5432/db?sslmode=disable", "pgx5://u:p@localhost:5432/db?sslmode=disable"},
		{"postgresql://localhost/db", "pgx5://localhost/db"},
		{"pgx5://localhost/db", "pgx5://localhost/db"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := migrateURL(tt.in); got != tt.want {
				t.Errorf("migrateURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
