package billing

import (
	"testing"
	"time"

	"mysubs/internal/core"
)

func TestTrialDaysLeft(t *testing.T) {
	today := day(2025, time.March, 10)
	tests := []struct {
		name   string
		trial  bool
		end    core.Date
		want   int
		wantOK bool
	}{
		{"three days", true, core.NewDate(2025, 3, 13), 3, true},
		{"ends today", true, core.NewDate(2025, 3, 10), 0, true},
		{"expired", true, core.NewDate(2025, 3, 8), -2, true},
		{"across month", true, core.NewDate(2025, 4, 1), 22, true},
		{"flag without date", true, core.Date{}, 0, false},
		{"date without flag", false, core.NewDate(2025, 3, 13), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sub("t", 1000, core.KRW, core.Monthly, 1, core.CategoryOther)
			s.IsTrial, s.TrialEndDate = tt.trial, tt.end
			got, ok := TrialDaysLeft(s, today)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("TrialDaysLeft() = %d, %v, want %d, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestEndingTrials(t *testing.T) {
	today := day(2025, time.March, 10)
	mk := func(id string, end core.Date, active bool) core.Subscription {
		s := sub(id, 1000, core.KRW, core.Monthly, 1, core.CategoryOther)
		s.IsTrial, s.TrialEndDate, s.IsActive = true, end, active
		return s
	}
	subs := []core.Subscription{
		mk("three", core.NewDate(2025, 3, 13), true),
		mk("two", core.NewDate(2025, 3, 12), true),
		mk("one", core.NewDate(2025, 3, 11), true),
		mk("one-off", core.NewDate(2025, 3, 11), false),
	}
	got := EndingTrials(subs, today, 3, 1)
	if len(got) != 2 || got[0].Subscription.ID != "three" || got[0].DaysLeft != 3 || got[1].Subscription.ID != "one" || got[1].DaysLeft != 1 {
		t.Errorf("EndingTrials() = %+v", got)
	}
}
