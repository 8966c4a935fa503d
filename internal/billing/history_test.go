package billing

import (
	"testing"
	"time"

	"mysubs/internal/core"
)

func TestSpendingHistory(t *testing.T) {
	monthly := sub("monthly", 10000, core.KRW, core.Monthly, 5, core.CategoryMusic)
	monthly.StartDate = core.NewDate(2025, 4, 15)
	yearly := sub("yearly", 120000, core.KRW, core.Yearly, 1, core.CategoryCloud)
	yearly.StartDate = core.NewDate(2024, 5, 1)
	usd := sub("usd", 10, core.USD, core.Monthly, 1, core.CategoryProductivity)
	usd.StartDate = core.NewDate(2025, 6, 2)
	off := sub("off", 99999, core.KRW, core.Monthly, 1, core.CategoryOther)
	off.IsActive = false

	got := SpendingHistory([]core.Subscription{monthly, yearly, usd, off}, testRate, day(2025, time.June, 20), 4)
	want := []core.MonthSpend{
		{Year: 2025, Month: 3, Amount: 0},
		{Year: 2025, Month: 4, Amount: 0},
		{Year: 2025, Month: 5, Amount: 10000 + 120000},
		{Year: 2025, Month: 6, Amount: 10000},
	}
	if len(got) != len(want) {
		t.Fatalf("SpendingHistory() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SpendingHistory()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSpendingHistoryStartBoundary(t *testing.T) {
	tests := []struct {
		name   string
		cycle  core.BillingCycle
		price  float64
		start  core.Date
		today  time.Time
		months int
		want   []float64
	}{
		{
			name:  "mid-month start skips that month",
			cycle: core.Monthly, price: 10000,
			start: core.NewDate(2025, 6, 15), today: day(2025, time.June, 20), months: 2,
			want: []float64{0, 0},
		},
		{
			name:  "start on the first counts that month",
			cycle: core.Monthly, price: 10000,
			start: core.NewDate(2025, 6, 1), today: day(2025, time.July, 3), months: 3,
			want: []float64{0, 10000, 10000},
		},
		{
			name:  "yearly charges on anniversaries only",
			cycle: core.Yearly, price: 120000,
			start: core.NewDate(2024, 6, 15), today: day(2025, time.June, 20), months: 13,
			want: []float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 120000},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sub("s", tt.price, core.KRW, tt.cycle, 15, core.CategoryOther)
			s.StartDate = tt.start
			got := SpendingHistory([]core.Subscription{s}, testRate, tt.today, tt.months)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i, w := range tt.want {
				if got[i].Amount != w {
					t.Errorf("point %d (%d-%02d) = %v, want %v", i, got[i].Year, got[i].Month, got[i].Amount, w)
				}
			}
		})
	}
}

func TestSpendingHistoryCrossesYear(t *testing.T) {
	got := SpendingHistory(nil, testRate, day(2025, time.February, 1), 3)
	if len(got) != 3 || got[0].Year != 2024 || got[0].Month != 12 || got[2].Month != 2 {
		t.Errorf("SpendingHistory() = %+v", got)
	}
	if SpendingHistory(nil, testRate, day(2025, time.February, 1), 0) != nil {
		t.Error("zero months should return nil")
	}
}
