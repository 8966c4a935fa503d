package billing

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 30, 0, 0, time.UTC)
}

func TestDaysUntilNextBilling(t *testing.T) {
	tests := []struct {
		name       string
		billingDay int
		today      time.Time
		want       int
	}{
		{"later this month", 15, day(2025, time.June, 10), 5},
		{"today", 10, day(2025, time.June, 10), 0},
		{"rollover in 30-day month", 5, day(2025, time.June, 28), 7},
		{"same-month branch past short month end", 29, day(2025, time.February, 28), 1},
		{"no clamp for 31 in 30-day month", 31, day(2025, time.April, 30), 1},
		{"rollover from 31-day month", 30, day(2025, time.January, 31), 30},
		{"year rollover", 1, day(2025, time.December, 31), 1},
		{"leap february rollover", 1, day(2024, time.February, 29), 1},
		{"max rollover", 1, day(2025, time.January, 2), 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysUntilNextBilling(tt.billingDay, tt.today); got != tt.want {
				t.Errorf("DaysUntilNextBilling(%d, %s) = %d, want %d", tt.billingDay, tt.today.Format("2006-01-02"), got, tt.want)
			}
		})
	}
}

func TestCalendarAnchor_DaysUntil(t *testing.T) {
	anchor := CalendarAnchor{}
	tests := []struct {
		name       string
		billingDay int
		today      time.Time
		want       int
	}{
		{"later this month", 15, day(2025, time.June, 10), 5},
		{"clamped to april 30", 31, day(2025, time.April, 30), 0},
		{"clamped to non-leap february end", 29, day(2025, time.February, 28), 0},
		{"leap february not clamped", 29, day(2024, time.February, 28), 1},
		{"next month clamped", 30, day(2025, time.January, 31), 28},
		{"rollover unclamped", 5, day(2025, time.June, 28), 7},
		{"year rollover", 1, day(2025, time.December, 31), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := anchor.DaysUntil(tt.billingDay, tt.today); got != tt.want {
				t.Errorf("CalendarAnchor.DaysUntil(%d, %s) = %d, want %d", tt.billingDay, tt.today.Format("2006-01-02"), got, tt.want)
			}
		})
	}
}

func TestGetAnchor(t *testing.T) {
	tests := []struct {
		mode    AnchorMode
		want    Anchor
		wantErr bool
	}{
		{"", CompatAnchor{}, false},
		{AnchorCompat, CompatAnchor{}, false},
		{AnchorCalendar, CalendarAnchor{}, false},
		{"lunar", nil, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			got, err := GetAnchor(tt.mode)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetAnchor(%q) error = %v, wantErr %v", tt.mode, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("GetAnchor(%q) = %T, want %T", tt.mode, got, tt.want)
			}
		})
	}
}

type fixedAnchor int

func (f fixedAnchor) DaysUntil(int, time.Time) int { return int(f) }

func TestRegisterAnchor(t *testing.T) {
	const mode AnchorMode = "fixed-test"
	RegisterAnchor(mode, fixedAnchor(2))
	t.Cleanup(func() { delete(anchors, mode) })

	a, err := GetAnchor(mode)
	if err != nil {
		t.Fatalf("GetAnchor() error = %v", err)
	}
	if got := a.DaysUntil(31, day(2025, time.May, 1)); got != 2 {
		t.Errorf("DaysUntil() = %d, want 2", got)
	}
}
