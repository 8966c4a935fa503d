package billing

import (
	"time"

	"mysubs/internal/core"
)

// SpendingHistory returns the monthly spend of the given number of months
// ending with today's month, oldest first.
//
// A record counts in a month when it started on or before the first day of
// that month, so the month it starts in is never charged. Yearly records are charged once, in their start month,
// at their full converted price; other records count their monthly
// equivalent. Only active records are included.
func SpendingHistory(subs []core.Subscription, rate float64, today time.Time, months int) []core.MonthSpend {
	if months <= 0 {
		return nil
	}
	out := make([]core.MonthSpend, 0, months)
	for i := months - 1; i >= 0; i-- {
		first := time.Date(today.Year(), today.Month()-time.Month(i), 1, 0, 0, 0, 0, time.UTC)
		point := core.MonthSpend{Year: first.Year(), Month: int(first.Month())}
		for _, s := range subs {
			if !s.IsActive || s.StartDate.After(first) {
				continue
			}
			if s.BillingCycle == core.Yearly {
				if s.StartDate.Month() == first.Month() {
					point.Amount += toReference(s, rate)
				}
				continue
			}
			point.Amount += MonthlyEquivalent(s, rate)
		}
		out = append(out, point)
	}
	return out
}
