package billing

import (
	"math"
	"slices"
	"time"

	"mysubs/internal/core"
)

// TrialEnding is a trialing subscription and the days left in its trial.
type TrialEnding struct {
	Subscription core.Subscription
	DaysLeft     int
}

// TrialDaysLeft returns the whole days from today until the trial end date,
// rounded up, and false when s is not trialing. Expired trials yield zero or
// a negative count.
func TrialDaysLeft(s core.Subscription, today time.Time) (int, bool) {
	if !s.Trialing() {
		return 0, false
	}
	end := s.TrialEndDate.Time
	start := core.DateOf(today).Time
	return int(math.Round(end.Sub(start).Hours() / 24)), true
}

// EndingTrials returns the active trialing records with exactly one of the
// given numbers of days left.
func EndingTrials(subs []core.Subscription, today time.Time, at ...int) []TrialEnding {
	var out []TrialEnding
	for _, s := range subs {
		if !s.IsActive {
			continue
		}
		left, ok := TrialDaysLeft(s, today)
		if !ok || !slices.Contains(at, left) {
			continue
		}
		out = append(out, TrialEnding{Subscription: s, DaysLeft: left})
	}
	return out
}
