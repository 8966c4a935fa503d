package billing

import (
	"sort"

	"mysubs/internal/core"
)

// MonthlyEquivalent returns the monthly cost of s in KRW.
//
// USD prices are converted once with rate, then the amount is scaled by the
// billing cycle: yearly /12, weekly x4, monthly unchanged. An unknown cycle
// is treated as monthly and an unknown currency as KRW.
func MonthlyEquivalent(s core.Subscription, rate float64) float64 {
	amount := toReference(s, rate)
	switch s.BillingCycle {
	case core.Yearly:
		return amount / 12
	case core.Weekly:
		return amount * 4
	default:
		return amount
	}
}

// toReference converts the raw price of s to KRW without cycle scaling.
func toReference(s core.Subscription, rate float64) float64 {
	if s.Currency == core.USD {
		return s.Price * rate
	}
	return s.Price
}

// Active filters subs down to the active records, preserving order.
func Active(subs []core.Subscription) []core.Subscription {
	out := make([]core.Subscription, 0, len(subs))
	for _, s := range subs {
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out
}

// MonthlyTotal sums the monthly equivalents of the active records.
func MonthlyTotal(subs []core.Subscription, rate float64) float64 {
	var total float64
	for _, s := range subs {
		if !s.IsActive {
			continue
		}
		total += MonthlyEquivalent(s, rate)
	}
	return total
}

// YearlyTotal is MonthlyTotal projected over twelve months.
func YearlyTotal(subs []core.Subscription, rate float64) float64 {
	return MonthlyTotal(subs, rate) * 12
}

// CategoryAggregate sums monthly equivalents of active records per category,
// sorted by amount descending. Categories with no active record are omitted.
// Exact ties keep the order in which the categories first appear in subs.
func CategoryAggregate(subs []core.Subscription, rate float64) []core.CategoryAmount {
	index := make(map[core.Category]int)
	var out []core.CategoryAmount
	for _, s := range subs {
		if !s.IsActive {
			continue
		}
		i, ok := index[s.Category]
		if !ok {
			i = len(out)
			index[s.Category] = i
			out = append(out, core.CategoryAmount{Category: s.Category, Label: s.Category.Label()})
		}
		out[i].Amount += MonthlyEquivalent(s, rate)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Amount > out[j].Amount
	})
	return out
}
