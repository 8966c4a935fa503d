package billing

import "mysubs/internal/core"

// DefaultAnnualDiscount is the assumed discount of annual over monthly
// billing. It is a modeling assumption, not provider pricing.
const DefaultAnnualDiscount = 0.20

// AnnualSavings estimates yearly savings from annual billing in KRW.
//
// Current is what the active yearly records already save compared to a
// monthly plan priced (1+discount) times their monthly equivalent. Potential
// is what the active monthly records would save if switched to yearly
// billing. Weekly records contribute to neither.
func AnnualSavings(subs []core.Subscription, rate, discount float64) core.Savings {
	var out core.Savings
	for _, s := range subs {
		if !s.IsActive {
			continue
		}
		switch s.BillingCycle {
		case core.Yearly:
			monthlyPlan := MonthlyEquivalent(s, rate) * (1 + discount)
			out.Current += monthlyPlan*12 - toReference(s, rate)
		case core.Monthly:
			out.Potential += MonthlyEquivalent(s, rate) * 12 * discount
		}
	}
	return out
}
