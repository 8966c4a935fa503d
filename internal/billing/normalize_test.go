package billing

import (
	"testing"

	"mysubs/internal/core"
)

const testRate = 1350

func sub(name string, price float64, cur core.Currency, cycle core.BillingCycle, day int, cat core.Category) core.Subscription {
	return core.Subscription{
		ID:           name,
		Name:         name,
		Price:        price,
		Currency:     cur,
		BillingCycle: cycle,
		BillingDay:   day,
		Category:     cat,
		StartDate:    core.NewDate(2024, 1, 1),
		IsActive:     true,
	}
}

func TestMonthlyEquivalent(t *testing.T) {
	tests := []struct {
		name string
		sub  core.Subscription
		want float64
	}{
		{"krw monthly", sub("a", 17000, core.KRW, core.Monthly, 1, core.CategoryStreaming), 17000},
		{"usd monthly converted once", sub("b", 8, core.USD, core.Monthly, 1, core.CategoryProductivity), 10800},
		{"krw yearly divided by twelve", sub("c", 120000, core.KRW, core.Yearly, 1, core.CategoryCloud), 10000},
		{"usd yearly", sub("d", 120, core.USD, core.Yearly, 1, core.CategoryCloud), 13500},
		{"weekly times four", sub("e", 5000, core.KRW, core.Weekly, 1, core.CategoryFitness), 20000},
		{"unknown cycle is monthly", sub("f", 9900, core.KRW, "daily", 1, core.CategoryOther), 9900},
		{"free", sub("g", 0, core.USD, core.Yearly, 1, core.CategoryGaming), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MonthlyEquivalent(tt.sub, testRate); got != tt.want {
				t.Errorf("MonthlyEquivalent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMonthlyEquivalentLinearInRate(t *testing.T) {
	for _, cycle := range []core.BillingCycle{core.Monthly, core.Weekly, core.Yearly} {
		s := sub("x", 13.37, core.USD, cycle, 1, core.CategoryOther)
		single := MonthlyEquivalent(s, 1337.5)
		double := MonthlyEquivalent(s, 2*1337.5)
		if double != 2*single {
			t.Errorf("%s: doubling rate gave %v, want %v", cycle, double, 2*single)
		}
	}
}

func TestMonthlyEquivalentCrossCycle(t *testing.T) {
	for _, cur := range []core.Currency{core.KRW, core.USD} {
		monthly := MonthlyEquivalent(sub("m", 99.99, cur, core.Monthly, 1, core.CategoryOther), testRate)
		yearly := MonthlyEquivalent(sub("y", 99.99, cur, core.Yearly, 1, core.CategoryOther), testRate)
		if yearly != monthly/12 {
			t.Errorf("%s: yearly = %v, want %v", cur, yearly, monthly/12)
		}
	}
}

func TestTotalsSkipInactive(t *testing.T) {
	subs := []core.Subscription{
		sub("a", 17000, core.KRW, core.Monthly, 25, core.CategoryStreaming),
		sub("b", 8, core.USD, core.Monthly, 1, core.CategoryProductivity),
		sub("c", 120000, core.KRW, core.Yearly, 10, core.CategoryCloud),
	}
	inactive := sub("d", 50000, core.KRW, core.Monthly, 5, core.CategoryGaming)
	inactive.IsActive = false
	subs = append(subs, inactive)

	if got := MonthlyTotal(subs, testRate); got != 37800 {
		t.Errorf("MonthlyTotal() = %v, want 37800", got)
	}
	if got := YearlyTotal(subs, testRate); got != 37800*12 {
		t.Errorf("YearlyTotal() = %v, want %v", got, 37800*12)
	}
	if got := len(Active(subs)); got != 3 {
		t.Errorf("len(Active()) = %d, want 3", got)
	}
}

func TestCategoryAggregate(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		off := sub("a", 1000, core.KRW, core.Monthly, 1, core.CategoryMusic)
		off.IsActive = false
		if got := CategoryAggregate([]core.Subscription{off}, testRate); len(got) != 0 {
			t.Errorf("CategoryAggregate() = %v, want empty", got)
		}
	})

	t.Run("single usd record", func(t *testing.T) {
		got := CategoryAggregate([]core.Subscription{sub("a", 10, core.USD, core.Monthly, 1, core.CategoryMusic)}, testRate)
		if len(got) != 1 || got[0].Category != core.CategoryMusic || got[0].Amount != 13500 {
			t.Errorf("CategoryAggregate() = %+v, want [{music 13500}]", got)
		}
	})

	t.Run("sums and sorts descending", func(t *testing.T) {
		subs := []core.Subscription{
			sub("a", 5000, core.KRW, core.Monthly, 1, core.CategoryMusic),
			sub("b", 17000, core.KRW, core.Monthly, 1, core.CategoryStreaming),
			sub("c", 10, core.USD, core.Monthly, 1, core.CategoryProductivity),
			sub("d", 9900, core.KRW, core.Monthly, 1, core.CategoryStreaming),
			sub("e", 2000, core.KRW, core.Weekly, 1, core.CategoryMusic),
		}
		got := CategoryAggregate(subs, testRate)
		want := []core.CategoryAmount{
			{Category: core.CategoryStreaming, Label: core.CategoryStreaming.Label(), Amount: 26900},
			{Category: core.CategoryProductivity, Label: core.CategoryProductivity.Label(), Amount: 13500},
			{Category: core.CategoryMusic, Label: core.CategoryMusic.Label(), Amount: 13000},
		}
		if len(got) != len(want) {
			t.Fatalf("CategoryAggregate() = %+v, want %+v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("CategoryAggregate()[%d] = %+v, want %+v", i, got[i], want[i])
			}
		}
	})
}

func TestIdempotent(t *testing.T) {
	subs := []core.Subscription{
		sub("a", 12.99, core.USD, core.Monthly, 3, core.CategoryMusic),
		sub("b", 89000, core.KRW, core.Yearly, 17, core.CategoryCloud),
	}
	first := CategoryAggregate(subs, 1333.33)
	second := CategoryAggregate(subs, 1333.33)
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("run differs at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
	if MonthlyTotal(subs, 1333.33) != MonthlyTotal(subs, 1333.33) {
		t.Fatal("MonthlyTotal not deterministic")
	}
}
