package billing

import (
	"fmt"
	"time"
)

// AnchorMode selects how a billing day maps onto the calendar.
type AnchorMode string

const (
	// AnchorCompat counts days with the plain day-of-month formula and never
	// clamps a billing day to a short month.
	AnchorCompat AnchorMode = "compat"
	// AnchorCalendar clamps the billing day to the last day of short months,
	// so a 31st subscription bills on Feb 28 and Apr 30.
	AnchorCalendar AnchorMode = "calendar"
)

// Anchor is the strategy interface for counting days until the next charge.
type Anchor interface {
	// DaysUntil returns the number of days from today to the next
	// occurrence of billingDay. Zero means the charge is today.
	DaysUntil(billingDay int, today time.Time) int
}

// CompatAnchor implements Anchor with the two-branch day-of-month formula.
type CompatAnchor struct{}

// DaysUntil returns billingDay-day when the billing day is still ahead this
// month, else the days left in the current month plus billingDay.
func (CompatAnchor) DaysUntil(billingDay int, today time.Time) int {
	day := today.Day()
	if billingDay >= day {
		return billingDay - day
	}
	return daysIn(today.Year(), today.Month()) - day + billingDay
}

// CalendarAnchor implements Anchor against real month lengths.
type CalendarAnchor struct{}

// DaysUntil returns the distance to the next calendar date carrying the
// billing day, clamped to the month's last day.
func (CalendarAnchor) DaysUntil(billingDay int, today time.Time) int {
	day := today.Day()
	year, month := today.Year(), today.Month()
	thisMonth := daysIn(year, month)
	if target := min(billingDay, thisMonth); target >= day {
		return target - day
	}
	next := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	return thisMonth - day + min(billingDay, daysIn(next.Year(), next.Month()))
}

// DaysUntilNextBilling returns the days from today to billingDay using the
// compatible day-of-month formula.
//
// Examples, in a 30-day month:
//
//	DaysUntilNextBilling(15, day 10) -> 5
//	DaysUntilNextBilling(5, day 28)  -> 7   (30-28+5)
func DaysUntilNextBilling(billingDay int, today time.Time) int {
	return CompatAnchor{}.DaysUntil(billingDay, today)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// anchors maps modes to their strategies.
var anchors = map[AnchorMode]Anchor{
	AnchorCompat:   CompatAnchor{},
	AnchorCalendar: CalendarAnchor{},
}

// GetAnchor returns the anchor for a mode. An empty mode selects AnchorCompat.
func GetAnchor(mode AnchorMode) (Anchor, error) {
	if mode == "" {
		mode = AnchorCompat
	}
	a, ok := anchors[mode]
	if !ok {
		return nil, fmt.Errorf("unknown billing anchor mode: %s", mode)
	}
	return a, nil
}

// RegisterAnchor registers a custom anchor under mode. It is meant to be
// called during program initialization.
func RegisterAnchor(mode AnchorMode, a Anchor) {
	anchors[mode] = a
}
