package billing

import (
	"fmt"
	"sort"
	"time"

	"mysubs/internal/core"
)

// Order is the sort order of UpcomingBillings.
type Order string

const (
	// OrderBillingDay sorts by the raw billing day, so a billing day of 1
	// after rollover still sorts before 28. This is the compatible default.
	OrderBillingDay Order = "billing_day"
	// OrderDaysUntil sorts chronologically by the computed distance.
	OrderDaysUntil Order = "days_until"
)

// ParseOrder parses an order name. An empty name selects OrderBillingDay.
func ParseOrder(s string) (Order, error) {
	switch Order(s) {
	case "", OrderBillingDay:
		return OrderBillingDay, nil
	case OrderDaysUntil:
		return OrderDaysUntil, nil
	}
	return "", fmt.Errorf("unknown upcoming order: %s", s)
}

type upcomingOptions struct {
	anchor Anchor
	order  Order
}

// Option configures UpcomingBillings.
type Option func(*upcomingOptions)

// WithAnchor counts days with a instead of CompatAnchor.
func WithAnchor(a Anchor) Option {
	return func(o *upcomingOptions) {
		if a != nil {
			o.anchor = a
		}
	}
}

// WithOrder sets the result order.
func WithOrder(order Order) Option {
	return func(o *upcomingOptions) {
		if order != "" {
			o.order = order
		}
	}
}

// ByDaysUntil is shorthand for WithOrder(OrderDaysUntil).
func ByDaysUntil() Option {
	return WithOrder(OrderDaysUntil)
}

// UpcomingBillings returns the active records whose next charge is at most
// withinDays away. Results are sorted ascending by billing day unless an
// Option says otherwise; equal keys keep input order.
func UpcomingBillings(subs []core.Subscription, today time.Time, withinDays int, opts ...Option) []core.UpcomingBilling {
	o := upcomingOptions{anchor: CompatAnchor{}, order: OrderBillingDay}
	for _, opt := range opts {
		opt(&o)
	}

	var out []core.UpcomingBilling
	for _, s := range subs {
		if !s.IsActive {
			continue
		}
		days := o.anchor.DaysUntil(s.BillingDay, today)
		if days > withinDays {
			continue
		}
		out = append(out, core.UpcomingBilling{Subscription: s, DaysUntil: days})
	}

	switch o.order {
	case OrderDaysUntil:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].DaysUntil < out[j].DaysUntil
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Subscription.BillingDay < out[j].Subscription.BillingDay
		})
	}
	return out
}
