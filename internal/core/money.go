// Package core provides money parsing and formatting utilities.
//
// Prices travel as float64 in the domain model; parsing goes through
// shopspring/decimal so user input never picks up binary rounding noise,
// and formatting goes through go-money for currency-aware display.
package core

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// ParsePrice converts a user supplied decimal string to a price.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators as well as
// thousands separators in the form 17,000 when followed by exactly three
// digits. The result is rounded half-up to two decimals. Negative values are
// rejected; zero is allowed (free plans).
//
// Examples:
//
//	ParsePrice("17000")  -> 17000, nil
//	ParsePrice("17,000") -> 17000, nil
//	ParsePrice("9,99")   -> 9.99, nil
//	ParsePrice("12.345") -> 12.35, nil
func ParsePrice(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidPrice
	}
	s = normalizeSeparators(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidPrice
	}
	if d.IsNegative() {
		return 0, ErrInvalidPrice
	}
	f, _ := d.Round(2).Float64()
	return f, nil
}

func normalizeSeparators(s string) string {
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		i := strings.Index(s, ",")
		if len(s)-i-1 == 3 {
			return strings.Replace(s, ",", "", 1)
		}
		return strings.Replace(s, ",", ".", 1)
	}
	// 1,234,567.89
	return strings.ReplaceAll(s, ",", "")
}

// RoundAmount rounds a KRW amount to a whole won, half away from zero.
func RoundAmount(amount float64) float64 {
	f, _ := decimal.NewFromFloat(amount).Round(0).Float64()
	return f
}

// FormatAmount renders an amount with its currency symbol, e.g. ₩37,800 or $8.00.
func FormatAmount(amount float64, currency Currency) string {
	code := string(currency)
	if !currency.IsValid() {
		code = string(KRW)
	}
	return money.NewFromFloat(amount, code).Display()
}
