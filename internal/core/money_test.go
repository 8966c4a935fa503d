package core

import "testing"

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in  string
		out float64
		ok  bool
	}{
		{"1", 1, true},
		{"17000", 17000, true},
		{"17,000", 17000, true},
		{"1,234,567.5", 1234567.5, true},
		{"9,99", 9.99, true},
		{"1.005", 1.01, true}, // half-up rounding
		{" 2.50 ", 2.5, true},
		{"0", 0, true},
		{"-1", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParsePrice(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestRoundAmount(t *testing.T) {
	cases := map[float64]float64{
		10800:     10800,
		10000.4:   10000,
		10000.5:   10001,
		1416.6667: 1417,
	}
	for in, want := range cases {
		if got := RoundAmount(in); got != want {
			t.Errorf("RoundAmount(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		amount   float64
		currency Currency
		want     string
	}{
		{37800, KRW, "₩37,800"},
		{8, USD, "$8.00"},
		{1500, "", "₩1,500"},
	}
	for _, tc := range cases {
		if got := FormatAmount(tc.amount, tc.currency); got != tc.want {
			t.Errorf("FormatAmount(%v, %q) = %q, want %q", tc.amount, tc.currency, got, tc.want)
		}
	}
}
