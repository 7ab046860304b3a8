package core

import "testing"

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0", 0, true}, // zero plan target is valid
		{"0.00", 0, true},
		{"5000", 500000, true},
		{"0.01", 1, true},
		{"0.", 0, true}, // trailing separator, no fraction
		{"5.", 500, true},
		{".", 0, false},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"NaN", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestPercentageZeroPlanned(t *testing.T) {
	if got := Percentage(Money{Cents: 12345}, Money{}); got != 0 {
		t.Fatalf("zero planned must yield 0, got %v", got)
	}
	if got := Percentage(Money{}, Money{}); got != 0 {
		t.Fatalf("zero over zero must yield 0, got %v", got)
	}
}

func TestPercentage(t *testing.T) {
	cases := []struct {
		actual, planned int64
		want            float64
	}{
		{5000, 10000, 50},
		{10000, 10000, 100},
		{15000, 10000, 150},
		{0, 10000, 0},
	}
	for _, tc := range cases {
		got := Percentage(Money{Cents: tc.actual}, Money{Cents: tc.planned})
		if got != tc.want {
			t.Fatalf("%d/%d expected %v, got %v", tc.actual, tc.planned, tc.want, got)
		}
	}
}

func TestMoneyString(t *testing.T) {
	if got := (Money{Cents: 123456}).String(); got != "1234.56" {
		t.Fatalf("got %q", got)
	}
	if got := (Money{Cents: 5}).String(); got != "0.05" {
		t.Fatalf("got %q", got)
	}
	if got := (Money{Cents: -50}).String(); got != "-0.50" {
		t.Fatalf("got %q", got)
	}
	if got := (Money{Cents: -1250}).String(); got != "-12.50" {
		t.Fatalf("got %q", got)
	}
}
