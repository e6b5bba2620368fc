package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1.00", true},
		{"1.0", "1.00", true},
		{"1.23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.00", true}, // half to even
		{"1.015", "1.02", true}, // half to even
		{"12.345", "12.34", true},
		{"12.355", "12.36", true},
		{" 2.50 ", "2.50", true},
		{"-1", "", false},
		{"+1", "", false},
		{"0", "", false},
		{"0.004", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
		{"92233720368547758.07", "92233720368547758.07", true},
		{"92233720368547758.08", "", false},
		{"184467440737095516.17", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestAmountValidate(t *testing.T) {
	cases := []struct {
		name string
		in   Amount
		ok   bool
	}{
		{"positive", AmountFromCents(1), true},
		{"largest cents", AmountFromCents(1<<63 - 1), true},
		{"zero", Zero, false},
		{"negative", AmountFromCents(-100), false},
		{"cents overflow int64", NewAmount(decimal.RequireFromString("184467440737095516.17")), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("expected ErrInvalidAmount, got %v", err)
			}
		})
	}
}

func TestAmountCentsRoundTrip(t *testing.T) {
	for _, cents := range []int64{1, 99, 100, 1234, 1000000} {
		a := AmountFromCents(cents)
		if a.Cents() != cents {
			t.Fatalf("AmountFromCents(%d).Cents() = %d", cents, a.Cents())
		}
	}
	if got := AmountFromCents(600).String(); got != "6.00" {
		t.Fatalf("expected 6.00, got %s", got)
	}
}

func TestAmountArithmetic(t *testing.T) {
	ten := AmountFromCents(1000)
	four := AmountFromCents(400)

	if got := ten.Sub(four).String(); got != "6.00" {
		t.Fatalf("10.00 - 4.00 = %s", got)
	}
	if got := four.Sub(ten); !got.IsNegative() || got.Neg().String() != "6.00" {
		t.Fatalf("4.00 - 10.00 = %s", got)
	}
	if !Min(ten, four).Equal(four) {
		t.Fatalf("Min(10, 4) should be 4")
	}
	if !Zero.IsZero() || Zero.Sign() != 0 {
		t.Fatalf("Zero should be zero")
	}
	if err := Zero.Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}
