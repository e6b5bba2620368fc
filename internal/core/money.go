// Package core provides the ledger domain types.
//
// This file contains the fixed-point Amount used for every monetary value.
// Amounts always carry exactly two fractional digits and are rounded
// half-to-even when created from arbitrary input.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits of an Amount.
const Scale = 2

// Amount is a two-decimal fixed-point value.
type Amount struct {
	value decimal.Decimal
}

// Zero is the zero amount.
var Zero = Amount{value: decimal.Zero}

// ParseAmount converts a decimal string to an Amount with banker's rounding.
//
// Only strictly positive values whose cents fit in an int64 are accepted.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12.345") -> 12.34 (half to even)
//	ParseAmount("12.355") -> 12.36 (half to even)
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Amount{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, ErrInvalidAmount
	}
	a := NewAmount(d)
	if err := a.Validate(); err != nil {
		return Amount{}, err
	}
	return a, nil
}

// NewAmount rounds d half-to-even to two fractional digits.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{value: d.RoundBank(Scale)}
}

// AmountFromCents builds an Amount from an integer number of cents.
func AmountFromCents(cents int64) Amount {
	return Amount{value: decimal.New(cents, -Scale)}
}

// Cents returns the amount as an integer number of cents.
func (a Amount) Cents() int64 {
	return a.value.Shift(Scale).IntPart()
}

// Decimal exposes the underlying decimal value.
func (a Amount) Decimal() decimal.Decimal { return a.value }

// String formats the amount with exactly two fractional digits.
func (a Amount) String() string {
	return a.value.StringFixed(Scale)
}

func (a Amount) Add(b Amount) Amount        { return Amount{value: a.value.Add(b.value)} }
func (a Amount) Sub(b Amount) Amount        { return Amount{value: a.value.Sub(b.value)} }
func (a Amount) Neg() Amount                { return Amount{value: a.value.Neg()} }
func (a Amount) Cmp(b Amount) int           { return a.value.Cmp(b.value) }
func (a Amount) Equal(b Amount) bool        { return a.value.Equal(b.value) }
func (a Amount) LessThan(b Amount) bool     { return a.value.LessThan(b.value) }
func (a Amount) GreaterThan(b Amount) bool  { return a.value.GreaterThan(b.value) }
func (a Amount) IsZero() bool               { return a.value.IsZero() }
func (a Amount) IsPositive() bool           { return a.value.IsPositive() }
func (a Amount) IsNegative() bool           { return a.value.IsNegative() }
func (a Amount) Sign() int                  { return a.value.Sign() }

// Min returns the smaller of a and b.
func Min(a, b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Validate reports whether the amount can be recorded on a transaction.
func (a Amount) Validate() error {
	if !a.IsPositive() || !a.value.Shift(Scale).BigInt().IsInt64() {
		return ErrInvalidAmount
	}
	return nil
}
