package core

import (
	"errors"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024.03.15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != NewDate(2024, 3, 15) {
		t.Fatalf("unexpected date %v", d)
	}
	if d.String() != "2024.03.15" {
		t.Fatalf("unexpected format %s", d)
	}

	for _, bad := range []string{"", "2024-03-15", "2024.13.01", "tomorrow"} {
		if _, err := ParseDate(bad); !errors.Is(err, ErrInvalidSelection) {
			t.Fatalf("%q: expected invalid selection, got %v", bad, err)
		}
	}
}

func TestDateArithmetic(t *testing.T) {
	cases := []struct {
		name string
		got  Date
		want Date
	}{
		{"next day", NewDate(2024, 2, 28).AddDays(1), NewDate(2024, 2, 29)},
		{"previous year", NewDate(2024, 1, 1).AddDays(-1), NewDate(2023, 12, 31)},
		{"end of previous month", NewDate(2024, 3, 15).EndOfPreviousMonth(), NewDate(2024, 2, 29)},
		{"end of previous month in january", NewDate(2024, 1, 1).EndOfPreviousMonth(), NewDate(2023, 12, 31)},
		{"date of", DateOf(time.Date(2024, 5, 6, 23, 59, 0, 0, time.UTC)), NewDate(2024, 5, 6)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if !tc.got.Equal(tc.want.Time) {
				t.Fatalf("got %s, want %s", tc.got, tc.want)
			}
		})
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Borrower: User{Name: "Alice"},
		Lender:   User{Name: "Bob"},
		Amount:   AmountFromCents(100),
		Date:     NewDate(2024, 1, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{Borrower: good.Borrower, Lender: good.Lender, Amount: good.Amount},
		{Lender: good.Lender, Amount: good.Amount, Date: good.Date},
		{Borrower: good.Borrower, Lender: good.Lender, Amount: Zero, Date: good.Date},
	}
	for i, b := range bads {
		if err := b.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestUserMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ErrEmptyResult, "No repayments"},
		{ErrEmptyGroup, "Group is empty"},
		{ErrUnknownGroup, "Group does not exist"},
		{ErrInvalidAmount, "Illegal command arguments"},
		{ErrInvalidDate, "Illegal command arguments"},
	}
	for _, tc := range cases {
		if got := UserMessage(tc.err); got != tc.want {
			t.Errorf("UserMessage(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestFormatting(t *testing.T) {
	alice, bob := User{Name: "Alice"}, User{Name: "Bob"}
	if got := (Debt{Borrower: alice, Lender: bob, Amount: AmountFromCents(600)}).String(); got != "Alice owes Bob 6.00" {
		t.Fatalf("unexpected debt line %q", got)
	}
	if got := (Gift{Giver: alice, Receiver: bob}).String(); got != "Alice gift to Bob" {
		t.Fatalf("unexpected gift line %q", got)
	}

	users := []User{{Name: "carol"}, {Name: "Bob"}, {Name: "Alice"}}
	SortUsers(users)
	if users[0].Name != "Alice" || users[1].Name != "Bob" || users[2].Name != "carol" {
		t.Fatalf("unexpected order %v", users)
	}
}
