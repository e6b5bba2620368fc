package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateLayout is the textual form of a ledger date (e.g. 2024.03.15).
const DateLayout = "2006.01.02"

type (
	// Date is a civil date at UTC midnight.
	Date struct {
		time.Time
	}

	User struct {
		ID   int64
		Name string
	}

	Group struct {
		ID   int64
		Name string
	}

	// Transaction records that Borrower owes Lender Amount as of Date.
	Transaction struct {
		ID       int64
		Borrower User
		Lender   User
		Amount   Amount
		Date     Date
	}

	// Debt is a net amount owed between two users, derived from transactions.
	Debt struct {
		Borrower User
		Lender   User
		Amount   Amount
	}

	Gift struct {
		ID       int64
		Giver    User
		Receiver User
	}
)

var (
	ErrInvalidSelection = errors.New("invalid selection")
	ErrUnknownGroup     = errors.New("unknown group")
	ErrEmptyResult      = errors.New("no repayments")
	ErrEmptyGroup       = errors.New("group is empty")
	ErrGroupTooSmall    = errors.New("group too small")
	ErrPartialWrite     = errors.New("partial write")

	// Parsing failures are selection failures from the caller's point of view.
	ErrInvalidAmount = fmt.Errorf("%w: invalid amount", ErrInvalidSelection)
	ErrInvalidDate   = fmt.Errorf("%w: invalid date", ErrInvalidSelection)
)

// UserMessage maps an error to the message shown to the person typing commands.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyResult):
		return "No repayments"
	case errors.Is(err, ErrEmptyGroup):
		return "Group is empty"
	case errors.Is(err, ErrUnknownGroup):
		return "Group does not exist"
	case errors.Is(err, ErrGroupTooSmall):
		return "Group needs at least 3 members"
	case errors.Is(err, ErrInvalidSelection):
		return "Illegal command arguments"
	case errors.Is(err, ErrPartialWrite):
		return "Command was only partially recorded: " + err.Error()
	default:
		return "Error: " + err.Error()
	}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a date in DateLayout.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// EndOfPreviousMonth returns the last day of the month before d.
func (d Date) EndOfPreviousMonth() Date {
	return NewDate(d.Year(), int(d.Month()), 1).AddDays(-1)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Borrower.Name) == "" || strings.TrimSpace(t.Lender.Name) == "" {
		return fmt.Errorf("%w: transaction needs a borrower and a lender", ErrInvalidSelection)
	}
	return t.Amount.Validate()
}

func (d Debt) String() string {
	return fmt.Sprintf("%s owes %s %s", d.Borrower.Name, d.Lender.Name, d.Amount)
}

func (g Gift) String() string {
	return g.Giver.Name + " gift to " + g.Receiver.Name
}

// SortUsers orders users by name, the iteration order used everywhere users
// are listed or walked.
func SortUsers(users []User) {
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
}

// UserNames returns the sorted names of users.
func UserNames(users []User) []string {
	names := make([]string, len(users))
	for i, u := range users {
		names[i] = u.Name
	}
	sort.Strings(names)
	return names
}
