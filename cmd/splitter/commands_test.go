package main

import (
	"bytes"
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/subcommands"

	"github.com/nivanenko/shared-expenses-tracker/internal/services"
	"github.com/nivanenko/shared-expenses-tracker/internal/storage/memory"
)

type keepOrder struct{}

func (keepOrder) Shuffle(int, func(i, j int)) {}

func newTestApp(t *testing.T, input string) (*app, *bytes.Buffer) {
	t.Helper()
	clock := func() time.Time { return time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC) }
	svc := services.NewLedgerService(memory.New(), nil,
		services.WithClock(clock), services.WithShuffler(keepOrder{}))

	var out, errOut bytes.Buffer
	return &app{svc: svc, in: strings.NewReader(input), out: &out, errOut: &errOut}, &out
}

func TestShellArgs(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"", nil},
		{"  balance  ", []string{"balance"}},
		{"2024.03.01 borrow Alice Bob 10", []string{"borrow", "-date", "2024.03.01", "Alice", "Bob", "10"}},
		{"2024.03.01", []string{"2024.03.01"}},
		{"purchase Alice tea 3 (Bob, -Carol)", []string{"purchase", "Alice", "tea", "3", "(Bob,", "-Carol)"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got := shellArgs(tt.line)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("shellArgs(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}

func TestEndFlags(t *testing.T) {
	balance := &balanceCmd{}
	writeOff := &writeOffCmd{}

	tests := []struct {
		name string
		cmd  subcommands.Command
		args []string
		want []string
	}{
		{"no arguments", balance, []string{"balance"}, []string{"balance"}},
		{"positional first", balance, []string{"balance", "open", "-Alice"}, []string{"balance", "open", "-Alice"}},
		{"leading exclusion", balance, []string{"balance", "-Alice"}, []string{"balance", "--", "-Alice"}},
		{"exclusion after date", balance, []string{"balance", "-date", "2024.03.01", "-Alice", "Bob"},
			[]string{"balance", "-date", "2024.03.01", "--", "-Alice", "Bob"}},
		{"date with equals", balance, []string{"balance", "-date=2024.03.01", "-TEAM"},
			[]string{"balance", "-date=2024.03.01", "--", "-TEAM"}},
		{"bool flag", writeOff, []string{"writeOff", "-v", "-date", "2024.03.01"},
			[]string{"writeOff", "-v", "-date", "2024.03.01"}},
		{"already terminated", balance, []string{"balance", "--", "-Alice"}, []string{"balance", "--", "-Alice"}},
		{"help", balance, []string{"balance", "-h"}, []string{"balance", "-h"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := endFlags(tt.args, tt.cmd); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("endFlags(%q) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestRun_LeadingExclusion(t *testing.T) {
	ctx := context.Background()
	a, out := newTestApp(t, "")
	for _, args := range [][]string{
		{"borrow", "Alice", "Bob", "10"},
		{"borrow", "-date", "2024.03.01", "Carol", "Bob", "4"},
	} {
		if got := a.run(ctx, args, true); got != subcommands.ExitSuccess {
			t.Fatalf("%q: exit status = %v", args, got)
		}
	}

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"balance", []string{"balance", "-Alice", "Alice", "Carol"}, "Carol owes Bob 4.00\n"},
		{"balance with date", []string{"balance", "-date", "2024.03.10", "-Alice", "Carol"}, "Carol owes Bob 4.00\n"},
		{"balancePerfect", []string{"balancePerfect", "-Carol", "Alice", "Carol"}, "Alice owes Bob 10.00\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			if got := a.run(ctx, tt.args, true); got != subcommands.ExitSuccess {
				t.Errorf("exit status = %v, output %q", got, out.String())
			}
			if out.String() != tt.want {
				t.Errorf("output = %q, want %q", out.String(), tt.want)
			}
		})
	}
}

func TestParseTokens(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"separate", []string{"GIRLS", "-Bob"}, []string{"GIRLS", "-Bob"}},
		{"parenthesized", []string{"(GIRLS,", "-Bob)"}, []string{"GIRLS", "-Bob"}},
		{"single argument", []string{"(Alice, Bob, -FAMILY)"}, []string{"Alice", "Bob", "-FAMILY"}},
		{"empty", []string{"()"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseTokens(tt.args); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseTokens(%q) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestRun_ExitStatus(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		want   subcommands.ExitStatus
		output string
	}{
		{"borrow", []string{"borrow", "Alice", "Bob", "10"}, subcommands.ExitSuccess, ""},
		{"missing arguments", []string{"borrow", "Alice", "Bob"}, subcommands.ExitUsageError, "Illegal command arguments\n"},
		{"bad amount", []string{"repay", "Alice", "Bob", "ten"}, subcommands.ExitFailure, "Illegal command arguments\n"},
		{"bad date", []string{"borrow", "-date", "15/03/2024", "Alice", "Bob", "1"}, subcommands.ExitFailure, "Illegal command arguments\n"},
		{"no transactions", []string{"balance"}, subcommands.ExitFailure, "No repayments\n"},
		{"unknown group", []string{"group", "show", "NOPE"}, subcommands.ExitFailure, "Group does not exist\n"},
		{"unknown action", []string{"group", "rename", "TEAM"}, subcommands.ExitUsageError, "Illegal command arguments\n"},
		{"unknown command", []string{"lend"}, subcommands.ExitUsageError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, out := newTestApp(t, "")
			if got := a.run(context.Background(), tt.args, true); got != tt.want {
				t.Errorf("exit status = %v, want %v", got, tt.want)
			}
			if out.String() != tt.output {
				t.Errorf("output = %q, want %q", out.String(), tt.output)
			}
		})
	}
}

func TestShell(t *testing.T) {
	input := strings.Join([]string{
		"borrow Alice Bob 10",
		"2024.03.14 borrow Bob Alice 4",
		"balance",
		"",
		"group create TEAM (Alice, Bob, carol)",
		"group show TEAM",
		"purchase Alice coffee 3 TEAM",
		"balance close (TEAM, -Alice)",
		"balance -Alice TEAM",
		"2024.02.10 borrow Dave Alice 2",
		"balance open",
		"balancePerfect",
		"group show NOPE",
		"writeOff -date 2024.02.29",
		"balance open",
		"exit",
		"balance",
	}, "\n")

	a, out := newTestApp(t, input)
	if got := a.run(context.Background(), []string{"shell"}, true); got != subcommands.ExitSuccess {
		t.Fatalf("shell exit status = %v", got)
	}

	want := strings.Join([]string{
		// balance
		"Alice owes Bob 6.00",
		// group show TEAM
		"Alice",
		"Bob",
		"carol",
		// balance close (TEAM, -Alice)
		"Bob owes Alice 5.00",
		"carol owes Alice 1.00",
		// balance -Alice TEAM
		"Bob owes Alice 5.00",
		"carol owes Alice 1.00",
		// balance open
		"Dave owes Alice 2.00",
		// balancePerfect
		"Alice owes Bob 2.00",
		"Dave owes Bob 2.00",
		"carol owes Bob 1.00",
		// group show NOPE
		"Group does not exist",
		// balance open after the write-off
		"No repayments",
	}, "\n") + "\n"
	if out.String() != want {
		t.Errorf("shell output:\n%s\nwant:\n%s", out.String(), want)
	}
}
