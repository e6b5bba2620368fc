package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/google/subcommands"

	"github.com/nivanenko/shared-expenses-tracker/internal/core"
	"github.com/nivanenko/shared-expenses-tracker/internal/services"
)

const programName = "splitter"

var errUsage = fmt.Errorf("%w: wrong number of arguments", core.ErrInvalidSelection)

// app is the state every command shares.
type app struct {
	svc    *services.LedgerService
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

// run executes one command line. The shell command is only available at
// the top level.
func (a *app) run(ctx context.Context, args []string, withShell bool) subcommands.ExitStatus {
	fs := flag.NewFlagSet(programName, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	commander := subcommands.NewCommander(fs, programName)
	commander.Output = a.out
	commander.Error = a.errOut
	commands := a.register(commander, withShell)

	if err := fs.Parse(args); err != nil {
		return subcommands.ExitUsageError
	}
	if cmd, ok := commands[fs.Arg(0)]; ok {
		if err := fs.Parse(endFlags(fs.Args(), cmd)); err != nil {
			return subcommands.ExitUsageError
		}
	}
	return commander.Execute(ctx)
}

func (a *app) register(c *subcommands.Commander, withShell bool) map[string]subcommands.Command {
	c.Register(c.HelpCommand(), "")
	c.Register(c.CommandsCommand(), "")

	commands := make(map[string]subcommands.Command)
	add := func(cmd subcommands.Command, group string) {
		c.Register(cmd, group)
		commands[cmd.Name()] = cmd
	}

	add(&borrowCmd{app: a}, "transactions")
	add(&repayCmd{app: a}, "transactions")
	add(&purchaseCmd{app: a}, "transactions")
	add(&cashBackCmd{app: a}, "transactions")
	add(&writeOffCmd{app: a}, "transactions")

	add(&balanceCmd{app: a}, "balances")
	add(&balanceCmd{app: a, perfect: true}, "balances")

	add(&groupCmd{app: a}, "groups")
	add(&secretSantaCmd{app: a}, "groups")

	if withShell {
		add(&shellCmd{app: a}, "")
	}
	return commands
}

// endFlags inserts "--" after the leading flags cmd defines, so an argument
// such as the exclusion token -Alice reaches the command as a positional
// argument instead of failing as an unknown flag. args[0] is the command
// name.
func endFlags(args []string, cmd subcommands.Command) []string {
	known := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	cmd.SetFlags(known)

	i := 1
	for i < len(args) {
		arg := args[i]
		if arg == "--" || arg == "-" || !strings.HasPrefix(arg, "-") {
			return args
		}
		name, _, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name == "h" || name == "help" {
			return args
		}
		f := known.Lookup(name)
		if f == nil {
			break
		}
		i++
		if !hasValue && !isBoolFlag(f) {
			i++
		}
	}
	if i >= len(args) {
		return args
	}
	out := make([]string, 0, len(args)+1)
	out = append(out, args[:i]...)
	out = append(out, "--")
	return append(out, args[i:]...)
}

func isBoolFlag(f *flag.Flag) bool {
	b, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}

// report prints the outcome of a command and maps it to an exit status.
func (a *app) report(lines []string, err error) subcommands.ExitStatus {
	if err != nil {
		fmt.Fprintln(a.out, core.UserMessage(err))
		if errors.Is(err, errUsage) {
			return subcommands.ExitUsageError
		}
		return subcommands.ExitFailure
	}
	if len(lines) > 0 {
		fmt.Fprintln(a.out, strings.Join(lines, "\n"))
	}
	return subcommands.ExitSuccess
}

// dateOrToday resolves the -date flag, defaulting to today.
func (a *app) dateOrToday(s string) (core.Date, error) {
	if s == "" {
		return a.svc.Today(), nil
	}
	return core.ParseDate(s)
}

// parseTokens accepts tokens as separate arguments or in the parenthesized
// comma-separated form, e.g. "(GIRLS, -Bob)".
func parseTokens(args []string) []string {
	var tokens []string
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.Trim(strings.TrimSpace(part), "()")
			if part = strings.TrimSpace(part); part != "" {
				tokens = append(tokens, part)
			}
		}
	}
	return tokens
}

// dateFlag registers the -date flag shared by most commands.
func dateFlag(f *flag.FlagSet, p *string) {
	f.StringVar(p, "date", "", "Date of the operation in "+core.DateLayout+" format. Defaults to today.")
}
