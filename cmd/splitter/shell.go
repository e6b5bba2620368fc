package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"

	"github.com/nivanenko/shared-expenses-tracker/internal/core"
)

type shellCmd struct {
	*app
}

func (*shellCmd) Name() string     { return "shell" }
func (*shellCmd) Synopsis() string { return "read commands from standard input, one per line" }
func (*shellCmd) Usage() string {
	return `splitter shell

  Runs each input line as a splitter command until "exit" or end of input.
  A line may start with a date, e.g. "2024.03.15 borrow Alice Bob 10".
  Failed commands print a message and the shell continues.
`
}

func (*shellCmd) SetFlags(*flag.FlagSet) {}

func (c *shellCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 0 {
		return c.report(nil, errUsage)
	}

	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return subcommands.ExitFailure
		}
		args := shellArgs(scanner.Text())
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" {
			return subcommands.ExitSuccess
		}
		c.run(ctx, args, false)
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintln(c.errOut, "read input:", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// shellArgs splits a line into command arguments, turning a leading date
// into the -date flag of the command that follows it.
func shellArgs(line string) []string {
	fields := strings.Fields(line)
	if len(fields) >= 2 {
		if _, err := core.ParseDate(fields[0]); err == nil {
			return append([]string{fields[1], "-date", fields[0]}, fields[2:]...)
		}
	}
	return fields
}
