package main

import (
	"context"
	"flag"
	"strconv"

	"github.com/google/subcommands"

	"github.com/nivanenko/shared-expenses-tracker/internal/core"
	"github.com/nivanenko/shared-expenses-tracker/internal/services"
)

type borrowCmd struct {
	*app
	date string
}

func (*borrowCmd) Name() string     { return "borrow" }
func (*borrowCmd) Synopsis() string { return "record that one person borrowed money from another" }
func (*borrowCmd) Usage() string {
	return `splitter borrow [-date <date>] <borrower> <lender> <amount>

  Records a debt of <amount> owed by <borrower> to <lender>.
`
}

func (c *borrowCmd) SetFlags(f *flag.FlagSet) { dateFlag(f, &c.date) }

func (c *borrowCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.report(nil, c.transfer(ctx, f, c.date, c.svc.Borrow))
}

type repayCmd struct {
	*app
	date string
}

func (*repayCmd) Name() string     { return "repay" }
func (*repayCmd) Synopsis() string { return "record that one person paid money back to another" }
func (*repayCmd) Usage() string {
	return `splitter repay [-date <date>] <payer> <payee> <amount>

  Records that <payer> gave <amount> to <payee>.
`
}

func (c *repayCmd) SetFlags(f *flag.FlagSet) { dateFlag(f, &c.date) }

func (c *repayCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.report(nil, c.transfer(ctx, f, c.date, c.svc.Repay))
}

type transferFunc func(ctx context.Context, date core.Date, from, to string, amount core.Amount) (core.Transaction, error)

func (a *app) transfer(ctx context.Context, f *flag.FlagSet, rawDate string, do transferFunc) error {
	if f.NArg() != 3 {
		return errUsage
	}
	date, err := a.dateOrToday(rawDate)
	if err != nil {
		return err
	}
	amount, err := core.ParseAmount(f.Arg(2))
	if err != nil {
		return err
	}
	_, err = do(ctx, date, f.Arg(0), f.Arg(1), amount)
	return err
}

type purchaseCmd struct {
	*app
	date string
}

func (*purchaseCmd) Name() string     { return "purchase" }
func (*purchaseCmd) Synopsis() string { return "split a purchase equally between participants" }
func (*purchaseCmd) Usage() string {
	return `splitter purchase [-date <date>] <buyer> <item> <amount> <token>...

  Splits <amount> equally between the selected participants. Each of them
  except the buyer then owes the buyer their share. Tokens are user names,
  GROUP names, or either prefixed with '-' to exclude them, e.g.
  "(GIRLS, -Bob)".
`
}

func (c *purchaseCmd) SetFlags(f *flag.FlagSet) { dateFlag(f, &c.date) }

func (c *purchaseCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.report(nil, c.split(ctx, f, c.date, c.svc.Purchase))
}

type cashBackCmd struct {
	*app
	date string
}

func (*cashBackCmd) Name() string     { return "cashBack" }
func (*cashBackCmd) Synopsis() string { return "split a refund equally between participants" }
func (*cashBackCmd) Usage() string {
	return `splitter cashBack [-date <date>] <refunder> <item> <amount> <token>...

  The reverse of purchase: <refunder> owes each selected participant an
  equal share of <amount>.
`
}

func (c *cashBackCmd) SetFlags(f *flag.FlagSet) { dateFlag(f, &c.date) }

func (c *cashBackCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.report(nil, c.split(ctx, f, c.date, c.svc.CashBack))
}

type splitFunc func(ctx context.Context, date core.Date, payer string, amount core.Amount, tokens []string) ([]core.Transaction, error)

func (a *app) split(ctx context.Context, f *flag.FlagSet, rawDate string, do splitFunc) error {
	// payer, item, amount, then at least one token
	if f.NArg() < 4 {
		return errUsage
	}
	date, err := a.dateOrToday(rawDate)
	if err != nil {
		return err
	}
	amount, err := core.ParseAmount(f.Arg(2))
	if err != nil {
		return err
	}
	_, err = do(ctx, date, f.Arg(0), amount, parseTokens(f.Args()[3:]))
	return err
}

type balanceCmd struct {
	*app
	perfect bool
	date    string
}

func (c *balanceCmd) Name() string {
	if c.perfect {
		return "balancePerfect"
	}
	return "balance"
}

func (c *balanceCmd) Synopsis() string {
	if c.perfect {
		return "list the fewest repayments that settle all debts"
	}
	return "list who owes whom"
}

func (c *balanceCmd) Usage() string {
	return "splitter " + c.Name() + ` [-date <date>] [open|close] [<token>...]

  close (the default) counts transactions up to and including the date;
  open stops at the end of the previous month. Tokens restrict the result
  to debts of the selected borrowers. Arguments after the flags that start
  with "-" are exclusion tokens, e.g. "balance -Alice TEAM".
`
}

func (c *balanceCmd) SetFlags(f *flag.FlagSet) { dateFlag(f, &c.date) }

func (c *balanceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	date, err := c.dateOrToday(c.date)
	if err != nil {
		return c.report(nil, err)
	}

	args := f.Args()
	var mode services.BalanceMode
	if len(args) > 0 {
		if m, err := services.ParseBalanceMode(args[0]); err == nil {
			mode, args = m, args[1:]
		}
	}

	query := c.svc.Balance
	if c.perfect {
		query = c.svc.BalancePerfect
	}
	return c.report(query(ctx, date, mode, parseTokens(args)))
}

type groupCmd struct {
	*app
}

func (*groupCmd) Name() string     { return "group" }
func (*groupCmd) Synopsis() string { return "create, change or show a group of users" }
func (*groupCmd) Usage() string {
	return `splitter group create <GROUP> <token>...
splitter group add <GROUP> <token>...
splitter group remove <GROUP> <token>...
splitter group show <GROUP>

  Group names are written in upper case. create replaces any existing
  group of that name.
`
}

func (*groupCmd) SetFlags(*flag.FlagSet) {}

func (c *groupCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 2 {
		return c.report(nil, errUsage)
	}
	action, name, tokens := f.Arg(0), f.Arg(1), parseTokens(f.Args()[2:])

	var err error
	switch action {
	case "create":
		_, err = c.svc.GroupCreate(ctx, name, tokens)
	case "add":
		_, err = c.svc.GroupAdd(ctx, name, tokens)
	case "remove":
		_, err = c.svc.GroupRemove(ctx, name, tokens)
	case "show":
		if len(tokens) > 0 {
			return c.report(nil, errUsage)
		}
		return c.report(c.svc.GroupShow(ctx, name))
	default:
		return c.report(nil, errUsage)
	}
	return c.report(nil, err)
}

type secretSantaCmd struct {
	*app
}

func (*secretSantaCmd) Name() string     { return "secretSanta" }
func (*secretSantaCmd) Synopsis() string { return "draw secret santa gift pairs for a group" }
func (*secretSantaCmd) Usage() string {
	return `splitter secretSanta <GROUP>

  Assigns every member of the group someone to give a gift to.
`
}

func (*secretSantaCmd) SetFlags(*flag.FlagSet) {}

func (c *secretSantaCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return c.report(nil, errUsage)
	}
	return c.report(c.svc.SecretSanta(ctx, f.Arg(0)))
}

type writeOffCmd struct {
	*app
	date    string
	verbose bool
}

func (*writeOffCmd) Name() string     { return "writeOff" }
func (*writeOffCmd) Synopsis() string { return "forget all transactions up to a date" }
func (*writeOffCmd) Usage() string {
	return `splitter writeOff [-date <date>] [-v]

  Deletes every transaction dated on or before the date.
`
}

func (c *writeOffCmd) SetFlags(f *flag.FlagSet) {
	dateFlag(f, &c.date)
	f.BoolVar(&c.verbose, "v", false, "Print the number of deleted transactions.")
}

func (c *writeOffCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 0 {
		return c.report(nil, errUsage)
	}
	date, err := c.dateOrToday(c.date)
	if err != nil {
		return c.report(nil, err)
	}
	deleted, err := c.svc.WriteOff(ctx, date)
	if err != nil || !c.verbose {
		return c.report(nil, err)
	}
	return c.report([]string{strconv.FormatInt(deleted, 10)}, nil)
}
