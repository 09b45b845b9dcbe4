package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/fee"
)

const dateLayout = fee.DateLayout

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf   *core.Config
	db     *sqlx.DB
	feeSvc *fee.Service
	out    io.Writer
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]   - run a goose migration command (up, down, status, ...)")
	_, _ = fmt.Fprintln(cli.out, "  createdb                 - create the app user & database if they do not exist")
	_, _ = fmt.Fprintln(cli.out, "  seed [-file PATH]        - create fee types from a JSON catalog (default: built-in)")
	_, _ = fmt.Fprintln(cli.out, "  markoverdue [-asof DATE] - flag outstanding invoices due before DATE (default: today)")
	_, _ = fmt.Fprintln(cli.out, "  stats                    - print the ledger summary")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	seedCmd := flag.NewFlagSet("seed", flag.ContinueOnError)
	seedCmd.SetOutput(cli.out)
	seedFile := seedCmd.String("file", "", "Path of a JSON list of {name, amount, description}.")

	markOverdueCmd := flag.NewFlagSet("markoverdue", flag.ContinueOnError)
	markOverdueCmd.SetOutput(cli.out)
	markOverdueAsOf := markOverdueCmd.String("asof", "", "Invoices due strictly before this date (YYYY-MM-DD) are overdue.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			_, _ = fmt.Fprintln(cli.out, "Usage: migrate COMMAND [ARGS]")
			return errHelp
		}
		return cli.migrate(args[2:])

	case "createdb":
		if cli.conf.Database.AdminUser != "" && cli.conf.Database.AdminPassword == "" {
			_, _ = fmt.Fprintf(cli.out, "Enter password for %s:", cli.conf.Database.AdminUser)
			pwd, err := readPasswordFunc(int(syscall.Stdin))
			_, _ = fmt.Fprintln(cli.out)
			if err != nil {
				return err
			}
			return cli.createDB(ctx, string(pwd))
		}
		return cli.createDB(ctx, cli.conf.Database.AdminPassword)

	case "seed":
		if err := seedCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.seed(ctx, *seedFile)

	case "markoverdue":
		if err := markOverdueCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		asOf := time.Now().UTC().Truncate(24 * time.Hour)
		if *markOverdueAsOf != "" {
			var err error
			if asOf, err = time.Parse(dateLayout, *markOverdueAsOf); err != nil {
				markOverdueCmd.Usage()
				return errHelp
			}
		}
		return cli.markOverdue(ctx, asOf)

	case "stats":
		return cli.stats(ctx)

	default:
		cli.printUsage()
		return errHelp
	}
}
