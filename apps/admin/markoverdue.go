package main

import (
	"context"
	"fmt"
	"time"
)

func (cli *commandLine) markOverdue(ctx context.Context, asOf time.Time) error {
	n, err := cli.feeSvc.MarkOverdue(ctx, asOf)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "%d invoices due before %s marked overdue\n", n, asOf.Format(dateLayout))
	return nil
}
