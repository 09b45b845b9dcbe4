package main

import (
	"context"
	"fmt"

	"github.com/trezcool/masomo-fees/storage/database"
)

var createDBFunc = database.CreateIfNotExist // mockable

func (cli *commandLine) createDB(ctx context.Context, adminPassword string) error {
	conf := *cli.conf
	conf.Database.AdminPassword = adminPassword
	if err := createDBFunc(ctx, &conf); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "database %q is ready\n", conf.Database.Name)
	return nil
}
