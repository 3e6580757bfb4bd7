package main

import (
	"context"
	"errors"

	"github.com/BISHOP-X/BABCOCK-VPL/storage/database"
)

var gooseRunFunc = database.RunMigration // mockable

var errNoDatabase = errors.New("migrate requires the postgres storage driver")

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	if cli.db == nil {
		return errNoDatabase
	}
	return gooseRunFunc(ctx, cli.db, args[0], args[1:]...)
}
