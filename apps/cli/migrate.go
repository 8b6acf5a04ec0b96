package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/storage/kv/sqldb"
)

var runMigrationsFunc = sqlkv.RunMigrations // mockable

var errNoDatabase = errors.New("migrations require a sqlite3 or postgres store")

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	if cli.db == nil {
		return errNoDatabase
	}
	return runMigrationsFunc(ctx, cli.db, args[0], args[1:]...)
}
