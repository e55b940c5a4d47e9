package main

import (
	"context"
	"errors"

	"github.com/pressly/goose/v3"

	"github.com/mrdawstar/LinguaLab-sub000/storage/database"
)

var gooseRunFunc = goose.RunContext // mockable

var errNoSQLDatabase = errors.New("migrations need the postgres engine")

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoSQLDatabase
	}
	return gooseRunFunc(context.Background(), args[0], cli.db, database.MigrationsDir, args[1:]...)
}
