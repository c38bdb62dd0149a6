package main

import (
	"context"

	"github.com/trezcool/mothercare/storage/database"
)

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoDatabase
	}
	return database.Run(context.Background(), cli.db, args[0], args[1:]...)
}
