package main

import (
	"github.com/urfave/cli/v2"

	"github.com/aldoetobex/debt-recovery-backend/pkg/database"
)

var migrateCommand = &cli.Command{
	Name:  "migrate",
	Usage: "Create or update the database schema",
	Action: func(cCtx *cli.Context) error {
		_, logger, db, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		if err := database.Migrate(db); err != nil {
			return err
		}
		logger.Info("migrations applied")
		return nil
	},
}
