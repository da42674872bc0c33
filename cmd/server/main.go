// @title           Debt Recovery API
// @version         1.0
// @description     Case management for a debt-recovery agency: clients file cases, staff and legal work them, clients pay invoices online.
// @contact.name    Aldo Rifki Putra
// @contact.email   aldoetobex@gmail.com
// @BasePath        /api
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
// @description     Format: Bearer <token>
package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "debt-recovery",
		Usage: "Debt recovery case management API",
		Commands: []*cli.Command{
			serveCommand,
			migrateCommand,
			seedCommand,
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
