package commands

import (
	"fmt"

	"github.com/tildaslashalef/plansync/internal/app"
	"github.com/tildaslashalef/plansync/internal/database"
	"github.com/tildaslashalef/plansync/internal/utils"
	"github.com/urfave/cli/v2"
)

// MigrateCommand returns the CLI command for database migrations
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:   "migrate",
		Usage:  "Manage database migrations",
		Hidden: true,
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply all pending migrations",
				Action: func(c *cli.Context) error {
					application, err := app.FromContext(c)
					if err != nil {
						return err
					}

					applied, err := database.RunMigrations(application.DB)
					if err != nil {
						utils.PrintError(fmt.Sprintf("Failed to apply migrations: %s", err))
						return err
					}

					if applied {
						utils.PrintSuccess("Migrations applied successfully")
					} else {
						utils.PrintSuccess("Database schema is already up-to-date")
					}
					return nil
				},
			},
			{
				Name:  "down",
				Usage: "Revert migrations",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "steps",
						Usage: "Number of migrations to revert",
						Value: 1,
					},
				},
				Action: func(c *cli.Context) error {
					application, err := app.FromContext(c)
					if err != nil {
						return err
					}

					steps := c.Int("steps")
					if steps <= 0 {
						return fmt.Errorf("steps must be positive")
					}

					if err := database.RevertMigrations(application.DB, steps); err != nil {
						utils.PrintError(fmt.Sprintf("Failed to revert migrations: %s", err))
						return err
					}

					utils.PrintSuccess(fmt.Sprintf("Reverted %d migration(s)", steps))
					return nil
				},
			},
		},
	}
}
