package commands

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/tildaslashalef/plansync/internal/app"
	"github.com/tildaslashalef/plansync/internal/config"
	"github.com/tildaslashalef/plansync/internal/utils"
	"github.com/urfave/cli/v2"
)

// InitCommand returns the CLI command for initializing plansync
func InitCommand(version string) *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize plansync for the data directory",
		Description: "Creates the configuration directory with a sample .env file, " +
			"prepares the database and turns the data directory into a git repository " +
			"when it is not one yet.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "backup",
				Usage: "Back up and replace an existing .env file with the sample",
			},
		},
		Action: func(c *cli.Context) error {
			utils.PrintHeading("Initializing plansync")

			configDir, err := config.DefaultConfigDir()
			if err != nil {
				utils.PrintError(err.Error())
				return err
			}
			utils.PrintInfo("Configuration directory: " + color.YellowString("%s", configDir))

			if err := config.SetupConfigDirectory(configDir, c.Bool("backup")); err != nil {
				utils.PrintError(fmt.Sprintf("Failed to create config directory: %s", err))
				return fmt.Errorf("failed to create config directory: %w", err)
			}

			application, err := app.New(c.Context, version)
			if err != nil {
				utils.PrintError(err.Error())
				return err
			}
			defer application.Shutdown()

			utils.PrintSuccess("Database schema is up-to-date")

			if err := application.Start(c.Context); err != nil {
				utils.PrintError(err.Error())
				return err
			}

			cfg := application.Config
			utils.PrintSuccess("plansync initialized successfully!")
			utils.PrintInfo("Repository: " + color.YellowString("%s", cfg.Sync.RepoPath))
			utils.PrintInfo("Branch: " + color.YellowString("%s", cfg.Sync.Branch) +
				"  Remote: " + color.YellowString("%s", cfg.Sync.Remote))
			utils.PrintInfo("Configuration file: " + color.YellowString("%s", filepath.Join(configDir, ".env")))
			utils.PrintInfo("Database location: " + color.YellowString("%s", cfg.Database.Path))
			utils.PrintInfo("Log file location: " + color.YellowString("%s", cfg.Logging.Output))
			fmt.Println()
			if _, err := application.Git.RemoteURL(c.Context, cfg.Sync.Remote); err != nil {
				utils.PrintInfo("Run " + color.CyanString("plansync remote create <owner/name>") + " or " +
					color.CyanString("plansync remote set <url>") + " to configure the remote.")
			}
			utils.PrintInfo("Run " + color.CyanString("plansync watch") + " to sync changes as they happen.")

			return nil
		},
	}
}
