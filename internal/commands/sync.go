package commands

import (
	"github.com/tildaslashalef/plansync/internal/sync"
	"github.com/tildaslashalef/plansync/internal/utils"
	"github.com/urfave/cli/v2"
)

// SyncCommand returns the CLI command that runs the sync pipeline once
func SyncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Commit, pull and push the data directory now",
		Description: "Commits local changes, integrates remote commits and pushes the result. " +
			"Stops with a conflict status when the pull cannot be merged automatically.",
		Action: func(c *cli.Context) error {
			application, err := startApp(c)
			if err != nil {
				return err
			}

			utils.PrintInfo("Syncing " + application.Config.Sync.RepoPath)
			result := application.Engine.SyncNow(c.Context)

			if err := printResult("Sync", result); err != nil {
				printState(application.Engine.State())
				return err
			}

			for _, entry := range application.Engine.History() {
				if entry.Operation == sync.OperationCommit && entry.Outcome == sync.OutcomeSuccess {
					utils.PrintKeyValue("Last commit", subjectLine(entry.Message))
					break
				}
			}
			return nil
		},
	}
}
