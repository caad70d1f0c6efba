package commands

import (
	"fmt"
	"strings"

	"github.com/tildaslashalef/plansync/internal/sync"
	"github.com/tildaslashalef/plansync/internal/utils"
	"github.com/urfave/cli/v2"
)

// StatusCommand returns the CLI command that shows the sync state
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show sync state and repository status",
		Action: func(c *cli.Context) error {
			application, err := startApp(c)
			if err != nil {
				return err
			}

			cfg := application.Config.Sync
			utils.PrintHeading("plansync status")
			utils.PrintKeyValue("Repository", cfg.RepoPath)
			utils.PrintKeyValue("Branch", cfg.Branch)
			utils.PrintKeyValue("Remote", cfg.Remote)

			state := application.Engine.State()
			if state.LastSyncTime == nil {
				if last := lastSuccess(application.Engine.History()); last != nil {
					state.LastSyncTime = &last.Timestamp
				}
			}
			printState(state)

			repo, err := application.Git.Status(c.Context, cfg.Remote, cfg.Branch)
			if err != nil {
				utils.PrintWarning(fmt.Sprintf("Could not read repository status: %s", err))
				return nil
			}

			utils.PrintKeyValue("Working tree", fmt.Sprintf("%d changed file(s)", repo.Changed()))
			utils.PrintKeyValue("Ahead/behind", fmt.Sprintf("%d/%d", repo.Ahead, repo.Behind))
			return nil
		},
	}
}

// printState prints a SyncState
func printState(state sync.SyncState) {
	utils.PrintKeyValue("Status", statusColor(state.Status).Sprint(state.Status))

	lastSync := "never"
	if state.LastSyncTime != nil {
		lastSync = formatTime(*state.LastSyncTime)
	}
	utils.PrintKeyValue("Last sync", lastSync)
	utils.PrintKeyValue("Pending changes", fmt.Sprintf("%d", state.PendingChanges))

	if state.Error != "" {
		utils.PrintKeyValueWithColor("Error", state.Error, utils.Theme.Error)
	}
	if len(state.ConflictFiles) > 0 {
		utils.PrintKeyValueWithColor("Conflicts", strings.Join(state.ConflictFiles, ", "), utils.Theme.Warning)
	}
}

// lastSuccess returns the newest successful push, or the newest successful
// entry when nothing was pushed
func lastSuccess(history []sync.SyncLogEntry) *sync.SyncLogEntry {
	var fallback *sync.SyncLogEntry
	for i := range history {
		entry := &history[i]
		if entry.Outcome != sync.OutcomeSuccess {
			continue
		}
		if entry.Operation == sync.OperationPush {
			return entry
		}
		if fallback == nil {
			fallback = entry
		}
	}
	return fallback
}
