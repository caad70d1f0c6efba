package commands

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/tildaslashalef/plansync/internal/app"
	"github.com/tildaslashalef/plansync/internal/sync"
	"github.com/tildaslashalef/plansync/internal/utils"
	"github.com/urfave/cli/v2"
)

// startApp returns the application with its repository initialized
func startApp(c *cli.Context) (*app.App, error) {
	application, err := app.FromContext(c)
	if err != nil {
		return nil, err
	}

	if err := application.Start(c.Context); err != nil {
		utils.PrintError(err.Error())
		return nil, err
	}

	return application, nil
}

// statusColor returns the color a sync status is printed in
func statusColor(status sync.Status) *color.Color {
	switch status {
	case sync.StatusSynced:
		return color.New(color.FgGreen, color.Bold)
	case sync.StatusSyncing:
		return color.New(color.FgCyan)
	case sync.StatusError:
		return color.New(color.FgRed, color.Bold)
	case sync.StatusConflict:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgHiBlack)
	}
}

// printResult reports a SyncResult and converts a failure into an exit error
func printResult(action string, result sync.SyncResult) error {
	if result.Success {
		utils.PrintSuccess(action + " completed")
		return nil
	}

	utils.PrintError(fmt.Sprintf("%s failed: %s", action, result.Error))
	return cli.Exit("", 1)
}

// formatTime renders a timestamp in local time
func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}
