package commands

import (
	"fmt"
	"strings"

	"github.com/tildaslashalef/plansync/internal/sync"
	"github.com/tildaslashalef/plansync/internal/utils"
	"github.com/urfave/cli/v2"
)

// HistoryCommand returns the CLI command that lists recent sync activity
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recent sync activity, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of entries to show",
				Value:   20,
			},
			&cli.BoolFlag{
				Name:  "details",
				Usage: "Include the details column",
			},
		},
		Action: func(c *cli.Context) error {
			application, err := startApp(c)
			if err != nil {
				return err
			}

			entries := application.Engine.History()
			if len(entries) == 0 {
				utils.PrintInfo("No sync activity recorded yet")
				return nil
			}

			if limit := c.Int("limit"); limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}

			headers, rows := historyRows(entries, c.Bool("details"))
			utils.PrintTable(headers, rows, utils.TableOptions{
				Title:          fmt.Sprintf("Sync history (%d)", len(entries)),
				MaxColumnWidth: 60,
			})
			return nil
		},
	}
}

// historyRows builds the table for entries
func historyRows(entries []sync.SyncLogEntry, details bool) ([]string, [][]string) {
	headers := []string{"Time", "Operation", "Outcome", "Message", "Commit"}
	if details {
		headers = append(headers, "Details")
	}

	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		row := []string{
			formatTime(entry.Timestamp),
			string(entry.Operation),
			string(entry.Outcome),
			subjectLine(entry.Message),
			shortRef(entry.CommitRef),
		}
		if details {
			row = append(row, entry.Details)
		}
		rows = append(rows, row)
	}
	return headers, rows
}

// subjectLine returns the first line of a message
func subjectLine(message string) string {
	line, _, _ := strings.Cut(message, "\n")
	return line
}

func shortRef(ref string) string {
	if len(ref) > 8 {
		return ref[:8]
	}
	return ref
}
