package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/plansync/internal/app"
	"github.com/tildaslashalef/plansync/internal/commands"
)

// Version information - populated at build time
var (
	Version    = "dev"
	BuildTime  = "unknown"
	CommitHash = "unknown"
)

func main() {
	cliApp := &cli.App{
		Name:  "plansync",
		Usage: "Keep a planner data directory in sync through git",
		Description: "plansync batches edits to the data directory into commits, merges " +
			"remote changes and pushes the result, retrying transient push failures.\n\n" +
			"Run `plansync init` once, then `plansync watch` to sync continuously.",
		Version: fmt.Sprintf("%s (%s)", Version, CommitHash),
		Compiled: func() time.Time {
			t, err := time.Parse(time.RFC3339, BuildTime)
			if err != nil {
				return time.Now()
			}
			return t
		}(),
		Before: func(c *cli.Context) error {
			// init builds the application itself once the config directory exists
			if c.Args().First() == "init" || c.Args().Len() == 0 {
				return nil
			}

			application, err := app.New(c.Context, Version)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}

			c.App.Metadata = map[string]interface{}{
				"app": application,
			}
			return nil
		},
		After: func(c *cli.Context) error {
			if application, ok := c.App.Metadata["app"].(*app.App); ok {
				return application.Shutdown()
			}
			return nil
		},
		Commands: []*cli.Command{
			commands.InitCommand(Version),
			commands.SyncCommand(),
			commands.StatusCommand(),
			commands.HistoryCommand(),
			commands.ConflictsCommand(),
			commands.ResolveCommand(),
			commands.WatchCommand(),
			commands.ConfigCommand(),
			commands.RemoteCommand(),
			commands.MigrateCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		stop()
		log.Fatal(err)
	}
}
