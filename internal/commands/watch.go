package commands

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tildaslashalef/plansync/internal/commands/watch"
	"github.com/tildaslashalef/plansync/internal/loggy"
	"github.com/tildaslashalef/plansync/internal/sync"
	"github.com/tildaslashalef/plansync/internal/utils"
	"github.com/tildaslashalef/plansync/internal/watcher"
	"github.com/urfave/cli/v2"
)

// stateBuffer is how many published states can queue for the view
const stateBuffer = 32

// WatchCommand returns the CLI command that syncs changes as they happen
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Watch the data directory and sync changes automatically",
		Description: "Every change in the data directory restarts the debounce window. " +
			"Once it elapses the queued changes are committed in one batch, merged with " +
			"the remote and pushed.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-tui",
				Usage: "Log state changes instead of showing the live view",
			},
		},
		Action: func(c *cli.Context) error {
			application, err := startApp(c)
			if err != nil {
				return err
			}

			cfg := application.Config
			w, err := watcher.New(watcher.Options{
				Root:            cfg.Sync.RepoPath,
				EventsPerSecond: cfg.Watch.EventsPerSecond,
				Burst:           cfg.Watch.Burst,
				Ignore:          cfg.Watch.Ignore,
			}, application.Engine, application.Logger)
			if err != nil {
				utils.PrintError(err.Error())
				return err
			}
			defer w.Close()

			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()

			watchErr := make(chan error, 1)
			go func() {
				watchErr <- w.Start(ctx)
			}()

			if c.Bool("no-tui") {
				return watchHeadless(ctx, application.Engine, watchErr)
			}

			states := make(chan sync.SyncState, stateBuffer)
			unsubscribe := application.Engine.Subscribe(func(state sync.SyncState) {
				select {
				case states <- state:
				default:
					// The view also polls; a dropped state is superseded by the next
				}
			})
			defer unsubscribe()

			model := watch.NewModel(ctx, application.Engine, states, cfg.Sync.RepoPath, cfg.Sync.Remote)
			program := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen())

			go func() {
				if err := <-watchErr; err != nil && !errors.Is(err, context.Canceled) {
					loggy.Error("Watcher stopped", "error", err)
					program.Quit()
				}
			}()

			if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("running watch view: %w", err)
			}
			return nil
		},
	}
}

// watchHeadless prints state transitions until ctx is done or the watcher stops
func watchHeadless(ctx context.Context, engine *sync.Engine, watchErr <-chan error) error {
	unsubscribe := engine.Subscribe(func(state sync.SyncState) {
		line := fmt.Sprintf("%s  pending=%d", statusColor(state.Status).Sprint(state.Status), state.PendingChanges)
		if state.Error != "" {
			line += "  error=" + state.Error
		}
		if len(state.ConflictFiles) > 0 {
			line += fmt.Sprintf("  conflicts=%v", state.ConflictFiles)
		}
		fmt.Println(line)
	})
	defer unsubscribe()

	utils.PrintInfo("Watching for changes, press Ctrl+C to stop")

	select {
	case <-ctx.Done():
		return nil
	case err := <-watchErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			utils.PrintError(err.Error())
			return err
		}
		return nil
	}
}
