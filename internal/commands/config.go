package commands

import (
	"fmt"
	"strings"

	"github.com/tildaslashalef/plansync/internal/app"
	"github.com/tildaslashalef/plansync/internal/config"
	"github.com/tildaslashalef/plansync/internal/utils"
	"github.com/urfave/cli/v2"
)

// ConfigCommand returns the CLI command for stored sync settings
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Show or change stored sync settings",
		Description: "Settings stored here override the environment. " +
			"Known keys: " + strings.Join(config.KnownKeys, ", "),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "branch", Usage: "Branch to commit to and push"},
			&cli.StringFlag{Name: "remote", Usage: "Remote to pull from and push to"},
			&cli.StringFlag{Name: "author-name", Usage: "Commit author name"},
			&cli.StringFlag{Name: "author-email", Usage: "Commit author email"},
			&cli.StringFlag{Name: "username", Usage: "HTTPS username for the remote"},
			&cli.StringFlag{Name: "token", Usage: "HTTPS token for the remote"},
		},
		Subcommands: []*cli.Command{
			{
				Name:      "unset",
				Usage:     "Remove a stored setting",
				ArgsUsage: "<key>",
				Action: func(c *cli.Context) error {
					application, err := app.FromContext(c)
					if err != nil {
						return err
					}
					if c.NArg() != 1 {
						return cli.Exit("unset takes exactly one key", 2)
					}

					key := c.Args().First()
					if err := application.Settings.Unset(c.Context, key); err != nil {
						utils.PrintError(err.Error())
						return err
					}
					utils.PrintSuccess("Removed " + key)
					return nil
				},
			},
		},
		Action: func(c *cli.Context) error {
			application, err := app.FromContext(c)
			if err != nil {
				return err
			}

			flags := map[string]string{
				"branch":       config.KeyBranch,
				"remote":       config.KeyRemote,
				"author-name":  config.KeyAuthorName,
				"author-email": config.KeyAuthorEmail,
				"username":     config.KeyGitUsername,
				"token":        config.KeyGitToken,
			}

			changed := false
			for flag, key := range flags {
				if !c.IsSet(flag) {
					continue
				}
				if err := application.Settings.Set(c.Context, key, c.String(flag)); err != nil {
					utils.PrintError(fmt.Sprintf("Failed to save %s: %s", key, err))
					return err
				}
				changed = true
			}
			if changed {
				utils.PrintSuccess("Settings saved")
			}

			printConfig(application.Config)
			return nil
		},
	}
}

func printConfig(cfg *config.Config) {
	token := "(not set)"
	if cfg.Git.Token != "" {
		token = maskSecret(cfg.Git.Token)
	}

	utils.PrintTable([]string{"Setting", "Value"}, [][]string{
		{"Repository", cfg.Sync.RepoPath},
		{"Branch", cfg.Sync.Branch},
		{"Remote", cfg.Sync.Remote},
		{"Debounce", cfg.Sync.Debounce.String()},
		{"Push attempts", fmt.Sprintf("%d (base delay %s)", cfg.Sync.PushMaxAttempts, cfg.Sync.PushBaseDelay)},
		{"History limit", fmt.Sprintf("%d", cfg.Sync.HistoryLimit)},
		{"Author", strings.TrimSpace(cfg.Git.AuthorName + " " + angle(cfg.Git.AuthorEmail))},
		{"Username", cfg.Git.Username},
		{"Token", token},
		{"Config directory", cfg.ConfigDir()},
		{"Database", cfg.Database.Path},
	}, utils.TableOptions{Title: "Configuration"})
}

// maskSecret keeps the last four characters of a secret
func maskSecret(secret string) string {
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}

func angle(email string) string {
	if email == "" {
		return ""
	}
	return "<" + email + ">"
}
