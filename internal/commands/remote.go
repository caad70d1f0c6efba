package commands

import (
	"errors"
	"fmt"

	"github.com/tildaslashalef/plansync/internal/git"
	"github.com/tildaslashalef/plansync/internal/github"
	"github.com/tildaslashalef/plansync/internal/utils"
	"github.com/urfave/cli/v2"
)

// RemoteCommand returns the CLI command for the sync remote
func RemoteCommand() *cli.Command {
	return &cli.Command{
		Name:  "remote",
		Usage: "Show or configure the remote the repository syncs with",
		Subcommands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Point the sync remote at a URL",
				ArgsUsage: "<url>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("set takes exactly one URL", 2)
					}

					application, err := startApp(c)
					if err != nil {
						return err
					}

					name := application.Config.Sync.Remote
					if err := application.Git.AddRemote(c.Context, name, c.Args().First()); err != nil {
						utils.PrintError(err.Error())
						return err
					}
					utils.PrintSuccess(fmt.Sprintf("Remote %s now points at %s", name, c.Args().First()))
					return nil
				},
			},
			{
				Name:      "create",
				Usage:     "Create a GitHub repository and use it as the sync remote",
				ArgsUsage: "<owner/name>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "public", Usage: "Create a public repository"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("create takes exactly one owner/name", 2)
					}

					owner, name, err := github.ParseSlug(c.Args().First())
					if err != nil {
						return cli.Exit(err.Error(), 2)
					}

					application, err := startApp(c)
					if err != nil {
						return err
					}

					if application.Config.Git.Token == "" {
						utils.PrintError("A token is required. Set one with `plansync config --token`.")
						return cli.Exit("", 1)
					}

					repo, created, err := application.GitHub.EnsureRepository(c.Context, owner, name, !c.Bool("public"))
					if err != nil {
						utils.PrintError(err.Error())
						return err
					}
					if created {
						utils.PrintSuccess("Created " + repo.FullName())
					} else {
						utils.PrintInfo(repo.FullName() + " already exists, reusing it")
					}

					remote := application.Config.Sync.Remote
					if err := application.Git.AddRemote(c.Context, remote, repo.CloneURL); err != nil {
						utils.PrintError(err.Error())
						return err
					}
					utils.PrintSuccess(fmt.Sprintf("Remote %s now points at %s", remote, repo.CloneURL))
					return nil
				},
			},
		},
		Action: func(c *cli.Context) error {
			application, err := startApp(c)
			if err != nil {
				return err
			}

			name := application.Config.Sync.Remote
			url, err := application.Git.RemoteURL(c.Context, name)
			if errors.Is(err, git.ErrNoRemote) {
				utils.PrintWarning(fmt.Sprintf("Remote %s is not configured. Use `plansync remote set` or `plansync remote create`.", name))
				return nil
			}
			if err != nil {
				utils.PrintError(err.Error())
				return err
			}

			utils.PrintHeading("Remote")
			utils.PrintKeyValue("Name", name)
			utils.PrintKeyValue("URL", url)

			owner, repoName, err := github.ParseRemoteURL(url)
			if err != nil {
				return nil
			}

			repo, err := application.GitHub.GetRepository(c.Context, owner, repoName)
			switch {
			case errors.Is(err, github.ErrRepositoryNotFound):
				utils.PrintWarning(fmt.Sprintf("%s/%s is not visible with the configured token", owner, repoName))
			case err != nil:
				utils.PrintWarning("Could not query GitHub: " + err.Error())
			default:
				if repo.Private {
					utils.PrintKeyValueWithColor("Visibility", "private", utils.Theme.Success)
				} else {
					utils.PrintKeyValueWithColor("Visibility", "public", utils.Theme.Warning)
				}
				utils.PrintKeyValue("Default branch", repo.DefaultBranch)
			}
			return nil
		},
	}
}
