package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/tildaslashalef/plansync/internal/sync"
	"github.com/tildaslashalef/plansync/internal/utils"
	"github.com/urfave/cli/v2"
)

// ConflictsCommand returns the CLI command that shows unresolved conflicts
func ConflictsCommand() *cli.Command {
	return &cli.Command{
		Name:  "conflicts",
		Usage: "Show files with unresolved merge conflicts",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "raw",
				Usage: "Print markdown without terminal rendering",
			},
		},
		Action: func(c *cli.Context) error {
			application, err := startApp(c)
			if err != nil {
				return err
			}

			conflicts, err := application.Engine.Conflicts(c.Context)
			if err != nil {
				utils.PrintError(err.Error())
				return err
			}

			if len(conflicts) == 0 {
				utils.PrintSuccess("No unresolved conflicts")
				return nil
			}

			markdown := RenderConflictsMarkdown(conflicts)
			if c.Bool("raw") {
				fmt.Print(markdown)
				return nil
			}

			renderer, err := glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(100),
			)
			if err != nil {
				fmt.Print(markdown)
				return nil
			}

			out, err := renderer.Render(markdown)
			if err != nil {
				fmt.Print(markdown)
				return nil
			}
			fmt.Print(out)
			return nil
		},
	}
}

// RenderConflictsMarkdown describes conflicts as markdown
func RenderConflictsMarkdown(conflicts []sync.ConflictInfo) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Unresolved conflicts (%d)\n\n", len(conflicts))

	for _, conflict := range conflicts {
		fmt.Fprintf(&sb, "## %s\n\n", conflict.File)
		switch {
		case conflict.Hunks == 0:
			sb.WriteString("_No conflict markers found; the file differs as a whole._\n\n")
		case conflict.Hunks > 1:
			fmt.Fprintf(&sb, "_%d conflicting regions, the first is shown._\n\n", conflict.Hunks)
		}

		writeSide(&sb, "Local", conflict.LocalContent)
		if conflict.BaseContent != nil {
			writeSide(&sb, "Base", *conflict.BaseContent)
		}
		writeSide(&sb, "Remote", conflict.RemoteContent)

		fmt.Fprintf(&sb, "Resolve with `plansync resolve %s --choice local|remote|merge`\n\n", conflict.File)
	}

	return sb.String()
}

func writeSide(sb *strings.Builder, title, content string) {
	fmt.Fprintf(sb, "### %s\n\n", title)
	if content == "" {
		sb.WriteString("_(empty)_\n\n")
		return
	}

	fence := "```"
	for strings.Contains(content, fence) {
		fence += "`"
	}
	fmt.Fprintf(sb, "%stext\n%s\n%s\n\n", fence, strings.TrimRight(content, "\n"), fence)
}

// ResolveCommand returns the CLI command that resolves one conflicted file
func ResolveCommand() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Resolve a conflicted file",
		ArgsUsage: "<file>",
		Description: "Keeps the local or remote version of a conflicted file, or replaces it " +
			"with merged content. Once no conflicts remain the merge is committed and pushed.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "choice",
				Usage:    "local, remote or merge",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "content-file",
				Usage: "File with the merged content for --choice merge (- reads stdin)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("resolve takes exactly one file argument", 2)
			}
			file := c.Args().First()

			choice, err := sync.ParseChoice(c.String("choice"))
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}

			var merged *string
			if path := c.String("content-file"); path != "" {
				content, err := readContent(path, c.App.Reader)
				if err != nil {
					return err
				}
				merged = &content
			}

			application, err := startApp(c)
			if err != nil {
				return err
			}

			result := application.Engine.ResolveConflict(c.Context, file, choice, merged)
			if err := printResult("Resolve", result); err != nil {
				return err
			}

			state := application.Engine.State()
			switch {
			case len(state.ConflictFiles) > 0:
				utils.PrintInfo(fmt.Sprintf("%d conflicted file(s) remain: %s",
					len(state.ConflictFiles), strings.Join(state.ConflictFiles, ", ")))
			case state.Status == sync.StatusError:
				utils.PrintWarning("Conflicts resolved but the push failed: " + state.Error)
			default:
				utils.PrintSuccess("All conflicts resolved")
			}
			return nil
		},
	}
}

// readContent reads merged content from path, or from stdin for "-"
func readContent(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		if stdin == nil {
			stdin = os.Stdin
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading merged content: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading merged content: %w", err)
	}
	return string(data), nil
}
