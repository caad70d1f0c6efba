// Package utils holds terminal output helpers shared by the CLI commands
package utils

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Output is where the print helpers write
var Output io.Writer = os.Stdout

// Gruvbox-inspired palette
var (
	gruvboxFgDark       = text.Colors{text.FgHiBlack}
	gruvboxFgLight      = text.Colors{text.FgWhite}
	gruvboxRed          = text.Colors{text.FgRed}
	gruvboxGreen        = text.Colors{text.FgGreen}
	gruvboxYellow       = text.Colors{text.FgYellow}
	gruvboxBlue         = text.Colors{text.FgBlue}
	gruvboxAqua         = text.Colors{text.FgCyan}
	gruvboxBlueBright   = text.Colors{text.FgHiBlue}
	gruvboxAquaBright   = text.Colors{text.FgHiCyan}
	gruvboxPurpleBright = text.Colors{text.FgHiMagenta}
	gruvboxBold         = text.Colors{text.Bold}
)

// Theme - exported theme colors for consistent UI
var Theme = struct {
	Success   text.Colors
	Info      text.Colors
	Warning   text.Colors
	Error     text.Colors
	Heading   text.Colors
	Subtle    text.Colors
	Important text.Colors
	Accent    text.Colors

	Title       text.Colors
	TableHeader text.Colors
	TableBorder text.Colors
	TableRow    text.Colors
	TableAltRow text.Colors
}{
	Success:   gruvboxGreen,
	Info:      gruvboxBlue,
	Warning:   gruvboxYellow,
	Error:     gruvboxRed,
	Heading:   append(gruvboxAquaBright, text.Bold),
	Subtle:    gruvboxFgDark,
	Important: append(gruvboxPurpleBright, text.Bold),
	Accent:    gruvboxAqua,

	Title:       append(gruvboxAquaBright, text.Bold),
	TableHeader: append(gruvboxBlueBright, text.Bold),
	TableBorder: gruvboxBlue,
	TableRow:    gruvboxFgLight,
	TableAltRow: text.Colors{text.FgWhite, text.Faint},
}

// PrintHeading prints a formatted heading
func PrintHeading(title string) {
	fmt.Fprintln(Output, Theme.Heading.Sprint(title))
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Fprintln(Output, Theme.Success.Sprint("✓ ")+message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Fprintln(Output, Theme.Info.Sprint("ℹ ")+message)
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Fprintln(Output, Theme.Warning.Sprint("⚠ ")+message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintln(Output, Theme.Error.Sprint("✗ ")+message)
}

// PrintKeyValue prints a key-value pair
func PrintKeyValue(key, value string) {
	fmt.Fprintf(Output, "%s: %s\n", gruvboxBold.Sprint(key), value)
}

// PrintKeyValueWithColor prints a key-value pair with colored value
func PrintKeyValueWithColor(key string, value string, colors text.Colors) {
	fmt.Fprintf(Output, "%s: %s\n", gruvboxBold.Sprint(key), colors.Sprint(value))
}

// TableOptions defines options for table creation
type TableOptions struct {
	Title string
	// Columns wider than this are wrapped; zero disables wrapping
	MaxColumnWidth int
}

// DefaultTableOptions returns default table options
func DefaultTableOptions() TableOptions {
	return TableOptions{
		Title:          "plansync",
		MaxColumnWidth: 60,
	}
}

// CreateTable creates a new table writing to Output with the theme applied
func CreateTable(opts TableOptions) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(Output)

	if opts.Title != "" {
		t.SetTitle(opts.Title)
	}

	style := table.StyleDouble
	style.Color.Header = Theme.TableHeader
	style.Color.Border = Theme.TableBorder
	style.Color.Row = Theme.TableRow
	style.Color.RowAlternate = Theme.TableAltRow
	style.Title.Colors = Theme.Title
	style.Title.Align = text.AlignCenter
	style.Options.DrawBorder = true
	style.Options.SeparateColumns = true
	style.Options.SeparateHeader = true
	style.Options.SeparateRows = false
	style.Box.PaddingLeft = " "
	style.Box.PaddingRight = " "
	t.SetStyle(style)

	return t
}

// PrintTable prints a table with headers and rows
func PrintTable(headers []string, rows [][]string, options ...TableOptions) {
	opts := DefaultTableOptions()
	if len(options) > 0 {
		opts = options[0]
	}

	t := CreateTable(opts)

	header := table.Row{}
	for _, h := range headers {
		header = append(header, h)
	}
	t.AppendHeader(header)

	for _, row := range rows {
		r := table.Row{}
		for _, cell := range row {
			r = append(r, cell)
		}
		t.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, len(headers))
	for i := range headers {
		cfg := table.ColumnConfig{
			Number:      i + 1,
			Align:       text.AlignLeft,
			AlignHeader: text.AlignCenter,
		}
		if opts.MaxColumnWidth > 0 {
			cfg.WidthMax = opts.MaxColumnWidth
			cfg.WidthMaxEnforcer = text.WrapSoft
		}
		configs = append(configs, cfg)
	}
	t.SetColumnConfigs(configs)

	t.Render()
}

// FormatList formats a list of items with bullets
func FormatList(items []string, bullet string) string {
	if bullet == "" {
		bullet = "•"
	}

	var sb strings.Builder
	for _, item := range items {
		fmt.Fprintf(&sb, "%s %s\n", Theme.Accent.Sprint(bullet), item)
	}
	return sb.String()
}

// PrintList prints a formatted list of items
func PrintList(items []string, bullet string) {
	fmt.Fprint(Output, FormatList(items, bullet))
}

// Truncate shortens s to width cells, marking the cut with an ellipsis
func Truncate(s string, width int) string {
	if width <= 0 || text.RuneWidthWithoutEscSequences(s) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return text.Trim(s, width-1) + "…"
}
