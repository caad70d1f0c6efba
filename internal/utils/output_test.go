package utils

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/stretchr/testify/assert"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	previous := Output
	Output = &buf
	t.Cleanup(func() { Output = previous })
	return &buf
}

func TestPrintTable(t *testing.T) {
	text.DisableColors()
	t.Cleanup(text.EnableColors)
	buf := captureOutput(t)

	PrintTable([]string{"Time", "Operation"}, [][]string{
		{"12:00:00", "commit"},
		{"12:00:05", "push"},
	}, TableOptions{Title: "History"})

	out := buf.String()
	assert.Contains(t, out, "History")
	assert.Contains(t, out, "OPERATION")
	assert.Contains(t, out, "commit")
	assert.Contains(t, out, "push")
}

func TestPrintHelpers(t *testing.T) {
	text.DisableColors()
	t.Cleanup(text.EnableColors)
	buf := captureOutput(t)

	PrintSuccess("pushed")
	PrintError("failed")
	PrintKeyValue("Status", "idle")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{"✓ pushed", "✗ failed", "Status: idle"}, lines)
}

func TestFormatList(t *testing.T) {
	text.DisableColors()
	t.Cleanup(text.EnableColors)

	assert.Equal(t, "• a\n• b\n", FormatList([]string{"a", "b"}, ""))
	assert.Equal(t, "- a\n", FormatList([]string{"a"}, "-"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "Batch upd…", Truncate("Batch update: 3 changes", 10))
	assert.Equal(t, "…", Truncate("abc", 1))
	assert.Equal(t, "abc", Truncate("abc", 0))
}
