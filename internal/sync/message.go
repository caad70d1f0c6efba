package sync

import (
	"fmt"
	"strings"
)

const (
	noChangesMessage  = "Sync local changes"
	maxListedChanges  = 10
	resolutionMessage = "Resolve merge conflicts"
)

// GenerateCommitMessage renders a batch of changes as a commit message.
// The output depends only on the batch.
func GenerateCommitMessage(batch []ChangeInfo) string {
	switch len(batch) {
	case 0:
		return noChangesMessage
	case 1:
		c := batch[0]
		return fmt.Sprintf("%s %q\n\nEntity: %s\nChange: %s", c.Kind.Verb(), c.Title, c.Entity, c.Kind)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Batch update: %d changes\n", len(batch))
	for i, c := range batch {
		if i == maxListedChanges {
			break
		}
		fmt.Fprintf(&b, "\n- %s %s: %s", c.Kind, c.Entity, c.Title)
	}
	if rest := len(batch) - maxListedChanges; rest > 0 {
		fmt.Fprintf(&b, "\n... and %d more changes", rest)
	}
	return b.String()
}

// subject returns the first line of a commit message
func subject(message string) string {
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		return message[:i]
	}
	return message
}
