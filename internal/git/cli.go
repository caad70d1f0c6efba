package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// runner invokes the git binary inside the repository
type runner struct {
	binary  string
	dir     string
	opts    Options
	baseEnv []string
}

func newRunner(dir string, opts Options) *runner {
	return &runner{
		binary: opts.GitBinary,
		dir:    dir,
		opts:   opts,
		baseEnv: []string{
			"GIT_TERMINAL_PROMPT=0",
			"GIT_MERGE_AUTOEDIT=no",
			"LC_ALL=C",
		},
	}
}

// run executes git with args and returns its combined output. The output is
// returned alongside a failure so callers can inspect what git reported.
func (r *runner) run(ctx context.Context, args ...string) (string, error) {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	full := make([]string, 0, len(args)+4)
	if r.opts.AuthorName != "" {
		full = append(full, "-c", "user.name="+r.opts.AuthorName)
	}
	if r.opts.AuthorEmail != "" {
		full = append(full, "-c", "user.email="+r.opts.AuthorEmail)
	}
	full = append(full, args...)

	cmd := exec.CommandContext(ctx, r.binary, full...)
	cmd.Dir = r.dir
	cmd.Env = append(os.Environ(), r.baseEnv...)

	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return output, fmt.Errorf("git %s: timed out after %s", args[0], r.opts.Timeout)
		}
		if output == "" {
			return output, fmt.Errorf("git %s: %w", args[0], err)
		}
		return output, fmt.Errorf("git %s: %w: %s", args[0], err, output)
	}
	return output, nil
}
