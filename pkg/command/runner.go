package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kilnpkg/kiln/pkg/logging"
)

const (
	defaultRetries = 3
	initialBackoff = time.Second
)

// Runner wraps an Executor with the retry policy every shelling-out
// component uses: a fixed retry count with exponential backoff, starting
// at one second and doubling.
type Runner struct {
	exec    Executor
	retries int
	backoff time.Duration
	sleep   func(time.Duration) // replaced in tests
}

// NewRunner creates a Runner with the default retry policy.
func NewRunner(exec Executor) *Runner {
	return &Runner{
		exec:    exec,
		retries: defaultRetries,
		backoff: initialBackoff,
		sleep:   time.Sleep,
	}
}

// Output runs the command and returns its stdout. Failures to spawn
// propagate immediately; a non-zero exit is retried with exponential
// backoff before surfacing as an error carrying the captured stderr.
func (r *Runner) Output(ctx context.Context, cmd Command) (string, error) {
	logging.TraceContext(ctx, "running command", "cmd", cmd.String())

	var last Output
	wait := r.backoff
	for attempt := 0; attempt < r.retries; attempt++ {
		if attempt > 0 {
			r.sleep(wait)
			wait *= 2
		}
		out, err := r.exec.Run(ctx, cmd)
		if err != nil {
			return "", err
		}
		if out.Success() {
			return out.Stdout, nil
		}
		last = out
		logging.DebugContext(ctx, "command failed, retrying",
			"cmd", cmd.String(), "exit", out.ExitCode, "attempt", attempt+1)
	}

	return "", fmt.Errorf("command `%s` exited with status %d: %s",
		cmd, last.ExitCode, strings.TrimSpace(last.Stderr))
}
