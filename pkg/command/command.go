// Package command runs external processes, captures their output, and
// retries transient failures with exponential backoff.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Command describes one process invocation. It is a value; With* methods
// return modified copies so a command can be reused as a template.
type Command struct {
	Program string
	Args    []string
	Dir     string
}

// New creates a command for program with the given arguments.
func New(program string, args ...string) Command {
	return Command{Program: program, Args: args}
}

// WithArgs returns a copy of the command with extra arguments appended.
func (c Command) WithArgs(args ...string) Command {
	c.Args = append(append([]string(nil), c.Args...), args...)
	return c
}

// WithDir returns a copy of the command with its working directory set.
func (c Command) WithDir(dir string) Command {
	c.Dir = dir
	return c
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Program
	}
	return c.Program + " " + strings.Join(c.Args, " ")
}

// Output is the captured result of one finished process.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Success reports whether the process exited with status zero.
func (o Output) Success() bool {
	return o.ExitCode == 0
}

// Executor handles the execution of external commands
type Executor interface {
	Run(ctx context.Context, cmd Command) (Output, error)
}

// DefaultExecutor is the default implementation of Executor that runs actual commands
type DefaultExecutor struct{}

// NewExecutor creates a new default executor
func NewExecutor() Executor {
	return &DefaultExecutor{}
}

// Run executes the command and captures stdout and stderr separately.
// A non-zero exit status is not an error; it is reported in Output so
// callers can decide whether to retry.
func (e *DefaultExecutor) Run(ctx context.Context, cmd Command) (Output, error) {
	proc := exec.CommandContext(ctx, cmd.Program, cmd.Args...)
	proc.Dir = cmd.Dir

	var stdout, stderr bytes.Buffer
	proc.Stdout = &stdout
	proc.Stderr = &stderr

	err := proc.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}
		return out, fmt.Errorf("spawning `%s`: %w", cmd, err)
	}
	return out, nil
}
