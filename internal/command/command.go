// Package command wraps one external process behind a small lifecycle:
// start, gather accumulated output, kill. Gathering blocks until the
// process exits, so callers that need a bound put it on a separate
// goroutine and kill the process to release the reader.
package command

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Command is a handle to one external process.
type Command interface {
	// Start begins execution without waiting for completion. Starting a
	// command twice is an error.
	Start() error
	// Started reports whether the process has been started.
	Started() bool
	// GatherOutput blocks until the process exits and returns its combined
	// stdout/stderr as lines. A non-zero exit yields a *FailedError unless
	// the command permits it.
	GatherOutput() ([]string, error)
	// Kill terminates the process if it is running. Best effort; killing a
	// finished or unstarted process is not an error.
	Kill() error
}

// FailedError reports a command that exited with a non-zero status. It
// carries the output captured up to that point.
type FailedError struct {
	Args        []string
	ExitCode    int
	OutputLines []string
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("command %q failed with exit status %d", strings.Join(e.Args, " "), e.ExitCode)
}

// Options configures an exec-backed command.
type Options struct {
	// Dir is the working directory. Empty means the caller's directory.
	Dir string
	// Env is the environment. Nil means the caller's environment.
	Env []string
	// PermitNonZeroExit makes GatherOutput treat a non-zero exit status as a
	// normal completion instead of a *FailedError.
	PermitNonZeroExit bool
}

type execCommand struct {
	args []string
	opts Options

	mu      sync.Mutex
	cmd     *exec.Cmd
	started bool
	output  bytes.Buffer
}

// New constructs a Command that runs args[0] with the remaining arguments.
func New(args []string, opts Options) Command {
	return &execCommand{args: args, opts: opts}
}

func (c *execCommand) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return fmt.Errorf("command %q already started", c.args[0])
	}
	if len(c.args) == 0 {
		return fmt.Errorf("command has no arguments")
	}

	cmd := exec.Command(c.args[0], c.args[1:]...)
	cmd.Dir = c.opts.Dir
	cmd.Env = c.opts.Env
	// Stdout and Stderr share one writer so exec serializes the streams.
	cmd.Stdout = &c.output
	cmd.Stderr = &c.output

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %q: %w", c.args[0], err)
	}

	c.cmd = cmd
	c.started = true
	return nil
}

func (c *execCommand) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

func (c *execCommand) GatherOutput() ([]string, error) {
	c.mu.Lock()
	cmd := c.cmd
	c.mu.Unlock()

	if cmd == nil {
		return nil, fmt.Errorf("command %q not started", c.args[0])
	}

	waitErr := cmd.Wait()

	c.mu.Lock()
	lines := splitLines(c.output.String())
	c.mu.Unlock()

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			if c.opts.PermitNonZeroExit {
				return lines, nil
			}
			return nil, &FailedError{
				Args:        c.args,
				ExitCode:    exitErr.ExitCode(),
				OutputLines: lines,
			}
		}
		return nil, fmt.Errorf("wait for %q: %w", c.args[0], waitErr)
	}
	return lines, nil
}

func (c *execCommand) Kill() error {
	c.mu.Lock()
	cmd := c.cmd
	c.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill %q: %w", c.args[0], err)
	}
	return nil
}

func splitLines(raw string) []string {
	trimmed := strings.TrimRight(raw, "\n")
	if trimmed == "" {
		return []string{}
	}
	lines := strings.Split(trimmed, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	return lines
}
