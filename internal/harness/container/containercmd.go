package container

import (
	"context"
	"fmt"
	"strings"
	"sync"

	dockercontainer "github.com/docker/docker/api/types/container"

	"github.com/X-ROM/android-dalvik/internal/command"
)

// containerCommand is a command.Command backed by one Docker container. The
// container is created and started by Start; GatherOutput blocks on the
// container's exit and reads its log stream; Kill stops and removes it.
type containerCommand struct {
	engine            *containerEngine
	image             string
	workdir           string
	args              []string
	files             []fileSpec
	memoryLimitBytes  int64
	permitNonZeroExit bool

	mu          sync.Mutex
	containerID string
	started     bool
}

var _ command.Command = (*containerCommand)(nil)

func (c *containerCommand) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return fmt.Errorf("container command already started")
	}

	ctx := context.Background()
	containerID, err := c.engine.createContainer(ctx, c.image, c.workdir, c.args, c.memoryLimitBytes)
	if err != nil {
		return err
	}
	c.containerID = containerID

	if err := c.engine.copyFiles(ctx, containerID, c.workdir, c.files); err != nil {
		return fmt.Errorf("copy files: %w", err)
	}
	if err := c.engine.cli.ContainerStart(ctx, containerID, dockercontainer.StartOptions{}); err != nil {
		return fmt.Errorf("start container: %w", err)
	}

	c.started = true
	return nil
}

func (c *containerCommand) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

func (c *containerCommand) GatherOutput() ([]string, error) {
	c.mu.Lock()
	containerID := c.containerID
	started := c.started
	c.mu.Unlock()

	if !started {
		return nil, fmt.Errorf("container command not started")
	}

	ctx := context.Background()
	status, err := c.engine.waitForExit(ctx, containerID)
	if err != nil {
		return nil, err
	}

	raw, err := c.engine.fetchOutput(ctx, containerID)
	if err != nil {
		return nil, err
	}
	lines := splitOutput(raw)

	if status.StatusCode != 0 && !c.permitNonZeroExit {
		return nil, &command.FailedError{
			Args:        c.args,
			ExitCode:    int(status.StatusCode),
			OutputLines: lines,
		}
	}
	return lines, nil
}

func (c *containerCommand) Kill() error {
	c.mu.Lock()
	containerID := c.containerID
	c.mu.Unlock()
	return c.engine.stopAndRemove(containerID)
}

// splitOutput breaks a TTY log stream into lines, dropping the carriage
// returns the TTY inserts.
func splitOutput(raw []byte) []string {
	trimmed := strings.TrimRight(string(raw), "\r\n")
	if trimmed == "" {
		return []string{}
	}
	lines := strings.Split(trimmed, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	return lines
}
