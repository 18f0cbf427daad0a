package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	typesimage "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
)

// containerEngine wraps the Docker API calls shared by container commands.
type containerEngine struct {
	cli dockerClient
}

func newContainerEngine(cli dockerClient) *containerEngine {
	return &containerEngine{cli: cli}
}

func (c *containerEngine) pullImage(ctx context.Context, ref string) error {
	reader, err := c.cli.ImagePull(ctx, ref, typesimage.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}
	defer reader.Close()
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("consume pull output for %s: %w", ref, err)
	}
	return nil
}

func (c *containerEngine) createContainer(ctx context.Context, image, workdir string, cmd []string, memoryLimitBytes int64) (string, error) {
	hostConfig := &container.HostConfig{}
	if memoryLimitBytes > 0 {
		hostConfig.Resources.Memory = memoryLimitBytes
		hostConfig.Resources.MemorySwap = memoryLimitBytes
	}

	resp, err := c.cli.ContainerCreate(
		ctx,
		&container.Config{
			Image:      image,
			Cmd:        cmd,
			WorkingDir: workdir,
			// A TTY keeps stdout and stderr interleaved in emission order,
			// which the final-line classification depends on.
			Tty: true,
		},
		hostConfig,
		nil,
		nil,
		"",
	)
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	return resp.ID, nil
}

func (c *containerEngine) waitForExit(ctx context.Context, containerID string) (*container.WaitResponse, error) {
	statusCh, errCh := c.cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case status := <-statusCh:
		if status.Error != nil {
			return nil, fmt.Errorf("container error: %s", status.Error.Message)
		}
		return &status, nil
	case err := <-errCh:
		return nil, fmt.Errorf("wait for container: %w", err)
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for container: %w", ctx.Err())
	}
}

// fetchOutput returns the container's raw log stream. Containers are created
// with a TTY, so the stream is a single unmultiplexed byte sequence.
func (c *containerEngine) fetchOutput(ctx context.Context, containerID string) ([]byte, error) {
	logs, err := c.cli.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return nil, fmt.Errorf("fetch logs: %w", err)
	}
	defer logs.Close()

	data, err := io.ReadAll(logs)
	if err != nil {
		return nil, fmt.Errorf("read logs: %w", err)
	}
	return data, nil
}

// stopAndRemove terminates the container and deletes it. Best effort on a
// container that already exited or was never created.
func (c *containerEngine) stopAndRemove(containerID string) error {
	if containerID == "" {
		return nil
	}

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelStop()

	var errs []error
	if err := c.cli.ContainerStop(stopCtx, containerID, container.StopOptions{}); err != nil && !client.IsErrNotFound(err) {
		errs = append(errs, fmt.Errorf("stop container: %w", err))
	}

	removeCtx, cancelRemove := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelRemove()

	if err := c.cli.ContainerRemove(removeCtx, containerID, container.RemoveOptions{Force: true}); err != nil && !client.IsErrNotFound(err) {
		errs = append(errs, fmt.Errorf("remove container: %w", err))
	}
	return errors.Join(errs...)
}
