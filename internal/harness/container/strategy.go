// Package container executes tests inside Docker containers: compiled
// classes are copied in, the runner is started, and the verdict is read off
// the container's log stream.
package container

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/docker/docker/client"

	"github.com/X-ROM/android-dalvik/internal/command"
	"github.com/X-ROM/android-dalvik/internal/domain/execution"
	"github.com/X-ROM/android-dalvik/internal/env"
)

const (
	defaultWorkdir   = "/work"
	defaultMainClass = "dalvik.runner.TestRunner"

	classesSubdir = "classes"
	runnerSubdir  = "runner"
)

// Config describes the container runtime for test execution.
type Config struct {
	// Image is the JVM image tests run in.
	Image string
	// Workdir is the in-container directory classes are installed under.
	Workdir string
	// Java is the JVM executable inside the image. Empty means "java".
	Java string
	// MainClass is the runner entry point started for every test.
	MainClass string
	// MemoryLimitBytes caps container memory. Zero means no limit.
	MemoryLimitBytes int64
}

// Strategy runs each test in a fresh container.
type Strategy struct {
	cfg         Config
	environment env.Environment
	engine      *containerEngine
	owned       dockerClient

	pullOnce sync.Once
	pullErr  error
}

// New constructs a container Strategy with a Docker client from the
// environment.
func New(cfg Config, environment env.Environment) (*Strategy, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("container strategy: create docker client: %w", err)
	}

	strategy, err := newStrategyWithClient(cli, cfg, environment)
	if err != nil {
		_ = cli.Close()
		return nil, err
	}
	strategy.owned = cli
	return strategy, nil
}

func newStrategyWithClient(cli dockerClient, cfg Config, environment env.Environment) (*Strategy, error) {
	if cfg.Image == "" {
		return nil, fmt.Errorf("container strategy: image is required")
	}
	if cfg.Workdir == "" {
		cfg.Workdir = defaultWorkdir
	}
	if cfg.Java == "" {
		cfg.Java = "java"
	}
	if cfg.MainClass == "" {
		cfg.MainClass = defaultMainClass
	}
	return &Strategy{
		cfg:         cfg,
		environment: environment,
		engine:      newContainerEngine(cli),
	}, nil
}

// PostPrepare pulls the runtime image. The pull happens once per strategy.
func (s *Strategy) PostPrepare(ctx context.Context) error {
	s.pullOnce.Do(func() {
		s.pullErr = s.engine.pullImage(ctx, s.cfg.Image)
	})
	return s.pullErr
}

// PostCompileTest installs the run at its in-container location: the
// assigned classpath names the directory the classes will occupy inside the
// container, not on the host.
func (s *Strategy) PostCompileTest(ctx context.Context, run *execution.TestRun) (execution.Classpath, error) {
	if _, err := s.environment.TestClassesDir(run); err != nil {
		return execution.Classpath{}, err
	}
	return execution.ClasspathOf(path.Join(s.cfg.Workdir, classesSubdir)), nil
}

// BuildCommands returns the single container run for the test. The compiled
// classes and runner support code are staged into the archive copied in at
// start.
func (s *Strategy) BuildCommands(run *execution.TestRun) ([]command.Command, error) {
	classesDir, err := s.environment.TestClassesDir(run)
	if err != nil {
		return nil, err
	}

	files, err := archiveDir(classesDir, classesSubdir)
	if err != nil {
		return nil, err
	}
	// The runner classes dir is absent when no support code was configured.
	if _, statErr := os.Stat(s.environment.RunnerClassesDir()); statErr == nil {
		runnerFiles, err := archiveDir(s.environment.RunnerClassesDir(), runnerSubdir)
		if err != nil {
			return nil, err
		}
		files = append(files, runnerFiles...)
	}

	var classpath execution.Classpath
	classpath.Add(path.Join(s.cfg.Workdir, runnerSubdir))
	classpath.AddAll(run.Classpath())
	classpath.AddAll(run.RunnerClasspath())

	// In-container paths always use the Unix separator, whatever the host.
	inContainer := strings.Join(classpath.Entries(), ":")
	args := []string{s.cfg.Java, "-classpath", inContainer, s.cfg.MainClass, run.QualifiedName()}

	cmd := &containerCommand{
		engine:            s.engine,
		image:             s.cfg.Image,
		workdir:           s.cfg.Workdir,
		args:              args,
		files:             files,
		memoryLimitBytes:  s.cfg.MemoryLimitBytes,
		permitNonZeroExit: true,
	}
	return []command.Command{cmd}, nil
}

// Close releases the Docker client if the strategy owns one.
func (s *Strategy) Close() error {
	if s.owned == nil {
		return nil
	}
	return s.owned.Close()
}
