// Package harness implements the compile, install, run and classify pipeline
// for single-file Java tests. The pipeline is fixed; a Strategy supplies the
// target-specific pieces (host JVM, container).
package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"github.com/X-ROM/android-dalvik/internal/command"
	"github.com/X-ROM/android-dalvik/internal/domain/execution"
	"github.com/X-ROM/android-dalvik/internal/env"
	"github.com/X-ROM/android-dalvik/internal/javac"
)

// javaTestPattern gates which source paths name a runnable single-file test.
var javaTestPattern = regexp.MustCompile(`(^|/)\w+\.java$`)

var errGatherTimeout = errors.New("gather output timed out")

// Compiler compiles Java sources. Satisfied by *javac.Compiler.
type Compiler interface {
	Compile(req javac.Request) ([]string, error)
}

// Config carries the fixed inputs of a Harness.
type Config struct {
	// SdkJar is the boot classpath searched before all others.
	SdkJar string
	// TimeoutSeconds bounds the wall-clock time of every test's commands,
	// applied uniformly for the harness's lifetime.
	TimeoutSeconds int
	// SupportSourceDir is the source path of the runner support code.
	SupportSourceDir string
	// LibClasspath is merged into every test compilation.
	LibClasspath execution.Classpath
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Harness runs the pipeline for one target. A Harness processes one TestRun
// at a time; run several Harness instances to parallelize across tests.
type Harness struct {
	cfg         Config
	environment env.Environment
	compiler    Compiler
	strategy    Strategy
	log         *slog.Logger

	runnerSources   []string
	runnerClasspath execution.Classpath

	readers *outputReader
}

// New constructs a Harness.
func New(cfg Config, environment env.Environment, compiler Compiler, strategy Strategy) (*Harness, error) {
	if environment == nil || compiler == nil || strategy == nil {
		return nil, fmt.Errorf("harness: environment, compiler and strategy are required")
	}
	if cfg.TimeoutSeconds <= 0 {
		return nil, fmt.Errorf("harness: timeout must be a positive number of seconds")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Harness{
		cfg:         cfg,
		environment: environment,
		compiler:    compiler,
		strategy:    strategy,
		log:         log,
		readers:     newOutputReader(),
	}, nil
}

// Prepare merges the runner sources and classpath into the harness-wide
// sets, readies the shared directories and compiles the runner support code.
// A Prepare error is harness-fatal: no test may run after it.
func (h *Harness) Prepare(ctx context.Context, runnerSources []string, runnerClasspath execution.Classpath) error {
	for _, source := range runnerSources {
		if source != "" && !slices.Contains(h.runnerSources, source) {
			h.runnerSources = append(h.runnerSources, source)
		}
	}
	h.runnerClasspath.AddAll(runnerClasspath)

	if err := h.environment.Prepare(); err != nil {
		return fmt.Errorf("prepare environment: %w", err)
	}
	if err := h.compileRunner(); err != nil {
		return fmt.Errorf("compile test runner: %w", err)
	}
	if err := h.strategy.PostPrepare(ctx); err != nil {
		return fmt.Errorf("strategy setup: %w", err)
	}
	return nil
}

func (h *Harness) compileRunner() error {
	if len(h.runnerSources) == 0 {
		return nil
	}
	h.log.Debug("build test runner")

	var sourcepath []string
	if h.cfg.SupportSourceDir != "" {
		sourcepath = []string{h.cfg.SupportSourceDir}
	}

	_, err := h.compiler.Compile(javac.Request{
		BootClasspath: execution.ClasspathOf(h.cfg.SdkJar),
		Classpath:     h.runnerClasspath,
		Sourcepath:    sourcepath,
		Destination:   h.environment.RunnerClassesDir(),
		Files:         h.runnerSources,
	})
	return err
}

// BuildAndInstall compiles the run's classes and makes them ready for
// execution. If the test cannot be compiled or installed the run is updated
// with the appropriate terminal Result; no fault propagates outward.
func (h *Harness) BuildAndInstall(ctx context.Context, run *execution.TestRun) {
	h.log.Debug("build", "test", run.QualifiedName())

	classpath, supported, err := h.compileTest(ctx, run)
	if err != nil {
		var failed *command.FailedError
		if errors.As(err, &failed) {
			run.SetResult(execution.ResultCompileFailed, failed.OutputLines)
			return
		}
		run.SetError(err)
		return
	}
	if !supported {
		run.SetResult(execution.ResultUnsupported, nil)
		return
	}

	run.SetClasspath(classpath)
	if err := h.environment.PrepareUserDir(run); err != nil {
		run.SetError(err)
	}
}

// compileTest compiles the run's source and returns the installable
// classpath. supported is false when the source path fails the single-file
// test pattern, in which case no compilation is attempted.
func (h *Harness) compileTest(ctx context.Context, run *execution.TestRun) (cp execution.Classpath, supported bool, err error) {
	if !javaTestPattern.MatchString(filepath.ToSlash(run.SourcePath())) {
		return execution.Classpath{}, false, nil
	}

	classesDir, err := h.environment.TestClassesDir(run)
	if err != nil {
		return execution.Classpath{}, true, err
	}
	propertiesPath := filepath.Join(classesDir, execution.PropertiesFile)
	if err := execution.WriteProperties(propertiesPath, execution.TestProperties(run)); err != nil {
		return execution.Classpath{}, true, err
	}

	var compileClasspath execution.Classpath
	compileClasspath.AddAll(h.cfg.LibClasspath)
	compileClasspath.AddAll(run.RunnerClasspath())

	if _, err := h.compiler.Compile(javac.Request{
		BootClasspath: execution.ClasspathOf(h.cfg.SdkJar),
		Classpath:     compileClasspath,
		Sourcepath:    []string{run.SourceDir()},
		Destination:   classesDir,
		Files:         []string{run.SourcePath()},
	}); err != nil {
		return execution.Classpath{}, true, err
	}

	installed, err := h.strategy.PostCompileTest(ctx, run)
	if err != nil {
		return execution.Classpath{}, true, err
	}
	return installed, true, nil
}

// RunTest executes the run's commands and classifies the outcome. The run's
// classpath must already be assigned; calling RunTest on a run that never
// installed is a harness bug.
func (h *Harness) RunTest(ctx context.Context, run *execution.TestRun) {
	if !run.Runnable() {
		panic(fmt.Sprintf("no classpath assigned for %s", run.QualifiedName()))
	}
	h.log.Debug("run", "test", run.QualifiedName())

	commands, err := h.strategy.BuildCommands(run)
	if err != nil {
		run.SetError(err)
		return
	}
	if len(commands) == 0 {
		run.SetError(fmt.Errorf("strategy produced no commands for %s", run.QualifiedName()))
		return
	}

	// Only the last command's output is inspected for the verdict.
	var output []string
	for _, cmd := range commands {
		lines, err := h.runCommand(ctx, cmd)
		if err != nil {
			if errors.Is(err, errGatherTimeout) {
				timeoutLine := fmt.Sprintf("Exceeded timeout! (%ds)", h.cfg.TimeoutSeconds)
				run.SetResult(execution.ResultExecTimeout, []string{timeoutLine})
				return
			}
			run.SetError(err)
			return
		}
		output = lines
	}

	if len(output) == 0 {
		run.SetResult(execution.ResultError, []string{"No output returned!"})
		return
	}

	last := output[len(output)-1]
	if last == execution.SuccessSentinel {
		run.SetResult(execution.ResultSuccess, output[:len(output)-1])
		return
	}
	run.SetResult(execution.ResultExecFailed, output)
}

// runCommand starts cmd, gathers its output on the reader worker and waits
// bounded by the configured timeout. The process is terminated on every
// exit path so the worker never stays blocked on its output stream.
func (h *Harness) runCommand(ctx context.Context, cmd command.Command) ([]string, error) {
	defer func() {
		if cmd.Started() {
			if err := cmd.Kill(); err != nil {
				h.log.Warn("kill process", "error", err)
			}
		}
	}()

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	result := h.readers.submit(cmd.GatherOutput)
	select {
	case r := <-result:
		return r.lines, r.err
	case <-time.After(time.Duration(h.cfg.TimeoutSeconds) * time.Second):
		return nil, errGatherTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cleanup releases the run's working state. Safe whatever Result the run
// ended with.
func (h *Harness) Cleanup(run *execution.TestRun) {
	if err := h.environment.Cleanup(run); err != nil {
		h.log.Warn("cleanup test", "test", run.QualifiedName(), "error", err)
	}
}

// Shutdown stops the output reader and tears down the shared working areas.
// No further compile or run calls are valid afterwards.
func (h *Harness) Shutdown() error {
	h.readers.shutdown()
	if err := h.environment.Shutdown(); err != nil {
		return fmt.Errorf("shutdown environment: %w", err)
	}
	return nil
}
