// Package host executes tests on the host JVM.
package host

import (
	"context"

	"github.com/X-ROM/android-dalvik/internal/command"
	"github.com/X-ROM/android-dalvik/internal/domain/execution"
	"github.com/X-ROM/android-dalvik/internal/env"
)

const defaultMainClass = "dalvik.runner.TestRunner"

// Config describes how to invoke the host JVM.
type Config struct {
	// Java is the JVM executable. Empty means "java" from PATH.
	Java string
	// MainClass is the runner entry point started for every test.
	MainClass string
	// VMArgs are extra JVM arguments placed before the classpath.
	VMArgs []string
}

// Strategy runs each test as one java invocation on the host.
type Strategy struct {
	cfg         Config
	environment env.Environment
}

// New constructs a host Strategy.
func New(cfg Config, environment env.Environment) *Strategy {
	if cfg.Java == "" {
		cfg.Java = "java"
	}
	if cfg.MainClass == "" {
		cfg.MainClass = defaultMainClass
	}
	return &Strategy{cfg: cfg, environment: environment}
}

// PostPrepare is a no-op; the host JVM needs no extra setup.
func (s *Strategy) PostPrepare(ctx context.Context) error {
	return nil
}

// PostCompileTest installs the compiled classes in place: the classes
// directory itself is the runnable classpath.
func (s *Strategy) PostCompileTest(ctx context.Context, run *execution.TestRun) (execution.Classpath, error) {
	dir, err := s.environment.TestClassesDir(run)
	if err != nil {
		return execution.Classpath{}, err
	}
	return execution.ClasspathOf(dir), nil
}

// BuildCommands returns the single java invocation for the run. The test
// process decides the verdict through its output, so a non-zero exit status
// is permitted.
func (s *Strategy) BuildCommands(run *execution.TestRun) ([]command.Command, error) {
	args, opts := s.commandLine(run)
	return []command.Command{command.New(args, opts)}, nil
}

func (s *Strategy) commandLine(run *execution.TestRun) ([]string, command.Options) {
	var classpath execution.Classpath
	classpath.Add(s.environment.RunnerClassesDir())
	classpath.AddAll(run.Classpath())
	classpath.AddAll(run.RunnerClasspath())

	args := []string{s.cfg.Java}
	args = append(args, s.cfg.VMArgs...)
	args = append(args, "-classpath", classpath.String(), s.cfg.MainClass, run.QualifiedName())

	opts := command.Options{
		Dir:               s.environment.UserDir(run),
		PermitNonZeroExit: true,
	}
	return args, opts
}
