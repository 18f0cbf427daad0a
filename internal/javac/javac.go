// Package javac adapts the javac command-line compiler.
package javac

import (
	"fmt"

	"github.com/X-ROM/android-dalvik/internal/command"
	"github.com/X-ROM/android-dalvik/internal/domain/execution"
)

// Request describes one compilation: where to look for types, where to look
// for sources, and where to put the compiled classes.
type Request struct {
	BootClasspath execution.Classpath
	Classpath     execution.Classpath
	Sourcepath    []string
	Destination   string
	Files         []string
}

// Compiler invokes javac. The zero value is not usable; construct with New.
type Compiler struct {
	executable string
	debug      bool
	runCommand func(args []string) ([]string, error)
}

// Option customizes a Compiler.
type Option func(*Compiler)

// WithExecutable overrides the compiler binary, e.g. a JAVA_HOME-relative
// javac.
func WithExecutable(path string) Option {
	return func(c *Compiler) {
		if path != "" {
			c.executable = path
		}
	}
}

// WithDebug adds -g to every compilation.
func WithDebug() Option {
	return func(c *Compiler) { c.debug = true }
}

// New constructs a Compiler.
func New(opts ...Option) *Compiler {
	c := &Compiler{
		executable: "javac",
		runCommand: runCommand,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile runs the compiler for the given request and returns its diagnostic
// lines. A compiler-reported failure surfaces as a *command.FailedError
// carrying those lines.
func (c *Compiler) Compile(req Request) ([]string, error) {
	if len(req.Files) == 0 {
		return nil, fmt.Errorf("javac: no source files")
	}
	if req.Destination == "" {
		return nil, fmt.Errorf("javac: no destination directory")
	}

	args := []string{c.executable}
	if c.debug {
		args = append(args, "-g")
	}
	if !req.BootClasspath.IsEmpty() {
		args = append(args, "-bootclasspath", req.BootClasspath.String())
	}
	if !req.Classpath.IsEmpty() {
		args = append(args, "-classpath", req.Classpath.String())
	}
	if sourcepath := execution.ClasspathOf(req.Sourcepath...); !sourcepath.IsEmpty() {
		args = append(args, "-sourcepath", sourcepath.String())
	}
	args = append(args, "-d", req.Destination)
	args = append(args, req.Files...)

	return c.runCommand(args)
}

func runCommand(args []string) ([]string, error) {
	cmd := command.New(args, command.Options{})
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd.GatherOutput()
}
