// Package env manages the working areas a harness needs on disk: a shared
// directory for the compiled runner support code and per-test directories
// for compiled classes and execution scratch space.
package env

import (
	"github.com/X-ROM/android-dalvik/internal/domain/execution"
)

// Environment sets up and tears down the working areas for test runs.
type Environment interface {
	// Prepare creates the shared directories. Called once before any test.
	Prepare() error
	// RunnerClassesDir returns the directory holding the compiled runner
	// support code.
	RunnerClassesDir() string
	// TestClassesDir returns the compiled-output directory for the run,
	// creating it if necessary.
	TestClassesDir(run *execution.TestRun) (string, error)
	// PrepareUserDir creates a fresh scratch directory for the run.
	PrepareUserDir(run *execution.TestRun) error
	// UserDir returns the run's scratch directory.
	UserDir(run *execution.TestRun) string
	// Cleanup removes the run's working state. Safe to call whatever Result
	// the run ended with, including runs that never started a process.
	Cleanup(run *execution.TestRun) error
	// Shutdown removes the shared working areas. No further calls are valid
	// afterwards.
	Shutdown() error
}
