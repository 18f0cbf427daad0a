package env

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/X-ROM/android-dalvik/internal/domain/execution"
)

// Local is an Environment rooted at a directory on the host filesystem.
type Local struct {
	root string
	// keepTemp leaves the working areas in place at Shutdown for
	// post-mortem inspection.
	keepTemp bool
}

// NewLocal constructs a Local environment rooted at root. An empty root
// selects a fresh directory under the system temp dir.
func NewLocal(root string, keepTemp bool) (*Local, error) {
	if root == "" {
		dir, err := os.MkdirTemp("", "dalvik-runner-")
		if err != nil {
			return nil, fmt.Errorf("create environment root: %w", err)
		}
		root = dir
	}
	return &Local{root: root, keepTemp: keepTemp}, nil
}

// Root returns the environment's root directory.
func (l *Local) Root() string { return l.root }

func (l *Local) Prepare() error {
	if err := os.MkdirAll(l.RunnerClassesDir(), 0o755); err != nil {
		return fmt.Errorf("prepare runner classes dir: %w", err)
	}
	return nil
}

func (l *Local) RunnerClassesDir() string {
	return filepath.Join(l.root, "runner", "classes")
}

func (l *Local) TestClassesDir(run *execution.TestRun) (string, error) {
	dir := filepath.Join(l.testDir(run), "classes")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create test classes dir: %w", err)
	}
	return dir, nil
}

func (l *Local) PrepareUserDir(run *execution.TestRun) error {
	dir := l.UserDir(run)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("reset user dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create user dir: %w", err)
	}
	return nil
}

func (l *Local) UserDir(run *execution.TestRun) string {
	return filepath.Join(l.testDir(run), "userdir")
}

func (l *Local) Cleanup(run *execution.TestRun) error {
	if l.keepTemp {
		return nil
	}
	if err := os.RemoveAll(l.testDir(run)); err != nil {
		return fmt.Errorf("cleanup %s: %w", run.QualifiedName(), err)
	}
	return nil
}

func (l *Local) Shutdown() error {
	if l.keepTemp {
		return nil
	}
	if err := os.RemoveAll(l.root); err != nil {
		return fmt.Errorf("remove environment root: %w", err)
	}
	return nil
}

func (l *Local) testDir(run *execution.TestRun) string {
	return filepath.Join(l.root, "tests", run.QualifiedName())
}
