package execution

import (
	"fmt"
	"path/filepath"
	"slices"
)

// TestRun records the identity and mutable outcome of one test. The harness
// assigns its classpath during compilation and its Result during execution
// (or at an earlier terminal failure); both are set exactly once.
type TestRun struct {
	qualifiedName string
	testClass     string
	sourcePath    string

	runnerClasspath Classpath

	classpath    Classpath
	hasClasspath bool

	result Result
	output []string
}

// NewTestRun constructs a TestRun for the test identified by its fully
// qualified name, simple test-class name and source file path.
func NewTestRun(qualifiedName, testClass, sourcePath string) *TestRun {
	return &TestRun{
		qualifiedName: qualifiedName,
		testClass:     testClass,
		sourcePath:    sourcePath,
	}
}

// QualifiedName returns the fully qualified name of the test.
func (t *TestRun) QualifiedName() string { return t.qualifiedName }

// TestClass returns the simple name of the test class.
func (t *TestRun) TestClass() string { return t.testClass }

// SourcePath returns the path to the test's source file.
func (t *TestRun) SourcePath() string { return t.sourcePath }

// SourceDir returns the directory containing the test's source file.
func (t *TestRun) SourceDir() string { return filepath.Dir(t.sourcePath) }

// RunnerClasspath returns the extra classpath the test's runner requires.
func (t *TestRun) RunnerClasspath() Classpath { return t.runnerClasspath }

// AddRunnerClasspath appends entries to the test's runner classpath.
func (t *TestRun) AddRunnerClasspath(cp Classpath) {
	t.runnerClasspath.AddAll(cp)
}

// SetClasspath assigns the installed classpath. It may be called at most
// once; a second call is a harness bug.
func (t *TestRun) SetClasspath(cp Classpath) {
	if t.hasClasspath {
		panic(fmt.Sprintf("classpath already assigned for %s", t.qualifiedName))
	}
	t.classpath = cp
	t.hasClasspath = true
}

// Classpath returns the installed classpath.
func (t *TestRun) Classpath() Classpath { return t.classpath }

// Runnable reports whether the classpath has been assigned, i.e. the test
// compiled and installed successfully.
func (t *TestRun) Runnable() bool { return t.hasClasspath }

// SetResult assigns the terminal classification and its output lines. It may
// be called at most once; a second call is a harness bug.
func (t *TestRun) SetResult(result Result, output []string) {
	if t.result != "" {
		panic(fmt.Sprintf("result already assigned for %s: %s", t.qualifiedName, t.result))
	}
	if result == "" {
		panic(fmt.Sprintf("empty result for %s", t.qualifiedName))
	}
	t.result = result
	t.output = slices.Clone(output)
}

// SetError assigns ResultError carrying the fault's description.
func (t *TestRun) SetError(err error) {
	t.SetResult(ResultError, []string{err.Error()})
}

// Completed reports whether a Result has been assigned.
func (t *TestRun) Completed() bool { return t.result != "" }

// Result returns the assigned classification, or the empty string if the
// run has not completed.
func (t *TestRun) Result() Result { return t.result }

// Output returns a copy of the output lines recorded with the Result.
func (t *TestRun) Output() []string { return slices.Clone(t.output) }
