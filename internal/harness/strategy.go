package harness

import (
	"context"

	"github.com/X-ROM/android-dalvik/internal/command"
	"github.com/X-ROM/android-dalvik/internal/domain/execution"
)

// Strategy supplies the target-specific pieces of the pipeline: what to do
// after the runner support code compiles, how compiled test classes become
// an installable classpath, and which commands execute a run.
type Strategy interface {
	// PostPrepare performs target-specific setup after the runner support
	// code has been compiled.
	PostPrepare(ctx context.Context) error

	// PostCompileTest converts the run's freshly compiled classes into the
	// installable classpath (a directory or archive) assigned to the run.
	PostCompileTest(ctx context.Context, run *execution.TestRun) (execution.Classpath, error)

	// BuildCommands returns the ordered command sequence that executes the
	// run. Only the last command's output is inspected for the verdict, so
	// the last command must permit a non-zero exit status.
	BuildCommands(run *execution.TestRun) ([]command.Command, error)
}
