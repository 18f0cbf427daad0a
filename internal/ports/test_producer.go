package ports

import (
	"context"

	"github.com/X-ROM/android-dalvik/internal/domain/execution"
)

// TestProducer supplies tests for the executor service to run. NextTest
// returns io.EOF once the source is exhausted.
type TestProducer interface {
	NextTest(ctx context.Context) (*execution.TestRun, error)
}
