package ports

import (
	"context"

	"github.com/X-ROM/android-dalvik/internal/domain/execution"
)

// ReportPublisher delivers completed test runs to an external system.
type ReportPublisher interface {
	PublishReport(ctx context.Context, run *execution.TestRun) error
	Close() error
}
