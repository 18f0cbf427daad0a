// Package executor pulls tests from a producer and drives them through the
// compile-install-run pipeline with bounded parallelism.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/X-ROM/android-dalvik/internal/domain/execution"
	"github.com/X-ROM/android-dalvik/internal/ports"
)

// Harness is the per-worker pipeline a test run is driven through. Each
// worker owns one instance; instances are not shared between goroutines.
type Harness interface {
	BuildAndInstall(ctx context.Context, run *execution.TestRun)
	RunTest(ctx context.Context, run *execution.TestRun)
	Cleanup(run *execution.TestRun)
	Shutdown() error
}

// HarnessFactory produces a prepared Harness for one worker.
type HarnessFactory func(ctx context.Context) (Harness, error)

// Service coordinates test execution across a pool of harness workers.
type Service struct {
	factory HarnessFactory
}

// NewService constructs a Service that builds one harness per worker using
// the provided factory.
func NewService(factory HarnessFactory) *Service {
	return &Service{factory: factory}
}

// ExecuteFromProducer pulls tests from the supplied producer and runs them on
// maxParallel workers.
//
// If maxTests is greater than zero the execution stops after the specified
// number of tests has been taken from the producer. Otherwise it keeps
// consuming until the context is cancelled or the producer signals completion
// via io.EOF.
//
// When onReport is provided it is invoked after every completed run, from
// worker goroutines; the callback must be safe for concurrent use.
func (s *Service) ExecuteFromProducer(
	ctx context.Context,
	producer ports.TestProducer,
	maxTests int,
	maxParallel int,
	onReport func(*execution.TestRun),
) error {
	if maxParallel <= 0 {
		maxParallel = 1
	}

	group, gctx := errgroup.WithContext(ctx)
	jobs := make(chan *execution.TestRun)

	group.Go(func() error {
		defer close(jobs)

		taken := 0
		for {
			if maxTests > 0 && taken >= maxTests {
				return nil
			}

			run, err := producer.NextTest(gctx)
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil
				}
				return fmt.Errorf("get next test: %w", err)
			}
			taken++

			select {
			case jobs <- run:
			case <-gctx.Done():
				return nil
			}
		}
	})

	for i := 0; i < maxParallel; i++ {
		group.Go(func() error {
			harness, err := s.factory(gctx)
			if err != nil {
				return fmt.Errorf("prepare harness: %w", err)
			}

			for run := range jobs {
				s.executeTest(gctx, harness, run)
				if onReport != nil {
					onReport(run)
				}
			}

			if err := harness.Shutdown(); err != nil {
				return fmt.Errorf("shut down harness: %w", err)
			}
			return nil
		})
	}

	return group.Wait()
}

// executeTest drives one run through the pipeline. The harness records the
// classification on the run itself; runs that fail to install never execute.
func (s *Service) executeTest(ctx context.Context, harness Harness, run *execution.TestRun) {
	harness.BuildAndInstall(ctx, run)
	if !run.Completed() {
		harness.RunTest(ctx, run)
	}
	harness.Cleanup(run)
}
