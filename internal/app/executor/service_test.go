package executor

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/X-ROM/android-dalvik/internal/domain/execution"
)

func TestExecuteFromProducerRunsEveryTest(t *testing.T) {
	t.Parallel()

	producer := &sequenceProducer{runs: makeRuns("a.A", "b.B", "c.C")}
	harness := &stubHarness{}
	service := NewService(singleHarnessFactory(harness))

	var mu sync.Mutex
	var reported []string
	err := service.ExecuteFromProducer(context.Background(), producer, 0, 1, func(run *execution.TestRun) {
		mu.Lock()
		reported = append(reported, run.QualifiedName())
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("ExecuteFromProducer returned error: %v", err)
	}

	if len(reported) != 3 {
		t.Fatalf("expected 3 reports, got %d: %v", len(reported), reported)
	}
	if got := harness.counts(); got.built != 3 || got.ran != 3 || got.cleaned != 3 {
		t.Fatalf("unexpected pipeline counts: %+v", got)
	}
	if !harness.shutDown() {
		t.Fatalf("expected harness to be shut down")
	}
}

func TestExecuteFromProducerSkipsRunForCompletedBuilds(t *testing.T) {
	t.Parallel()

	producer := &sequenceProducer{runs: makeRuns("a.A")}
	harness := &stubHarness{
		onBuild: func(run *execution.TestRun) {
			run.SetResult(execution.ResultCompileFailed, []string{"error: ';' expected"})
		},
	}
	service := NewService(singleHarnessFactory(harness))

	var completed *execution.TestRun
	err := service.ExecuteFromProducer(context.Background(), producer, 0, 1, func(run *execution.TestRun) {
		completed = run
	})
	if err != nil {
		t.Fatalf("ExecuteFromProducer returned error: %v", err)
	}

	if got := harness.counts(); got.ran != 0 {
		t.Fatalf("expected no executions for a failed build, got %d", got.ran)
	}
	if completed == nil || completed.Result() != execution.ResultCompileFailed {
		t.Fatalf("expected compile failure to be reported")
	}
}

func TestExecuteFromProducerRespectsMaxTests(t *testing.T) {
	t.Parallel()

	producer := &sequenceProducer{runs: makeRuns("a.A", "b.B", "c.C", "d.D")}
	harness := &stubHarness{}
	service := NewService(singleHarnessFactory(harness))

	if err := service.ExecuteFromProducer(context.Background(), producer, 2, 1, nil); err != nil {
		t.Fatalf("ExecuteFromProducer returned error: %v", err)
	}

	if got := harness.counts(); got.built != 2 {
		t.Fatalf("expected 2 tests taken, got %d", got.built)
	}
}

func TestExecuteFromProducerRespectsMaxParallel(t *testing.T) {
	t.Parallel()

	runs := makeRuns("a.A", "b.B", "c.C", "d.D")
	producer := &sequenceProducer{runs: runs}

	maxParallel := 2
	startCh := make(chan struct{}, len(runs))
	releaseCh := make(chan struct{})
	tracker := &concurrencyTracker{}

	factory := func(ctx context.Context) (Harness, error) {
		return &stubHarness{
			onRun: func(run *execution.TestRun) {
				done := tracker.enter()
				select {
				case startCh <- struct{}{}:
				default:
				}
				<-releaseCh
				done()
			},
		}, nil
	}
	service := NewService(factory)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- service.ExecuteFromProducer(ctx, producer, 0, maxParallel, nil)
	}()

	for range runs {
		select {
		case <-startCh:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for a test to start")
		}
		releaseCh <- struct{}{}
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("ExecuteFromProducer error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("ExecuteFromProducer did not finish")
	}

	if tracker.maxActive > maxParallel {
		t.Fatalf("expected max %d concurrent runs, got %d", maxParallel, tracker.maxActive)
	}
}

func TestExecuteFromProducerProducerError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("producer failed")
	service := NewService(singleHarnessFactory(&stubHarness{}))

	err := service.ExecuteFromProducer(context.Background(), errorProducer{err: wantErr}, 0, 1, nil)
	if err == nil || !errors.Is(err, wantErr) {
		t.Fatalf("expected producer error, got %v", err)
	}
}

func TestExecuteFromProducerFactoryError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("no javac")
	service := NewService(func(ctx context.Context) (Harness, error) {
		return nil, wantErr
	})

	err := service.ExecuteFromProducer(context.Background(), &sequenceProducer{runs: makeRuns("a.A")}, 0, 1, nil)
	if err == nil || !errors.Is(err, wantErr) {
		t.Fatalf("expected factory error, got %v", err)
	}
}

func TestExecuteFromProducerContextCancelledIsClean(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	service := NewService(singleHarnessFactory(&stubHarness{}))
	err := service.ExecuteFromProducer(ctx, &sequenceProducer{runs: makeRuns("a.A")}, 0, 1, nil)
	if err != nil {
		t.Fatalf("expected clean finish on cancelled context, got %v", err)
	}
}

func TestExecuteFromProducerShutdownError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("unmount failed")
	harness := &stubHarness{shutdownErr: wantErr}
	service := NewService(singleHarnessFactory(harness))

	err := service.ExecuteFromProducer(context.Background(), &sequenceProducer{}, 0, 1, nil)
	if err == nil || !errors.Is(err, wantErr) {
		t.Fatalf("expected shutdown error, got %v", err)
	}
}

func makeRuns(names ...string) []*execution.TestRun {
	runs := make([]*execution.TestRun, len(names))
	for i, name := range names {
		runs[i] = execution.NewTestRun(name, name, name+".java")
	}
	return runs
}

func singleHarnessFactory(h Harness) HarnessFactory {
	return func(ctx context.Context) (Harness, error) { return h, nil }
}

type pipelineCounts struct {
	built   int
	ran     int
	cleaned int
}

type stubHarness struct {
	mu       sync.Mutex
	c        pipelineCounts
	shutdown bool

	onBuild     func(*execution.TestRun)
	onRun       func(*execution.TestRun)
	shutdownErr error
}

func (h *stubHarness) BuildAndInstall(ctx context.Context, run *execution.TestRun) {
	h.mu.Lock()
	h.c.built++
	h.mu.Unlock()
	if h.onBuild != nil {
		h.onBuild(run)
	}
	if !run.Completed() {
		run.SetClasspath(execution.ClasspathOf("/classes/" + run.QualifiedName()))
	}
}

func (h *stubHarness) RunTest(ctx context.Context, run *execution.TestRun) {
	h.mu.Lock()
	h.c.ran++
	h.mu.Unlock()
	if h.onRun != nil {
		h.onRun(run)
	}
	run.SetResult(execution.ResultSuccess, nil)
}

func (h *stubHarness) Cleanup(run *execution.TestRun) {
	h.mu.Lock()
	h.c.cleaned++
	h.mu.Unlock()
}

func (h *stubHarness) Shutdown() error {
	h.mu.Lock()
	h.shutdown = true
	h.mu.Unlock()
	return h.shutdownErr
}

func (h *stubHarness) counts() pipelineCounts {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.c
}

func (h *stubHarness) shutDown() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.shutdown
}

type sequenceProducer struct {
	runs  []*execution.TestRun
	index int
	mu    sync.Mutex
}

func (p *sequenceProducer) NextTest(ctx context.Context) (*execution.TestRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.index >= len(p.runs) {
		return nil, io.EOF
	}
	run := p.runs[p.index]
	p.index++
	return run, nil
}

type errorProducer struct {
	err error
}

func (p errorProducer) NextTest(ctx context.Context) (*execution.TestRun, error) {
	return nil, p.err
}

type concurrencyTracker struct {
	mu        sync.Mutex
	active    int
	maxActive int
}

func (t *concurrencyTracker) enter() func() {
	t.mu.Lock()
	t.active++
	if t.active > t.maxActive {
		t.maxActive = t.active
	}
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		t.active--
		t.mu.Unlock()
	}
}
