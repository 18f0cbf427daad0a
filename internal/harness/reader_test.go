package harness

import (
	"errors"
	"testing"
	"time"
)

func TestOutputReaderDeliversResult(t *testing.T) {
	t.Parallel()

	reader := newOutputReader()
	defer reader.shutdown()

	result := <-reader.submit(func() ([]string, error) {
		return []string{"line"}, nil
	})
	if result.err != nil {
		t.Fatalf("unexpected error: %v", result.err)
	}
	if len(result.lines) != 1 || result.lines[0] != "line" {
		t.Fatalf("unexpected lines: %v", result.lines)
	}
}

func TestOutputReaderPropagatesError(t *testing.T) {
	t.Parallel()

	reader := newOutputReader()
	defer reader.shutdown()

	wantErr := errors.New("read failed")
	result := <-reader.submit(func() ([]string, error) {
		return nil, wantErr
	})
	if !errors.Is(result.err, wantErr) {
		t.Fatalf("expected %v, got %v", wantErr, result.err)
	}
}

func TestOutputReaderSingleWorker(t *testing.T) {
	t.Parallel()

	reader := newOutputReader()
	defer reader.shutdown()

	release := make(chan struct{})
	first := reader.submit(func() ([]string, error) {
		<-release
		return nil, nil
	})

	started := make(chan struct{})
	go func() {
		// Blocks until the worker finishes the first gather.
		<-reader.submit(func() ([]string, error) {
			return nil, nil
		})
		close(started)
	}()

	select {
	case <-started:
		t.Fatalf("second gather ran while first was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-first
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatalf("second gather never ran")
	}
}

func TestOutputReaderShutdownIdempotent(t *testing.T) {
	t.Parallel()

	reader := newOutputReader()
	reader.shutdown()
	reader.shutdown()

	result := <-reader.submit(func() ([]string, error) { return nil, nil })
	if result.err == nil {
		t.Fatalf("expected error submitting after shutdown")
	}
}
