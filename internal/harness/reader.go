package harness

import (
	"fmt"
	"sync"
)

type gatherResult struct {
	lines []string
	err   error
}

// outputReader is the single dedicated worker that gathers process output.
// A gather blocks on the process's output stream until the process exits,
// so it runs here instead of on the control goroutine, which waits on the
// result bounded by the timeout.
type outputReader struct {
	jobs chan readerJob

	mu     sync.Mutex
	closed bool
}

type readerJob struct {
	gather func() ([]string, error)
	result chan<- gatherResult
}

func newOutputReader() *outputReader {
	r := &outputReader{jobs: make(chan readerJob)}
	go r.loop()
	return r
}

func (r *outputReader) loop() {
	for job := range r.jobs {
		lines, err := job.gather()
		job.result <- gatherResult{lines: lines, err: err}
	}
}

// submit hands a gather to the worker and returns the channel its result
// will arrive on. The channel is buffered so an abandoned result never
// blocks the worker.
func (r *outputReader) submit(gather func() ([]string, error)) <-chan gatherResult {
	result := make(chan gatherResult, 1)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		result <- gatherResult{err: fmt.Errorf("output reader is shut down")}
		return result
	}

	r.jobs <- readerJob{gather: gather, result: result}
	return result
}

// shutdown stops accepting work. Idempotent.
func (r *outputReader) shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.jobs)
	}
}
