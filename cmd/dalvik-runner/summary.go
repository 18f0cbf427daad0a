package main

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/olekukonko/tablewriter"

	"github.com/X-ROM/android-dalvik/internal/domain/execution"
)

// runSummary aggregates verdicts across workers.
type runSummary struct {
	mu     sync.Mutex
	counts map[execution.Result]int
	failed []*execution.TestRun
}

func newRunSummary() *runSummary {
	return &runSummary{counts: make(map[execution.Result]int)}
}

func (s *runSummary) record(run *execution.TestRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[run.Result()]++
	if run.Result() != execution.ResultSuccess {
		s.failed = append(s.failed, run)
	}
}

func (s *runSummary) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, count := range s.counts {
		total += count
	}
	return total
}

func (s *runSummary) failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.failed)
}

// render formats the per-result counts as a table, followed by the name and
// verdict of every test that did not succeed.
func (s *runSummary) render() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]execution.Result, 0, len(s.counts))
	for result := range s.counts {
		results = append(results, result)
	}
	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })

	var buffer bytes.Buffer
	table := tablewriter.NewWriter(&buffer)
	table.SetHeader([]string{"Result", "Tests"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER})

	total := 0
	for _, result := range results {
		table.Append([]string{string(result), fmt.Sprintf("%d", s.counts[result])})
		total += s.counts[result]
	}
	table.SetFooter([]string{"Total", fmt.Sprintf("%d", total)})
	table.Render()

	for _, run := range s.failed {
		fmt.Fprintf(&buffer, "\n%s: %s", run.Result(), run.QualifiedName())
		for _, line := range run.Output() {
			fmt.Fprintf(&buffer, "\n    %s", line)
		}
	}

	return buffer.String()
}
