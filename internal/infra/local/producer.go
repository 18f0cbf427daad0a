// Package local discovers tests on the filesystem and feeds them to the
// executor, mirroring the Kafka intake for single-machine runs.
package local

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/X-ROM/android-dalvik/internal/domain/execution"
	"github.com/X-ROM/android-dalvik/internal/ports"
)

var _ ports.TestProducer = (*Producer)(nil)

// Producer walks directories for Java test sources and yields one TestRun per
// file. Paths naming a file directly are taken verbatim, without the .java
// filter, so the harness decides whether it can run them.
type Producer struct {
	runs  []*execution.TestRun
	index int
}

// NewProducer discovers tests under the given paths. Directory paths are
// walked recursively; the package-qualified name of each test is derived from
// its path relative to the directory it was found under.
func NewProducer(paths []string, runnerClasspath execution.Classpath) (*Producer, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("at least one test path must be provided")
	}

	producer := &Producer{}
	for _, root := range paths {
		if err := producer.add(root, runnerClasspath); err != nil {
			return nil, err
		}
	}
	return producer, nil
}

func (p *Producer) add(root string, runnerClasspath execution.Classpath) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("stat test path %q: %w", root, err)
	}

	if !info.IsDir() {
		p.append(qualifiedNameOf(filepath.Base(root)), root, runnerClasspath)
		return nil
	}

	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".java") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		p.append(qualifiedNameOf(rel), path, runnerClasspath)
		return nil
	})
}

func (p *Producer) append(qualifiedName, sourcePath string, runnerClasspath execution.Classpath) {
	run := execution.NewTestRun(qualifiedName, simpleClassName(qualifiedName), sourcePath)
	run.AddRunnerClasspath(runnerClasspath)
	p.runs = append(p.runs, run)
}

// NextTest returns the next discovered test, or io.EOF once all have been
// handed out.
func (p *Producer) NextTest(ctx context.Context) (*execution.TestRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.index >= len(p.runs) {
		return nil, io.EOF
	}
	run := p.runs[p.index]
	p.index++
	return run, nil
}

// Count reports how many tests were discovered.
func (p *Producer) Count() int { return len(p.runs) }

// qualifiedNameOf converts a relative source path to a dotted name:
// java/util/FooTest.java becomes java.util.FooTest.
func qualifiedNameOf(rel string) string {
	name := strings.TrimSuffix(rel, filepath.Ext(rel))
	name = filepath.ToSlash(name)
	return strings.ReplaceAll(name, "/", ".")
}

func simpleClassName(qualifiedName string) string {
	if idx := strings.LastIndexByte(qualifiedName, '.'); idx >= 0 {
		return qualifiedName[idx+1:]
	}
	return qualifiedName
}
