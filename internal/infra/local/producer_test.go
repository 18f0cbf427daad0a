package local

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/X-ROM/android-dalvik/internal/domain/execution"
)

func TestProducerWalksDirectories(t *testing.T) {
	t.Parallel()

	suite := t.TempDir()
	writeFile(t, filepath.Join(suite, "java", "util", "FooTest.java"))
	writeFile(t, filepath.Join(suite, "java", "net", "BarTest.java"))
	writeFile(t, filepath.Join(suite, "java", "util", "notes.txt"))

	producer, err := NewProducer([]string{suite}, execution.Classpath{})
	if err != nil {
		t.Fatalf("NewProducer returned error: %v", err)
	}
	if producer.Count() != 2 {
		t.Fatalf("expected 2 tests discovered, got %d", producer.Count())
	}

	var names []string
	for {
		run, err := producer.NextTest(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("NextTest returned error: %v", err)
		}
		names = append(names, run.QualifiedName())
	}

	want := []string{"java.net.BarTest", "java.util.FooTest"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("qualified names mismatch (-want +got):\n%s", diff)
	}
}

func TestProducerAcceptsExplicitFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	source := filepath.Join(dir, "FooTest.java")
	writeFile(t, source)

	producer, err := NewProducer([]string{source}, execution.ClasspathOf("/jars/junit.jar"))
	if err != nil {
		t.Fatalf("NewProducer returned error: %v", err)
	}

	run, err := producer.NextTest(context.Background())
	if err != nil {
		t.Fatalf("NextTest returned error: %v", err)
	}
	if run.QualifiedName() != "FooTest" {
		t.Fatalf("unexpected qualified name: %q", run.QualifiedName())
	}
	if run.SourcePath() != source {
		t.Fatalf("unexpected source path: %q", run.SourcePath())
	}
	if diff := cmp.Diff([]string{"/jars/junit.jar"}, run.RunnerClasspath().Entries()); diff != "" {
		t.Fatalf("runner classpath mismatch (-want +got):\n%s", diff)
	}
}

func TestProducerPassesNonJavaFilesThrough(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	source := filepath.Join(dir, "Foo.txt")
	writeFile(t, source)

	producer, err := NewProducer([]string{source}, execution.Classpath{})
	if err != nil {
		t.Fatalf("NewProducer returned error: %v", err)
	}

	run, err := producer.NextTest(context.Background())
	if err != nil {
		t.Fatalf("NextTest returned error: %v", err)
	}
	if run.SourcePath() != source {
		t.Fatalf("expected verbatim source path, got %q", run.SourcePath())
	}
}

func TestProducerMissingPath(t *testing.T) {
	t.Parallel()

	_, err := NewProducer([]string{filepath.Join(t.TempDir(), "nope")}, execution.Classpath{})
	if err == nil {
		t.Fatalf("expected error for missing path")
	}
}

func TestProducerNoPaths(t *testing.T) {
	t.Parallel()

	if _, err := NewProducer(nil, execution.Classpath{}); err == nil {
		t.Fatalf("expected error when no paths given")
	}
}

func TestProducerHonorsContext(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "FooTest.java"))

	producer, err := NewProducer([]string{dir}, execution.Classpath{})
	if err != nil {
		t.Fatalf("NewProducer returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := producer.NextTest(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("// test source\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
