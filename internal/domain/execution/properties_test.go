package execution

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWritePropertiesFormat(t *testing.T) {
	t.Parallel()

	run := NewTestRun("java.util.FooTest", "FooTest", "FooTest.java")
	path := filepath.Join(t.TempDir(), PropertiesFile)

	if err := WriteProperties(path, TestProperties(run)); err != nil {
		t.Fatalf("write properties: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read properties: %v", err)
	}

	content := string(data)
	for _, want := range []string{
		PropertyTestClass + "=FooTest\n",
		PropertyQualifiedName + "=java.util.FooTest\n",
		PropertyResultSuccess + "=" + SuccessSentinel + "\n",
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("properties file missing %q:\n%s", want, content)
		}
	}
}
