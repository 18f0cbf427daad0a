package execution

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Keys of the generated properties record written beside each test's
// compiled classes. The executed program reads the record off its classpath
// to learn its own identity and the sentinel it must print on success.
const (
	// PropertiesFile is the record's fixed name inside the compiled-output
	// directory.
	PropertiesFile = "test.properties"

	PropertyTestClass     = "testClass"
	PropertyQualifiedName = "qualifiedName"
	PropertyResultSuccess = "resultSuccess"
)

// SuccessSentinel is the exact line a test program must print last to be
// classified successful.
const SuccessSentinel = "SUCCESS"

// TestProperties returns the generated properties for the given run.
func TestProperties(run *TestRun) map[string]string {
	return map[string]string{
		PropertyTestClass:     run.TestClass(),
		PropertyQualifiedName: run.QualifiedName(),
		PropertyResultSuccess: SuccessSentinel,
	}
}

// WriteProperties stores properties as a key=value file at path, one pair
// per line in sorted key order.
func WriteProperties(path string, properties map[string]string) error {
	var sb strings.Builder
	sb.WriteString("# generated by dalvik-runner\n")

	keys := make([]string, 0, len(properties))
	for key := range properties {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		fmt.Fprintf(&sb, "%s=%s\n", key, properties[key])
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write properties: %w", err)
	}
	return nil
}
