package execution

import (
	"os"
	"slices"
	"strings"
)

// Classpath is an ordered, duplicate-free sequence of compiled-artifact
// locations (directories or archives). Entries are append-only.
type Classpath struct {
	entries []string
}

// ClasspathOf constructs a Classpath from the given locations, preserving
// order and dropping duplicates.
func ClasspathOf(locations ...string) Classpath {
	var cp Classpath
	cp.Add(locations...)
	return cp
}

// Add appends the given locations, skipping any already present.
func (c *Classpath) Add(locations ...string) {
	for _, location := range locations {
		if location == "" {
			continue
		}
		if slices.Contains(c.entries, location) {
			continue
		}
		c.entries = append(c.entries, location)
	}
}

// AddAll appends every entry of other, skipping any already present.
func (c *Classpath) AddAll(other Classpath) {
	c.Add(other.entries...)
}

// Entries returns a copy of the classpath entries in order.
func (c Classpath) Entries() []string {
	return slices.Clone(c.entries)
}

// IsEmpty reports whether the classpath has no entries.
func (c Classpath) IsEmpty() bool {
	return len(c.entries) == 0
}

// String renders the classpath using the platform path-list separator.
func (c Classpath) String() string {
	return strings.Join(c.entries, string(os.PathListSeparator))
}
