package core

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// writerPattern matches "Last, First [CODE]" anywhere in a segment.
	writerPattern    = regexp.MustCompile(`(.+?),\s*(.+?)\s*\[([^\]]+)\]`)
	writerSeparators = regexp.MustCompile(`[;|]`)
)

// ParseWriters extracts writer identities from a WRITERS cell. Segments are
// separated by ';' or '|'. Segments that do not look like
// "Last, First [CODE]" are dropped without error.
func ParseWriters(s string) []Writer {
	var out []Writer
	for _, seg := range writerSeparators.Split(s, -1) {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		m := writerPattern.FindStringSubmatch(seg)
		if m == nil {
			continue
		}
		w := Writer{
			LastName:  strings.TrimSpace(m[1]),
			FirstName: strings.TrimSpace(m[2]),
			IPCode:    strings.TrimSpace(m[3]),
		}
		if w.IPCode == "" {
			continue
		}
		out = append(out, w)
	}
	return out
}

// CanonicalName renders the writer as "Last, First [CODE]".
func (w Writer) CanonicalName() string {
	return fmt.Sprintf("%s, %s [%s]", w.LastName, w.FirstName, w.IPCode)
}

// JoinWriters renders writers in canonical form separated by "; ".
func JoinWriters(ws []Writer) string {
	names := make([]string, len(ws))
	for i, w := range ws {
		names[i] = w.CanonicalName()
	}
	return strings.Join(names, "; ")
}
