// Package normalizers tidies the raw string literals used for command help.
package normalizers

import (
	"strings"
)

const Indentation = `  `

// LongDesc trims the surrounding blank space of a long description.
func LongDesc(s string) string {
	return strings.TrimSpace(s)
}

// Examples trims every line of an example block and indents it by
// Indentation, so examples can be written at any depth in source.
func Examples(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(Indentation)
		b.WriteString(strings.TrimSpace(line))
	}
	return b.String()
}
