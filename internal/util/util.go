// Package util provides the string helpers used to read replay scripts.
package util

import (
	"fmt"
	"strings"
)

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// SplitArgs splits a line on whitespace. A field wrapped in double quotes
// may contain spaces; inside it a doubled quote ("") stands for one quote.
func SplitArgs(line string) ([]string, error) {
	var (
		out    []string
		field  strings.Builder
		quoted bool
		inside bool
	)
	flush := func() {
		if inside {
			out = append(out, field.String())
		}
		field.Reset()
		inside = false
	}

	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case quoted && ch == '"':
			if i+1 < len(line) && line[i+1] == '"' {
				field.WriteByte('"')
				i++
				continue
			}
			quoted = false
		case quoted:
			field.WriteByte(ch)
		case ch == '"':
			quoted = true
			inside = true
		case ch == ' ' || ch == '\t':
			flush()
		default:
			field.WriteByte(ch)
			inside = true
		}
	}
	if quoted {
		return nil, fmt.Errorf("unterminated quote in %q", line)
	}
	flush()
	return out, nil
}

// ParseLine reads one replay script line: a command followed by its
// arguments. Blank lines and lines starting with '#' yield ok == false.
func ParseLine(line string) (command string, args []string, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", nil, false, nil
	}
	fields, err := SplitArgs(line)
	if err != nil {
		return "", nil, false, err
	}
	return fields[0], fields[1:], true, nil
}
