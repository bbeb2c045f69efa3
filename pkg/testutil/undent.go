package testutil

import (
	"strings"
)

// Undent removes the common leading indentation from every line of s. Useful
// for inlining YAML documents in Go test files.
//
// A leading newline is dropped so that the literal can start on its own line,
// and a trailing line made only of indentation is dropped so that the closing
// backtick can be aligned with the code. Blank lines don't need indentation:
//
//	Undent(`
//	    listen-address: :8080
//	    keys:
//	      private-key-file: server.pem
//	`)
func Undent(s string) string {
	s = strings.TrimPrefix(s, "\n")
	lines := strings.Split(s, "\n")

	if last := lines[len(lines)-1]; strings.TrimLeft(last, " \t") == "" {
		lines[len(lines)-1] = ""
	}

	indent := -1
	for _, line := range lines {
		if strings.TrimLeft(line, " \t") == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if indent == -1 || n < indent {
			indent = n
		}
	}

	if indent <= 0 {
		return strings.Join(lines, "\n")
	}

	for i, line := range lines {
		if len(line) < indent {
			lines[i] = strings.TrimLeft(line, " \t")
			continue
		}
		lines[i] = line[indent:]
	}

	return strings.Join(lines, "\n")
}
