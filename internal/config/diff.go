package config

import (
	"strings"

	"github.com/google/go-cmp/cmp"
)

// DiffDocuments returns a line diff between two revisions of the config file.
// Trailing whitespace and line ending differences are ignored.
func DiffDocuments(previous, current []byte) string {
	return cmp.Diff(documentLines(previous), documentLines(current))
}

func documentLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimRight(text, "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return lines
}
